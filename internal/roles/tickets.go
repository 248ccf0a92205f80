package roles

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ticketKeyPrefix = "campussync:rolechange:"

// TicketStore keeps pending two-phase role change confirmations.
type TicketStore interface {
	Save(ctx context.Context, ticket ChangeTicket, ttl time.Duration) error
	Take(ctx context.Context, token string) (ChangeTicket, error)
}

// RedisTicketStore stores tickets in Redis with a TTL.
type RedisTicketStore struct {
	client *redis.Client
}

// NewRedisTicketStore constructs a RedisTicketStore.
func NewRedisTicketStore(client *redis.Client) *RedisTicketStore {
	return &RedisTicketStore{client: client}
}

// Save persists the ticket under its token.
func (s *RedisTicketStore) Save(ctx context.Context, ticket ChangeTicket, ttl time.Duration) error {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, ticketKeyPrefix+ticket.Token, raw, ttl).Err()
}

// Take atomically reads and deletes the ticket so it can be used once.
func (s *RedisTicketStore) Take(ctx context.Context, token string) (ChangeTicket, error) {
	raw, err := s.client.GetDel(ctx, ticketKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ChangeTicket{}, ErrTicketInvalid
		}
		return ChangeTicket{}, fmt.Errorf("roles: take ticket: %w", err)
	}
	var ticket ChangeTicket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return ChangeTicket{}, fmt.Errorf("roles: decode ticket: %w", err)
	}
	return ticket, nil
}

func newTicketToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

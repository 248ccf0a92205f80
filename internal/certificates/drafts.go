package certificates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DraftTTL is how long an extraction waits for the student to confirm it.
const DraftTTL = time.Hour

const draftKeyPrefix = "campussync:extraction:"

// DraftStore keeps extraction drafts between upload and create. Drafts are
// scoped to the uploading student and can be taken once.
type DraftStore interface {
	Save(ctx context.Context, d Draft, ttl time.Duration) error
	Take(ctx context.Context, studentID, id uuid.UUID) (Draft, error)
}

// RedisDraftStore stores drafts as JSON with an expiry.
type RedisDraftStore struct {
	client *redis.Client
}

// NewRedisDraftStore constructs the store.
func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{client: client}
}

func draftKey(studentID, id uuid.UUID) string {
	return draftKeyPrefix + studentID.String() + ":" + id.String()
}

func (s *RedisDraftStore) Save(ctx context.Context, d Draft, ttl time.Duration) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, draftKey(d.StudentID, d.ID), payload, ttl).Err()
}

// Take reads and deletes the draft in one step, so concurrent creates from
// the same extraction cannot both see it.
func (s *RedisDraftStore) Take(ctx context.Context, studentID, id uuid.UUID) (Draft, error) {
	raw, err := s.client.GetDel(ctx, draftKey(studentID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrDraftNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

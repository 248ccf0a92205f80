package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 30 * time.Second

// ActionLockKey builds redis keys guarding a single review action.
func ActionLockKey(module string, id uuid.UUID) string {
	return fmt.Sprintf("campussync:%s:%s:lock", module, id)
}

// ActionLock rejects concurrent actions on the same resource.
type ActionLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewActionLock constructs an ActionLock. A nil client disables locking.
func NewActionLock(client *redis.Client, ttl time.Duration) *ActionLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &ActionLock{client: client, ttl: ttl}
}

// Acquire takes the lock for module/id or returns ErrActionInFlight. The
// returned release func must be called once the action finishes.
func (l *ActionLock) Acquire(ctx context.Context, module string, id uuid.UUID) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := ActionLockKey(module, id)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrActionInFlight
	}
	return func() {
		// Only delete our own token; the lock may have expired and been retaken.
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

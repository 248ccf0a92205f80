package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campussync/campussync/internal/platform/httpx"
)

// ErrIdempotencyConflict is returned when a key was already used for the module.
var ErrIdempotencyConflict = fmt.Errorf("%w: idempotent request already processed", httpx.ErrConflict)

// IdempotencyStore remembers client-supplied request keys per module.
type IdempotencyStore struct {
	db  Execer
	now func() time.Time
}

// NewIdempotencyStore constructs the store on db, usually the pool.
func NewIdempotencyStore(db Execer) *IdempotencyStore {
	return &IdempotencyStore{db: db, now: time.Now}
}

// CheckAndInsert claims key for module. A second claim of the same pair
// returns ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency store not initialised")
	}
	key = strings.TrimSpace(key)
	if key == "" || module == "" {
		return fmt.Errorf("%w: idempotency key and module required", httpx.ErrValidation)
	}
	if len(key) > 200 {
		return fmt.Errorf("%w: idempotency key longer than 200 characters", httpx.ErrValidation)
	}
	tag, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (module, key, created_at) VALUES ($1, $2, $3)
ON CONFLICT (module, key) DO NOTHING`, module, key, s.now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Cleanup drops keys claimed before the retention window and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", httpx.ErrValidation)
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

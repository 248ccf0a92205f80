package shared

import "context"

// CacheInvalidator is bumped after every committed mutation that changes
// aggregate counts.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

package rolerequests

import (
	"fmt"

	"github.com/campussync/campussync/internal/platform/httpx"
)

var (
	// ErrNotFound occurs when the request does not exist.
	ErrNotFound = fmt.Errorf("%w: role request not found", httpx.ErrNotFound)
	// ErrAlreadyReviewed occurs when acting on a request that has left pending.
	ErrAlreadyReviewed = fmt.Errorf("%w: role request already reviewed", httpx.ErrConflict)
	// ErrPendingExists occurs when the user already has an open request.
	ErrPendingExists = fmt.Errorf("%w: a pending role request already exists", httpx.ErrDuplicate)
	// ErrSameRole occurs when requesting the role already held.
	ErrSameRole = fmt.Errorf("%w: you already hold the requested role", httpx.ErrValidation)
	// ErrInvalidFilter occurs on unknown status or role filters.
	ErrInvalidFilter = fmt.Errorf("%w: unknown status or role filter", httpx.ErrValidation)
)

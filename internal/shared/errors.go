package shared

import (
	"fmt"

	"github.com/campussync/campussync/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = fmt.Errorf("%w: not found", httpx.ErrNotFound)
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)
	// ErrActionInFlight occurs when another action on the same resource is still running.
	ErrActionInFlight = fmt.Errorf("%w: another action on this item is in progress", httpx.ErrConflict)
	// ErrUnauthenticated occurs when no principal is attached to the request.
	ErrUnauthenticated = fmt.Errorf("%w: authentication required", httpx.ErrUnauthorized)
)

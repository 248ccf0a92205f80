package auth

import (
	"fmt"

	"github.com/campussync/campussync/internal/platform/httpx"
)

var (
	// ErrEmailTaken occurs when signing up with an address already registered.
	ErrEmailTaken = fmt.Errorf("%w: auth: email already registered", httpx.ErrDuplicate)
	// ErrEmailNotConfirmed blocks login until the address is confirmed.
	ErrEmailNotConfirmed = fmt.Errorf("%w: auth: email address not confirmed", httpx.ErrForbidden)
	// ErrInvalidToken occurs when a bearer token fails verification.
	ErrInvalidToken = fmt.Errorf("%w: auth: invalid or expired token", httpx.ErrUnauthorized)
	// ErrUserNotFound occurs when a lookup finds no account.
	ErrUserNotFound = fmt.Errorf("%w: auth: user not found", httpx.ErrNotFound)
)

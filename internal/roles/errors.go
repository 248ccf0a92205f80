package roles

import (
	"fmt"

	"github.com/campussync/campussync/internal/platform/httpx"
)

var (
	// ErrSelfChange forbids actors from editing their own role.
	ErrSelfChange = fmt.Errorf("%w: roles: you cannot change your own role", httpx.ErrForbidden)
	// ErrProtectedAccount forbids any change to super-admin or primary-admin accounts.
	ErrProtectedAccount = fmt.Errorf("%w: roles: protected accounts cannot be changed", httpx.ErrForbidden)
	// ErrInvalidRole occurs when the target role is unknown.
	ErrInvalidRole = fmt.Errorf("%w: roles: unknown role", httpx.ErrValidation)
	// ErrJustificationRequired occurs when demoting an admin without a usable reason.
	ErrJustificationRequired = fmt.Errorf("%w: roles: justification required, minimum %d characters", httpx.ErrValidation, MinJustificationLength)
	// ErrUserNotFound occurs when the target user does not exist.
	ErrUserNotFound = fmt.Errorf("%w: roles: user not found", httpx.ErrNotFound)
	// ErrTicketInvalid occurs when a confirmation token is unknown, expired or belongs to another actor.
	ErrTicketInvalid = fmt.Errorf("%w: roles: confirmation token invalid or expired", httpx.ErrConflict)
)

package roles

import (
	"strings"
	"unicode/utf8"

	"github.com/campussync/campussync/internal/shared"
)

// MinJustificationLength is the shortest reason accepted when demoting an admin.
const MinJustificationLength = 10

// CheckTransition applies the structural rules of a role change: no self
// edits, no changes to protected accounts, and a known target role.
func CheckTransition(req ChangeRequest) error {
	if req.ActorID == req.Target.UserID {
		return ErrSelfChange
	}
	if req.Target.Protected() {
		return ErrProtectedAccount
	}
	if !req.NewRole.Valid() {
		return ErrInvalidRole
	}
	return nil
}

// RequiresJustification reports whether moving from current to next needs a reason.
func RequiresJustification(current, next shared.Role) bool {
	return current == shared.RoleAdmin && next != shared.RoleAdmin
}

// CheckChange is the full role change guard. It has no side effects.
func CheckChange(req ChangeRequest) error {
	if err := CheckTransition(req); err != nil {
		return err
	}
	if RequiresJustification(req.Target.Role, req.NewRole) &&
		utf8.RuneCountInString(strings.TrimSpace(req.Reason)) < MinJustificationLength {
		return ErrJustificationRequired
	}
	return nil
}

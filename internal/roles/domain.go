package roles

import (
	"time"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/shared"
)

// Assignment is a user's current role. Users without a stored row resolve to
// an unsaved student assignment.
type Assignment struct {
	UserID         uuid.UUID   `json:"user_id"`
	Email          string      `json:"email"`
	DisplayName    string      `json:"display_name"`
	Role           shared.Role `json:"role"`
	IsSuperAdmin   bool        `json:"is_super_admin"`
	IsPrimaryAdmin bool        `json:"is_primary_admin"`
	AssignedBy     *uuid.UUID  `json:"assigned_by,omitempty"`
	CreatedAt      *time.Time  `json:"created_at,omitempty"`
	UpdatedAt      *time.Time  `json:"updated_at,omitempty"`
}

// Protected reports whether the assignment is exempt from role workflows.
func (a Assignment) Protected() bool {
	return a.IsSuperAdmin || a.IsPrimaryAdmin
}

// ChangeRequest is the input to the role change guard.
type ChangeRequest struct {
	ActorID uuid.UUID
	Target  Assignment
	NewRole shared.Role
	Reason  string
}

// ListFilter narrows assignment listings.
type ListFilter struct {
	Role   shared.Role
	Search string
	Page   shared.PageRequest
}

// ChangeInput drives a guarded one-shot role change.
type ChangeInput struct {
	UserID  uuid.UUID   `json:"user_id" validate:"required"`
	NewRole shared.Role `json:"new_role" validate:"required,oneof=student faculty recruiter admin"`
	Reason  string      `json:"reason" validate:"max=1000"`
}

// RemoveInput drops a stored assignment so the user falls back to student.
type RemoveInput struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Reason string    `json:"reason" validate:"max=1000"`
}

// RequestChangeInput opens a two-phase role change.
type RequestChangeInput struct {
	UserID  uuid.UUID   `json:"user_id" validate:"required"`
	NewRole shared.Role `json:"new_role" validate:"required,oneof=student faculty recruiter admin"`
}

// ConfirmChangeInput completes a two-phase role change.
type ConfirmChangeInput struct {
	Token         string `json:"token" validate:"required"`
	Justification string `json:"justification" validate:"max=1000"`
}

// ChangeTicket is the pending confirmation returned by RequestChange.
type ChangeTicket struct {
	Token                 string      `json:"token"`
	ActorID               uuid.UUID   `json:"actor_id"`
	UserID                uuid.UUID   `json:"user_id"`
	CurrentRole           shared.Role `json:"current_role"`
	NewRole               shared.Role `json:"new_role"`
	RequiresJustification bool        `json:"requires_justification"`
	ExpiresAt             time.Time   `json:"expires_at"`
}

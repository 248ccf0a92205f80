package facultyapprovals

import (
	"time"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/shared"
)

// Status is the state of a membership approval.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusDenied
}

// Action is a reviewer decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDeny    Action = "deny"
)

// Approval is a faculty or recruiter membership request for an organization.
type Approval struct {
	ID               uuid.UUID   `json:"id"`
	UserID           uuid.UUID   `json:"user_id"`
	Email            string      `json:"email"`
	DisplayName      string      `json:"display_name"`
	Role             shared.Role `json:"role"`
	OrganizationID   uuid.UUID   `json:"organization_id"`
	OrganizationName string      `json:"organization_name"`
	Status           Status      `json:"approval_status"`
	CreatedAt        time.Time   `json:"created_at"`
	ApprovedAt       *time.Time  `json:"approved_at,omitempty"`
	ApprovedBy       *uuid.UUID  `json:"approved_by,omitempty"`
	Notes            *string     `json:"approval_notes,omitempty"`
}

// ApplyInput is posted by a user asking to join an organization.
type ApplyInput struct {
	OrganizationID uuid.UUID   `json:"organization_id" validate:"required"`
	Role           shared.Role `json:"role" validate:"required,oneof=faculty recruiter"`
}

// ActInput carries a reviewer decision.
type ActInput struct {
	ID     uuid.UUID `json:"id" validate:"required"`
	Action Action    `json:"action" validate:"required,oneof=approve deny"`
	Notes  string    `json:"notes" validate:"max=2000"`
}

// ListFilter narrows approval listings.
type ListFilter struct {
	Status         Status
	Role           shared.Role
	OrganizationID *uuid.UUID
	Page           shared.PageRequest
}

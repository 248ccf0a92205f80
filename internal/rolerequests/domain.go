package rolerequests

import (
	"time"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/shared"
)

// Status is the lifecycle state of a role request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Decision is a reviewer's verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// Request is a user's ask for an elevated role.
type Request struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	Email         string         `json:"email"`
	DisplayName   string         `json:"display_name"`
	RequestedRole shared.Role    `json:"requested_role"`
	Status        Status         `json:"status"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	ReviewedBy    *uuid.UUID     `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	ReviewNotes   *string        `json:"review_notes,omitempty"`
}

// CreateInput is posted by a user requesting a role.
type CreateInput struct {
	RequestedRole shared.Role    `json:"requested_role" validate:"required,oneof=faculty recruiter admin"`
	Metadata      map[string]any `json:"metadata"`
}

// ReviewInput carries the optional reviewer notes.
type ReviewInput struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// ListFilter narrows request listings.
type ListFilter struct {
	Status        Status
	RequestedRole shared.Role
	UserID        *uuid.UUID
	Page          shared.PageRequest
}

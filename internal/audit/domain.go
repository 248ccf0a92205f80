package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// ErrInvalidFilter is returned for malformed query parameters.
var ErrInvalidFilter = fmt.Errorf("%w: invalid audit filter", httpx.ErrValidation)

// Filters narrows the audit timeline.
type Filters struct {
	ActorID  *uuid.UUID
	Entity   string
	EntityID string
	Action   string
	From     time.Time
	To       time.Time
	Page     shared.PageRequest
}

// Entry is one audit_logs row.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	ActorEmail string         `json:"actor_email,omitempty"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

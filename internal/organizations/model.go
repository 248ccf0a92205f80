package organizations

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies an organization.
type Type string

const (
	TypeUniversity Type = "university"
	TypeCollege    Type = "college"
	TypeSchool     Type = "school"
	TypeCompany    Type = "company"
	TypeOther      Type = "other"
)

// Organization is an institution or employer that faculty and recruiters belong to.
type Organization struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Type         Type      `json:"type"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Website      string    `json:"website,omitempty"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	MemberCount  int       `json:"member_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateInput is the payload for creating an organization.
type CreateInput struct {
	Name         string `json:"name" validate:"required,min=2,max=200"`
	Slug         string `json:"slug" validate:"omitempty,max=80"`
	Type         Type   `json:"type" validate:"required,oneof=university college school company other"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone string `json:"contact_phone" validate:"omitempty,max=40"`
	Website      string `json:"website" validate:"omitempty,url"`
}

// ListFilters narrows organization listings.
type ListFilters struct {
	Search   string
	Type     Type
	IsActive *bool
	SortBy   string
	SortDir  string
	Page     int
	Limit    int
}

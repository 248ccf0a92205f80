package certificates

import (
	"time"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/credentials"
	"github.com/campussync/campussync/internal/extraction"
	"github.com/campussync/campussync/internal/shared"
)

// Status is the verification state of a certificate.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Action is a reviewer decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Certificate is a student's uploaded credential document.
type Certificate struct {
	ID                 uuid.UUID         `json:"id"`
	Title              string            `json:"title"`
	Institution        string            `json:"institution"`
	DateIssued         string            `json:"date_issued,omitempty"`
	Description        string            `json:"description,omitempty"`
	FileKey            string            `json:"-"`
	MIMEType           string            `json:"mime_type"`
	FileURL            string            `json:"file_url,omitempty"`
	StudentID          uuid.UUID         `json:"student_id"`
	StudentEmail       string            `json:"student_email,omitempty"`
	StudentName        string            `json:"student_name,omitempty"`
	Status             Status            `json:"verification_status"`
	ConfidenceScore    *float64          `json:"confidence_score"`
	AutoApproved       bool              `json:"auto_approved"`
	VerificationMethod extraction.Method `json:"verification_method"`
	CredentialID       *uuid.UUID        `json:"credential_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	ReviewedBy         *uuid.UUID        `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time        `json:"reviewed_at,omitempty"`
	ReviewNotes        *string           `json:"review_notes,omitempty"`
}

// Subject returns the credential payload for the certificate.
func (c Certificate) Subject() credentials.Subject {
	return credentials.Subject{
		StudentID:     c.StudentID,
		CertificateID: c.ID,
		Title:         c.Title,
		Institution:   c.Institution,
		DateIssued:    c.DateIssued,
		Description:   c.Description,
	}
}

// Draft is an extraction result waiting for the student to confirm it.
type Draft struct {
	ID        uuid.UUID         `json:"id"`
	StudentID uuid.UUID         `json:"student_id"`
	FileKey   string            `json:"file_key"`
	MIMEType  string            `json:"mime_type"`
	Extractor string            `json:"extractor"`
	Result    extraction.Result `json:"result"`
	CreatedAt time.Time         `json:"created_at"`
}

// IntakeResponse is returned by the OCR endpoints.
type IntakeResponse struct {
	ExtractionID uuid.UUID         `json:"extraction_id"`
	FileURL      string            `json:"file_url"`
	Result       extraction.Result `json:"result"`
}

// CreateInput carries the student-edited fields of an extraction draft.
type CreateInput struct {
	ExtractionID uuid.UUID `json:"extraction_id" validate:"required"`
	Title        string    `json:"title" validate:"required,min=2,max=300"`
	Institution  string    `json:"institution" validate:"required,min=2,max=300"`
	DateIssued   string    `json:"date_issued" validate:"omitempty,datetime=2006-01-02"`
	Description  string    `json:"description" validate:"max=4000"`
}

// ReviewInput is a single review decision.
type ReviewInput struct {
	ID     uuid.UUID `json:"id" validate:"required"`
	Action Action    `json:"action" validate:"required,oneof=approve reject"`
	Notes  string    `json:"notes" validate:"max=2000"`
}

// IDInput identifies one certificate.
type IDInput struct {
	ID uuid.UUID `json:"id" validate:"required"`
}

// BatchInput applies one decision to many certificates.
type BatchInput struct {
	IDs    []uuid.UUID `json:"ids" validate:"required,min=1,max=100,dive,required"`
	Action Action      `json:"action" validate:"required,oneof=approve reject"`
	Notes  string      `json:"notes" validate:"max=2000"`
}

// ReviewResult is the outcome of a review or creation. When issuance fails
// the certificate is still returned and IssuanceError is set.
type ReviewResult struct {
	Certificate   Certificate             `json:"certificate"`
	Credential    *credentials.Credential `json:"credential,omitempty"`
	IssuanceError string                  `json:"issuance_error,omitempty"`
}

// Outcome is the per-id result of a batch.
type Outcome string

const (
	OutcomeApproved       Outcome = "approved"
	OutcomeRejected       Outcome = "rejected"
	OutcomeIssuanceFailed Outcome = "issuance_failed"
	OutcomeFailed         Outcome = "failed"
)

// Succeeded reports whether the certificate left pending.
func (o Outcome) Succeeded() bool {
	return o == OutcomeApproved || o == OutcomeRejected || o == OutcomeIssuanceFailed
}

// BatchItem is one id's outcome.
type BatchItem struct {
	ID           uuid.UUID  `json:"id"`
	Outcome      Outcome    `json:"outcome"`
	Error        string     `json:"error,omitempty"`
	CredentialID *uuid.UUID `json:"credential_id,omitempty"`
}

// BatchSummary counts outcomes.
type BatchSummary struct {
	Approved       int `json:"approved"`
	Rejected       int `json:"rejected"`
	IssuanceFailed int `json:"issuance_failed"`
	Failed         int `json:"failed"`
}

// BatchResult lists outcomes in request order.
type BatchResult struct {
	Results []BatchItem  `json:"results"`
	Summary BatchSummary `json:"summary"`
}

// ListFilter narrows listings.
type ListFilter struct {
	StudentID *uuid.UUID
	Status    Status
	Page      shared.PageRequest
}

package campusclient

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is the reviewer-facing view of a certificate.
type Certificate struct {
	ID                 uuid.UUID  `json:"id" validate:"required"`
	Title              string     `json:"title" validate:"required"`
	Institution        string     `json:"institution"`
	DateIssued         string     `json:"date_issued,omitempty"`
	Description        string     `json:"description,omitempty"`
	FileURL            string     `json:"file_url,omitempty" validate:"omitempty,url"`
	StudentID          uuid.UUID  `json:"student_id" validate:"required"`
	StudentEmail       string     `json:"student_email,omitempty"`
	StudentName        string     `json:"student_name,omitempty"`
	Status             string     `json:"verification_status" validate:"oneof=pending verified rejected"`
	ConfidenceScore    *float64   `json:"confidence_score" validate:"omitempty,gte=0,lte=1"`
	AutoApproved       bool       `json:"auto_approved"`
	VerificationMethod string     `json:"verification_method" validate:"omitempty,oneof=qr_verified logo_match template_match manual_review"`
	CredentialID       *uuid.UUID `json:"credential_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	ReviewNotes        *string    `json:"review_notes,omitempty"`
}

// Credential is an issued verifiable credential.
type Credential struct {
	ID            uuid.UUID `json:"id" validate:"required"`
	CertificateID uuid.UUID `json:"certificate_id" validate:"required"`
	Format        string    `json:"format"`
	Token         string    `json:"token"`
	IssuedAt      time.Time `json:"issued_at"`
}

// ReviewResult is returned by Approve and Reject.
type ReviewResult struct {
	Certificate   Certificate `json:"certificate"`
	Credential    *Credential `json:"credential,omitempty"`
	IssuanceError string      `json:"issuance_error,omitempty"`
}

// Pagination mirrors the server's paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total" validate:"gte=0"`
	TotalPages int `json:"total_pages"`
}

// PendingPage is one page of certificates awaiting review.
type PendingPage struct {
	Items      []Certificate `json:"items" validate:"dive"`
	Pagination Pagination    `json:"pagination"`
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
	ID           uuid.UUID  `json:"id" validate:"required"`
	Outcome      Outcome    `json:"outcome" validate:"oneof=approved rejected issuance_failed failed"`
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
	Results []BatchItem  `json:"results" validate:"dive"`
	Summary BatchSummary `json:"summary"`
}

// Succeeded returns the ids whose certificates left pending.
func (b BatchResult) Succeeded() []uuid.UUID {
	var out []uuid.UUID
	for _, item := range b.Results {
		if item.Outcome.Succeeded() {
			out = append(out, item.ID)
		}
	}
	return out
}

// Action is a reviewer decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

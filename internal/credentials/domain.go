package credentials

import (
	"time"

	"github.com/google/uuid"
)

// FormatJWTVC is the only credential encoding issued.
const FormatJWTVC = "jwt_vc"

// Subject is the certificate data a credential attests to.
type Subject struct {
	StudentID     uuid.UUID `json:"student_id"`
	CertificateID uuid.UUID `json:"certificate_id"`
	Title         string    `json:"title"`
	Institution   string    `json:"institution"`
	DateIssued    string    `json:"date_issued,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// Credential is a signed verifiable credential for one certificate.
type Credential struct {
	ID            uuid.UUID  `json:"id"`
	CertificateID uuid.UUID  `json:"certificate_id"`
	StudentID     uuid.UUID  `json:"student_id"`
	Format        string     `json:"format"`
	Token         string     `json:"token"`
	IssuedAt      time.Time  `json:"issued_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

// Verification is the outcome of checking a stored credential.
type Verification struct {
	CredentialID uuid.UUID `json:"credential_id"`
	Valid        bool      `json:"valid"`
	Revoked      bool      `json:"revoked"`
	Issuer       string    `json:"issuer,omitempty"`
	Subject      *Subject  `json:"subject,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

package credentials

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort defines credential persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, c Credential) (Credential, bool, error)
	Get(ctx context.Context, id uuid.UUID) (Credential, error)
	GetByCertificate(ctx context.Context, certificateID uuid.UUID) (Credential, error)
}

// Service issues and verifies certificate credentials.
type Service struct {
	repo   RepositoryPort
	signer *Signer
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service.
func NewService(repo RepositoryPort, signer *Signer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, signer: signer, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Issue signs and stores a credential for the subject's certificate. A
// certificate that already has a credential gets the existing one back.
func (s *Service) Issue(ctx context.Context, subject Subject) (Credential, error) {
	subject.Title = strings.TrimSpace(subject.Title)
	subject.Institution = strings.TrimSpace(subject.Institution)
	if subject.StudentID == uuid.Nil || subject.CertificateID == uuid.Nil || subject.Title == "" || subject.Institution == "" {
		return Credential{}, ErrInvalidSubject
	}
	if existing, err := s.repo.GetByCertificate(ctx, subject.CertificateID); err == nil {
		return existing, nil
	}
	id := uuid.New()
	at := s.now().UTC().Truncate(time.Second)
	token, err := s.signer.Sign(id.String(), subject, at)
	if err != nil {
		return Credential{}, err
	}
	c, inserted, err := s.repo.Insert(ctx, Credential{
		ID:            id,
		CertificateID: subject.CertificateID,
		StudentID:     subject.StudentID,
		Format:        FormatJWTVC,
		Token:         token,
		IssuedAt:      at,
	})
	if err != nil {
		return Credential{}, err
	}
	if inserted {
		s.logger.Info("credential issued",
			slog.String("credential_id", c.ID.String()),
			slog.String("certificate_id", subject.CertificateID.String()))
	}
	return c, nil
}

// Get returns a credential by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Credential, error) {
	return s.repo.Get(ctx, id)
}

// ForCertificate returns the credential issued for a certificate.
func (s *Service) ForCertificate(ctx context.Context, certificateID uuid.UUID) (Credential, error) {
	return s.repo.GetByCertificate(ctx, certificateID)
}

// Verify checks the stored credential's signature and revocation state.
func (s *Service) Verify(ctx context.Context, id uuid.UUID) (Verification, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Verification{}, err
	}
	out := Verification{CredentialID: c.ID, Revoked: c.RevokedAt != nil}
	claims, err := s.signer.Verify(c.Token)
	if err != nil {
		out.Reason = "signature check failed"
		return out, nil
	}
	subject := claims.VC.CredentialSubject
	out.Issuer = claims.Issuer
	out.Subject = &subject
	switch {
	case subject.CertificateID != c.CertificateID:
		out.Reason = "credential does not match certificate"
	case out.Revoked:
		out.Reason = "credential revoked"
	default:
		out.Valid = true
	}
	return out, nil
}

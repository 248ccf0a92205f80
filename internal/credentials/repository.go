package credentials

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores issued credentials.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const credentialColumns = `id, certificate_id, student_id, format, token, issued_at, revoked_at`

// Insert stores c unless the certificate already has a credential, in which
// case the existing row is returned with inserted=false.
func (r *Repository) Insert(ctx context.Context, c Credential) (Credential, bool, error) {
	stored, err := scanCredential(r.pool.QueryRow(ctx, `INSERT INTO credentials (`+credentialColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, NULL)
ON CONFLICT (certificate_id) DO NOTHING
RETURNING `+credentialColumns, c.ID, c.CertificateID, c.StudentID, c.Format, c.Token, c.IssuedAt))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Credential{}, false, err
	}
	existing, err := r.GetByCertificate(ctx, c.CertificateID)
	return existing, false, err
}

// Get returns a credential by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Credential, error) {
	return scanCredential(r.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, id))
}

// GetByCertificate returns the credential issued for a certificate.
func (r *Repository) GetByCertificate(ctx context.Context, certificateID uuid.UUID) (Credential, error) {
	return scanCredential(r.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE certificate_id = $1`, certificateID))
}

func scanCredential(row pgx.Row) (Credential, error) {
	var c Credential
	err := row.Scan(&c.ID, &c.CertificateID, &c.StudentID, &c.Format, &c.Token, &c.IssuedAt, &c.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	return c, err
}

package certificates

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campussync/campussync/internal/extraction"
	"github.com/campussync/campussync/internal/platform/db"
	"github.com/campussync/campussync/internal/shared"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, c Certificate) (Certificate, error)
	MarkReviewed(ctx context.Context, id uuid.UUID, status Status, reviewer uuid.UUID, notes string, at time.Time) (Certificate, error)
	Delete(ctx context.Context, id uuid.UUID) error
	InsertApproval(ctx context.Context, log shared.ApprovalLog) error
	InsertAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository persists certificates in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const certificateColumns = `c.id, c.title, c.institution, c.date_issued, COALESCE(c.description, ''), c.file_key, c.mime_type,
	c.student_id, u.email, u.display_name, c.verification_status, c.confidence_score, c.auto_approved,
	c.verification_method, cr.id, c.created_at, c.reviewed_by, c.reviewed_at, c.review_notes`

const certificateJoins = ` c JOIN users u ON u.id = c.student_id LEFT JOIN credentials cr ON cr.certificate_id = c.id`

// Get returns a certificate by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Certificate, error) {
	return scanCertificate(r.pool.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates`+certificateJoins+` WHERE c.id = $1`, id))
}

// List returns certificates newest first, optionally for one student or status.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Certificate, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+certificateColumns+`, COUNT(*) OVER()
FROM certificates`+certificateJoins+`
WHERE ($1::uuid IS NULL OR c.student_id = $1)
  AND ($2 = '' OR c.verification_status = $2)
ORDER BY c.created_at DESC
LIMIT $3 OFFSET $4`, filter.StudentID, string(filter.Status), filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Certificate
		total int
	)
	for rows.Next() {
		c, err := scanCertificateRow(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, c Certificate) (Certificate, error) {
	var date pgtype.Date
	if c.DateIssued != "" {
		d, err := time.Parse("2006-01-02", c.DateIssued)
		if err != nil {
			return Certificate{}, err
		}
		date = pgtype.Date{Time: d, Valid: true}
	}
	row := t.tx.QueryRow(ctx, `WITH ins AS (
	INSERT INTO certificates (id, title, institution, date_issued, description, file_key, mime_type, student_id,
		verification_status, confidence_score, auto_approved, verification_method, created_at, reviewed_at)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13,
		CASE WHEN $11 THEN $13 END)
	RETURNING *
)
SELECT `+certificateColumns+` FROM ins`+certificateJoins,
		c.ID, c.Title, c.Institution, date, c.Description, c.FileKey, c.MIMEType, c.StudentID,
		string(c.Status), c.ConfidenceScore, c.AutoApproved, string(c.VerificationMethod), c.CreatedAt)
	return scanCertificate(row)
}

func (t *txRepo) MarkReviewed(ctx context.Context, id uuid.UUID, status Status, reviewer uuid.UUID, notes string, at time.Time) (Certificate, error) {
	var notePtr *string
	if notes != "" {
		notePtr = &notes
	}
	row := t.tx.QueryRow(ctx, `WITH upd AS (
	UPDATE certificates
	SET verification_status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
	WHERE id = $1 AND verification_status = 'pending'
	RETURNING *
)
SELECT `+certificateColumns+` FROM upd`+certificateJoins, id, string(status), reviewer, at, notePtr)
	c, err := scanCertificate(row)
	if !errors.Is(err, ErrNotFound) {
		return c, err
	}
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM certificates WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Certificate{}, err
	}
	if exists {
		return Certificate{}, ErrAlreadyReviewed
	}
	return Certificate{}, ErrNotFound
}

func (t *txRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertApproval(ctx context.Context, log shared.ApprovalLog) error {
	return shared.WriteApproval(ctx, t.tx, log)
}

func (t *txRepo) InsertAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.WriteAudit(ctx, t.tx, log)
}

func scanCertificate(row pgx.Row) (Certificate, error) {
	c, err := scanCertificateRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Certificate{}, ErrNotFound
	}
	return c, err
}

func scanCertificateRow(row pgx.Row, extra ...any) (Certificate, error) {
	var (
		c      Certificate
		date   pgtype.Date
		status string
		method string
	)
	dest := []any{&c.ID, &c.Title, &c.Institution, &date, &c.Description, &c.FileKey, &c.MIMEType,
		&c.StudentID, &c.StudentEmail, &c.StudentName, &status, &c.ConfidenceScore, &c.AutoApproved,
		&method, &c.CredentialID, &c.CreatedAt, &c.ReviewedBy, &c.ReviewedAt, &c.ReviewNotes}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Certificate{}, err
	}
	if date.Valid {
		c.DateIssued = date.Time.Format("2006-01-02")
	}
	c.Status = Status(status)
	c.VerificationMethod = extraction.Method(method)
	return c, nil
}

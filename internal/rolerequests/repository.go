package rolerequests

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campussync/campussync/internal/platform/db"
	"github.com/campussync/campussync/internal/roles"
	"github.com/campussync/campussync/internal/shared"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	MarkReviewed(ctx context.Context, id uuid.UUID, status Status, reviewer uuid.UUID, notes string, at time.Time) (Request, error)
	LockAssignment(ctx context.Context, userID uuid.UUID) (roles.Assignment, error)
	ApplyRole(ctx context.Context, userID uuid.UUID, role shared.Role, actorID uuid.UUID) error
	InsertApproval(ctx context.Context, log shared.ApprovalLog) error
	InsertAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository provides PostgreSQL backed persistence for role requests.
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

const requestColumns = `rr.id, rr.user_id, u.email, u.display_name, rr.requested_role, rr.status, rr.metadata,
	rr.created_at, rr.reviewed_by, rr.reviewed_at, rr.review_notes`

// Create inserts a pending request. A partial unique index allows one pending request per user.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, role shared.Role, metadata map[string]any) (Request, error) {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return Request{}, err
	}
	row := r.pool.QueryRow(ctx, `WITH ins AS (
	INSERT INTO role_requests (id, user_id, requested_role, status, metadata, created_at)
	VALUES ($1, $2, $3, 'pending', $4, NOW())
	RETURNING *
)
SELECT `+requestColumns+` FROM ins rr JOIN users u ON u.id = rr.user_id`, uuid.New(), userID, string(role), meta)
	req, err := scanRequest(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Request{}, ErrPendingExists
		}
		return Request{}, err
	}
	return req, nil
}

// Get returns a single request.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM role_requests rr JOIN users u ON u.id = rr.user_id WHERE rr.id = $1`, id))
}

// List returns requests matching the filter, newest first, with the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Request, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+`, COUNT(*) OVER()
FROM role_requests rr JOIN users u ON u.id = rr.user_id
WHERE ($1 = '' OR rr.status = $1)
  AND ($2 = '' OR rr.requested_role = $2)
  AND ($3::uuid IS NULL OR rr.user_id = $3)
ORDER BY rr.created_at DESC
LIMIT $4 OFFSET $5`, string(filter.Status), string(filter.RequestedRole), filter.UserID, filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Request
		total int
	)
	for rows.Next() {
		req, err := scanRequestRow(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

func (t *txRepo) MarkReviewed(ctx context.Context, id uuid.UUID, status Status, reviewer uuid.UUID, notes string, at time.Time) (Request, error) {
	var notePtr *string
	if notes != "" {
		notePtr = &notes
	}
	row := t.tx.QueryRow(ctx, `WITH upd AS (
	UPDATE role_requests
	SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
	WHERE id = $1 AND status = 'pending'
	RETURNING *
)
SELECT `+requestColumns+` FROM upd rr JOIN users u ON u.id = rr.user_id`, id, string(status), reviewer, at, notePtr)
	req, err := scanRequest(row)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Request{}, err
	}
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Request{}, err
	}
	if exists {
		return Request{}, ErrAlreadyReviewed
	}
	return Request{}, ErrNotFound
}

func (t *txRepo) LockAssignment(ctx context.Context, userID uuid.UUID) (roles.Assignment, error) {
	return roles.LoadForUpdate(ctx, t.tx, userID)
}

func (t *txRepo) ApplyRole(ctx context.Context, userID uuid.UUID, role shared.Role, actorID uuid.UUID) error {
	return roles.ApplyAssignment(ctx, t.tx, userID, role, actorID)
}

func (t *txRepo) InsertApproval(ctx context.Context, log shared.ApprovalLog) error {
	return shared.WriteApproval(ctx, t.tx, log)
}

func (t *txRepo) InsertAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.WriteAudit(ctx, t.tx, log)
}

func scanRequest(row pgx.Row) (Request, error) {
	req, err := scanRequestRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return req, err
}

func scanRequestRow(row pgx.Row, extra ...any) (Request, error) {
	var (
		req    Request
		role   string
		status string
		meta   []byte
	)
	dest := []any{&req.ID, &req.UserID, &req.Email, &req.DisplayName, &role, &status, &meta,
		&req.CreatedAt, &req.ReviewedBy, &req.ReviewedAt, &req.ReviewNotes}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return Request{}, err
	}
	req.RequestedRole = shared.Role(role)
	req.Status = Status(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &req.Metadata); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

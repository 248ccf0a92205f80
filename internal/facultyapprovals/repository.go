package facultyapprovals

import (
	"context"
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
	Decide(ctx context.Context, id uuid.UUID, status Status, actorID uuid.UUID, notes string, at time.Time) (Approval, error)
	LockAssignment(ctx context.Context, userID uuid.UUID) (roles.Assignment, error)
	ApplyRole(ctx context.Context, userID uuid.UUID, role shared.Role, actorID uuid.UUID) error
	InsertApproval(ctx context.Context, log shared.ApprovalLog) error
	InsertAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository persists faculty approvals in PostgreSQL.
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

const approvalColumns = `fa.id, fa.user_id, u.email, u.display_name, fa.role, fa.organization_id, o.name,
	fa.approval_status, fa.created_at, fa.approved_at, fa.approved_by, fa.approval_notes`

const approvalJoins = ` fa JOIN users u ON u.id = fa.user_id JOIN organizations o ON o.id = fa.organization_id`

// Create files a pending application. Unknown or inactive organizations are rejected.
func (r *Repository) Create(ctx context.Context, userID, orgID uuid.UUID, role shared.Role) (Approval, error) {
	row := r.pool.QueryRow(ctx, `WITH ins AS (
	INSERT INTO faculty_approvals (id, user_id, role, organization_id, approval_status, created_at)
	SELECT $1, $2, $3, o.id, 'pending', NOW() FROM organizations o WHERE o.id = $4 AND o.is_active
	RETURNING *
)
SELECT `+approvalColumns+` FROM ins`+approvalJoins, uuid.New(), userID, string(role), orgID)
	a, err := scanApproval(row)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.Code == "23505":
			return Approval{}, ErrDuplicate
		case errors.Is(err, ErrNotFound):
			return Approval{}, ErrUnknownOrg
		}
		return Approval{}, err
	}
	return a, nil
}

// Get returns a single approval.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Approval, error) {
	return scanApproval(r.pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM faculty_approvals`+approvalJoins+` WHERE fa.id = $1`, id))
}

// List returns approvals newest first with the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Approval, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+approvalColumns+`, COUNT(*) OVER()
FROM faculty_approvals`+approvalJoins+`
WHERE ($1 = '' OR fa.approval_status = $1)
  AND ($2 = '' OR fa.role = $2)
  AND ($3::uuid IS NULL OR fa.organization_id = $3)
ORDER BY fa.created_at DESC
LIMIT $4 OFFSET $5`, string(filter.Status), string(filter.Role), filter.OrganizationID, filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Approval
		total int
	)
	for rows.Next() {
		a, err := scanApprovalRow(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (t *txRepo) Decide(ctx context.Context, id uuid.UUID, status Status, actorID uuid.UUID, notes string, at time.Time) (Approval, error) {
	var notePtr *string
	if notes != "" {
		notePtr = &notes
	}
	row := t.tx.QueryRow(ctx, `WITH upd AS (
	UPDATE faculty_approvals
	SET approval_status = $2, approved_by = $3, approved_at = $4, approval_notes = $5
	WHERE id = $1 AND approval_status = 'pending'
	RETURNING *
)
SELECT `+approvalColumns+` FROM upd`+approvalJoins, id, string(status), actorID, at, notePtr)
	a, err := scanApproval(row)
	if !errors.Is(err, ErrNotFound) {
		return a, err
	}
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM faculty_approvals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Approval{}, err
	}
	if exists {
		return Approval{}, ErrAlreadyDecided
	}
	return Approval{}, ErrNotFound
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

func scanApproval(row pgx.Row) (Approval, error) {
	a, err := scanApprovalRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Approval{}, ErrNotFound
	}
	return a, err
}

func scanApprovalRow(row pgx.Row, extra ...any) (Approval, error) {
	var (
		a      Approval
		role   string
		status string
	)
	dest := []any{&a.ID, &a.UserID, &a.Email, &a.DisplayName, &role, &a.OrganizationID, &a.OrganizationName,
		&status, &a.CreatedAt, &a.ApprovedAt, &a.ApprovedBy, &a.Notes}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Approval{}, err
	}
	a.Role = shared.Role(role)
	a.Status = Status(status)
	return a, nil
}

package roles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campussync/campussync/internal/platform/db"
	"github.com/campussync/campussync/internal/shared"
)

// Querier is satisfied by pgx.Tx and lets other modules reuse the role
// statements inside their own transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockAssignment(ctx context.Context, userID uuid.UUID) (Assignment, error)
	Upsert(ctx context.Context, userID uuid.UUID, role shared.Role, actorID uuid.UUID) (Assignment, error)
	Delete(ctx context.Context, userID uuid.UUID) error
	InsertAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository provides PostgreSQL backed persistence.
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

const assignmentSelect = `SELECT u.id, u.email, u.display_name,
	COALESCE(ur.role, 'student'), COALESCE(ur.is_super_admin, false), COALESCE(ur.is_primary_admin, false),
	ur.assigned_by, ur.created_at, ur.updated_at
FROM users u LEFT JOIN user_roles ur ON ur.user_id = u.id`

// Get returns the assignment for a user.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (Assignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx, assignmentSelect+` WHERE u.id = $1`, userID))
}

// List returns assignments matching the filter with the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Assignment, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.email, u.display_name,
	COALESCE(ur.role, 'student'), COALESCE(ur.is_super_admin, false), COALESCE(ur.is_primary_admin, false),
	ur.assigned_by, ur.created_at, ur.updated_at, COUNT(*) OVER()
FROM users u LEFT JOIN user_roles ur ON ur.user_id = u.id
WHERE ($1 = '' OR COALESCE(ur.role, 'student') = $1)
  AND ($2 = '' OR u.email ILIKE '%' || $2 || '%' OR u.display_name ILIKE '%' || $2 || '%')
ORDER BY u.created_at DESC
LIMIT $3 OFFSET $4`, string(filter.Role), filter.Search, filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Assignment
		total int
	)
	for rows.Next() {
		var a Assignment
		var role string
		if err := rows.Scan(&a.UserID, &a.Email, &a.DisplayName, &role, &a.IsSuperAdmin, &a.IsPrimaryAdmin,
			&a.AssignedBy, &a.CreatedAt, &a.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		a.Role = shared.Role(role)
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (t *txRepo) LockAssignment(ctx context.Context, userID uuid.UUID) (Assignment, error) {
	return LoadForUpdate(ctx, t.tx, userID)
}

func (t *txRepo) Upsert(ctx context.Context, userID uuid.UUID, role shared.Role, actorID uuid.UUID) (Assignment, error) {
	if err := ApplyAssignment(ctx, t.tx, userID, role, actorID); err != nil {
		return Assignment{}, err
	}
	return scanAssignment(t.tx.QueryRow(ctx, assignmentSelect+` WHERE u.id = $1`, userID))
}

func (t *txRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND NOT is_super_admin AND NOT is_primary_admin`, userID)
	return err
}

func (t *txRepo) InsertAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.WriteAudit(ctx, t.tx, log)
}

// LoadForUpdate reads an assignment and locks the user row for the rest of the transaction.
func LoadForUpdate(ctx context.Context, q Querier, userID uuid.UUID) (Assignment, error) {
	return scanAssignment(q.QueryRow(ctx, assignmentSelect+` WHERE u.id = $1 FOR UPDATE OF u`, userID))
}

// ApplyAssignment upserts the user's role. Protected rows are never touched.
func ApplyAssignment(ctx context.Context, q Querier, userID uuid.UUID, role shared.Role, actorID uuid.UUID) error {
	var assignedBy *uuid.UUID
	if actorID != uuid.Nil {
		assignedBy = &actorID
	}
	_, err := q.Exec(ctx, `INSERT INTO user_roles (user_id, role, assigned_by, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, assigned_by = EXCLUDED.assigned_by, updated_at = NOW()
WHERE NOT user_roles.is_super_admin AND NOT user_roles.is_primary_admin`, userID, string(role), assignedBy)
	return err
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var (
		a         Assignment
		role      string
		createdAt *time.Time
		updatedAt *time.Time
	)
	if err := row.Scan(&a.UserID, &a.Email, &a.DisplayName, &role, &a.IsSuperAdmin, &a.IsPrimaryAdmin,
		&a.AssignedBy, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrUserNotFound
		}
		return Assignment{}, err
	}
	a.Role = shared.Role(role)
	a.CreatedAt = createdAt
	a.UpdatedAt = updatedAt
	return a, nil
}

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campussync/campussync/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, email, displayName, passwordHash string) (*User, error)
	LoadPrincipal(ctx context.Context, id uuid.UUID) (*shared.Principal, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PG backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, display_name, password_hash, email_confirmed_at, created_at, updated_at`

// FindByEmail loads a user by lower-cased email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID loads a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateUser inserts a new unconfirmed account.
func (r *PGRepository) CreateUser(ctx context.Context, email, displayName, passwordHash string) (*User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
RETURNING `+userColumns, uuid.New(), email, displayName, passwordHash)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// LoadPrincipal resolves the role assignment for a user. Users without an
// assignment row are students.
func (r *PGRepository) LoadPrincipal(ctx context.Context, id uuid.UUID) (*shared.Principal, error) {
	var (
		p       shared.Principal
		role    *string
		isSuper *bool
		isPrim  *bool
	)
	err := r.pool.QueryRow(ctx, `SELECT u.id, u.email, ur.role, ur.is_super_admin, ur.is_primary_admin
FROM users u LEFT JOIN user_roles ur ON ur.user_id = u.id
WHERE u.id = $1`, id).Scan(&p.UserID, &p.Email, &role, &isSuper, &isPrim)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	p.Role = shared.RoleStudent
	if role != nil {
		p.Role = shared.Role(*role)
	}
	p.IsSuperAdmin = isSuper != nil && *isSuper
	p.IsPrimaryAdmin = isPrim != nil && *isPrim
	return &p, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u         User
		confirmed *time.Time
	)
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &confirmed, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.EmailConfirmedAt = confirmed
	return &u, nil
}

package admin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/campussync/campussync/internal/platform/db"
	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore builds a PGStore.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// CreateSuperAdmin writes the profile, role assignment and audit entry in one transaction.
func (s *PGStore) CreateSuperAdmin(ctx context.Context, email, displayName, passwordHash string) (uuid.UUID, error) {
	id := uuid.New()
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO users (id, email, display_name, password_hash, email_confirmed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW(), NOW())`, id, email, displayName, passwordHash)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
			}
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role, is_super_admin, is_primary_admin, created_at, updated_at)
VALUES ($1, $2, TRUE, TRUE, NOW(), NOW())`, id, string(shared.RoleAdmin)); err != nil {
			return err
		}
		return shared.WriteAudit(ctx, tx, shared.AuditLog{
			ActorID:  id,
			Action:   "superadmin.create",
			Entity:   "user",
			EntityID: id.String(),
			Meta:     map[string]any{"email": email},
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ConfirmEmail stamps email_confirmed_at for the account.
func (s *PGStore) ConfirmEmail(ctx context.Context, email string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET email_confirmed_at = COALESCE(email_confirmed_at, $2), updated_at = NOW() WHERE email = $1`, email, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Migrate runs every pending up migration found in files. A schema that is
// already current is not an error.
func (s *PGStore) Migrate(ctx context.Context, files fs.FS) (MigrationResult, error) {
	src, err := iofs.New(files, ".")
	if err != nil {
		return MigrationResult{}, fmt.Errorf("admin: migration source: %w", err)
	}
	sqlDB := stdlib.OpenDBFromPool(s.pool)
	defer sqlDB.Close()
	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		return MigrationResult{}, fmt.Errorf("admin: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("admin: migrator: %w", err)
	}
	defer m.Close()

	from, err := currentVersion(m)
	if err != nil {
		return MigrationResult{}, err
	}
	stop := context.AfterFunc(ctx, func() { m.GracefulStop <- true })
	defer stop()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationResult{From: from}, fmt.Errorf("admin: migrate up: %w", err)
	}
	to, dirty, err := m.Version()
	if err != nil {
		return MigrationResult{From: from}, fmt.Errorf("admin: migration version: %w", err)
	}
	return MigrationResult{From: from, To: to, Dirty: dirty}, nil
}

func currentVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("admin: migration version: %w", err)
	case dirty:
		return v, fmt.Errorf("%w: schema version %d is dirty, fix it and force the version", httpx.ErrConflict, v)
	}
	return v, nil
}

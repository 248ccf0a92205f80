// Package admin implements operator tasks run from campusctl.
package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campussync/campussync/internal/auth"
	"github.com/campussync/campussync/internal/platform/httpx"
)

// ErrUserNotFound is returned when an email matches no account.
var ErrUserNotFound = fmt.Errorf("%w: user not found", httpx.ErrNotFound)

// ErrPasswordMismatch is returned when the confirmation prompt differs.
var ErrPasswordMismatch = fmt.Errorf("%w: passwords do not match", httpx.ErrValidation)

// Store persists operator changes.
type Store interface {
	CreateSuperAdmin(ctx context.Context, email, displayName, passwordHash string) (uuid.UUID, error)
	ConfirmEmail(ctx context.Context, email string, at time.Time) error
	Migrate(ctx context.Context, files fs.FS) (MigrationResult, error)
}

// MigrationResult reports the schema version before and after a run.
type MigrationResult struct {
	From  uint
	To    uint
	Dirty bool
}

// Changed reports whether any migration was applied.
func (r MigrationResult) Changed() bool { return r.To != r.From }

// SuperAdminInput describes the first administrator account.
type SuperAdminInput struct {
	Email       string `validate:"required,email,max=254"`
	DisplayName string `validate:"required,max=120"`
	Password    string `validate:"required,min=12,max=72"`
}

// Service runs operator commands.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// CreateSuperAdmin creates a confirmed admin account flagged as super and primary admin.
func (s *Service) CreateSuperAdmin(ctx context.Context, in SuperAdminInput) (uuid.UUID, error) {
	in.Email = auth.NormaliseEmail(in.Email)
	in.DisplayName = auth.NormaliseDisplayName(in.DisplayName)
	if err := httpx.Validate(in); err != nil {
		return uuid.Nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := s.store.CreateSuperAdmin(ctx, in.Email, in.DisplayName, hash)
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("super admin created", slog.String("user_id", id.String()), slog.String("email", in.Email))
	return id, nil
}

// ConfirmEmail marks the account's email as confirmed.
func (s *Service) ConfirmEmail(ctx context.Context, email string) error {
	email = auth.NormaliseEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email required", httpx.ErrValidation)
	}
	if err := s.store.ConfirmEmail(ctx, email, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("email confirmed", slog.String("email", email))
	return nil
}

// Migrate brings the schema up to the newest embedded version.
func (s *Service) Migrate(ctx context.Context, files fs.FS) (MigrationResult, error) {
	res, err := s.store.Migrate(ctx, files)
	if err != nil {
		return res, err
	}
	s.logger.Info("schema migrated", slog.Uint64("from", uint64(res.From)), slog.Uint64("to", uint64(res.To)))
	return res, nil
}

// Prompter collects super admin details interactively.
type Prompter struct {
	In  io.Reader
	Out io.Writer
	// ReadPassword reads a line without echo.
	ReadPassword func() (string, error)
}

// SuperAdmin prompts for email, name and a confirmed password.
func (p Prompter) SuperAdmin() (SuperAdminInput, error) {
	if p.ReadPassword == nil {
		return SuperAdminInput{}, errors.New("admin: password reader not configured")
	}
	reader := bufio.NewReader(p.In)
	email, err := p.line(reader, "Email: ")
	if err != nil {
		return SuperAdminInput{}, err
	}
	name, err := p.line(reader, "Display name: ")
	if err != nil {
		return SuperAdminInput{}, err
	}
	_, _ = fmt.Fprint(p.Out, "Password: ")
	password, err := p.ReadPassword()
	_, _ = fmt.Fprintln(p.Out)
	if err != nil {
		return SuperAdminInput{}, err
	}
	_, _ = fmt.Fprint(p.Out, "Confirm password: ")
	confirm, err := p.ReadPassword()
	_, _ = fmt.Fprintln(p.Out)
	if err != nil {
		return SuperAdminInput{}, err
	}
	if password != confirm {
		return SuperAdminInput{}, ErrPasswordMismatch
	}
	return SuperAdminInput{Email: email, DisplayName: name, Password: password}, nil
}

func (p Prompter) line(r *bufio.Reader, label string) (string, error) {
	_, _ = fmt.Fprint(p.Out, label)
	text, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && text != "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

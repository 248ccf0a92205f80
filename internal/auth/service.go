package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// Service coordinates account registration, login and token verification.
type Service struct {
	repo           Repository
	tokens         *TokenIssuer
	requireConfirm bool
}

// NewService constructs Service.
func NewService(repo Repository, tokens *TokenIssuer, requireConfirm bool) *Service {
	return &Service{repo: repo, tokens: tokens, requireConfirm: requireConfirm}
}

// NormaliseEmail lower-cases and trims an email address.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormaliseDisplayName applies NFC normalisation and collapses whitespace.
func NormaliseDisplayName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Signup registers a new student account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*User, error) {
	in.Email = NormaliseEmail(in.Email)
	in.DisplayName = NormaliseDisplayName(in.DisplayName)
	if err := httpx.Validate(in); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, in.Email, in.DisplayName, hash)
}

// Authenticate validates credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, NormaliseEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if s.requireConfirm && !user.EmailConfirmed() {
		return nil, ErrEmailNotConfirmed
	}
	return user, nil
}

// Login authenticates and issues an access token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := httpx.Validate(in); err != nil {
		return nil, err
	}
	user, err := s.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, TokenType: "Bearer", ExpiresAt: expires, User: user}, nil
}

// ResolveToken verifies a bearer token and loads the principal it names.
func (s *Service) ResolveToken(ctx context.Context, raw string) (*shared.Principal, error) {
	id, _, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	principal, err := s.repo.LoadPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return principal, nil
}

// Me returns the account behind the principal.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated user account.
type User struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	DisplayName      string     `json:"display_name"`
	PasswordHash     string     `json:"-"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EmailConfirmed reports whether the email address has been confirmed.
func (u *User) EmailConfirmed() bool {
	return u != nil && u.EmailConfirmedAt != nil
}

// SignupInput captures the fields accepted at registration.
type SignupInput struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=120"`
}

// LoginInput captures the credentials posted to login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Session is returned after a successful login.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

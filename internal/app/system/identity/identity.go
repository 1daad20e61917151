// Package identity defines the contract with the external identity provider
// that owns user accounts, passwords and email confirmation.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("a user with this email already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password does not meet the provider's requirements")
	ErrUnavailable        = errors.New("identity provider unavailable")
)

// User is the provider's view of an account. ID is a UUID string.
type User struct {
	ID               string
	Email            string
	EmailConfirmedAt *time.Time
	Metadata         map[string]any
}

// DisplayName returns the "full_name" metadata value, or the email.
func (u User) DisplayName() string {
	if n, ok := u.Metadata["full_name"].(string); ok && n != "" {
		return n
	}
	return u.Email
}

// Session is an authenticated provider session.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// SignUpResult carries the new user and, when the provider does not require
// email confirmation, an immediate session.
type SignUpResult struct {
	User    User
	Session *Session
}

// SignUpInput describes a registration. RedirectTo is where the confirmation
// link sends the user back to.
type SignUpInput struct {
	Email      string
	Password   string
	FullName   string
	RedirectTo string
}

// Provider is implemented by identity provider clients.
type Provider interface {
	SignUp(ctx context.Context, in SignUpInput) (SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	// Verify redeems an email confirmation token hash for a session.
	Verify(ctx context.Context, tokenHash, kind string) (Session, error)
	GetUser(ctx context.Context, accessToken string) (User, error)
	SignOut(ctx context.Context, accessToken string) error
}

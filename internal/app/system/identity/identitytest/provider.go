// Package identitytest provides an in-memory identity.Provider for handler
// tests.
package identitytest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/tenantgate/internal/app/system/identity"
	"github.com/google/uuid"
)

// Provider keeps users in memory. With ConfirmEmail set, SignUp returns no
// session and the user must be confirmed through Verify with the hash
// recorded in Confirmations.
type Provider struct {
	ConfirmEmail bool

	mu            sync.Mutex
	users         map[string]*account // by email
	tokens        map[string]string   // access token -> email
	Confirmations map[string]string   // token hash -> email
	SignUps       []identity.SignUpInput
	Err           error // returned by every call when set
}

type account struct {
	user     identity.User
	password string
}

// New returns an empty Provider.
func New() *Provider {
	return &Provider{
		users:         map[string]*account{},
		tokens:        map[string]string{},
		Confirmations: map[string]string{},
	}
}

// AddUser registers a confirmed user and returns it.
func (p *Provider) AddUser(email, password, fullName string) identity.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	u := identity.User{
		ID:               uuid.NewString(),
		Email:            strings.ToLower(email),
		EmailConfirmedAt: &now,
		Metadata:         map[string]any{"full_name": fullName},
	}
	p.users[u.Email] = &account{user: u, password: password}
	return u
}

// IssueToken returns an access token for an existing user.
func (p *Provider) IssueToken(email string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issue(strings.ToLower(email)).AccessToken
}

func (p *Provider) SignUp(_ context.Context, in identity.SignUpInput) (identity.SignUpResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return identity.SignUpResult{}, p.Err
	}
	email := strings.ToLower(in.Email)
	if _, ok := p.users[email]; ok {
		return identity.SignUpResult{}, identity.ErrUserExists
	}
	if len(in.Password) < 6 {
		return identity.SignUpResult{}, identity.ErrWeakPassword
	}
	p.SignUps = append(p.SignUps, in)
	u := identity.User{ID: uuid.NewString(), Email: email, Metadata: map[string]any{"full_name": in.FullName}}
	p.users[email] = &account{user: u, password: in.Password}

	if p.ConfirmEmail {
		p.Confirmations["hash-"+u.ID] = email
		return identity.SignUpResult{User: u}, nil
	}
	now := time.Now().UTC()
	p.users[email].user.EmailConfirmedAt = &now
	s := p.issue(email)
	return identity.SignUpResult{User: s.User, Session: &s}, nil
}

func (p *Provider) SignIn(_ context.Context, email, password string) (identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return identity.Session{}, p.Err
	}
	a, ok := p.users[strings.ToLower(email)]
	if !ok || a.password != password {
		return identity.Session{}, identity.ErrInvalidCredentials
	}
	return p.issue(a.user.Email), nil
}

func (p *Provider) Verify(_ context.Context, tokenHash, _ string) (identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return identity.Session{}, p.Err
	}
	email, ok := p.Confirmations[tokenHash]
	if !ok {
		return identity.Session{}, identity.ErrInvalidToken
	}
	delete(p.Confirmations, tokenHash)
	now := time.Now().UTC()
	p.users[email].user.EmailConfirmedAt = &now
	return p.issue(email), nil
}

func (p *Provider) GetUser(_ context.Context, accessToken string) (identity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return identity.User{}, p.Err
	}
	email, ok := p.tokens[accessToken]
	if !ok {
		return identity.User{}, identity.ErrInvalidToken
	}
	return p.users[email].user, nil
}

func (p *Provider) SignOut(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tokens, accessToken)
	return nil
}

// issue must be called with mu held.
func (p *Provider) issue(email string) identity.Session {
	tok := "at-" + uuid.NewString()
	p.tokens[tok] = email
	return identity.Session{
		AccessToken: tok,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        p.users[email].user,
	}
}

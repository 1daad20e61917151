// Package gotrue is an identity.Provider for GoTrue-compatible auth servers.
package gotrue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/tenantgate/internal/app/system/identity"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config configures a Client.
type Config struct {
	URL       string // e.g. https://xyz.supabase.co/auth/v1
	AnonKey   string
	JWTSecret string // optional; enables local access-token checks
	Timeout   time.Duration
}

// Client talks to the GoTrue REST API.
type Client struct {
	http   *resty.Client
	secret []byte
	log    *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("gotrue: URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.AnonKey != "" {
		rc.SetHeader("apikey", cfg.AnonKey)
	}
	c := &Client{http: rc, log: logger}
	if cfg.JWTSecret != "" {
		c.secret = []byte(cfg.JWTSecret)
	}
	return c, nil
}

type userDTO struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

type sessionDTO struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         *userDTO `json:"user"`
}

// signUpDTO matches both signup shapes: a session with a nested user, or a
// bare user when confirmation is pending.
type signUpDTO struct {
	sessionDTO
	userDTO
}

type errorDTO struct {
	Code             int    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e errorDTO) message() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

// SignUp registers a user. The confirmation email links back to in.RedirectTo.
func (c *Client) SignUp(ctx context.Context, in identity.SignUpInput) (identity.SignUpResult, error) {
	var out signUpDTO
	var apiErr errorDTO
	req := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"email":    in.Email,
			"password": in.Password,
			"data":     map[string]any{"full_name": in.FullName},
		}).
		SetResult(&out).
		SetError(&apiErr)
	if in.RedirectTo != "" {
		req.SetQueryParam("redirect_to", in.RedirectTo)
	}
	resp, err := req.Post("/signup")
	if err := c.check("signup", resp, err, apiErr); err != nil {
		return identity.SignUpResult{}, err
	}

	if out.AccessToken != "" && out.sessionDTO.User != nil {
		s, err := c.session(out.sessionDTO)
		if err != nil {
			return identity.SignUpResult{}, err
		}
		return identity.SignUpResult{User: s.User, Session: &s}, nil
	}
	u, err := toUser(out.userDTO)
	if err != nil {
		return identity.SignUpResult{}, err
	}
	return identity.SignUpResult{User: u}, nil
}

// SignIn exchanges a password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	var out sessionDTO
	var apiErr errorDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/token")
	if err := c.check("token", resp, err, apiErr); err != nil {
		return identity.Session{}, err
	}
	return c.session(out)
}

// Verify redeems a confirmation token hash (kind is "signup", "invite",
// "magiclink" or "email").
func (c *Client) Verify(ctx context.Context, tokenHash, kind string) (identity.Session, error) {
	if tokenHash == "" {
		return identity.Session{}, identity.ErrInvalidToken
	}
	if kind == "" {
		kind = "signup"
	}
	var out sessionDTO
	var apiErr errorDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"type": kind, "token_hash": tokenHash}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/verify")
	if err := c.check("verify", resp, err, apiErr); err != nil {
		return identity.Session{}, err
	}
	return c.session(out)
}

// GetUser returns the user behind accessToken. When a JWT secret is
// configured the token is checked locally before the round trip.
func (c *Client) GetUser(ctx context.Context, accessToken string) (identity.User, error) {
	if accessToken == "" {
		return identity.User{}, identity.ErrInvalidToken
	}
	if c.secret != nil {
		if _, err := c.VerifyAccessToken(accessToken); err != nil {
			return identity.User{}, err
		}
	}
	var out userDTO
	var apiErr errorDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&out).
		SetError(&apiErr).
		Get("/user")
	if err := c.check("user", resp, err, apiErr); err != nil {
		return identity.User{}, err
	}
	return toUser(out)
}

// SignOut revokes the session's refresh tokens.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	var apiErr errorDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetError(&apiErr).
		Post("/logout")
	err = c.check("logout", resp, err, apiErr)
	if errors.Is(err, identity.ErrInvalidToken) {
		return nil
	}
	return err
}

// Claims are the access-token claims tenantgate reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// VerifyAccessToken checks an HS256 access token against the JWT secret and
// requires a UUID subject.
func (c *Client) VerifyAccessToken(token string) (*Claims, error) {
	if c.secret == nil {
		return nil, errors.New("gotrue: no JWT secret configured")
	}
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a UUID", identity.ErrInvalidToken)
	}
	return claims, nil
}

func (c *Client) session(s sessionDTO) (identity.Session, error) {
	if s.AccessToken == "" || s.User == nil {
		return identity.Session{}, fmt.Errorf("%w: response carried no session", identity.ErrUnavailable)
	}
	u, err := toUser(*s.User)
	if err != nil {
		return identity.Session{}, err
	}
	out := identity.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         u,
	}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	case s.ExpiresIn > 0:
		out.ExpiresAt = time.Now().UTC().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return out, nil
}

func toUser(u userDTO) (identity.User, error) {
	if _, err := uuid.Parse(u.ID); err != nil {
		return identity.User{}, fmt.Errorf("%w: user id %q is not a UUID", identity.ErrUnavailable, u.ID)
	}
	return identity.User{
		ID:               u.ID,
		Email:            strings.ToLower(u.Email),
		EmailConfirmedAt: u.EmailConfirmedAt,
		Metadata:         u.UserMetadata,
	}, nil
}

// check maps transport failures and provider error bodies to identity errors.
func (c *Client) check(op string, resp *resty.Response, err error, apiErr errorDTO) error {
	if err != nil {
		c.log.Warn("identity provider request failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", identity.ErrUnavailable, op, err)
	}
	if !resp.IsError() {
		return nil
	}
	status := resp.StatusCode()
	code := strings.ToLower(apiErr.ErrorCode)
	msg := apiErr.message()

	switch {
	case code == "user_already_exists" || code == "email_exists" ||
		(op == "signup" && status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "already")):
		return identity.ErrUserExists
	case code == "weak_password":
		return fmt.Errorf("%w: %s", identity.ErrWeakPassword, msg)
	case code == "invalid_credentials" || (apiErr.Error == "invalid_grant" && op == "token"):
		return identity.ErrInvalidCredentials
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		code == "otp_expired" || code == "bad_jwt" || (op == "verify" && status < 500):
		return identity.ErrInvalidToken
	case status >= 500:
		c.log.Warn("identity provider error",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("message", msg))
		return fmt.Errorf("%w: %s: %s", identity.ErrUnavailable, op, msg)
	}
	return fmt.Errorf("gotrue %s: %d %s", op, status, msg)
}

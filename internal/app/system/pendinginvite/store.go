// Package pendinginvite carries an invitation across the identity provider's
// confirmation redirect.
//
// The sign-up request records who is joining which organization; the callback
// request, possibly on another subdomain and in another tab, recovers it.
// Three cookie stores with different scopes are written so that at least one
// survives: a persistent host-only cookie, a browser-session host-only cookie
// and a cookie on the apex domain that every tenant subdomain can read.
package pendinginvite

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/tenantgate/internal/domain/models"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

// Store names, in recovery order.
const (
	Durable  = "durable"
	Volatile = "volatile"
	Shared   = "shared"
)

// SharedTTL is the lifetime of the apex-domain cookie.
const SharedTTL = 24 * time.Hour

var (
	// ErrNotFound is returned by Load when the store holds nothing.
	ErrNotFound = errors.New("no pending invitation")
	// ErrWeakKey is returned when the session key is too short to derive from.
	ErrWeakKey = errors.New("pendinginvite: session key must be at least 32 bytes")
)

// Store is one place a pending invitation can be kept between requests.
type Store interface {
	Name() string
	Save(w http.ResponseWriter, r *http.Request, pc models.PendingInvitation) error
	Load(r *http.Request) (models.PendingInvitation, error)
	Clear(w http.ResponseWriter, r *http.Request)
}

// cookieStore keeps the record JSON-encoded in a signed and encrypted cookie.
type cookieStore struct {
	name     string
	cookie   string
	domain   string        // "" for host-only
	lifetime time.Duration // bounds the codec timestamp
	persist  bool          // set Max-Age and Expires on the cookie
	secure   bool
	codec    *securecookie.SecureCookie
	now      func() time.Time
}

func (s *cookieStore) Name() string { return s.name }

func (s *cookieStore) Save(w http.ResponseWriter, _ *http.Request, pc models.PendingInvitation) error {
	v, err := s.codec.Encode(s.cookie, pc)
	if err != nil {
		return fmt.Errorf("pendinginvite: encode %s: %w", s.name, err)
	}
	c := s.base()
	c.Value = v
	if s.persist {
		c.MaxAge = int(s.lifetime / time.Second)
		c.Expires = s.now().Add(s.lifetime)
	}
	http.SetCookie(w, c)
	return nil
}

func (s *cookieStore) Load(r *http.Request) (models.PendingInvitation, error) {
	c, err := r.Cookie(s.cookie)
	if err != nil || c.Value == "" {
		return models.PendingInvitation{}, ErrNotFound
	}
	var pc models.PendingInvitation
	if err := s.codec.Decode(s.cookie, c.Value, &pc); err != nil {
		return models.PendingInvitation{}, fmt.Errorf("pendinginvite: decode %s: %w", s.name, err)
	}
	return pc, nil
}

func (s *cookieStore) Clear(w http.ResponseWriter, _ *http.Request) {
	c := s.base()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func (s *cookieStore) base() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie,
		Path:     "/",
		Domain:   s.domain,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// deriveCodec builds a securecookie codec whose hash and block keys are
// derived from sessionKey with HKDF, one pair per store.
func deriveCodec(sessionKey, store string, lifetime time.Duration) (*securecookie.SecureCookie, error) {
	kdf := hkdf.New(sha256.New, []byte(sessionKey), nil, []byte("tenantgate/pendinginvite/"+store))
	keys := make([]byte, 64)
	if _, err := io.ReadFull(kdf, keys); err != nil {
		return nil, fmt.Errorf("pendinginvite: derive %s keys: %w", store, err)
	}
	codec := securecookie.New(keys[:32], keys[32:])
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(lifetime / time.Second))
	return codec, nil
}

// sharedDomain returns the cookie domain covering every subdomain of apex,
// or "" when apex cannot carry a domain cookie (localhost, bare IPs).
func sharedDomain(apex string) string {
	apex = strings.Trim(strings.ToLower(apex), ".")
	if apex == "" || !strings.Contains(apex, ".") || apex == "localhost" {
		return ""
	}
	if strings.Trim(apex, "0123456789.") == "" {
		return ""
	}
	return "." + apex
}

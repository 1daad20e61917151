package pendinginvite

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/tenantgate/internal/domain/models"
	"go.uber.org/zap"
)

const testKey = "0123456789abcdef0123456789abcdef-test"

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestBridge(t *testing.T, c *clock) *Bridge {
	t.Helper()
	b, err := New(Config{
		SessionKey: testKey,
		Apex:       "pic2data.fi",
		TTL:        time.Hour,
		Secure:     true,
		Now:        c.now,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func sample() models.PendingInvitation {
	return models.PendingInvitation{
		Token:            "tok-123",
		OrganizationSlug: "acme",
		OrganizationID:   "65f0c2a1b4d3e2f1a0b9c8d7",
		Role:             models.RoleUser,
		Email:            "alice@x.com",
	}
}

// carry copies the cookies set on rec into a fresh request, like a browser
// following the redirect.
func carry(rec *httptest.ResponseRecorder, only ...string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "https://acme.pic2data.fi/auth/callback", nil)
	keep := map[string]bool{}
	for _, n := range only {
		keep[n] = true
	}
	for _, c := range rec.Result().Cookies() {
		if len(keep) > 0 && !keep[c.Name] {
			continue
		}
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestNew_RejectsShortKey(t *testing.T) {
	if _, err := New(Config{SessionKey: "short"}, nil); !errors.Is(err, ErrWeakKey) {
		t.Errorf("err = %v, want ErrWeakKey", err)
	}
}

func TestStore_CookieScopes(t *testing.T) {
	c := &clock{t: time.Now()}
	b := newTestBridge(t, c)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "https://acme.pic2data.fi/join", nil)

	if err := b.Store(rec, req, sample()); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got := cookiesByName(rec)

	durable := got["tg_pending_invite"]
	if durable == nil || durable.Domain != "" || durable.MaxAge != 3600 || !durable.HttpOnly || !durable.Secure {
		t.Errorf("durable cookie = %+v", durable)
	}
	volatile := got["tg_pending_invite_tab"]
	if volatile == nil || volatile.MaxAge != 0 || !volatile.Expires.IsZero() {
		t.Errorf("volatile cookie should be a session cookie: %+v", volatile)
	}
	shared := got["tg_pending_invite_shared"]
	if shared == nil || shared.Domain != "pic2data.fi" || shared.MaxAge != int(SharedTTL/time.Second) {
		t.Errorf("shared cookie = %+v", shared)
	}
	for name, ck := range got {
		if ck.Value == "" || ck.Value == "tok-123" {
			t.Errorf("%s: value should be encoded", name)
		}
	}
}

func TestRecover_RoundTripClearsAll(t *testing.T) {
	c := &clock{t: time.Now()}
	b := newTestBridge(t, c)
	rec := httptest.NewRecorder()
	if err := b.Store(rec, httptest.NewRequest(http.MethodPost, "/join", nil), sample()); err != nil {
		t.Fatal(err)
	}

	out := httptest.NewRecorder()
	pc, ok := b.Recover(out, carry(rec))
	if !ok {
		t.Fatal("Recover found nothing")
	}
	want := sample()
	if pc.Token != want.Token || pc.OrganizationSlug != want.OrganizationSlug || pc.Email != want.Email || pc.Role != want.Role {
		t.Errorf("recovered %+v", pc)
	}
	if pc.Timestamp.IsZero() {
		t.Error("timestamp should be stamped on save")
	}

	cleared := cookiesByName(out)
	for _, name := range []string{"tg_pending_invite", "tg_pending_invite_tab", "tg_pending_invite_shared"} {
		if ck := cleared[name]; ck == nil || ck.MaxAge >= 0 {
			t.Errorf("%s should be expired, got %+v", name, ck)
		}
	}
}

func TestRecover_Precedence(t *testing.T) {
	c := &clock{t: time.Now()}
	b := newTestBridge(t, c)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	// Each store holds a different record.
	rec := httptest.NewRecorder()
	for i, s := range b.stores {
		pc := sample()
		pc.Token = s.Name()
		pc.Timestamp = c.now()
		if err := s.Save(rec, req, pc); err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
	}

	tests := []struct {
		name    string
		present []string
		want    string
	}{
		{"all present", []string{"tg_pending_invite", "tg_pending_invite_tab", "tg_pending_invite_shared"}, Durable},
		{"no durable", []string{"tg_pending_invite_tab", "tg_pending_invite_shared"}, Volatile},
		{"other subdomain", []string{"tg_pending_invite_shared"}, Shared},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, ok := b.Recover(httptest.NewRecorder(), carry(rec, tt.present...))
			if !ok || pc.Token != tt.want {
				t.Errorf("got %q ok=%v, want %q", pc.Token, ok, tt.want)
			}
		})
	}
}

func TestRecover_SkipsTamperedAndForeignCookies(t *testing.T) {
	c := &clock{t: time.Now()}
	b := newTestBridge(t, c)
	rec := httptest.NewRecorder()
	if err := b.Store(rec, httptest.NewRequest(http.MethodPost, "/join", nil), sample()); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	for _, ck := range rec.Result().Cookies() {
		v := ck.Value
		if ck.Name == "tg_pending_invite" {
			v = "garbage" + v
		}
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: v})
	}
	if pc, ok := b.Recover(httptest.NewRecorder(), req); !ok || pc.Token != "tok-123" {
		t.Errorf("should fall through to the next store, got %+v ok=%v", pc, ok)
	}

	// A bridge with a different session key cannot read the cookies.
	other, err := New(Config{SessionKey: testKey + "-rotated", Apex: "pic2data.fi", Now: c.now}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := other.Recover(httptest.NewRecorder(), carry(rec)); ok {
		t.Error("cookies sealed under another key must not decode")
	}
}

func TestRecover_IgnoresStaleRecords(t *testing.T) {
	c := &clock{t: time.Now()}
	b := newTestBridge(t, c)
	rec := httptest.NewRecorder()
	if err := b.Store(rec, httptest.NewRequest(http.MethodPost, "/join", nil), sample()); err != nil {
		t.Fatal(err)
	}

	c.t = c.t.Add(time.Hour + time.Minute)
	if _, ok := b.Recover(httptest.NewRecorder(), carry(rec)); ok {
		t.Error("record older than the TTL should be ignored")
	}
}

func TestRecover_NothingStillClears(t *testing.T) {
	c := &clock{t: time.Now()}
	b := newTestBridge(t, c)
	out := httptest.NewRecorder()
	if _, ok := b.Recover(out, httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatal("nothing was stored")
	}
	if n := len(out.Result().Cookies()); n != 3 {
		t.Errorf("expected 3 clearing cookies, got %d", n)
	}
}

type failingStore struct{ name string }

func (f failingStore) Name() string { return f.name }
func (f failingStore) Save(http.ResponseWriter, *http.Request, models.PendingInvitation) error {
	return errors.New("quota exceeded")
}
func (f failingStore) Load(*http.Request) (models.PendingInvitation, error) {
	return models.PendingInvitation{}, ErrNotFound
}
func (f failingStore) Clear(http.ResponseWriter, *http.Request) {}

func TestStore_PartialFailure(t *testing.T) {
	c := &clock{t: time.Now()}
	full := newTestBridge(t, c)
	req := httptest.NewRequest(http.MethodPost, "/join", nil)

	mixed := NewWithStores([]Store{failingStore{"a"}, full.stores[2]}, time.Hour, c.now, nil)
	if err := mixed.Store(httptest.NewRecorder(), req, sample()); err != nil {
		t.Errorf("one store succeeded, Store should not fail: %v", err)
	}

	allBad := NewWithStores([]Store{failingStore{"a"}, failingStore{"b"}}, time.Hour, c.now, nil)
	if err := allBad.Store(httptest.NewRecorder(), req, sample()); err == nil {
		t.Error("Store should fail when every store fails")
	}
}

func TestSharedDomain(t *testing.T) {
	tests := map[string]string{
		"pic2data.fi":    ".pic2data.fi",
		".Pic2Data.FI":   ".pic2data.fi",
		"localhost":      "",
		"127.0.0.1":      "",
		"":               "",
		"pic2data.local": ".pic2data.local",
	}
	for in, want := range tests {
		if got := sharedDomain(in); got != want {
			t.Errorf("sharedDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowAndWindow(t *testing.T) {
	l := New(2, time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("other keys are independent")
	}
	if got := l.Remaining("a"); got != 0 {
		t.Errorf("Remaining = %d", got)
	}

	clock = clock.Add(time.Minute + time.Second)
	if !l.Allow("a") {
		t.Fatal("new window should allow again")
	}

	l.Reset("a")
	if got := l.Remaining("a"); got != 2 {
		t.Errorf("Remaining after reset = %d", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded first hop", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", "", " 198.51.100.4 ", "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", "", "", "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", "", "", "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestByIP(t *testing.T) {
	l := New(1, time.Minute)
	limited := 0
	h := ByIP(l, func(*http.Request) { limited++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/join", nil)
		req.RemoteAddr = "192.0.2.9:4000"
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status %d, want %d", i, rec.Code, want)
		}
	}
	if limited != 1 {
		t.Errorf("onLimit called %d times", limited)
	}
}

func TestLoginLimiter(t *testing.T) {
	ll := NewLoginLimiter()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.10:1000"

	for i := 0; i < 5; i++ {
		if ok, _ := ll.Check(req, "Alice@X.com"); !ok {
			t.Fatalf("attempt %d should pass", i)
		}
	}
	if ok, reason := ll.Check(req, "alice@x.com"); ok || reason == "" {
		t.Fatal("sixth attempt for the same email should be limited")
	}
	ll.ResetEmail("ALICE@x.com")
	if ok, _ := ll.Check(req, "alice@x.com"); !ok {
		t.Fatal("reset should clear the email window")
	}
}

package subdomain

import "testing"

func testResolver() Resolver {
	return Resolver{
		Apex:          "pic2data.fi",
		DevRoot:       "pic2data",
		DevSuffix:     ".local",
		PreviewSuffix: ".vercel.app",
		Aliases:       map[string]string{"mantox-old": "mantox", "demo": "acme"},
		PreviewDeployments: map[string]string{
			"drawsync-frontend": "mantox",
		},
	}
}

func TestResolve(t *testing.T) {
	res := testResolver()

	tests := []struct {
		host string
		want string
	}{
		// apex and www
		{"pic2data.fi", ""},
		{"www.pic2data.fi", ""},
		{"PIC2DATA.FI", ""},
		{"pic2data.fi:443", ""},
		{"pic2data.fi.", ""},

		// tenant subdomains
		{"acme.pic2data.fi", "acme"},
		{"acme.pic2data.fi:8080", "acme"},
		{"Acme.Pic2Data.FI", "acme"},
		{"admin.pic2data.fi", Admin},
		{"demo.pic2data.fi", "acme"},
		{"mantox-old.pic2data.fi", "mantox"},
		{"www.eu.pic2data.fi", ""},

		// local development
		{"acme.pic2data.local", "acme"},
		{"acme.pic2data.local:5173", "acme"},
		{"pic2data.pic2data.local", ""},
		{"pic2data.local", ""},

		// preview hosting
		{"drawsync-frontend.vercel.app", "mantox"},
		{"acme-git-main-team.vercel.app", "acme"},
		{"acme.vercel.app", "acme"},

		// generic fallback
		{"acme.example.com", "acme"},
		{"www.example.com", ""},
		{"api.example.com", ""},
		{"mail.example.com", ""},
		{"ftp.example.com", ""},
		{"example.com", ""},
		{"localhost", ""},
		{"localhost:5173", ""},
		{"127.0.0.1:8080", ""},
		{"10.0.0.12", ""},
		{"[::1]:8080", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := res.Resolve(tt.host); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	res := testResolver()
	hosts := []string{"acme.pic2data.fi", "www.pic2data.fi", "x-y.vercel.app", "a.b.c.d"}
	for _, h := range hosts {
		first := res.Resolve(h)
		for i := 0; i < 10; i++ {
			if got := res.Resolve(h); got != first {
				t.Fatalf("Resolve(%q) not deterministic: %q then %q", h, first, got)
			}
		}
	}
}

func TestResolve_ReservedNeverTenant(t *testing.T) {
	res := Resolver{} // no apex configured: only the generic fallback applies
	for label := range reserved {
		host := label + ".tenant.example.org"
		if got := res.Resolve(host); got != "" {
			t.Errorf("Resolve(%q) = %q, want no tenant", host, got)
		}
	}
}

func TestResolve_ZeroResolver(t *testing.T) {
	var res Resolver
	if got := res.Resolve("acme.pic2data.fi"); got != "acme" {
		t.Errorf("generic fallback: got %q, want %q", got, "acme")
	}
	if got := res.Resolve("pic2data.fi"); got != "" {
		t.Errorf("two labels: got %q, want empty", got)
	}
}

func TestParseTable(t *testing.T) {
	got, err := ParseTable(" Old=New , demo=acme,,")
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(got) != 2 || got["old"] != "new" || got["demo"] != "acme" {
		t.Errorf("ParseTable = %v", got)
	}

	empty, err := ParseTable("")
	if err != nil || len(empty) != 0 {
		t.Errorf("ParseTable(\"\") = %v, %v", empty, err)
	}

	for _, bad := range []string{"novalue", "=x", "x="} {
		if _, err := ParseTable(bad); err == nil {
			t.Errorf("ParseTable(%q) expected error", bad)
		}
	}
}

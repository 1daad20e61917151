package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captureTransport struct {
	sent []Email
	err  error
}

func (c *captureTransport) send(_ context.Context, _, _ string, e Email) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, e)
	return nil
}

func TestNew_Providers(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default log", Config{}, false},
		{"log", Config{Provider: "LOG"}, false},
		{"smtp", Config{Provider: ProviderSMTP, SMTPHost: "mail.local"}, false},
		{"smtp without host", Config{Provider: ProviderSMTP}, true},
		{"sendgrid", Config{Provider: ProviderSendGrid, SendGridAPIKey: "SG.key"}, false},
		{"sendgrid without key", Config{Provider: ProviderSendGrid}, true},
		{"unknown", Config{Provider: "carrier-pigeon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Errorf("New err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSend_RequiresRecipient(t *testing.T) {
	m := &Mailer{t: &captureTransport{}, log: zap.NewNop()}
	if err := m.Send(context.Background(), Email{Subject: "x"}); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("expected ErrNoRecipient, got %v", err)
	}
}

func TestSend_ReportsTransportFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := &Mailer{t: &captureTransport{err: errors.New("connection refused")}, log: zap.New(core)}

	err := m.Send(context.Background(), Email{To: "alice@x.com", Subject: "hi"})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if logs.FilterMessage("email send failed").Len() != 1 {
		t.Error("expected failure to be logged")
	}
}

func TestSendInvitation(t *testing.T) {
	ct := &captureTransport{}
	m := &Mailer{t: ct, log: zap.NewNop(), siteName: "Pic2Data"}

	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := m.SendInvitation(context.Background(), InvitationEmailData{
		To:               "alice@x.com",
		OrganizationName: "Acme",
		Role:             "user",
		InviterName:      "Bob",
		AcceptURL:        "https://acme.pic2data.fi/join?org=acme&token=abc",
		ExpiresAt:        exp,
		Note:             "Welcome!<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("SendInvitation: %v", err)
	}
	if len(ct.sent) != 1 {
		t.Fatalf("sent %d emails", len(ct.sent))
	}
	e := ct.sent[0]
	if e.To != "alice@x.com" {
		t.Errorf("To = %q", e.To)
	}
	if !strings.Contains(e.Subject, "Acme") || !strings.Contains(e.Subject, "Pic2Data") {
		t.Errorf("Subject = %q", e.Subject)
	}
	if !strings.Contains(e.TextBody, "https://acme.pic2data.fi/join?org=acme&token=abc") {
		t.Error("text body missing accept link")
	}
	if !strings.Contains(e.TextBody, "March 1, 2026") {
		t.Error("text body missing expiry")
	}
	if strings.Contains(e.HTMLBody, "<script>") {
		t.Error("HTML body must not contain the raw script from the note")
	}
	if !strings.Contains(e.HTMLBody, "Welcome!") {
		t.Error("HTML body missing note")
	}
}

func TestBuildMIME(t *testing.T) {
	msg := string(buildMIME("noreply@pic2data.fi", "Pic2Data", Email{
		To:       "alice@x.com",
		Subject:  "Hello",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
	}))
	for _, want := range []string{
		`From: "Pic2Data" <noreply@pic2data.fi>`,
		"To: alice@x.com",
		"multipart/alternative",
		"<p>html</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("MIME message missing %q", want)
		}
	}
}

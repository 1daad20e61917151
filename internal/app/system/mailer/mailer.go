// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Providers accepted in Config.Provider.
const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderLog      = "log"
)

var (
	ErrNoRecipient     = errors.New("mailer: recipient is empty")
	ErrUnknownProvider = errors.New("mailer: unknown provider")
)

// Email is one outbound message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config selects and configures the transport.
type Config struct {
	Provider       string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPass       string
	SendGridAPIKey string
	From           string
	FromName       string
	SiteName       string
}

// transport delivers a rendered message.
type transport interface {
	send(ctx context.Context, from, fromName string, e Email) error
}

// Mailer sends transactional email through the configured provider.
type Mailer struct {
	t        transport
	from     string
	fromName string
	siteName string
	log      *zap.Logger
}

// New builds a Mailer. An empty provider selects the log transport.
func New(cfg Config, logger *zap.Logger) (*Mailer, error) {
	m := &Mailer{
		from:     cfg.From,
		fromName: cfg.FromName,
		siteName: cfg.SiteName,
		log:      logger,
	}
	if m.siteName == "" {
		m.siteName = "Pic2Data"
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderLog:
		m.t = logTransport{log: logger}
	case ProviderSMTP:
		if cfg.SMTPHost == "" {
			return nil, errors.New("mailer: smtp host is empty")
		}
		port := cfg.SMTPPort
		if port == 0 {
			port = 587
		}
		m.t = smtpTransport{host: cfg.SMTPHost, port: port, user: cfg.SMTPUser, pass: cfg.SMTPPass}
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, errors.New("mailer: sendgrid api key is empty")
		}
		m.t = sendgridTransport{client: sendgrid.NewSendClient(cfg.SendGridAPIKey)}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	return m, nil
}

// Send delivers e. Delivery is attempted once; failures are returned, never retried.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if strings.TrimSpace(e.To) == "" {
		return ErrNoRecipient
	}
	start := time.Now()
	if err := m.t.send(ctx, m.from, m.fromName, e); err != nil {
		m.log.Warn("email send failed",
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
			zap.Error(err))
		return err
	}
	m.log.Info("email sent",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.Duration("took", time.Since(start)))
	return nil
}

// SendInvitation renders and sends an invitation email.
func (m *Mailer) SendInvitation(ctx context.Context, data InvitationEmailData) error {
	if data.SiteName == "" {
		data.SiteName = m.siteName
	}
	e := BuildInvitationEmail(data)
	e.To = data.To
	return m.Send(ctx, e)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Transports                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

type logTransport struct {
	log *zap.Logger
}

func (t logTransport) send(_ context.Context, from, _ string, e Email) error {
	t.log.Info("email (log transport)",
		zap.String("from", from),
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.String("text", e.TextBody))
	return nil
}

type sendgridTransport struct {
	client *sendgrid.Client
}

func (t sendgridTransport) send(ctx context.Context, from, fromName string, e Email) error {
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail(fromName, from),
		e.Subject,
		sgmail.NewEmail("", e.To),
		e.TextBody,
		e.HTMLBody,
	)
	resp, err := t.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}
	return nil
}

type smtpTransport struct {
	host string
	port int
	user string
	pass string
}

func (t smtpTransport) send(ctx context.Context, from, fromName string, e Email) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	var auth smtp.Auth
	if t.user != "" {
		auth = smtp.PlainAuth("", t.user, t.pass, t.host)
	}
	msg := buildMIME(from, fromName, e)

	// net/smtp has no context support; bound the call by ctx.
	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(addr, auth, from, []string{e.To}, msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMIME(from, fromName string, e Email) []byte {
	const boundary = "tenantgate-alt-boundary"
	var b strings.Builder
	if fromName != "" {
		fmt.Fprintf(&b, "From: %q <%s>\r\n", fromName, from)
	} else {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", e.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if e.HTMLBody == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(e.TextBody)
		return []byte(b.String())
	}
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", boundary, e.TextBody)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, e.HTMLBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS); everything specific
// to tenantgate lives here. tenantctl fills the same struct from viper.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Login session cookie
	SessionKey    string        // Secret for signing session and pending-invitation cookies
	SessionName   string        // Cookie name (default: tenantgate-session)
	SessionDomain string        // Cookie domain; derived as ".<apex>" when blank
	SessionTTL    time.Duration // Login session lifetime

	// Host routing
	PublicScheme       string            // "https" in production, "http" for local development
	ApexDomain         string            // e.g., pic2data.fi
	DevRootName        string            // e.g., pic2data (acme.pic2data.local)
	DevSuffix          string            // e.g., .local
	PreviewSuffix      string            // e.g., .vercel.app
	SlugAliases        map[string]string // legacy label → slug
	PreviewDeployments map[string]string // preview deployment → slug

	// Identity provider (GoTrue-compatible)
	IdentityURL       string
	IdentityAnonKey   string
	IdentityJWTSecret string // optional; enables local access-token checks
	IdentityTimeout   time.Duration

	// Outbound email
	MailProvider   string // smtp | sendgrid | log
	MailSMTPHost   string
	MailSMTPPort   int
	MailSMTPUser   string
	MailSMTPPass   string
	MailFrom       string
	MailFromName   string
	SendGridAPIKey string

	// Invitations and tenancy
	InvitationTTL         time.Duration // stamped on new invitations
	InvitationFallbackTTL time.Duration // rows without expires_at
	PendingInviteTTL      time.Duration // pending-invitation cookie lifetime
	InvitationRetention   time.Duration // expired invitations are purged after this; 0 disables
	InvitationSweepEvery  time.Duration
	TrialDays             int
	PlatformAdminEmails   []string
	LicenseContactEmail   string
	JoinRateLimit         int // POST /join requests per IP per minute

	// Request timeouts (zero keeps the defaults)
	TimeoutShort    time.Duration
	TimeoutMedium   time.Duration
	TimeoutLong     time.Duration
	TimeoutIdentity time.Duration

	// Audit logging: all | db | log | off
	AuditLogAuth   string
	AuditLogAdmin  string
	AuditLogTenant string
}

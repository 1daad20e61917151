// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/tenantgate/internal/app/system/mailer"
	"github.com/dalemusser/tenantgate/internal/app/system/subdomain"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every app environment variable (TENANTGATE_MONGO_URI, ...).
const EnvPrefix = "TENANTGATE"

// appConfigKeys defines the configuration keys for tenantgate.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, apex_domain, etc.
//   - Environment variables: TENANTGATE_MONGO_URI, TENANTGATE_APEX_DOMAIN, etc.
//   - Command-line flags: --mongo_uri, --apex_domain, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "tenantgate", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "tenantgate-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank derives .<apex_domain>)"},
	{Name: "session_ttl", Default: "168h", Desc: "Login session lifetime"},

	// Host routing
	{Name: "public_scheme", Default: "https", Desc: "Scheme used in links to tenant hosts"},
	{Name: "apex_domain", Default: "pic2data.fi", Desc: "Production apex domain; tenants live at <slug>.<apex>"},
	{Name: "dev_root_name", Default: "pic2data", Desc: "Local development root label (<slug>.pic2data.local)"},
	{Name: "dev_suffix", Default: ".local", Desc: "Local development domain suffix"},
	{Name: "preview_suffix", Default: ".vercel.app", Desc: "Preview deployment host suffix"},
	{Name: "slug_aliases", Default: "", Desc: "Legacy subdomain aliases: old=new,..."},
	{Name: "preview_deployments", Default: "", Desc: "Preview deployment to slug table: deployment=slug,..."},

	// Identity provider
	{Name: "identity_url", Default: "", Desc: "Identity provider auth endpoint (e.g., https://xyz.supabase.co/auth/v1)"},
	{Name: "identity_anon_key", Default: "", Desc: "Identity provider public API key"},
	{Name: "identity_jwt_secret", Default: "", Desc: "Identity provider JWT secret (optional; enables local token checks)"},
	{Name: "identity_timeout", Default: "10s", Desc: "Identity provider HTTP timeout"},

	// Email
	{Name: "mail_provider", Default: "log", Desc: "Email transport: 'smtp', 'sendgrid' or 'log'"},
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@pic2data.fi", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Pic2Data", Desc: "From display name"},
	{Name: "sendgrid_api_key", Default: "", Desc: "SendGrid API key (mail_provider=sendgrid)"},

	// Invitations and tenancy
	{Name: "invitation_ttl", Default: "168h", Desc: "Lifetime stamped on new invitations"},
	{Name: "invitation_fallback_ttl", Default: "168h", Desc: "Lifetime of invitations stored without an expiry"},
	{Name: "pending_invite_ttl", Default: "24h", Desc: "How long a pending invitation survives the confirmation redirect"},
	{Name: "invitation_retention", Default: "720h", Desc: "Purge pending invitations this long after they expire (0 disables)"},
	{Name: "invitation_sweep_interval", Default: "1h", Desc: "How often expired invitations are purged"},
	{Name: "trial_days", Default: 30, Desc: "Trial length for new organizations"},
	{Name: "platform_admin_emails", Default: "", Desc: "Comma-separated emails granted the platform admin role"},
	{Name: "license_contact_email", Default: "", Desc: "Contact shown on license and access errors"},
	{Name: "join_rate_limit", Default: 10, Desc: "Registration attempts per IP per minute"},

	// Timeouts
	{Name: "timeout_short", Default: "0s", Desc: "Lookup timeout (0 keeps the default)"},
	{Name: "timeout_medium", Default: "0s", Desc: "Invitation write timeout (0 keeps the default)"},
	{Name: "timeout_long", Default: "0s", Desc: "Tenant provisioning timeout (0 keeps the default)"},
	{Name: "timeout_identity", Default: "0s", Desc: "Identity request timeout (0 keeps the default)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_tenant", Default: "all", Desc: "Invitation and routing event logging: 'all', 'db', 'log', or 'off'"},
}

// Values reads typed configuration values by key. WAFFLE's app values and
// tenantctl's viper adapter both satisfy it.
type Values interface {
	String(name string) string
	Int(name string) int
	Duration(name string, def time.Duration) time.Duration
}

// AppConfigKeys returns the key table with defaults.
func AppConfigKeys() []config.AppKey {
	return appConfigKeys
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config.yaml/json/toml
// files, environment variables (WAFFLE_* for core, TENANTGATE_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}
	appCfg, err := FromValues(appValues, logger)
	if err != nil {
		return nil, AppConfig{}, err
	}
	return coreCfg, appCfg, nil
}

// FromValues maps configuration values onto AppConfig and fills derived
// settings.
func FromValues(v Values, logger *zap.Logger) (AppConfig, error) {
	aliases, err := subdomain.ParseTable(v.String("slug_aliases"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("slug_aliases: %w", err)
	}
	previews, err := subdomain.ParseTable(v.String("preview_deployments"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("preview_deployments: %w", err)
	}

	appCfg := AppConfig{
		MongoURI:         v.String("mongo_uri"),
		MongoDatabase:    v.String("mongo_database"),
		MongoMaxPoolSize: uint64(v.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(v.Int("mongo_min_pool_size")),
		SessionKey:       v.String("session_key"),
		SessionName:      v.String("session_name"),
		SessionDomain:    v.String("session_domain"),
		SessionTTL:       v.Duration("session_ttl", 7*24*time.Hour),

		PublicScheme:       v.String("public_scheme"),
		ApexDomain:         strings.ToLower(strings.TrimSpace(v.String("apex_domain"))),
		DevRootName:        v.String("dev_root_name"),
		DevSuffix:          v.String("dev_suffix"),
		PreviewSuffix:      v.String("preview_suffix"),
		SlugAliases:        aliases,
		PreviewDeployments: previews,

		IdentityURL:       v.String("identity_url"),
		IdentityAnonKey:   v.String("identity_anon_key"),
		IdentityJWTSecret: v.String("identity_jwt_secret"),
		IdentityTimeout:   v.Duration("identity_timeout", 10*time.Second),

		MailProvider:   v.String("mail_provider"),
		MailSMTPHost:   v.String("mail_smtp_host"),
		MailSMTPPort:   v.Int("mail_smtp_port"),
		MailSMTPUser:   v.String("mail_smtp_user"),
		MailSMTPPass:   v.String("mail_smtp_pass"),
		MailFrom:       v.String("mail_from"),
		MailFromName:   v.String("mail_from_name"),
		SendGridAPIKey: v.String("sendgrid_api_key"),

		InvitationTTL:         v.Duration("invitation_ttl", 7*24*time.Hour),
		InvitationFallbackTTL: v.Duration("invitation_fallback_ttl", 7*24*time.Hour),
		PendingInviteTTL:      v.Duration("pending_invite_ttl", 24*time.Hour),
		InvitationRetention:   v.Duration("invitation_retention", 0),
		InvitationSweepEvery:  v.Duration("invitation_sweep_interval", time.Hour),
		TrialDays:             v.Int("trial_days"),
		PlatformAdminEmails:   SplitList(v.String("platform_admin_emails")),
		LicenseContactEmail:   v.String("license_contact_email"),
		JoinRateLimit:         v.Int("join_rate_limit"),

		TimeoutShort:    v.Duration("timeout_short", 0),
		TimeoutMedium:   v.Duration("timeout_medium", 0),
		TimeoutLong:     v.Duration("timeout_long", 0),
		TimeoutIdentity: v.Duration("timeout_identity", 0),

		AuditLogAuth:   v.String("audit_log_auth"),
		AuditLogAdmin:  v.String("audit_log_admin"),
		AuditLogTenant: v.String("audit_log_tenant"),
	}

	if appCfg.JoinRateLimit <= 0 {
		appCfg.JoinRateLimit = 10
	}

	// Login must be visible on every tenant host and on the apex callback.
	if appCfg.SessionDomain == "" {
		appCfg.SessionDomain = DeriveCookieDomain(appCfg.ApexDomain)
		if appCfg.SessionDomain != "" {
			logger.Info("auto-derived session domain",
				zap.String("session_domain", appCfg.SessionDomain))
		}
	}

	return appCfg, nil
}

// ValidateConfig performs app-specific config validation. It catches
// configuration errors before any backend is contacted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(appCfg)
}

func validateApp(appCfg AppConfig) error {
	var errs []error
	if appCfg.ApexDomain == "" {
		errs = append(errs, errors.New("apex_domain is required"))
	}
	if appCfg.IdentityURL == "" {
		errs = append(errs, errors.New("identity_url is required"))
	}
	if len(appCfg.SessionKey) < 32 {
		errs = append(errs, errors.New("session_key must be at least 32 characters"))
	}
	switch appCfg.MailProvider {
	case "", mailer.ProviderLog, mailer.ProviderSMTP:
	case mailer.ProviderSendGrid:
		if appCfg.SendGridAPIKey == "" {
			errs = append(errs, errors.New("mail_provider=sendgrid requires sendgrid_api_key"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail_provider %q", appCfg.MailProvider))
	}
	if appCfg.PublicScheme != "http" && appCfg.PublicScheme != "https" {
		errs = append(errs, fmt.Errorf("public_scheme must be http or https, got %q", appCfg.PublicScheme))
	}
	if appCfg.InvitationRetention > 0 && appCfg.InvitationSweepEvery <= 0 {
		errs = append(errs, fmt.Errorf("invitation_sweep_interval must be positive when invitation_retention is set, got %s", appCfg.InvitationSweepEvery))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma-separated config value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DeriveCookieDomain returns ".<apex>" for a registrable apex, or "" for
// single-label hosts such as localhost.
func DeriveCookieDomain(apex string) string {
	apex = strings.TrimPrefix(strings.TrimSpace(apex), ".")
	if !strings.Contains(apex, ".") {
		return ""
	}
	return "." + apex
}

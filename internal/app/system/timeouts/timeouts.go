// Package timeouts provides centralized timeout values for request-scoped I/O.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks
//   - Short: directory, license and access lookups on the resolution path
//   - Medium: invitation writes and acceptance
//   - Long: multi-collection admin operations (organization create/retire)
//   - Identity: calls to the identity provider
//
// Values start at the defaults and can be overridden once at startup with
// Configure or ConfigureFromEnv.
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing     = 2 * time.Second
	DefaultShort    = 5 * time.Second
	DefaultMedium   = 10 * time.Second
	DefaultLong     = 30 * time.Second
	DefaultIdentity = 10 * time.Second
)

// Config holds timeout configuration values.
// Zero values are ignored (current values are kept).
type Config struct {
	Ping     time.Duration
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
	Identity time.Duration
}

var defaults = Config{
	Ping:     DefaultPing,
	Short:    DefaultShort,
	Medium:   DefaultMedium,
	Long:     DefaultLong,
	Identity: DefaultIdentity,
}

var (
	mu      sync.RWMutex
	current = defaults
)

// Ping returns the timeout for health checks.
func Ping() time.Duration { return Current().Ping }

// Short returns the timeout for single-document reads on the resolution path.
func Short() time.Duration { return Current().Short }

// Medium returns the timeout for invitation writes and acceptance.
func Medium() time.Duration { return Current().Medium }

// Long returns the timeout for operations touching several collections.
func Long() time.Duration { return Current().Long }

// Identity returns the timeout for identity provider requests.
func Identity() time.Duration { return Current().Identity }

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Configure overrides the non-zero values in cfg.
//
//	timeouts.Configure(timeouts.Config{Short: 2 * time.Second})
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	for _, f := range fields(&current) {
		if v := f.pick(cfg); v > 0 {
			*f.dst = v
		}
	}
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = defaults
}

// ConfigureFromEnv reads TENANTGATE_TIMEOUT_PING, _SHORT, _MEDIUM, _LONG and
// _IDENTITY (Go durations such as "5s" or "750ms"). Invalid or non-positive
// values are skipped. It returns how many values were applied.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	n := 0
	for _, f := range fields(&current) {
		v := os.Getenv("TENANTGATE_TIMEOUT_" + f.env)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*f.dst = d
			n++
		}
	}
	return n
}

type field struct {
	env  string
	dst  *time.Duration
	pick func(Config) time.Duration
}

func fields(c *Config) []field {
	return []field{
		{"PING", &c.Ping, func(x Config) time.Duration { return x.Ping }},
		{"SHORT", &c.Short, func(x Config) time.Duration { return x.Short }},
		{"MEDIUM", &c.Medium, func(x Config) time.Duration { return x.Medium }},
		{"LONG", &c.Long, func(x Config) time.Duration { return x.Long }},
		{"IDENTITY", &c.Identity, func(x Config) time.Duration { return x.Identity }},
	}
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "accept invitation")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}

package goSession

import (
	"errors"
	"time"
)

// Config controls a [Manager]. Obtain defaults with [DefaultConfig] and adjust fields
// before passing it to [Builder.WithConfig].
type Config struct {
	Refresh RefreshConfig
	Expiry  ExpiryConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig holds the refresh scheduling policy.
type RefreshConfig struct {
	// Window is the remaining lifetime under which a newly installed session is refreshed
	// immediately.
	Window time.Duration
	// LeadTime is how long before expiry the refresh timer fires.
	LeadTime time.Duration
	// Timeout bounds each provider refresh call. Zero leaves the call unbounded.
	Timeout time.Duration
	// SuppressRedundantTimer skips arming the lead-time timer when an immediate refresh
	// was already dispatched for the same session.
	SuppressRedundantTimer bool
}

/*
====================================
EXPIRY CONFIG
====================================
*/

// ExpiryConfig controls how a session without an explicit expiry is handled.
type ExpiryConfig struct {
	// FromAccessToken reads the exp claim of the access token when ExpiresAt is zero.
	FromAccessToken bool
	// SigningMethod is "" (no signature check), "hs256" or "ed25519".
	SigningMethod string
	Secret        []byte
	PublicKey     []byte
}

// AuditConfig controls the lifecycle event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	// DefaultRefreshWindow is the default [RefreshConfig.Window].
	DefaultRefreshWindow = 30 * time.Minute
	// DefaultLeadTime is the default [RefreshConfig.LeadTime].
	DefaultLeadTime = 5 * time.Minute
)

// DefaultConfig returns the configuration used when [Builder.WithConfig] is not called.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Refresh: RefreshConfig{
			Window:   DefaultRefreshWindow,
			LeadTime: DefaultLeadTime,
		},
		Expiry: ExpiryConfig{
			FromAccessToken: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Expiry.Secret = cloneBytes(cfg.Expiry.Secret)
	out.Expiry.PublicKey = cloneBytes(cfg.Expiry.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	if c.Refresh.Window <= 0 {
		return errors.New("Refresh Window must be > 0")
	}
	if c.Refresh.LeadTime < 0 {
		return errors.New("Refresh LeadTime must be >= 0")
	}
	if c.Refresh.LeadTime >= c.Refresh.Window {
		return errors.New("Refresh LeadTime must be < Refresh Window")
	}
	if c.Refresh.Timeout < 0 {
		return errors.New("Refresh Timeout must be >= 0")
	}

	if c.Expiry.FromAccessToken {
		switch c.Expiry.SigningMethod {
		case "":
		case "hs256":
			if len(c.Expiry.Secret) == 0 {
				return errors.New("Expiry hs256 requires Secret")
			}
		case "ed25519":
			if len(c.Expiry.PublicKey) == 0 {
				return errors.New("Expiry ed25519 requires PublicKey")
			}
		default:
			return errors.New("Expiry SigningMethod must be '', 'hs256' or 'ed25519'")
		}
	}

	if c.Audit.BufferSize < 0 {
		return errors.New("Audit BufferSize must be >= 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal configuration observation.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the list of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that are valid but likely unintended.
func (c *Config) Lint() LintResult {
	var out LintResult
	add := func(code, msg string) {
		out = append(out, LintWarning{Code: code, Message: msg})
	}

	if c.Refresh.Timeout == 0 {
		add("refresh_timeout_unbounded", "provider refresh calls have no deadline; a hung call stalls the refresh cycle")
	}
	if c.Refresh.LeadTime > 0 && c.Refresh.LeadTime < 30*time.Second {
		add("lead_time_short", "LeadTime under 30s leaves little room for a slow refresh before expiry")
	}
	if c.Refresh.Window >= time.Hour {
		add("refresh_window_large", "Window >= 1h refreshes hour-long sessions immediately on every install")
	}
	if c.Refresh.Timeout > 0 && c.Refresh.Timeout >= c.Refresh.LeadTime && c.Refresh.LeadTime > 0 {
		add("timeout_exceeds_lead_time", "a refresh that runs until Timeout can finish after the session expired")
	}
	if c.Expiry.FromAccessToken && c.Expiry.SigningMethod == "" {
		add("expiry_unverified", "access-token expiry is read without signature verification")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "lifecycle events are not emitted")
	}
	return out
}

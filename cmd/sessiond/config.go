package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	goSession "github.com/MrEthical07/goSession"
)

type daemonConfig struct {
	Listen    string `toml:"listen" env:"LISTEN"`
	LogLevel  string `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `toml:"log_format" env:"LOG_FORMAT"`
	// Provider is "gotrue" or "oauth2".
	Provider string `toml:"provider" env:"PROVIDER"`

	GoTrue  gotrueConfig  `toml:"gotrue" envPrefix:"GOTRUE_"`
	OAuth2  oauth2Config  `toml:"oauth2" envPrefix:"OAUTH2_"`
	Store   storeConfig   `toml:"store" envPrefix:"STORE_"`
	Refresh refreshConfig `toml:"refresh" envPrefix:"REFRESH_"`
	Audit   auditConfig   `toml:"audit" envPrefix:"AUDIT_"`
	Metrics metricsConfig `toml:"metrics" envPrefix:"METRICS_"`
}

type gotrueConfig struct {
	URL    string `toml:"url" env:"URL"`
	APIKey string `toml:"api_key" env:"API_KEY"`
	// Email and Password sign in at startup when nothing is stored.
	Email    string `toml:"email" env:"EMAIL"`
	Password string `toml:"password" env:"PASSWORD"`
}

type oauth2Config struct {
	ClientID      string   `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret  string   `toml:"client_secret" env:"CLIENT_SECRET"`
	AuthURL       string   `toml:"auth_url" env:"AUTH_URL"`
	TokenURL      string   `toml:"token_url" env:"TOKEN_URL"`
	RevocationURL string   `toml:"revocation_url" env:"REVOCATION_URL"`
	RedirectURL   string   `toml:"redirect_url" env:"REDIRECT_URL"`
	Scopes        []string `toml:"scopes" env:"SCOPES" envSeparator:","`
}

type storeConfig struct {
	// Driver is "memory", "redis" or "sqlite".
	Driver     string        `toml:"driver" env:"DRIVER"`
	RedisAddr  string        `toml:"redis_addr" env:"REDIS_ADDR"`
	Prefix     string        `toml:"prefix" env:"PREFIX"`
	SQLitePath string        `toml:"sqlite_path" env:"SQLITE_PATH"`
	TTL        time.Duration `toml:"ttl" env:"TTL"`
}

type refreshConfig struct {
	Window                 time.Duration `toml:"window" env:"WINDOW"`
	LeadTime               time.Duration `toml:"lead_time" env:"LEAD_TIME"`
	Timeout                time.Duration `toml:"timeout" env:"TIMEOUT"`
	SuppressRedundantTimer bool          `toml:"suppress_redundant_timer" env:"SUPPRESS_REDUNDANT_TIMER"`
}

type auditConfig struct {
	Enabled    bool `toml:"enabled" env:"ENABLED"`
	BufferSize int  `toml:"buffer_size" env:"BUFFER_SIZE"`
}

type metricsConfig struct {
	Histograms bool `toml:"histograms" env:"HISTOGRAMS"`
}

const envPrefix = "SESSIOND_"

func defaultDaemonConfig() daemonConfig {
	lib := goSession.DefaultConfig()
	return daemonConfig{
		Listen:    ":9464",
		LogLevel:  "info",
		LogFormat: "json",
		Provider:  "gotrue",
		Store:     storeConfig{Driver: "memory", Prefix: "gs"},
		Refresh: refreshConfig{
			Window:   lib.Refresh.Window,
			LeadTime: lib.Refresh.LeadTime,
			Timeout:  lib.Refresh.Timeout,
		},
		Audit: auditConfig{BufferSize: lib.Audit.BufferSize},
	}
}

// loadConfig layers the TOML file at path (if any) and SESSIOND_* variables over the
// defaults. Variables win over the file.
func loadConfig(path string, environ map[string]string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	opts := env.Options{Prefix: envPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c daemonConfig) validate() error {
	var errs []error
	switch c.Provider {
	case "gotrue":
		if c.GoTrue.URL == "" {
			errs = append(errs, errors.New("gotrue.url is required"))
		}
	case "oauth2":
		if c.OAuth2.ClientID == "" || c.OAuth2.TokenURL == "" {
			errs = append(errs, errors.New("oauth2.client_id and oauth2.token_url are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	switch c.Store.Driver {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis driver"))
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	mc := c.managerConfig()
	if err := mc.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c daemonConfig) managerConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.Refresh.Window = c.Refresh.Window
	cfg.Refresh.LeadTime = c.Refresh.LeadTime
	cfg.Refresh.Timeout = c.Refresh.Timeout
	cfg.Refresh.SuppressRedundantTimer = c.Refresh.SuppressRedundantTimer
	cfg.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = c.Audit.BufferSize
	}
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Histograms
	return cfg
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessiond.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
provider = "gotrue"
listen = "127.0.0.1:9000"

[gotrue]
url = "https://project.supabase.co"
api_key = "anon"

[store]
driver = "sqlite"
sqlite_path = "/var/lib/sessiond/session.db"
ttl = "720h"

[refresh]
window = "20m"
lead_time = "2m"
timeout = "15s"
`)
	cfg, err := loadConfig(path, map[string]string{})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9000" || cfg.Store.Driver != "sqlite" || cfg.Store.TTL != 720*time.Hour {
		t.Fatalf("unexpected config %+v", cfg)
	}
	mc := cfg.managerConfig()
	if mc.Refresh.Window != 20*time.Minute || mc.Refresh.LeadTime != 2*time.Minute || mc.Refresh.Timeout != 15*time.Second {
		t.Fatalf("unexpected refresh config %+v", mc.Refresh)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[gotrue]
url = "https://file.supabase.co"
`)
	cfg, err := loadConfig(path, map[string]string{
		"SESSIOND_GOTRUE_URL":       "https://env.supabase.co",
		"SESSIOND_REFRESH_WINDOW":   "45m",
		"SESSIOND_STORE_DRIVER":     "redis",
		"SESSIOND_STORE_REDIS_ADDR": "localhost:6379",
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.GoTrue.URL != "https://env.supabase.co" || cfg.Refresh.Window != 45*time.Minute || cfg.Store.Driver != "redis" {
		t.Fatalf("env did not override file: %+v", cfg)
	}
	if cfg.Refresh.LeadTime != 5*time.Minute {
		t.Fatalf("lead time default lost: %v", cfg.Refresh.LeadTime)
	}
}

func TestOAuth2ScopesFromEnv(t *testing.T) {
	cfg, err := loadConfig("", map[string]string{
		"SESSIOND_PROVIDER":         "oauth2",
		"SESSIOND_OAUTH2_CLIENT_ID": "cid",
		"SESSIOND_OAUTH2_TOKEN_URL": "https://idp.example.com/token",
		"SESSIOND_OAUTH2_SCOPES":    "openid,email,offline_access",
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if got := strings.Join(cfg.OAuth2.Scopes, " "); got != "openid email offline_access" {
		t.Fatalf("scopes = %q", got)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing gotrue url", map[string]string{}, "gotrue.url"},
		{"unknown provider", map[string]string{"SESSIOND_PROVIDER": "ldap"}, "unknown provider"},
		{"redis without addr", map[string]string{"SESSIOND_GOTRUE_URL": "https://x.supabase.co", "SESSIOND_STORE_DRIVER": "redis"}, "redis_addr"},
		{"lead time past window", map[string]string{
			"SESSIOND_GOTRUE_URL":        "https://x.supabase.co",
			"SESSIOND_REFRESH_LEAD_TIME": "40m",
		}, "LeadTime"},
		{"bad duration", map[string]string{"SESSIOND_REFRESH_WINDOW": "soon"}, "parse env"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadConfig("", tc.env)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), map[string]string{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(daemonConfig{LogLevel: "warn", LogFormat: "text"}, &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if _, err := newLogger(daemonConfig{LogFormat: "xml"}, &buf); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

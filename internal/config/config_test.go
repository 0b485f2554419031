package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "siteserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "site.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Content.Timeout)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.Equal(t, 10, cfg.Chat.MaxHistory)
	assert.Equal(t, 1.0, cfg.RateLimit.RPS)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.CleanupInterval)
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Equal(t, 2, cfg.Chat.MaxRetries)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.False(t, cfg.TLS.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8181"
  cors_origins: ["https://brightloop.example"]
database:
  type: memory
content:
  defaults_file: /etc/agencysite/content.toml
  timeout: 500ms
chat:
  model: llama-3.1-8b
  base_url: https://llm.internal/v1/
webhooks:
  workers: 2
logging:
  level: debug
  json: true
`)
	t.Setenv("SITE_AUTH_API_KEY", "from-env")
	t.Setenv("SITE_SERVER_ADDR", ":8282")
	t.Setenv("SITE_CONTENT_WATCH", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8282", cfg.Server.Addr, "environment overrides the file")
	assert.Equal(t, []string{"https://brightloop.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, "/etc/agencysite/content.toml", cfg.Content.DefaultsFile)
	assert.Equal(t, 500*time.Millisecond, cfg.Content.Timeout)
	assert.False(t, cfg.Content.Watch)
	assert.Equal(t, "llama-3.1-8b", cfg.Chat.Model)
	assert.Equal(t, 2, cfg.Webhooks.Workers)
	assert.Equal(t, 256, cfg.Webhooks.QueueSize)
	assert.Equal(t, "from-env", cfg.Auth.APIKey)
	assert.True(t, cfg.Logging.JSON)
}

func TestCleanupIntervalFromEnv(t *testing.T) {
	t.Setenv("SITE_RATELIMIT_CLEANUP_INTERVAL", "0")
	_, err := Load(writeConfig(t, "database:\n  type: memory\n"))
	assert.ErrorContains(t, err, "ratelimit.cleanup_interval")
}

func TestTrustedProxies(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  trusted_proxies: [\"10.0.0.0/8\", \"127.0.0.1\", \"::1\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1", "::1"}, cfg.Server.TrustedProxies)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad database", "database:\n  type: mongo\n"},
		{"postgres without dsn", "database:\n  type: postgres\n"},
		{"bad rate", "ratelimit:\n  rps: 0\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"short admin password", "auth:\n  admin_password: short\n"},
		{"metrics on server port", "metrics:\n  addr: \":8080\"\n"},
		{"zero cleanup interval", "ratelimit:\n  cleanup_interval: 0s\n"},
		{"negative max age", "ratelimit:\n  max_age: -1m\n"},
		{"bad trusted proxy", "server:\n  trusted_proxies: [\"proxy.local\"]\n"},
		{"negative chat retries", "chat:\n  max_retries: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{}
	cfg.Auth.APIKey = "secret"
	cfg.Chat.APIKey = "sk-123"
	cfg.Database.DSN = "postgres://site:pw@db/site"

	r := cfg.Redacted()
	assert.Equal(t, redacted, r.Auth.APIKey)
	assert.Equal(t, redacted, r.Chat.APIKey)
	assert.Equal(t, redacted, r.Database.DSN)
	assert.Equal(t, "", r.Auth.AdminPassword)
	assert.Equal(t, "secret", cfg.Auth.APIKey)
}

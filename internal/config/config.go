// Package config loads the siteserver configuration from a YAML file,
// SITE_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SITE_SERVER_ADDR
const EnvPrefix = "SITE"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Content   ContentConfig   `mapstructure:"content" yaml:"content"`
	Chat      ChatConfig      `mapstructure:"chat" yaml:"chat"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Webhooks  WebhookConfig   `mapstructure:"webhooks" yaml:"webhooks"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	TLS       TLSConfig       `mapstructure:"tls" yaml:"tls"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies" yaml:"trusted_proxies"` // IPs or CIDRs allowed to set X-Forwarded-For
}

type DatabaseConfig struct {
	Type            string        `mapstructure:"type" yaml:"type"` // memory, sqlite or postgres
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	Path            string        `mapstructure:"path" yaml:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

type AuthConfig struct {
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"`
	AdminEmail    string        `mapstructure:"admin_email" yaml:"admin_email"`
	AdminPassword string        `mapstructure:"admin_password" yaml:"admin_password"`
	SessionTTL    time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	CookieSecure  bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"`
}

type ContentConfig struct {
	DefaultsFile string        `mapstructure:"defaults_file" yaml:"defaults_file"` // YAML or TOML bundle overriding the built-in defaults
	Watch        bool          `mapstructure:"watch" yaml:"watch"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ChatConfig struct {
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	Model      string        `mapstructure:"model" yaml:"model"`
	MaxHistory int           `mapstructure:"max_history" yaml:"max_history"`
	MaxTokens  int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type RateLimitConfig struct {
	RPS             float64       `mapstructure:"rps" yaml:"rps"`
	Burst           int           `mapstructure:"burst" yaml:"burst"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	MaxAge          time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

type WebhookConfig struct {
	Workers    int           `mapstructure:"workers" yaml:"workers"`
	QueueSize  int           `mapstructure:"queue_size" yaml:"queue_size"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	JSON      bool   `mapstructure:"json" yaml:"json"`
	ToFile    bool   `mapstructure:"to_file" yaml:"to_file"`
	MaxSizeMB int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

type TLSConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	CertFile     string   `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile      string   `mapstructure:"key_file" yaml:"key_file"`
	AutoGenerate bool     `mapstructure:"auto_generate" yaml:"auto_generate"`
	Hosts        []string `mapstructure:"hosts" yaml:"hosts"`
}

var defaults = map[string]interface{}{
	"server.addr":             ":8080",
	"server.read_timeout":     15 * time.Second,
	"server.write_timeout":    60 * time.Second,
	"server.idle_timeout":     120 * time.Second,
	"server.shutdown_timeout": 30 * time.Second,
	"server.cors_origins":     []string{},
	"server.trusted_proxies":  []string{},

	"database.type":              "sqlite",
	"database.dsn":               "",
	"database.path":              "site.db",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": 5 * time.Minute,

	"auth.api_key":        "",
	"auth.admin_email":    "",
	"auth.admin_password": "",
	"auth.session_ttl":    12 * time.Hour,
	"auth.sweep_interval": 10 * time.Minute,
	"auth.cookie_secure":  true,

	"content.defaults_file": "",
	"content.watch":         true,
	"content.timeout":       2 * time.Second,

	"chat.api_key":     "",
	"chat.base_url":    "",
	"chat.model":       "gpt-4o-mini",
	"chat.max_history": 10,
	"chat.max_tokens":  500,
	"chat.max_retries": 2,
	"chat.timeout":     30 * time.Second,

	"ratelimit.rps":              1.0,
	"ratelimit.burst":            5,
	"ratelimit.cleanup_interval": 5 * time.Minute,
	"ratelimit.max_age":          30 * time.Minute,

	"webhooks.workers":     4,
	"webhooks.queue_size":  256,
	"webhooks.timeout":     10 * time.Second,
	"webhooks.max_retries": 3,

	"logging.level":       "info",
	"logging.json":        false,
	"logging.to_file":     false,
	"logging.max_size_mb": 100,

	"tracing.enabled":      false,
	"tracing.endpoint":     "localhost:4318",
	"tracing.insecure":     true,
	"tracing.service_name": "agencysite",
	"tracing.environment":  "development",
	"tracing.sample_ratio": 1.0,

	"metrics.enabled": true,
	"metrics.addr":    ":9090",

	"tls.enabled":       false,
	"tls.cert_file":     "certs/site.crt",
	"tls.key_file":      "certs/site.key",
	"tls.auto_generate": true,
	"tls.hosts":         []string{},
}

// New returns a viper instance with defaults and environment binding set
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. With an empty path, siteserver.yaml is
// searched in the working directory and /etc/agencysite; a missing file
// is not an error.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("siteserver")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/agencysite")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would fail later at startup
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Type {
	case "memory", "sqlite", "postgres", "postgresql":
	default:
		errs = append(errs, fmt.Errorf("database.type %q is not one of memory, sqlite, postgres", c.Database.Type))
	}
	if (c.Database.Type == "postgres" || c.Database.Type == "postgresql") && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required for postgres"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("ratelimit.rps and ratelimit.burst must be positive"))
	}
	if c.RateLimit.CleanupInterval <= 0 || c.RateLimit.MaxAge <= 0 {
		errs = append(errs, errors.New("ratelimit.cleanup_interval and ratelimit.max_age must be positive"))
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("server.trusted_proxies entry %q is not an IP or CIDR", p))
		}
	}
	if c.Chat.MaxRetries < 0 {
		errs = append(errs, errors.New("chat.max_retries must not be negative"))
	}
	if c.Webhooks.Workers <= 0 || c.Webhooks.QueueSize <= 0 {
		errs = append(errs, errors.New("webhooks.workers and webhooks.queue_size must be positive"))
	}
	if c.Auth.AdminPassword != "" && len(c.Auth.AdminPassword) < 8 {
		errs = append(errs, errors.New("auth.admin_password must be at least 8 characters"))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == c.Server.Addr {
		errs = append(errs, errors.New("metrics.addr must differ from server.addr"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is invalid", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func validProxy(p string) bool {
	p = strings.TrimSpace(p)
	if strings.Contains(p, "/") {
		_, _, err := net.ParseCIDR(p)
		return err == nil
	}
	return net.ParseIP(p) != nil
}

const redacted = "********"

// Redacted returns a copy with secrets masked, for display
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&c.Auth.APIKey)
	mask(&c.Auth.AdminPassword)
	mask(&c.Chat.APIKey)
	if strings.Contains(c.Database.DSN, "password=") || strings.Contains(c.Database.DSN, "@") {
		c.Database.DSN = redacted
	}
	return c
}

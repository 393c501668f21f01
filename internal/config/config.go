// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads warden's settings. Sources are layered lowest to
// highest: built-in defaults, a YAML file, command-line flags, and for
// secrets the environment.
package config

import (
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/warden/internal/token"
)

// Storage backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Notification channel names.
const (
	ChannelLog   = "log"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Config is the full warden configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Store    string         `koanf:"store" jsonschema:"enum=memory,enum=postgres"`
	Database DatabaseConfig `koanf:"database"`
	JWT      JWTConfig      `koanf:"jwt"`
	Reset    ResetConfig    `koanf:"reset"`
	Auth     AuthConfig     `koanf:"auth"`
	Notify   NotifyConfig   `koanf:"notify"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// DatabaseConfig configures the postgres store.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	MaxConns       int32         `koanf:"max_conns"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	ConnectBackoff time.Duration `koanf:"connect_backoff"`
}

// JWTConfig configures token signing.
type JWTConfig struct {
	Secret      string        `koanf:"secret"`
	Algorithm   string        `koanf:"algorithm"`
	Issuer      string        `koanf:"issuer"`
	AccessTTL   time.Duration `koanf:"access_ttl"`
	RememberTTL time.Duration `koanf:"remember_ttl"`
}

// ResetConfig configures the forgot-password flow.
type ResetConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	URL             string        `koanf:"url"`
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`
	MaxInFlight     int           `koanf:"max_in_flight" jsonschema:"minimum=1"`
	PurgeInterval   time.Duration `koanf:"purge_interval"`
}

// AuthConfig configures the request authenticator.
type AuthConfig struct {
	// Exempt replaces the default exemption patterns when non-empty.
	Exempt []string `koanf:"exempt"`
}

// NotifyConfig configures notification channels.
type NotifyConfig struct {
	Channels       []string      `koanf:"channels"`
	ChannelTimeout time.Duration `koanf:"channel_timeout"`
	Email          EmailConfig   `koanf:"email"`
	SMS            SMSConfig     `koanf:"sms"`
}

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port" jsonschema:"minimum=1,maximum=65535"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	Subject  string        `koanf:"subject"`
	TLS      string        `koanf:"tls" jsonschema:"enum=mandatory,enum=opportunistic,enum=none"`
	Timeout  time.Duration `koanf:"timeout"`
}

// SMSConfig configures the SMS provider channel.
type SMSConfig struct {
	BaseURL    string        `koanf:"base_url"`
	AccountSID string        `koanf:"account_sid"`
	AuthToken  string        `koanf:"auth_token"`
	From       string        `koanf:"from"`
	Timeout    time.Duration `koanf:"timeout"`
	Retries    int           `koanf:"retries" jsonschema:"minimum=0"`
}

// secrets are read from the environment and override every other source.
type secrets struct {
	JWTSecret    string `env:"WARDEN_JWT_SECRET"`
	SMTPPassword string `env:"WARDEN_SMTP_PASSWORD"`
	SMSAuthToken string `env:"WARDEN_SMS_AUTH_TOKEN"`
	DatabaseURL  string `env:"DATABASE_URL"`
}

// Defaults returns the built-in configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":                ":8080",
		"http.read_timeout":        "10s",
		"http.write_timeout":       "10s",
		"http.shutdown_timeout":    "15s",
		"metrics.addr":             "127.0.0.1:9100",
		"log.format":               "json",
		"log.level":                "info",
		"store":                    StoreMemory,
		"database.max_conns":       10,
		"database.connect_retries": 5,
		"database.connect_backoff": "500ms",
		"jwt.algorithm":            "HS256",
		"jwt.issuer":               "warden",
		"jwt.access_ttl":           "30m",
		"jwt.remember_ttl":         "720h",
		"reset.ttl":                "15m",
		"reset.url":                "http://localhost:8080/reset-password",
		"reset.dispatch_timeout":   "30s",
		"reset.max_in_flight":      64,
		"reset.purge_interval":     "1h",
		"notify.channels":          []string{ChannelLog},
		"notify.channel_timeout":   "15s",
		"notify.email.port":        587,
		"notify.email.tls":         "mandatory",
		"notify.email.timeout":     "10s",
		"notify.sms.base_url":      "https://api.twilio.com",
		"notify.sms.timeout":       "10s",
		"notify.sms.retries":       2,
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"http-addr":     "http.addr",
	"metrics-addr":  "metrics.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"store":         "store",
	"database-url":  "database.url",
	"jwt-algorithm": "jwt.algorithm",
	"reset-url":     "reset.url",
	"channels":      "notify.channels",
}

// RegisterFlags adds the flags Load understands to fs. Their defaults are
// display-only; unset flags never override the file.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("http-addr", d["http.addr"].(string), "API listen address")
	fs.String("metrics-addr", d["metrics.addr"].(string), "metrics/health listen address (empty = disabled)")
	fs.String("log-format", d["log.format"].(string), "log format (json or text)")
	fs.String("log-level", d["log.level"].(string), "log level (debug, info, warn, error)")
	fs.String("store", d["store"].(string), "user store backend (memory or postgres)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("jwt-algorithm", d["jwt.algorithm"].(string), "token signing algorithm (HS256, HS384, HS512)")
	fs.String("reset-url", d["reset.url"].(string), "base URL of the password reset page")
	fs.StringSlice("channels", d["notify.channels"].([]string), "notification channels (log, email, sms)")
}

// Load builds a Config. path is the YAML file; empty means no file.
// fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}
	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}

	var s secrets
	if err := env.Parse(&s); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}
	cfg.applySecrets(s)
	return &cfg, nil
}

func (c *Config) applySecrets(s secrets) {
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.SMTPPassword != "" {
		c.Notify.Email.Password = s.SMTPPassword
	}
	if s.SMSAuthToken != "" {
		c.Notify.SMS.AuthToken = s.SMSAuthToken
	}
	if s.DatabaseURL != "" && c.Database.URL == "" {
		c.Database.URL = s.DatabaseURL
	}
}

// Validate checks the settings serve needs before it binds any listener.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < token.MinSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("field", "jwt.secret").
			Errorf("jwt secret must be at least %d bytes (set WARDEN_JWT_SECRET)", token.MinSecretLength)
	}
	switch strings.ToUpper(c.JWT.Algorithm) {
	case "HS256", "HS384", "HS512":
	default:
		return oops.Code("CONFIG_INVALID").
			With("field", "jwt.algorithm").
			Errorf("unsupported jwt algorithm %q", c.JWT.Algorithm)
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RememberTTL <= 0 || c.Reset.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("field", "ttl").Errorf("token lifetimes must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("field", "log.format").
			Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").With("field", "http.addr").Errorf("http address is required")
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").
				With("field", "database.url").
				Errorf("database url is required for the postgres store")
		}
	default:
		return oops.Code("CONFIG_INVALID").With("field", "store").Errorf("unknown store %q", c.Store)
	}
	if c.Reset.URL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "reset.url").Errorf("reset url is required")
	}
	if len(c.Notify.Channels) == 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "notify.channels").
			Errorf("at least one notification channel is required")
	}
	for _, ch := range c.Notify.Channels {
		if !slices.Contains([]string{ChannelLog, ChannelEmail, ChannelSMS}, ch) {
			return oops.Code("CONFIG_INVALID").
				With("field", "notify.channels").
				Errorf("unknown notification channel %q", ch)
		}
	}
	return nil
}

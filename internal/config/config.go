// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

// Package config loads tenantry settings from a YAML file overlaid by
// command-line flags.
package config

import (
	"os"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tenantry/tenantry/internal/account"
)

// Config is the complete tenantry configuration.
type Config struct {
	Database      DatabaseConfig      `koanf:"database" json:"database,omitempty"`
	Log           LogConfig           `koanf:"log" json:"log,omitempty"`
	Auth          AuthConfig          `koanf:"auth" json:"auth,omitempty"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability,omitempty"`
}

// DatabaseConfig locates the PostgreSQL database.
type DatabaseConfig struct {
	URL            string `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL (postgres://...)"`
	MaxConns       int32  `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=0"`
	ConnectRetries uint64 `koanf:"connect_retries" json:"connect_retries,omitempty" jsonschema:"minimum=0"`
	AutoMigrate    bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty" jsonschema:"description=Apply pending migrations when serve starts"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
}

// AuthConfig tunes account creation and login.
type AuthConfig struct {
	ReservedUsernames []string      `koanf:"reserved_usernames" json:"reserved_usernames,omitempty" jsonschema:"description=Glob patterns no account may use as its username"`
	LockoutThreshold  int           `koanf:"lockout_threshold" json:"lockout_threshold,omitempty" jsonschema:"minimum=0,description=Consecutive failures before lockout; 0 disables lockout"`
	LockoutDuration   time.Duration `koanf:"lockout_duration" json:"lockout_duration,omitempty" jsonschema:"type=string,description=Go duration such as 15m"`
	InviteTokenBytes  int           `koanf:"invite_token_bytes" json:"invite_token_bytes,omitempty" jsonschema:"minimum=16"`
	Argon2            Argon2Config  `koanf:"argon2" json:"argon2,omitempty"`
}

// Argon2Config holds the argon2id cost parameters.
type Argon2Config struct {
	Time    uint32 `koanf:"time" json:"time,omitempty" jsonschema:"minimum=1"`
	Memory  uint32 `koanf:"memory" json:"memory,omitempty" jsonschema:"minimum=8,description=KiB"`
	Threads uint8  `koanf:"threads" json:"threads,omitempty" jsonschema:"minimum=1"`
}

// ObservabilityConfig configures the metrics and health listener.
type ObservabilityConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Listen address for /metrics and health probes; empty disables it"`
}

// DefaultReservedUsernames are reserved unless the config file replaces them.
var DefaultReservedUsernames = []string{"admin", "administrator", "root", "system", "support", "tenantry*"}

// Default returns the built-in configuration.
func Default() Config {
	argon := account.DefaultArgon2Params()
	return Config{
		Database: DatabaseConfig{ConnectRetries: 5},
		Log:      LogConfig{Level: "info", Format: "json"},
		Auth: AuthConfig{
			ReservedUsernames: slices.Clone(DefaultReservedUsernames),
			LockoutThreshold:  account.DefaultLockoutThreshold,
			LockoutDuration:   account.DefaultLockoutDuration,
			InviteTokenBytes:  32,
			Argon2: Argon2Config{
				Time:    argon.Time,
				Memory:  argon.Memory,
				Threads: argon.Threads,
			},
		},
		Observability: ObservabilityConfig{Addr: "127.0.0.1:9100"},
	}
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"database-url":      "database.url",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"metrics-addr":      "observability.addr",
	"lockout-threshold": "auth.lockout_threshold",
	"lockout-duration":  "auth.lockout_duration",
	"auto-migrate":      "database.auto_migrate",
}

// BindFlags registers the flags Load understands on fs.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a YAML config file (default $XDG_CONFIG_HOME/tenantry/config.yaml when present)")
	fs.String("database-url", d.Database.URL, "PostgreSQL connection URL")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("metrics-addr", d.Observability.Addr, "metrics and health listen address")
	fs.Int("lockout-threshold", d.Auth.LockoutThreshold, "failed logins before lockout (0 disables)")
	fs.Duration("lockout-duration", d.Auth.LockoutDuration, "how long a lockout lasts")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on start")
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then flags the user explicitly set on fs (if non-nil).
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", nil, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	// A configured list replaces the defaults instead of merging into them.
	if k.Exists("auth.reserved_usernames") {
		cfg.Auth.ReservedUsernames = nil
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules the schema cannot express.
func (c *Config) Validate() error {
	invalid := func(key string, value any, msg string) error {
		return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf("%s", msg)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return invalid("log.level", c.Log.Level, "log level must be debug, info, warn or error")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log format must be json or text")
	}
	if c.Auth.LockoutThreshold < 0 {
		return invalid("auth.lockout_threshold", c.Auth.LockoutThreshold, "lockout threshold cannot be negative")
	}
	if c.Auth.LockoutThreshold > 0 && c.Auth.LockoutDuration <= 0 {
		return invalid("auth.lockout_duration", c.Auth.LockoutDuration.String(), "lockout duration must be positive when lockout is enabled")
	}
	if c.Auth.InviteTokenBytes < 16 {
		return invalid("auth.invite_token_bytes", c.Auth.InviteTokenBytes, "invite tokens need at least 16 random bytes")
	}
	if c.Auth.Argon2.Time == 0 || c.Auth.Argon2.Threads == 0 {
		return invalid("auth.argon2", c.Auth.Argon2, "argon2 time and threads must be at least 1")
	}
	if c.Auth.Argon2.Memory < 8*uint32(c.Auth.Argon2.Threads) {
		return invalid("auth.argon2.memory", c.Auth.Argon2.Memory, "argon2 memory must be at least 8 KiB per thread")
	}
	if _, err := account.NewUsernamePolicy(c.Auth.ReservedUsernames...); err != nil {
		return invalid("auth.reserved_usernames", c.Auth.ReservedUsernames, "reserved username pattern: "+err.Error())
	}
	return nil
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Hint("pass --database-url or set database.url in the config file").
			Errorf("database URL is required")
	}
	return nil
}

// Lockout returns the login lockout settings.
func (a AuthConfig) Lockout() account.Lockout {
	return account.Lockout{Threshold: a.LockoutThreshold, Duration: a.LockoutDuration}
}

// UsernamePolicy compiles the reserved username patterns.
func (a AuthConfig) UsernamePolicy() (*account.UsernamePolicy, error) {
	return account.NewUsernamePolicy(a.ReservedUsernames...)
}

// Hasher builds the password hasher for the configured cost.
func (a AuthConfig) Hasher() *account.Argon2idHasher {
	p := account.DefaultArgon2Params()
	p.Time = a.Argon2.Time
	p.Memory = a.Argon2.Memory
	p.Threads = a.Argon2.Threads
	return account.NewArgon2idHasherWithParams(p)
}

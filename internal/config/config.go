package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Issuance   IssuanceConfig   `mapstructure:"issuance"`
	Rideshare  RideshareConfig  `mapstructure:"rideshare"`
	Messaging  MessagingConfig  `mapstructure:"messaging"`
	Export     ExportConfig     `mapstructure:"export"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// IssuanceConfig holds issuing limits
type IssuanceConfig struct {
	Currency       string `mapstructure:"currency"`
	MaxAmountCents int64  `mapstructure:"max_amount_cents"`
}

// RideshareConfig configures the mock Uber client
type RideshareConfig struct {
	Mode            string        `mapstructure:"mode"`
	RejectRefs      []string      `mapstructure:"reject_refs"`
	MaxAttempts     uint          `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	CodeTTL         time.Duration `mapstructure:"code_ttl"`
}

// MessagingConfig configures the mock messaging provider
type MessagingConfig struct {
	FailRecipients []string `mapstructure:"fail_recipients"`
}

// ExportConfig holds export file settings
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	AutoSync         bool          `mapstructure:"auto_sync"`
	SyncPollInterval time.Duration `mapstructure:"sync_poll_interval"`
}

// SeedConfig controls fixture seeding
type SeedConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SimulationConfig holds the simulated outage start state
type SimulationConfig struct {
	Outage bool `mapstructure:"outage"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// EnvPrefix prefixes every environment override, e.g. VOUCHER_SERVER_PORT
const EnvPrefix = "VOUCHER"

// Load reads .env (when present), then the YAML file at configPath, then
// environment overrides. A missing config file is not an error; defaults and
// the environment are enough to run.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports KEY=VALUE pairs from path without overriding variables
// that are already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/vouchers.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("auth.issuer", "voucher-desk")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("issuance.currency", "AUD")
	v.SetDefault("issuance.max_amount_cents", 50000)

	// Mock provider defaults
	v.SetDefault("rideshare.mode", "ok")
	v.SetDefault("rideshare.reject_refs", []string{})
	v.SetDefault("rideshare.max_attempts", 3)
	v.SetDefault("rideshare.initial_interval", 200*time.Millisecond)
	v.SetDefault("rideshare.max_interval", 2*time.Second)
	v.SetDefault("rideshare.code_ttl", 24*time.Hour)
	v.SetDefault("messaging.fail_recipients", []string{})

	v.SetDefault("export.output_dir", "exports")

	v.SetDefault("worker.auto_sync", false)
	v.SetDefault("worker.sync_poll_interval", 30*time.Second)

	v.SetDefault("seed.enabled", true)
	v.SetDefault("simulation.outage", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds secrets that are only ever read from the environment
func bindEnvVars(v *viper.Viper) error {
	if err := v.BindEnv("auth.jwt_secret", "VOUCHER_JWT_SECRET"); err != nil {
		return fmt.Errorf("bind jwt secret: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set VOUCHER_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	if c.Issuance.MaxAmountCents <= 0 {
		return fmt.Errorf("issuance.max_amount_cents must be positive")
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir is required")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format %q is not json or console", c.Logger.Format)
	}
	return nil
}

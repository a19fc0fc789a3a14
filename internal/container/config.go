// Package container provides dependency injection and lifecycle management
// for the voucher desk following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/voucher-desk/internal/infrastructure/external/rideshare"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database  DatabaseConfig
	Auth      AuthConfig
	Issuance  IssuanceConfig
	Rideshare RideshareConfig
	Messaging MessagingConfig
	Storage   StorageConfig
	Server    ServerConfig
	Worker    WorkerConfig
	Seed      SeedConfig

	// SimulateOutage starts the desk with the issuing backend marked down
	SimulateOutage bool
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// IssuanceConfig holds issuing limits.
type IssuanceConfig struct {
	Currency       string
	MaxAmountCents int64
}

// RideshareConfig configures the mock Uber client.
type RideshareConfig struct {
	Mode            string
	RejectRefs      []string
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	CodeTTL         time.Duration
}

// MessagingConfig configures the mock SMS/e-mail provider.
type MessagingConfig struct {
	// FailRecipients always fail delivery
	FailRecipients []string
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ExportDir is the base directory for saved exports
	ExportDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// AutoSync starts the offline queue sync worker
	AutoSync         bool
	SyncPollInterval time.Duration
}

// SeedConfig controls fixture seeding at startup.
type SeedConfig struct {
	Enabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/vouchers.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: AuthConfig{
			Issuer:   "voucher-desk",
			TokenTTL: 12 * time.Hour,
		},
		Issuance: IssuanceConfig{
			Currency:       "AUD",
			MaxAmountCents: 50000,
		},
		Rideshare: RideshareConfig{
			Mode:            rideshare.ModeOK,
			MaxAttempts:     3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			CodeTTL:         24 * time.Hour,
		},
		Storage: StorageConfig{
			ExportDir: "exports",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Worker: WorkerConfig{
			AutoSync:         false,
			SyncPollInterval: 30 * time.Second,
		},
		Seed: SeedConfig{
			Enabled: true,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	if c.Issuance.MaxAmountCents <= 0 {
		return fmt.Errorf("issuance.max_amount_cents must be positive")
	}
	if len(c.Issuance.Currency) != 3 {
		return fmt.Errorf("issuance.currency must be an ISO 4217 code")
	}
	switch c.Rideshare.Mode {
	case rideshare.ModeOK, rideshare.ModeFlaky, rideshare.ModeDown:
	default:
		return fmt.Errorf("rideshare.mode %q is not one of ok, flaky, down", c.Rideshare.Mode)
	}
	if c.Storage.ExportDir == "" {
		return fmt.Errorf("storage.export_dir is required")
	}
	if c.Worker.AutoSync && c.Worker.SyncPollInterval <= 0 {
		return fmt.Errorf("worker.sync_poll_interval must be positive when auto sync is on")
	}
	return nil
}

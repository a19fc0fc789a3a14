package config

import (
	"github.com/garyjia/voucher-desk/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Auth: container.AuthConfig{
			JWTSecret: c.Auth.JWTSecret,
			Issuer:    c.Auth.Issuer,
			TokenTTL:  c.Auth.TokenTTL,
		},
		Issuance: container.IssuanceConfig{
			Currency:       c.Issuance.Currency,
			MaxAmountCents: c.Issuance.MaxAmountCents,
		},
		Rideshare: container.RideshareConfig{
			Mode:            c.Rideshare.Mode,
			RejectRefs:      c.Rideshare.RejectRefs,
			MaxAttempts:     c.Rideshare.MaxAttempts,
			InitialInterval: c.Rideshare.InitialInterval,
			MaxInterval:     c.Rideshare.MaxInterval,
			CodeTTL:         c.Rideshare.CodeTTL,
		},
		Messaging: container.MessagingConfig{
			FailRecipients: c.Messaging.FailRecipients,
		},
		Storage: container.StorageConfig{
			ExportDir: c.Export.OutputDir,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
			Debug:        c.Logger.Level == "debug",
		},
		Worker: container.WorkerConfig{
			AutoSync:         c.Worker.AutoSync,
			SyncPollInterval: c.Worker.SyncPollInterval,
		},
		Seed: container.SeedConfig{
			Enabled: c.Seed.Enabled,
		},
		SimulateOutage: c.Simulation.Outage,
	}
}

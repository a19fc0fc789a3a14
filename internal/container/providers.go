package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/application/service"
	"github.com/garyjia/voucher-desk/internal/application/workflow"
	"github.com/garyjia/voucher-desk/internal/infrastructure/external/messaging"
	"github.com/garyjia/voucher-desk/internal/infrastructure/external/rideshare"
	"github.com/garyjia/voucher-desk/internal/infrastructure/fixtures"
	"github.com/garyjia/voucher-desk/internal/infrastructure/persistence/repository"
	"github.com/garyjia/voucher-desk/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/voucher-desk/internal/infrastructure/storage"
	"github.com/garyjia/voucher-desk/internal/infrastructure/worker"
	"github.com/garyjia/voucher-desk/migrations"
	"github.com/garyjia/voucher-desk/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds the mock provider clients.
type ExternalBundle struct {
	Rideshare *rideshare.Client
	Messenger *messaging.Messenger
}

// ProvideDatabase opens the SQLite database, applies the embedded migrations
// and wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		User:         repository.NewUserRepository(sqlDB, logger),
		Flight:       repository.NewFlightRepository(sqlDB, logger),
		Passenger:    repository.NewPassengerRepository(sqlDB, logger),
		Preset:       repository.NewPresetRepository(sqlDB, logger),
		Issuance:     repository.NewIssuanceRepository(sqlDB, logger),
		Intent:       repository.NewIntentRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
		Audit:        repository.NewAuditRepository(sqlDB, logger),
	}, nil
}

// SeedFixtures loads the embedded fixtures and writes them into empty tables.
func SeedFixtures(ctx context.Context, repos *RepositoryBundle, txManager port.TransactionManager, logger *zap.Logger) (*fixtures.SeedReport, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}

	set, err := fixtures.Load()
	if err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}

	seeder := fixtures.NewSeeder(repos.User, repos.Flight, repos.Passenger, repos.Preset, txManager, logger)
	return seeder.Seed(ctx, set)
}

// ProvideExternalClients creates the mock rideshare and messaging providers.
func ProvideExternalClients(rideCfg *RideshareConfig, msgCfg *MessagingConfig, logger *zap.Logger) (*ExternalBundle, error) {
	if rideCfg == nil || msgCfg == nil {
		return nil, fmt.Errorf("provider config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := rideshare.NewClient(rideshare.Config{
		Mode:            rideCfg.Mode,
		RejectRefs:      rideCfg.RejectRefs,
		MaxAttempts:     rideCfg.MaxAttempts,
		InitialInterval: rideCfg.InitialInterval,
		MaxInterval:     rideCfg.MaxInterval,
		CodeTTL:         rideCfg.CodeTTL,
	}, logger.Named("rideshare"))

	return &ExternalBundle{
		Rideshare: client,
		Messenger: messaging.NewMessenger(msgCfg.FailRecipients, logger.Named("messaging")),
	}, nil
}

// ProvideStorage creates the export file storage.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return storage.NewExportStorage(cfg.ExportDir, logger), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Config     *Config
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Rideshare  port.RideshareProvider
	Messenger  port.MessageSender
	Storage    port.FileStorage
	Logger     *zap.Logger
}

// ProvideServices creates the lifecycle engine and all application services,
// then subscribes the audit and notification handlers. Audit handlers are
// registered first so every event is recorded even when a later handler fails.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Rideshare == nil || deps.Messenger == nil {
		return nil, fmt.Errorf("rideshare and messaging providers are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	cfg := deps.Config
	repos := deps.Repos
	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	engine := workflow.NewEngine(repos.Issuance, repos.Intent, deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher))

	simulation := service.NewSimulationService(cfg.SimulateOutage, deps.Dispatcher, serviceLogger)
	presets := service.NewPresetService(repos.Preset, deps.Dispatcher, cfg.Issuance.MaxAmountCents, serviceLogger)
	issuance := service.NewIssuanceService(
		repos.Flight,
		repos.Passenger,
		repos.Issuance,
		presets,
		deps.Rideshare,
		simulation,
		engine,
		deps.TxManager,
		deps.Dispatcher,
		service.IssuanceConfig{
			Currency:       cfg.Issuance.Currency,
			MaxAmountCents: cfg.Issuance.MaxAmountCents,
		},
		serviceLogger,
	)

	bundle := &ServiceBundle{
		Engine: engine,
		Auth: service.NewAuthService(repos.User, service.AuthConfig{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.Issuer,
			TokenTTL: cfg.Auth.TokenTTL,
		}, serviceLogger),
		Flights:    service.NewFlightService(repos.Flight, repos.Passenger, serviceLogger),
		Presets:    presets,
		Issuance:   issuance,
		Queue:      service.NewQueueService(repos.Intent, issuance, engine, deps.Dispatcher, serviceLogger),
		Export:     service.NewExportService(repos.Issuance, repos.Flight, repos.Passenger, deps.Storage, cfg.Issuance.Currency, serviceLogger),
		Reports:    service.NewReportService(repos.Issuance, repos.Flight, cfg.Issuance.Currency, serviceLogger),
		Notification: service.NewNotificationService(
			repos.Issuance, repos.Passenger, repos.Flight, repos.Notification, deps.Messenger, serviceLogger),
		Audit:      service.NewAuditService(repos.Audit, serviceLogger),
		Simulation: simulation,
	}

	service.RegisterAuditHandlers(deps.Dispatcher, bundle.Audit)
	service.RegisterNotificationHandlers(deps.Dispatcher, bundle.Notification)

	return bundle, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Queue        service.QueueService
	Availability service.Availability
	WorkerCfg    *WorkerConfig
	Logger       *zap.Logger
}

// ProvideWorkers creates the worker manager. The offline queue sync worker is
// only registered when auto sync is enabled.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(deps.Logger)

	if deps.WorkerCfg.AutoSync {
		if deps.Queue == nil {
			return nil, fmt.Errorf("queue service is required for auto sync")
		}
		syncWorker := worker.NewSyncWorker(
			worker.SyncWorkerConfig{PollInterval: deps.WorkerCfg.SyncPollInterval},
			deps.Queue,
			deps.Availability,
			deps.Logger,
		)
		manager.Register(syncWorker)
	}

	return manager, nil
}

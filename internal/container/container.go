package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/application/service"
	"github.com/garyjia/voucher-desk/internal/application/workflow"
	"github.com/garyjia/voucher-desk/internal/infrastructure/external/messaging"
	"github.com/garyjia/voucher-desk/internal/infrastructure/external/rideshare"
	"github.com/garyjia/voucher-desk/internal/infrastructure/fixtures"
	"github.com/garyjia/voucher-desk/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/voucher-desk/internal/infrastructure/worker"
	httpapi "github.com/garyjia/voucher-desk/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	seedReport   *fixtures.SeedReport

	// Infrastructure - External
	rideshare *rideshare.Client
	messenger *messaging.Messenger

	// Infrastructure - Storage
	fileStorage port.FileStorage

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	User         port.UserRepository
	Flight       port.FlightRepository
	Passenger    port.PassengerRepository
	Preset       port.PresetRepository
	Issuance     port.IssuanceRepository
	Intent       port.IntentRepository
	Notification port.NotificationRepository
	Audit        port.AuditRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Engine       workflow.LifecycleEngine
	Auth         service.AuthService
	Flights      service.FlightService
	Presets      service.PresetService
	Issuance     service.IssuanceService
	Queue        service.QueueService
	Export       service.ExportService
	Reports      service.ReportService
	Notification service.NotificationService
	Audit        service.AuditService
	Simulation   service.SimulationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Fixture seeding
// 3. External providers (mock Uber, mock messaging)
// 4. Storage
// 5. Event dispatcher
// 6. Application services and event handlers
// 7. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initFixtures(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to seed fixtures: %w", err)
	}

	if err := c.initExternalClients(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	if err := c.initStorage(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized")

	if err := c.initDispatcher(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	if err := c.initServices(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkers(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if c.sqlDB == nil {
		set("database", false, "not initialized")
	} else if err := c.sqlDB.PingContext(ctx); err != nil {
		set("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		set("database", true, "")
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", len(c.workers.Status())))
	}

	if c.dispatcher == nil {
		set("dispatcher", false, "not initialized")
	} else {
		st := c.dispatcher.Stats()
		set("dispatcher", true, fmt.Sprintf("dispatched: %d, in flight: %d, handler errors: %d",
			st.Dispatched, st.InFlight, st.HandlerErrors))
	}

	if c.repositories == nil {
		set("repositories", false, "not initialized")
	} else {
		set("repositories", true, "")
	}

	if c.services != nil && c.services.Queue != nil {
		pending, err := c.services.Queue.Pending(ctx)
		if err != nil {
			set("offline_queue", false, err.Error())
		} else {
			set("offline_queue", true, fmt.Sprintf("pending intents: %d", pending))
		}
	}

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) closeDatabase() {
	if c.sqlDB != nil {
		_ = c.sqlDB.Close()
		c.sqlDB = nil
	}
}

func (c *Container) initFixtures() error {
	if !c.config.Seed.Enabled {
		c.logger.Info("Fixture seeding disabled")
		return nil
	}

	report, err := SeedFixtures(c.ctx, c.repositories, c.db, c.logger)
	if err != nil {
		return err
	}
	c.seedReport = report
	c.logger.Info("Fixtures seeded",
		zap.Int("users", report.Users),
		zap.Int("flights", report.Flights),
		zap.Int("passengers", report.Passengers),
		zap.Int("presets", report.Presets))
	return nil
}

func (c *Container) initExternalClients() error {
	bundle, err := ProvideExternalClients(&c.config.Rideshare, &c.config.Messaging, c.logger)
	if err != nil {
		return err
	}

	c.rideshare = bundle.Rideshare
	c.messenger = bundle.Messenger
	return nil
}

func (c *Container) initStorage() error {
	fileStorage, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}

	c.fileStorage = fileStorage
	return nil
}

func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Config:     c.config,
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Rideshare:  c.rideshare,
		Messenger:  c.messenger,
		Storage:    c.fileStorage,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Queue:        c.services.Queue,
		Availability: c.services.Simulation,
		WorkerCfg:    &c.config.Worker,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// SeedReport returns what fixture seeding wrote at startup, nil when disabled.
func (c *Container) SeedReport() *fixtures.SeedReport {
	return c.seedReport
}

// Rideshare returns the mock Uber client.
func (c *Container) Rideshare() *rideshare.Client {
	return c.rideshare
}

// Messenger returns the mock messaging provider.
func (c *Container) Messenger() *messaging.Messenger {
	return c.messenger
}

// FileStorage returns the export storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns the application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the root logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container configuration.
func (c *Container) Config() *Config {
	return c.config
}

// ServiceLogger adapts the root logger to the key-value logger interface
// used by services and the HTTP layer.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// HTTPServices bundles the services for the HTTP adapter.
func (c *Container) HTTPServices() httpapi.Services {
	s := c.services
	return httpapi.Services{
		Auth:          s.Auth,
		Flights:       s.Flights,
		Presets:       s.Presets,
		Issuance:      s.Issuance,
		Queue:         s.Queue,
		Export:        s.Export,
		Reports:       s.Reports,
		Notifications: s.Notification,
		Audit:         s.Audit,
		Simulation:    s.Simulation,
		Health: func(ctx context.Context) (bool, interface{}) {
			h := c.Health(ctx)
			return h.Overall, h.Components
		},
	}
}

// HTTPServerConfig returns the HTTP adapter settings.
func (c *Container) HTTPServerConfig() httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
		Debug:        c.config.Server.Debug,
	}
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// Package http provides the HTTP adapter for the voucher desk.
// This is a thin layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/voucher-desk/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Debug switches gin to debug mode
	Debug bool
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// HealthFunc reports component health for GET /health
type HealthFunc func(ctx context.Context) (healthy bool, detail interface{})

// Services bundles the application services the API exposes
type Services struct {
	Auth          service.AuthService
	Flights       service.FlightService
	Presets       service.PresetService
	Issuance      service.IssuanceService
	Queue         service.QueueService
	Export        service.ExportService
	Reports       service.ReportService
	Notifications service.NotificationService
	Audit         service.AuditService
	Simulation    service.SimulationService
	Health        HealthFunc
}

func (s Services) validate() error {
	switch {
	case s.Auth == nil:
		return errors.New("auth service is required")
	case s.Flights == nil:
		return errors.New("flight service is required")
	case s.Presets == nil:
		return errors.New("preset service is required")
	case s.Issuance == nil:
		return errors.New("issuance service is required")
	case s.Queue == nil:
		return errors.New("queue service is required")
	case s.Export == nil:
		return errors.New("export service is required")
	case s.Reports == nil:
		return errors.New("report service is required")
	case s.Notifications == nil:
		return errors.New("notification service is required")
	case s.Audit == nil:
		return errors.New("audit service is required")
	case s.Simulation == nil:
		return errors.New("simulation service is required")
	}
	return nil
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) (*Server, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server, nil
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		kv := []interface{}{
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		}
		if claims, ok := claimsFrom(c); ok {
			kv = append(kv, "user", claims.Username())
		}
		s.logger.Info("HTTP request", kv...)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	api.POST("/auth/login", h.Login)

	authed := api.Group("", authMiddleware(s.services.Auth))
	{
		authed.GET("/me", h.Me)

		authed.GET("/flights", h.ListFlights)
		authed.GET("/flights/:id", h.GetFlight)
		authed.GET("/flights/:id/passengers", h.ListPassengers)

		authed.GET("/presets", h.ListPresets)
		authed.PUT("/presets/:id", requireRole(roleAdmin...), h.UpdatePreset)

		authed.POST("/issuances/duplicates", requireRole(rolesIssuing...), h.CheckDuplicates)
		authed.POST("/issuances/batch", requireRole(rolesIssuing...), h.IssueBatch)
		authed.GET("/issuances", h.ListIssuances)
		authed.GET("/issuances/:id", h.GetIssuance)
		authed.GET("/issuances/:id/notifications", h.ListNotifications)
		authed.POST("/issuances/:id/void", requireRole(rolesVoiding...), h.VoidIssuance)

		authed.GET("/exports/issuances.csv", requireRole(rolesExporting...), h.ExportCSV)
		authed.GET("/exports/issuances.xlsx", requireRole(rolesExporting...), h.ExportXLSX)
		authed.GET("/reports/summary", requireRole(rolesReporting...), h.ReportSummary)

		intents := authed.Group("/intents", requireRole(rolesIssuing...))
		intents.POST("", h.EnqueueIntent)
		intents.GET("", h.ListIntents)
		intents.POST("/sync", h.SyncIntents)
		intents.POST("/:id/retry", h.RetryIntent)
		intents.DELETE("/:id", h.DiscardIntent)

		admin := authed.Group("/admin", requireRole(roleAdmin...))
		admin.GET("/audit", h.ListAudit)
		admin.GET("/outage", h.GetOutage)
		admin.POST("/outage", h.SetOutage)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

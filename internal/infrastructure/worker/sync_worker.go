package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/voucher-desk/internal/application/service"
)

// QueueSyncer is the part of the offline queue the sync worker drives
type QueueSyncer interface {
	Pending(ctx context.Context) (int, error)
	SyncNow(ctx context.Context) (*service.SyncReport, error)
}

// SyncWorkerConfig holds configuration for the sync worker
type SyncWorkerConfig struct {
	PollInterval time.Duration
}

// DefaultSyncWorkerConfig returns default configuration
func DefaultSyncWorkerConfig() SyncWorkerConfig {
	return SyncWorkerConfig{PollInterval: 30 * time.Second}
}

// SyncWorker replays the offline queue on a fixed interval. Ticks are skipped
// while the issuing backend is in simulated outage.
type SyncWorker struct {
	config       SyncWorkerConfig
	queue        QueueSyncer
	availability service.Availability
	logger       *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	lastRun   time.Time
	runs      int
	synced    int
	failed    int
	lastError error
}

// NewSyncWorker creates a new sync worker. availability may be nil.
func NewSyncWorker(config SyncWorkerConfig, queue QueueSyncer, availability service.Availability, logger *zap.Logger) *SyncWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncWorkerConfig().PollInterval
	}
	return &SyncWorker{
		config:       config,
		queue:        queue,
		availability: availability,
		logger:       logger,
	}
}

// Start begins the polling loop
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("sync worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("SyncWorker started", zap.Duration("poll_interval", w.config.PollInterval))
	go w.pollLoop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sync to finish
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.RLock()
	w.logger.Info("SyncWorker stopped",
		zap.Int("runs", w.runs),
		zap.Int("synced", w.synced),
		zap.Int("failed", w.failed))
	w.mu.RUnlock()
	return nil
}

// Name returns the worker name for identification
func (w *SyncWorker) Name() string {
	return "SyncWorker"
}

// Status implements StatusReporter
func (w *SyncWorker) Status() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := map[string]interface{}{
		"running": w.isRunning,
		"runs":    w.runs,
		"synced":  w.synced,
		"failed":  w.failed,
	}
	if !w.lastRun.IsZero() {
		status["last_run"] = w.lastRun.UTC().Format(time.RFC3339)
	}
	if w.lastError != nil {
		status["last_error"] = w.lastError.Error()
	}
	return status
}

func (w *SyncWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one sync if anything is pending
func (w *SyncWorker) tick(ctx context.Context) {
	if w.availability != nil && w.availability.Outage() {
		w.logger.Debug("Skipping sync during outage")
		return
	}

	pending, err := w.queue.Pending(ctx)
	if err != nil {
		w.recordError(err)
		return
	}
	if pending == 0 {
		return
	}

	report, err := w.queue.SyncNow(ctx)
	if err != nil {
		w.recordError(err)
		return
	}

	w.mu.Lock()
	w.runs++
	w.synced += report.Synced
	w.failed += report.Failed
	w.lastRun = time.Now()
	w.lastError = nil
	w.mu.Unlock()
}

func (w *SyncWorker) recordError(err error) {
	w.logger.Error("Background sync failed", zap.Error(err))
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
}

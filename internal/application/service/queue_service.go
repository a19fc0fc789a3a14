package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/application/port"
	appwf "github.com/garyjia/voucher-desk/internal/application/workflow"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/domain/event"
	domainwf "github.com/garyjia/voucher-desk/internal/domain/workflow"
)

// SyncReport summarises one SyncNow run
type SyncReport struct {
	Synced  int      `json:"synced"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// PostingStaleAfter is how long an intent may stay POSTING before a sync
// treats its replay as abandoned and takes it over
const PostingStaleAfter = 2 * time.Minute

// QueueService is the offline issuance queue.
// Intents are replayed sequentially in creation order.
type QueueService interface {
	Enqueue(ctx context.Context, intentID string, payload entity.BatchRequest, actor string) (*entity.IssuanceIntent, error)
	ListIntents(ctx context.Context, status string) ([]*entity.IssuanceIntent, error)
	SyncNow(ctx context.Context) (*SyncReport, error)
	Retry(ctx context.Context, id string) (*entity.IssuanceIntent, error)
	Discard(ctx context.Context, id, actor string) error
	// Pending returns the number of intents SyncNow would pick up
	Pending(ctx context.Context) (int, error)
}

type queueServiceImpl struct {
	intentRepo port.IntentRepository
	issuer     BatchIssuer
	engine     appwf.LifecycleEngine
	dispatcher dispatcher.Dispatcher
	group      singleflight.Group
	now        func() time.Time
	logger     Logger
}

// NewQueueService creates a new QueueService
func NewQueueService(
	intentRepo port.IntentRepository,
	issuer BatchIssuer,
	engine appwf.LifecycleEngine,
	d dispatcher.Dispatcher,
	logger Logger,
) QueueService {
	return &queueServiceImpl{
		intentRepo: intentRepo,
		issuer:     issuer,
		engine:     engine,
		dispatcher: d,
		now:        time.Now,
		logger:     logger,
	}
}

// Enqueue stores a QUEUED intent. Enqueueing an existing id returns the stored
// intent unchanged.
func (s *queueServiceImpl) Enqueue(ctx context.Context, intentID string, payload entity.BatchRequest, actor string) (*entity.IssuanceIntent, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		intentID = uuid.NewString()
	} else if _, err := uuid.Parse(intentID); err != nil {
		return nil, invalidf("intent id must be a UUID")
	}

	existing, err := s.intentRepo.GetByID(ctx, intentID)
	if err == nil {
		s.logger.Info("Intent already queued", "intent_id", intentID, "status", existing.Status)
		return existing, nil
	}
	if !errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("get intent: %w", err)
	}

	payload.IntentID = intentID
	intent := &entity.IssuanceIntent{
		ID:        intentID,
		Payload:   payload,
		Status:    entity.IntentStatusQueued,
		CreatedBy: actor,
	}

	if err := s.intentRepo.Create(ctx, intent); err != nil {
		// Lost a race with a concurrent enqueue of the same id
		if errors.Is(err, port.ErrIntentExists) {
			return s.intentRepo.GetByID(ctx, intentID)
		}
		s.logger.Error("Failed to enqueue intent", "error", err, "intent_id", intentID)
		return nil, fmt.Errorf("create intent: %w", err)
	}

	s.logger.Info("Intent queued", "intent_id", intentID, "flight_id", payload.FlightID, "actor", actor)
	if s.dispatcher != nil {
		_ = s.dispatcher.Dispatch(ctx, event.NewEvent(event.TypeIntentQueued, intentID, actor, map[string]interface{}{
			"flight_id":  payload.FlightID,
			"passengers": len(payload.PassengerIDs),
			"vouchers":   len(payload.Vouchers),
		}))
	}
	return intent, nil
}

func (s *queueServiceImpl) ListIntents(ctx context.Context, status string) ([]*entity.IssuanceIntent, error) {
	switch status {
	case "", entity.IntentStatusQueued, entity.IntentStatusPosting, entity.IntentStatusSynced, entity.IntentStatusFailed:
	default:
		return nil, invalidf("unknown intent status %q", status)
	}
	intents, err := s.intentRepo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	if intents == nil {
		intents = []*entity.IssuanceIntent{}
	}
	return intents, nil
}

func (s *queueServiceImpl) Pending(ctx context.Context) (int, error) {
	intents, err := s.intentRepo.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list intents: %w", err)
	}
	now := s.now()
	n := 0
	for _, i := range intents {
		if due(i, now) {
			n++
		}
	}
	return n, nil
}

// due reports whether a sync should replay the intent now. A POSTING intent
// is only due once its replay has gone stale.
func due(intent *entity.IssuanceIntent, now time.Time) bool {
	if !intent.IsReplayable() {
		return false
	}
	if intent.Status == entity.IntentStatusPosting {
		return now.Sub(intent.UpdatedAt) >= PostingStaleAfter
	}
	return true
}

// SyncNow replays every replayable intent. Concurrent callers share one run.
func (s *queueServiceImpl) SyncNow(ctx context.Context) (*SyncReport, error) {
	v, err, shared := s.group.Do("sync", func() (interface{}, error) {
		return s.syncAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Info("SyncNow joined an in-flight run")
	}
	return v.(*SyncReport), nil
}

func (s *queueServiceImpl) syncAll(ctx context.Context) (*SyncReport, error) {
	intents, err := s.intentRepo.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}

	now := s.now()
	report := &SyncReport{}
	for _, intent := range intents {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !due(intent, now) {
			report.Skipped++
			continue
		}
		err := s.replay(ctx, intent)
		if errors.Is(err, port.ErrConcurrentUpdate) {
			// A concurrent Retry claimed it first
			report.Skipped++
			continue
		}
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", intent.ID, err))
			continue
		}
		report.Synced++
	}

	s.logger.Info("Offline queue synced",
		"synced", report.Synced,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

// Retry replays a single QUEUED, FAILED or stale POSTING intent
func (s *queueServiceImpl) Retry(ctx context.Context, id string) (*entity.IssuanceIntent, error) {
	intent, err := s.intentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.engine.CanFire(intent, domainwf.TriggerSync) {
		return nil, fmt.Errorf("%w: intent %s is %s", ErrIntentConflict, id, intent.Status)
	}
	if !due(intent, s.now()) {
		return nil, fmt.Errorf("%w: intent %s is being replayed", ErrIntentConflict, id)
	}

	// A replay failure is recorded on the intent, not returned
	if err := s.replay(ctx, intent); errors.Is(err, port.ErrConcurrentUpdate) {
		return nil, fmt.Errorf("%w: intent %s is being replayed", ErrIntentConflict, id)
	}
	return intent, nil
}

// Discard removes a QUEUED or FAILED intent
func (s *queueServiceImpl) Discard(ctx context.Context, id, actor string) error {
	intent, err := s.intentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if intent.Status != entity.IntentStatusQueued && intent.Status != entity.IntentStatusFailed {
		return fmt.Errorf("%w: intent %s is %s", ErrIntentConflict, id, intent.Status)
	}

	// A sync may claim the intent between the read and the delete
	err = s.intentRepo.Delete(ctx, id, entity.IntentStatusQueued, entity.IntentStatusFailed)
	if errors.Is(err, port.ErrConcurrentUpdate) {
		return fmt.Errorf("%w: intent %s changed while discarding", ErrIntentConflict, id)
	}
	if err != nil {
		return fmt.Errorf("delete intent: %w", err)
	}

	s.logger.Info("Intent discarded", "intent_id", id, "actor", actor)
	if s.dispatcher != nil {
		_ = s.dispatcher.Dispatch(ctx, event.NewEvent(event.TypeIntentDiscard, id, actor, map[string]interface{}{
			"status":   intent.Status,
			"attempts": intent.Attempts,
		}))
	}
	return nil
}

// replay claims one intent by moving it to POSTING, then walks it to SYNCED
// or FAILED. A lost claim returns port.ErrConcurrentUpdate and issues nothing.
// Any other returned error is the issuing error, already recorded on the intent.
func (s *queueServiceImpl) replay(ctx context.Context, intent *entity.IssuanceIntent) error {
	if err := s.engine.AdvanceIntent(ctx, intent, domainwf.TriggerSync, nil); err != nil {
		if errors.Is(err, port.ErrConcurrentUpdate) {
			s.logger.Info("Intent claimed by another replay", "intent_id", intent.ID)
		} else {
			s.logger.Error("Failed to mark intent posting", "error", err, "intent_id", intent.ID)
		}
		return err
	}

	payload := intent.Payload
	payload.IntentID = intent.ID

	result, issueErr := s.issuer.IssueBatch(ctx, &payload, intent.CreatedBy)
	if issueErr != nil {
		s.logger.Error("Intent replay failed", "error", issueErr, "intent_id", intent.ID, "attempt", intent.Attempts+1)
		err := s.engine.AdvanceIntent(ctx, intent, domainwf.TriggerFail, func(i *entity.IssuanceIntent) {
			i.Attempts++
			i.LastError = issueErr.Error()
		})
		if err != nil {
			s.logger.Error("Failed to mark intent failed", "error", err, "intent_id", intent.ID)
		}
		return issueErr
	}

	ids := make([]int64, 0, len(result.Issuances))
	for _, iss := range result.Issuances {
		ids = append(ids, iss.ID)
	}
	return s.engine.AdvanceIntent(ctx, intent, domainwf.TriggerSucceed, func(i *entity.IssuanceIntent) {
		i.Attempts++
		i.LastError = ""
		i.IssuanceIDs = ids
	})
}

package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/domain/event"
	domainwf "github.com/garyjia/voucher-desk/internal/domain/workflow"
)

// engineImpl is the concrete implementation of LifecycleEngine
type engineImpl struct {
	issuanceRepo port.IssuanceRepository
	intentRepo   port.IntentRepository
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	now          func() time.Time
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(
	issuanceRepo port.IssuanceRepository,
	intentRepo port.IntentRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) LifecycleEngine {
	e := &engineImpl{
		issuanceRepo: issuanceRepo,
		intentRepo:   intentRepo,
		txManager:    txManager,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// VoidIssuance moves an issuance to VOIDED inside a transaction
func (e *engineImpl) VoidIssuance(ctx context.Context, id int64, reason, actor string) (*entity.Issuance, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("void reason is required")
	}

	var voided *entity.Issuance
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		iss, err := e.issuanceRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}

		machine, err := domainwf.NewIssuanceMachine(iss.Status)
		if err != nil {
			return err
		}
		previous := iss.Status
		if _, err := domainwf.Transition(txCtx, machine, domainwf.TriggerVoid); err != nil {
			return fmt.Errorf("void issuance %d from %s: %w", id, previous, err)
		}

		at := e.now()
		if err := e.issuanceRepo.Void(txCtx, id, reason, actor, at); err != nil {
			return err
		}

		iss.Status = machine.State().String()
		iss.VoidReason = reason
		iss.VoidedBy = actor
		iss.VoidedAt = &at
		iss.UpdatedAt = at
		voided = iss
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, event.NewEvent(event.TypeIssuanceVoided, strconv.FormatInt(id, 10), actor, map[string]interface{}{
		"reason":       reason,
		"voucher_type": voided.VoucherType,
		"amount_cents": voided.AmountCents,
	}))

	return voided, nil
}

// AdvanceIntent fires trigger and persists the intent
func (e *engineImpl) AdvanceIntent(ctx context.Context, intent *entity.IssuanceIntent, trigger domainwf.Trigger, mutate func(*entity.IssuanceIntent)) error {
	machine, err := domainwf.NewIntentMachine(intent.Status)
	if err != nil {
		return err
	}

	previous := intent.Status
	next, err := domainwf.Transition(ctx, machine, trigger)
	if err != nil {
		return fmt.Errorf("intent %s %s from %s: %w", intent.ID, trigger, previous, err)
	}

	updated := *intent
	updated.Status = next
	if mutate != nil {
		mutate(&updated)
	}
	if next == entity.IntentStatusSynced && updated.SyncedAt == nil {
		at := e.now()
		updated.SyncedAt = &at
	}

	// Another replay that moved the intent first wins
	if err := e.intentRepo.Update(ctx, &updated, previous, intent.UpdatedAt); err != nil {
		return fmt.Errorf("failed to persist intent %s: %w", intent.ID, err)
	}
	*intent = updated

	switch next {
	case entity.IntentStatusSynced:
		e.emit(ctx, event.NewEvent(event.TypeIntentSynced, intent.ID, intent.CreatedBy, map[string]interface{}{
			"issuance_count": len(intent.IssuanceIDs),
			"attempts":       intent.Attempts,
		}))
	case entity.IntentStatusFailed:
		e.emit(ctx, event.NewEvent(event.TypeIntentFailed, intent.ID, intent.CreatedBy, map[string]interface{}{
			"error":    intent.LastError,
			"attempts": intent.Attempts,
		}))
	}

	return nil
}

// CanFire reports whether the intent may take trigger
func (e *engineImpl) CanFire(intent *entity.IssuanceIntent, trigger domainwf.Trigger) bool {
	machine, err := domainwf.NewIntentMachine(intent.Status)
	if err != nil {
		return false
	}
	return machine.CanFire(trigger)
}

// emit dispatches synchronously; handler failures never undo a committed transition
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	_ = e.dispatcher.Dispatch(ctx, evt)
}

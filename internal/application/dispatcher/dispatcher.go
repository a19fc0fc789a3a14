package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/voucher-desk/internal/domain/event"
)

// ErrClosed is returned by Dispatch after Close
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher routes domain events (issuances, presets, offline intents) to
// the audit recorder and the passenger notifier.
//
// Inline handlers run inside Dispatch in registration order and the first
// error stops the chain. Background handlers run after the inline chain on
// their own goroutine, so a slow provider never holds up the caller.
type Dispatcher interface {
	Subscribe(eventType event.Type, name string, handler Handler)
	SubscribeBackground(eventType event.Type, name string, handler Handler)
	Dispatch(ctx context.Context, evt *event.Event) error
	Stats() Stats
	// Close rejects new events and waits for background handlers
	Close() error
}

// Stats is a snapshot of dispatcher activity
type Stats struct {
	Dispatched    int64 `json:"dispatched"`
	HandlerErrors int64 `json:"handler_errors"`
	InFlight      int64 `json:"in_flight"`
	Subscriptions int   `json:"subscriptions"`
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu         sync.RWMutex
	inline     map[event.Type][]subscription
	background map[event.Type][]subscription
	logger     Logger

	wg            sync.WaitGroup
	closed        atomic.Bool
	dispatched    atomic.Int64
	handlerErrors atomic.Int64
	inFlight      atomic.Int64
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		inline:     make(map[event.Type][]subscription),
		background: make(map[event.Type][]subscription),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.add(d.inline, eventType, name, handler)
}

func (d *eventDispatcher) SubscribeBackground(eventType event.Type, name string, handler Handler) {
	d.add(d.background, eventType, name, handler)
}

func (d *eventDispatcher) add(m map[event.Type][]subscription, eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	m[eventType] = append(m[eventType], subscription{name: name, handler: handler})
	d.mu.Unlock()

	d.info("Handler registered", "event_type", eventType, "handler_name", name)
}

// Dispatch runs the inline chain, then hands the event to background handlers.
// Background handlers get a context that outlives the caller's request.
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	d.mu.RLock()
	inline := d.inline[evt.Type]
	background := d.background[evt.Type]
	d.mu.RUnlock()

	d.dispatched.Add(1)
	d.info("Dispatching event",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"subject_id", evt.SubjectID,
		"actor", evt.Actor,
	)

	for _, sub := range inline {
		if err := d.run(ctx, evt, sub); err != nil {
			return fmt.Errorf("handler %s failed: %w", sub.name, err)
		}
	}

	if len(background) == 0 {
		return nil
	}
	bgCtx := context.WithoutCancel(ctx)
	// Close flips the flag under the write lock, so no Add races its Wait
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		return ErrClosed
	}
	for _, sub := range background {
		d.wg.Add(1)
		d.inFlight.Add(1)
		go func(sub subscription) {
			defer d.wg.Done()
			defer d.inFlight.Add(-1)
			_ = d.run(bgCtx, evt, sub)
		}(sub)
	}
	return nil
}

func (d *eventDispatcher) Stats() Stats {
	d.mu.RLock()
	subs := 0
	for _, s := range d.inline {
		subs += len(s)
	}
	for _, s := range d.background {
		subs += len(s)
	}
	d.mu.RUnlock()

	return Stats{
		Dispatched:    d.dispatched.Load(),
		HandlerErrors: d.handlerErrors.Load(),
		InFlight:      d.inFlight.Load(),
		Subscriptions: subs,
	}
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	swapped := d.closed.CompareAndSwap(false, true)
	d.mu.Unlock()
	if !swapped {
		return fmt.Errorf("dispatcher already closed")
	}
	d.wg.Wait()
	d.info("Dispatcher closed", "dispatched", d.dispatched.Load())
	return nil
}

// run executes one handler and converts a panic into an error
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			d.handlerErrors.Add(1)
			if d.logger != nil {
				d.logger.Error("Handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", sub.name,
					"error", err,
				)
			}
		}
	}()
	return sub.handler(ctx, evt)
}

func (d *eventDispatcher) info(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

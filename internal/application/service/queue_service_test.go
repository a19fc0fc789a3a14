package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/domain/event"
)

const intentA = "0b6f2a51-6a43-4b8e-9d0e-52a8f0a4c001"

func TestQueueService_Enqueue(t *testing.T) {
	ctx := context.Background()
	d := newDesk()

	intent, err := d.queue.Enqueue(ctx, "", *mealBatch(1), "agent.kim")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := uuid.Parse(intent.ID); err != nil {
		t.Errorf("generated id %q is not a UUID", intent.ID)
	}
	if intent.Status != entity.IntentStatusQueued || intent.Payload.IntentID != intent.ID || intent.CreatedBy != "agent.kim" {
		t.Errorf("intent = %+v", intent)
	}
	if n := d.dispatcher.count(event.TypeIntentQueued); n != 1 {
		t.Errorf("queued events = %d, want 1", n)
	}
}

func TestQueueService_Enqueue_SameIDIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := newDesk()

	first, err := d.queue.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	second, err := d.queue.Enqueue(ctx, intentA, *mealBatch(1, 2), "agent.kim")
	if err != nil {
		t.Fatalf("second Enqueue() error = %v", err)
	}
	if second.ID != first.ID || len(second.Payload.PassengerIDs) != 1 {
		t.Errorf("second Enqueue() = %+v, want stored intent", second)
	}
	if len(d.intentRepo.intents) != 1 {
		t.Errorf("stored intents = %d, want 1", len(d.intentRepo.intents))
	}
	if n := d.dispatcher.count(event.TypeIntentQueued); n != 1 {
		t.Errorf("queued events = %d, want 1", n)
	}
}

func TestQueueService_Enqueue_LostRace(t *testing.T) {
	d := newDesk()
	d.intentRepo.createFunc = func(ctx context.Context, intent *entity.IssuanceIntent) error {
		winner := *intent
		winner.CreatedBy = "agent.other"
		d.intentRepo.intents = append(d.intentRepo.intents, &winner)
		return port.ErrIntentExists
	}

	got, err := d.queue.Enqueue(context.Background(), intentA, *mealBatch(1), "agent.kim")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got.CreatedBy != "agent.other" {
		t.Errorf("Enqueue() returned %q's intent, want the stored one", got.CreatedBy)
	}
}

func TestQueueService_Enqueue_RejectsNonUUID(t *testing.T) {
	d := newDesk()
	if _, err := d.queue.Enqueue(context.Background(), "offline-1", *mealBatch(1), "agent.kim"); !errors.Is(err, ErrValidation) {
		t.Errorf("Enqueue() error = %v, want ErrValidation", err)
	}
}

func TestQueueService_SyncNow(t *testing.T) {
	ctx := context.Background()
	d := newDesk()

	a, _ := d.queue.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")
	b, _ := d.queue.Enqueue(ctx, "", *mealBatch(2), "agent.kim")

	report, err := d.queue.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report.Synced != 2 || report.Failed != 0 || report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}

	for _, id := range []string{a.ID, b.ID} {
		intent, err := d.intentRepo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%s) error = %v", id, err)
		}
		if intent.Status != entity.IntentStatusSynced || intent.Attempts != 1 || intent.SyncedAt == nil || len(intent.IssuanceIDs) != 1 {
			t.Errorf("intent %s = %+v", id, intent)
		}
		iss, _ := d.issuanceRepo.GetByID(ctx, intent.IssuanceIDs[0])
		if iss.IntentID != id {
			t.Errorf("issuance intent id = %q, want %q", iss.IntentID, id)
		}
	}
	if n := d.dispatcher.count(event.TypeIntentSynced); n != 2 {
		t.Errorf("synced events = %d, want 2", n)
	}

	again, err := d.queue.SyncNow(ctx)
	if err != nil {
		t.Fatalf("second SyncNow() error = %v", err)
	}
	if again.Synced != 0 || again.Skipped != 2 {
		t.Errorf("second report = %+v", again)
	}
}

func TestQueueService_SyncNow_OutageThenRecovery(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	d.availability.outage = true
	_, _ = d.queue.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")

	report, err := d.queue.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report.Failed != 1 || len(report.Errors) != 1 {
		t.Errorf("report = %+v", report)
	}
	intent, _ := d.intentRepo.GetByID(ctx, intentA)
	if intent.Status != entity.IntentStatusFailed || intent.Attempts != 1 || !strings.Contains(intent.LastError, "service unavailable") {
		t.Errorf("intent after outage = %+v", intent)
	}
	if pending, _ := d.queue.Pending(ctx); pending != 1 {
		t.Errorf("Pending() = %d, want 1", pending)
	}

	d.availability.outage = false
	report, err = d.queue.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report.Synced != 1 {
		t.Errorf("report = %+v", report)
	}
	intent, _ = d.intentRepo.GetByID(ctx, intentA)
	if intent.Status != entity.IntentStatusSynced || intent.Attempts != 2 || intent.LastError != "" {
		t.Errorf("intent after recovery = %+v", intent)
	}
}

func TestQueueService_SyncNow_DoesNotReissue(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	_, _ = d.queue.Enqueue(ctx, intentA, *mealBatch(1, 2), "agent.kim")

	// The batch reached the backend but the intent was never marked synced
	req := mealBatch(1, 2)
	req.IntentID = intentA
	if _, err := d.issuance.IssueBatch(ctx, req, "agent.kim"); err != nil {
		t.Fatalf("IssueBatch() error = %v", err)
	}

	report, err := d.queue.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report.Synced != 1 {
		t.Errorf("report = %+v", report)
	}
	if got := len(d.issuanceRepo.issuances); got != 2 {
		t.Errorf("issuances = %d, want 2", got)
	}
	intent, _ := d.intentRepo.GetByID(ctx, intentA)
	if len(intent.IssuanceIDs) != 2 {
		t.Errorf("intent issuance ids = %v", intent.IssuanceIDs)
	}
}

func TestQueueService_Retry(t *testing.T) {
	ctx := context.Background()
	d := newDesk()

	if _, err := d.queue.Retry(ctx, intentA); !errors.Is(err, ErrNotFound) {
		t.Errorf("Retry() unknown error = %v, want ErrNotFound", err)
	}

	d.availability.outage = true
	_, _ = d.queue.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")
	_, _ = d.queue.SyncNow(ctx)
	d.availability.outage = false

	intent, err := d.queue.Retry(ctx, intentA)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if intent.Status != entity.IntentStatusSynced {
		t.Errorf("Retry() status = %s, want SYNCED", intent.Status)
	}

	if _, err := d.queue.Retry(ctx, intentA); !errors.Is(err, ErrIntentConflict) {
		t.Errorf("Retry() on synced error = %v, want ErrIntentConflict", err)
	}
}

func TestQueueService_Discard(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	_, _ = d.queue.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")

	if err := d.queue.Discard(ctx, intentA, "agent.kim"); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, err := d.intentRepo.GetByID(ctx, intentA); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("intent still present after discard")
	}
	if n := d.dispatcher.count(event.TypeIntentDiscard); n != 1 {
		t.Errorf("discard events = %d, want 1", n)
	}

	for _, status := range []string{entity.IntentStatusPosting, entity.IntentStatusSynced} {
		d.intentRepo.intents = []*entity.IssuanceIntent{{ID: intentA, Status: status}}
		if err := d.queue.Discard(ctx, intentA, "agent.kim"); !errors.Is(err, ErrIntentConflict) {
			t.Errorf("Discard() from %s error = %v, want ErrIntentConflict", status, err)
		}
	}
}

func TestQueueService_ListIntents(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	_, _ = d.queue.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")

	if _, err := d.queue.ListIntents(ctx, "DONE"); !errors.Is(err, ErrValidation) {
		t.Errorf("ListIntents() bad status error = %v", err)
	}
	synced, err := d.queue.ListIntents(ctx, entity.IntentStatusSynced)
	if err != nil || synced == nil || len(synced) != 0 {
		t.Errorf("ListIntents(SYNCED) = %v, %v", synced, err)
	}
	queued, _ := d.queue.ListIntents(ctx, entity.IntentStatusQueued)
	if len(queued) != 1 {
		t.Errorf("ListIntents(QUEUED) = %d, want 1", len(queued))
	}
}

// gatedIssuer holds every IssueBatch call until release is closed
type gatedIssuer struct {
	mu      sync.Mutex
	calls   map[string]int
	started chan string
	release chan struct{}
}

func newGatedIssuer() *gatedIssuer {
	return &gatedIssuer{
		calls:   map[string]int{},
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedIssuer) IssueBatch(ctx context.Context, req *entity.BatchRequest, actor string) (*BatchResult, error) {
	g.mu.Lock()
	g.calls[req.IntentID]++
	n := int64(len(g.calls))
	g.mu.Unlock()

	g.started <- req.IntentID
	<-g.release
	return &BatchResult{
		IntentID:  req.IntentID,
		Issuances: []*entity.Issuance{{ID: n, IntentID: req.IntentID}},
		Failures:  []ProviderFailure{},
	}, nil
}

func (g *gatedIssuer) count(intentID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[intentID]
}

func TestQueueService_SyncNow_ConcurrentCallersShareRun(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	issuer := newGatedIssuer()
	q := NewQueueService(d.intentRepo, issuer, d.engine, d.dispatcher, &mockLogger{})

	a, _ := q.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")
	b, _ := q.Enqueue(ctx, "", *mealBatch(2), "agent.kim")

	reports := make(chan *SyncReport, 2)
	runSync := func() {
		report, err := q.SyncNow(ctx)
		if err != nil {
			t.Errorf("SyncNow() error = %v", err)
		}
		reports <- report
	}

	go runSync()
	<-issuer.started
	go runSync()
	time.Sleep(20 * time.Millisecond)
	close(issuer.release)

	for i := 0; i < 2; i++ {
		if report := <-reports; report == nil || report.Failed != 0 {
			t.Errorf("report = %+v", report)
		}
	}
	for _, id := range []string{a.ID, b.ID} {
		if n := issuer.count(id); n != 1 {
			t.Errorf("IssueBatch calls for %s = %d, want 1", id, n)
		}
		intent, _ := d.intentRepo.GetByID(ctx, id)
		if intent.Status != entity.IntentStatusSynced || intent.Attempts != 1 {
			t.Errorf("intent %s = %+v", id, intent)
		}
	}
}

func TestQueueService_RetryWhileSyncing(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	issuer := newGatedIssuer()
	q := NewQueueService(d.intentRepo, issuer, d.engine, d.dispatcher, &mockLogger{})
	_, _ = q.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")

	done := make(chan *SyncReport, 1)
	go func() {
		report, _ := q.SyncNow(ctx)
		done <- report
	}()
	<-issuer.started

	if _, err := q.Retry(ctx, intentA); !errors.Is(err, ErrIntentConflict) {
		t.Errorf("Retry() during sync error = %v, want ErrIntentConflict", err)
	}
	if pending, _ := q.Pending(ctx); pending != 0 {
		t.Errorf("Pending() = %d, in-flight intent must not count", pending)
	}

	close(issuer.release)
	if report := <-done; report.Synced != 1 {
		t.Errorf("report = %+v", report)
	}
	if n := issuer.count(intentA); n != 1 {
		t.Errorf("IssueBatch calls = %d, want 1", n)
	}
}

func TestQueueService_SyncWhileRetrying(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	issuer := newGatedIssuer()
	q := NewQueueService(d.intentRepo, issuer, d.engine, d.dispatcher, &mockLogger{})
	_, _ = q.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")

	retried := make(chan *entity.IssuanceIntent, 1)
	go func() {
		intent, err := q.Retry(ctx, intentA)
		if err != nil {
			t.Errorf("Retry() error = %v", err)
		}
		retried <- intent
	}()
	<-issuer.started

	report, err := q.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report.Synced != 0 || report.Skipped != 1 {
		t.Errorf("report = %+v, want the retried intent skipped", report)
	}

	close(issuer.release)
	if intent := <-retried; intent == nil || intent.Status != entity.IntentStatusSynced {
		t.Errorf("Retry() = %+v", intent)
	}
	if n := issuer.count(intentA); n != 1 {
		t.Errorf("IssueBatch calls = %d, want 1", n)
	}
}

func TestQueueService_ReplayLosesClaim(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	issuer := newGatedIssuer()
	close(issuer.release)
	q := NewQueueService(d.intentRepo, issuer, d.engine, d.dispatcher, &mockLogger{}).(*queueServiceImpl)
	_, _ = q.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")

	// Both replays read the intent while it was QUEUED
	stale, _ := d.intentRepo.GetByID(ctx, intentA)
	if _, err := q.Retry(ctx, intentA); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	if err := q.replay(ctx, stale); !errors.Is(err, port.ErrConcurrentUpdate) {
		t.Errorf("replay() error = %v, want %v", err, port.ErrConcurrentUpdate)
	}
	if n := issuer.count(intentA); n != 1 {
		t.Errorf("IssueBatch calls = %d, want 1", n)
	}
	intent, _ := d.intentRepo.GetByID(ctx, intentA)
	if intent.Status != entity.IntentStatusSynced {
		t.Errorf("status = %s, want SYNCED", intent.Status)
	}
}

func TestQueueService_StalePostingIsReplayed(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	_, _ = d.queue.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")

	intent, _ := d.intentRepo.GetByID(ctx, intentA)
	intent.Status = entity.IntentStatusPosting
	intent.UpdatedAt = time.Now().UTC()
	d.intentRepo.set(intent)

	report, err := d.queue.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report.Synced != 0 || report.Skipped != 1 {
		t.Errorf("fresh POSTING report = %+v", report)
	}
	if _, err := d.queue.Retry(ctx, intentA); !errors.Is(err, ErrIntentConflict) {
		t.Errorf("Retry() fresh POSTING error = %v, want ErrIntentConflict", err)
	}

	// The process that claimed it went away mid-replay
	intent.UpdatedAt = time.Now().UTC().Add(-PostingStaleAfter - time.Minute)
	d.intentRepo.set(intent)
	if pending, _ := d.queue.Pending(ctx); pending != 1 {
		t.Errorf("Pending() = %d, want 1", pending)
	}

	report, err = d.queue.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report.Synced != 1 {
		t.Errorf("stale POSTING report = %+v", report)
	}
	if got := len(d.issuanceRepo.issuances); got != 1 {
		t.Errorf("issuances = %d, want 1", got)
	}
	intent, _ = d.intentRepo.GetByID(ctx, intentA)
	if intent.Status != entity.IntentStatusSynced {
		t.Errorf("status = %s, want SYNCED", intent.Status)
	}
}

func TestQueueService_Discard_LosesToSync(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	_, _ = d.queue.Enqueue(ctx, intentA, *mealBatch(1), "agent.kim")

	// A sync claims the intent after Discard has read it
	d.intentRepo.beforeDelete = func() {
		claimed, _ := d.intentRepo.GetByID(ctx, intentA)
		claimed.Status = entity.IntentStatusPosting
		d.intentRepo.set(claimed)
	}

	if err := d.queue.Discard(ctx, intentA, "agent.kim"); !errors.Is(err, ErrIntentConflict) {
		t.Fatalf("Discard() error = %v, want ErrIntentConflict", err)
	}
	intent, err := d.intentRepo.GetByID(ctx, intentA)
	if err != nil || intent.Status != entity.IntentStatusPosting {
		t.Errorf("intent = %+v, %v; want it kept in POSTING", intent, err)
	}
	if n := d.dispatcher.count(event.TypeIntentDiscard); n != 0 {
		t.Errorf("discard events = %d, want 0", n)
	}
}

package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/domain/event"
)

// Mock repositories. Each keeps a small in-memory table and lets a test
// override individual calls through the *Func fields.

type mockFlightRepo struct {
	flights     map[int64]*entity.Flight
	getByIDFunc func(ctx context.Context, id int64) (*entity.Flight, error)
}

func (m *mockFlightRepo) Create(ctx context.Context, f *entity.Flight) error {
	if m.flights == nil {
		m.flights = map[int64]*entity.Flight{}
	}
	f.ID = int64(len(m.flights) + 1)
	m.flights[f.ID] = f
	return nil
}

func (m *mockFlightRepo) GetByID(ctx context.Context, id int64) (*entity.Flight, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	if f, ok := m.flights[id]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("flight %d: %w", id, port.ErrNotFound)
}

func (m *mockFlightRepo) List(ctx context.Context, filter port.FlightFilter) ([]*entity.Flight, error) {
	var out []*entity.Flight
	for _, f := range m.flights {
		if filter.DisruptedOnly && !f.IsDisrupted() {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockFlightRepo) Count(ctx context.Context) (int, error) {
	return len(m.flights), nil
}

type mockPassengerRepo struct {
	passengers map[int64]*entity.Passenger
}

func (m *mockPassengerRepo) Create(ctx context.Context, p *entity.Passenger) error {
	if m.passengers == nil {
		m.passengers = map[int64]*entity.Passenger{}
	}
	p.ID = int64(len(m.passengers) + 1)
	m.passengers[p.ID] = p
	return nil
}

func (m *mockPassengerRepo) GetByID(ctx context.Context, id int64) (*entity.Passenger, error) {
	if p, ok := m.passengers[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("passenger %d: %w", id, port.ErrNotFound)
}

func (m *mockPassengerRepo) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Passenger, error) {
	var out []*entity.Passenger
	for _, id := range ids {
		if p, ok := m.passengers[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPassengerRepo) ListByFlight(ctx context.Context, flightID int64, filter port.PassengerFilter) ([]*entity.Passenger, error) {
	var out []*entity.Passenger
	for _, p := range m.passengers {
		if p.FlightID == flightID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type mockPresetRepo struct {
	presets          []*entity.Preset
	updateAmountFunc func(ctx context.Context, id, amountCents int64, updatedBy string) error
}

func (m *mockPresetRepo) Upsert(ctx context.Context, p *entity.Preset) error {
	p.ID = int64(len(m.presets) + 1)
	m.presets = append(m.presets, p)
	return nil
}

func (m *mockPresetRepo) GetByID(ctx context.Context, id int64) (*entity.Preset, error) {
	for _, p := range m.presets {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("preset %d: %w", id, port.ErrNotFound)
}

func (m *mockPresetRepo) Get(ctx context.Context, voucherType, category string) (*entity.Preset, error) {
	for _, p := range m.presets {
		if p.VoucherType == voucherType && p.DisruptionCategory == category {
			return p, nil
		}
	}
	return nil, fmt.Errorf("preset %s/%s: %w", voucherType, category, port.ErrNotFound)
}

func (m *mockPresetRepo) List(ctx context.Context) ([]*entity.Preset, error) {
	return m.presets, nil
}

func (m *mockPresetRepo) UpdateAmount(ctx context.Context, id, amountCents int64, updatedBy string) error {
	if m.updateAmountFunc != nil {
		return m.updateAmountFunc(ctx, id, amountCents, updatedBy)
	}
	for _, p := range m.presets {
		if p.ID == id {
			p.AmountCents = amountCents
			p.UpdatedBy = updatedBy
			return nil
		}
	}
	return fmt.Errorf("preset %d: %w", id, port.ErrNotFound)
}

type mockIssuanceRepo struct {
	mu         sync.Mutex
	issuances  []*entity.Issuance
	createFunc func(ctx context.Context, iss *entity.Issuance) error
}

func (m *mockIssuanceRepo) Create(ctx context.Context, iss *entity.Issuance) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, iss); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	iss.ID = int64(len(m.issuances) + 1)
	if iss.CreatedAt.IsZero() {
		iss.CreatedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	}
	m.issuances = append(m.issuances, iss)
	return nil
}

func (m *mockIssuanceRepo) GetByID(ctx context.Context, id int64) (*entity.Issuance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iss := range m.issuances {
		if iss.ID == id {
			cp := *iss
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("issuance %d: %w", id, port.ErrNotFound)
}

func (m *mockIssuanceRepo) List(ctx context.Context, filter entity.IssuanceFilter) ([]*entity.Issuance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Issuance
	for _, iss := range m.issuances {
		if filter.FlightID != 0 && iss.FlightID != filter.FlightID {
			continue
		}
		if filter.IntentID != "" && iss.IntentID != filter.IntentID {
			continue
		}
		if filter.VoucherType != "" && iss.VoucherType != filter.VoucherType {
			continue
		}
		if filter.Status != "" && iss.Status != filter.Status {
			continue
		}
		out = append(out, iss)
	}
	return out, nil
}

func (m *mockIssuanceRepo) ListByFlight(ctx context.Context, flightID int64) ([]*entity.Issuance, error) {
	return m.List(ctx, entity.IssuanceFilter{FlightID: flightID})
}

func (m *mockIssuanceRepo) Void(ctx context.Context, id int64, reason, voidedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iss := range m.issuances {
		if iss.ID == id {
			iss.Status = entity.IssuanceStatusVoided
			iss.VoidReason = reason
			iss.VoidedBy = voidedBy
			iss.VoidedAt = &at
			return nil
		}
	}
	return fmt.Errorf("issuance %d: %w", id, port.ErrNotFound)
}

type mockIntentRepo struct {
	mu           sync.Mutex
	intents      []*entity.IssuanceIntent
	createFunc   func(ctx context.Context, intent *entity.IssuanceIntent) error
	beforeDelete func()
}

func (m *mockIntentRepo) Create(ctx context.Context, intent *entity.IssuanceIntent) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, intent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.intents {
		if i.ID == intent.ID {
			return port.ErrIntentExists
		}
	}
	if intent.UpdatedAt.IsZero() {
		intent.UpdatedAt = time.Now().UTC()
	}
	cp := *intent
	m.intents = append(m.intents, &cp)
	return nil
}

func (m *mockIntentRepo) GetByID(ctx context.Context, id string) (*entity.IssuanceIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.intents {
		if i.ID == id {
			cp := *i
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("intent %s: %w", id, port.ErrNotFound)
}

func (m *mockIntentRepo) List(ctx context.Context, status string) ([]*entity.IssuanceIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.IssuanceIntent
	for _, i := range m.intents {
		if status == "" || i.Status == status {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockIntentRepo) Update(ctx context.Context, intent *entity.IssuanceIntent, prevStatus string, prevUpdatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx, i := range m.intents {
		if i.ID == intent.ID {
			if i.Status != prevStatus || !i.UpdatedAt.Equal(prevUpdatedAt) {
				return fmt.Errorf("intent %s is now %s: %w", intent.ID, i.Status, port.ErrConcurrentUpdate)
			}
			intent.UpdatedAt = prevUpdatedAt.Add(time.Millisecond)
			cp := *intent
			m.intents[idx] = &cp
			return nil
		}
	}
	return fmt.Errorf("intent %s: %w", intent.ID, port.ErrNotFound)
}

func (m *mockIntentRepo) Delete(ctx context.Context, id string, statuses ...string) error {
	if m.beforeDelete != nil {
		m.beforeDelete()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx, i := range m.intents {
		if i.ID != id {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, i.Status) {
			return fmt.Errorf("intent %s is now %s: %w", id, i.Status, port.ErrConcurrentUpdate)
		}
		m.intents = append(m.intents[:idx], m.intents[idx+1:]...)
		return nil
	}
	return fmt.Errorf("intent %s: %w", id, port.ErrNotFound)
}

// set overwrites a stored intent, standing in for another process
func (m *mockIntentRepo) set(intent *entity.IssuanceIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx, i := range m.intents {
		if i.ID == intent.ID {
			cp := *intent
			m.intents[idx] = &cp
			return
		}
	}
}

type mockNotificationRepo struct {
	created []*entity.Notification
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	n.ID = int64(len(m.created) + 1)
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) ListByIssuance(ctx context.Context, issuanceID int64) ([]*entity.Notification, error) {
	var out []*entity.Notification
	for _, n := range m.created {
		if n.IssuanceID == issuanceID {
			out = append(out, n)
		}
	}
	return out, nil
}

type mockAuditRepo struct {
	entries    []*entity.AuditEntry
	createFunc func(ctx context.Context, entry *entity.AuditEntry) error
	listFunc   func(ctx context.Context, limit, offset int) ([]*entity.AuditEntry, error)
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *entity.AuditEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, entry)
	}
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, limit, offset int) ([]*entity.AuditEntry, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit, offset)
	}
	return m.entries, nil
}

type mockUserRepo struct {
	users map[string]*entity.User
}

func (m *mockUserRepo) Upsert(ctx context.Context, u *entity.User) error {
	m.users[u.Username] = u
	return nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", username, port.ErrNotFound)
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	return len(m.users), nil
}

type mockRideshare struct {
	calls           int
	issueCreditFunc func(ctx context.Context, ref string, amountCents int64, currency string) (*port.RideshareCode, error)
}

func (m *mockRideshare) IssueCredit(ctx context.Context, ref string, amountCents int64, currency string) (*port.RideshareCode, error) {
	m.calls++
	if m.issueCreditFunc != nil {
		return m.issueCreditFunc(ctx, ref, amountCents, currency)
	}
	return &port.RideshareCode{Code: fmt.Sprintf("UBER-%d", m.calls), AmountCents: amountCents}, nil
}

type mockSender struct {
	sent     []string
	sendFunc func(ctx context.Context, channel, recipient, body string) (string, error)
}

func (m *mockSender) Send(ctx context.Context, channel, recipient, body string) (string, error) {
	m.sent = append(m.sent, channel+":"+recipient)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, channel, recipient, body)
	}
	return "msg-1", nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockAvailability struct {
	outage bool
}

func (m *mockAvailability) Outage() bool { return m.outage }

// mockDispatcher records dispatched events
type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeBackground(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockDispatcher) Stats() dispatcher.Stats { return dispatcher.Stats{} }

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) count(t event.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

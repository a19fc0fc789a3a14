package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/domain/event"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditService keeps the append-only trail of domain events
type AuditService interface {
	// Record is subscribed to every event type
	Record(ctx context.Context, evt *event.Event) error
	List(ctx context.Context, limit, offset int) ([]*entity.AuditEntry, error)
}

type auditServiceImpl struct {
	repo   port.AuditRepository
	logger Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{repo: repo, logger: logger}
}

// RegisterAuditHandlers subscribes the audit trail to every event type
func RegisterAuditHandlers(d dispatcher.Dispatcher, svc AuditService) {
	for _, t := range event.All() {
		d.Subscribe(t, "audit_"+t.String(), svc.Record)
	}
}

func (s *auditServiceImpl) Record(ctx context.Context, evt *event.Event) error {
	detail := "{}"
	if len(evt.Payload) > 0 {
		data, err := json.Marshal(evt.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
		detail = string(data)
	}

	entry := &entity.AuditEntry{
		EventType: evt.Type.String(),
		Actor:     evt.Actor,
		SubjectID: evt.SubjectID,
		Detail:    detail,
		CreatedAt: evt.Timestamp.UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write audit entry", "event_type", evt.Type, "error", err)
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func (s *auditServiceImpl) List(ctx context.Context, limit, offset int) ([]*entity.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	if offset < 0 {
		return nil, invalidf("offset must not be negative")
	}
	return s.repo.List(ctx, limit, offset)
}

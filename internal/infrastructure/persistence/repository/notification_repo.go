package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a passenger notification attempt
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			issuance_id, channel, recipient, body, status,
			provider_message_id, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		n.IssuanceID,
		n.Channel,
		n.Recipient,
		n.Body,
		n.Status,
		n.ProviderMessageID,
		n.Error,
		n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.Int64("issuance_id", n.IssuanceID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	n.ID = id
	return nil
}

// ListByIssuance retrieves the notifications sent for an issuance
func (r *NotificationRepository) ListByIssuance(ctx context.Context, issuanceID int64) ([]*entity.Notification, error) {
	query := `
		SELECT id, issuance_id, channel, recipient, body, status,
			provider_message_id, error, created_at
		FROM notifications
		WHERE issuance_id = ?
		ORDER BY id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, issuanceID)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Int64("issuance_id", issuanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		err := rows.Scan(
			&n.ID,
			&n.IssuanceID,
			&n.Channel,
			&n.Recipient,
			&n.Body,
			&n.Status,
			&n.ProviderMessageID,
			&n.Error,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)

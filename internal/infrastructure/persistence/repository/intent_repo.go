package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/infrastructure/persistence/sqlite"
)

const intentColumns = `
	id, payload, status, attempts, last_error, issuance_ids,
	created_by, created_at, updated_at, synced_at`

// IntentRepository implements port.IntentRepository.
// Payload and issuance ids are stored as JSON text.
type IntentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIntentRepository creates a new offline intent repository
func NewIntentRepository(db *sql.DB, logger *zap.Logger) port.IntentRepository {
	return &IntentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an intent. A duplicate id yields port.ErrIntentExists.
func (r *IntentRepository) Create(ctx context.Context, intent *entity.IssuanceIntent) error {
	query := `
		INSERT INTO issuance_intents (
			id, payload, status, attempts, last_error, issuance_ids,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	payload, ids, err := marshalIntent(intent)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = now
	}
	intent.UpdatedAt = now

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		intent.ID,
		payload,
		intent.Status,
		intent.Attempts,
		intent.LastError,
		ids,
		intent.CreatedBy,
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("intent %s: %w", intent.ID, port.ErrIntentExists)
	}
	if err != nil {
		r.logger.Error("Failed to create intent", zap.String("id", intent.ID), zap.Error(err))
		return fmt.Errorf("failed to create intent: %w", err)
	}
	return nil
}

// GetByID retrieves an intent by ID
func (r *IntentRepository) GetByID(ctx context.Context, id string) (*entity.IssuanceIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM issuance_intents WHERE id = ?`

	intent, err := scanIntent(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("intent %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get intent by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}
	return intent, nil
}

// List retrieves intents in creation order, optionally by status
func (r *IntentRepository) List(ctx context.Context, status string) ([]*entity.IssuanceIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM issuance_intents`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list intents", zap.Error(err))
		return nil, fmt.Errorf("failed to list intents: %w", err)
	}
	defer rows.Close()

	var intents []*entity.IssuanceIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// Update persists status, attempts, error, issuance ids and sync time. The
// row must still carry prevStatus and prevUpdatedAt, which makes every
// transition a compare-and-swap.
func (r *IntentRepository) Update(ctx context.Context, intent *entity.IssuanceIntent, prevStatus string, prevUpdatedAt time.Time) error {
	query := `
		UPDATE issuance_intents
		SET status = ?, attempts = ?, last_error = ?, issuance_ids = ?, updated_at = ?, synced_at = ?
		WHERE id = ? AND status = ? AND updated_at = ?
	`

	_, ids, err := marshalIntent(intent)
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC()

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		intent.Status,
		intent.Attempts,
		intent.LastError,
		ids,
		updatedAt,
		nullTime(intent.SyncedAt),
		intent.ID,
		prevStatus,
		prevUpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to update intent", zap.String("id", intent.ID), zap.Error(err))
		return fmt.Errorf("failed to update intent: %w", err)
	}
	if err := r.requireChanged(ctx, result, intent.ID); err != nil {
		return err
	}
	intent.UpdatedAt = updatedAt
	return nil
}

// Delete removes an intent whose status is one of statuses
func (r *IntentRepository) Delete(ctx context.Context, id string, statuses ...string) error {
	query := `DELETE FROM issuance_intents WHERE id = ?`
	args := []interface{}{id}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(`, ?`, len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to delete intent", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete intent: %w", err)
	}
	return r.requireChanged(ctx, result, id)
}

// requireChanged tells a missing intent apart from one whose row no longer
// matched the conditional write
func (r *IntentRepository) requireChanged(ctx context.Context, result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status string
	err = sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT status FROM issuance_intents WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("intent %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read intent %s: %w", id, err)
	}
	return fmt.Errorf("intent %s is now %s: %w", id, status, port.ErrConcurrentUpdate)
}

func marshalIntent(intent *entity.IssuanceIntent) (string, string, error) {
	payload, err := json.Marshal(intent.Payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal intent payload: %w", err)
	}
	ids := intent.IssuanceIDs
	if ids == nil {
		ids = []int64{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal issuance ids: %w", err)
	}
	return string(payload), string(idsJSON), nil
}

func scanIntent(s scanner) (*entity.IssuanceIntent, error) {
	var (
		intent   entity.IssuanceIntent
		payload  string
		ids      string
		syncedAt sql.NullTime
	)

	err := s.Scan(
		&intent.ID,
		&payload,
		&intent.Status,
		&intent.Attempts,
		&intent.LastError,
		&ids,
		&intent.CreatedBy,
		&intent.CreatedAt,
		&intent.UpdatedAt,
		&syncedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &intent.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intent payload: %w", err)
	}
	if err := json.Unmarshal([]byte(ids), &intent.IssuanceIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issuance ids: %w", err)
	}
	if len(intent.IssuanceIDs) == 0 {
		intent.IssuanceIDs = nil
	}
	if syncedAt.Valid {
		intent.SyncedAt = &syncedAt.Time
	}
	return &intent, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// Verify interface compliance
var _ port.IntentRepository = (*IntentRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const issuanceColumns = `
	id, flight_id, passenger_id, intent_id, voucher_type, amount_cents, currency,
	method, serial, status, comment, notes, issued_by, void_reason, voided_by,
	voided_at, created_at, updated_at`

// IssuanceRepository implements port.IssuanceRepository
type IssuanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIssuanceRepository creates a new issuance repository
func NewIssuanceRepository(db *sql.DB, logger *zap.Logger) port.IssuanceRepository {
	return &IssuanceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an issuance
func (r *IssuanceRepository) Create(ctx context.Context, iss *entity.Issuance) error {
	query := `
		INSERT INTO issuances (
			flight_id, passenger_id, intent_id, voucher_type, amount_cents, currency,
			method, serial, status, comment, notes, issued_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if iss.CreatedAt.IsZero() {
		iss.CreatedAt = now
	}
	iss.UpdatedAt = now

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		iss.FlightID,
		iss.PassengerID,
		iss.IntentID,
		iss.VoucherType,
		iss.AmountCents,
		iss.Currency,
		iss.Method,
		iss.Serial,
		iss.Status,
		iss.Comment,
		iss.Notes,
		iss.IssuedBy,
		iss.CreatedAt,
		iss.UpdatedAt,
	)
	if iss.IntentID != "" && isUniqueViolation(err) {
		return fmt.Errorf("intent %s passenger %d %s: %w", iss.IntentID, iss.PassengerID, iss.VoucherType, port.ErrIssuanceExists)
	}
	if err != nil {
		r.logger.Error("Failed to create issuance",
			zap.Int64("flight_id", iss.FlightID),
			zap.Int64("passenger_id", iss.PassengerID),
			zap.String("voucher_type", iss.VoucherType),
			zap.Error(err))
		return fmt.Errorf("failed to create issuance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	iss.ID = id
	return nil
}

// GetByID retrieves an issuance by ID
func (r *IssuanceRepository) GetByID(ctx context.Context, id int64) (*entity.Issuance, error) {
	query := `SELECT ` + issuanceColumns + ` FROM issuances WHERE id = ?`

	iss, err := scanIssuance(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issuance %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get issuance by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get issuance: %w", err)
	}
	return iss, nil
}

// List retrieves issuances matching filter, oldest first
func (r *IssuanceRepository) List(ctx context.Context, filter entity.IssuanceFilter) ([]*entity.Issuance, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.FlightID != 0 {
		where = append(where, "flight_id = ?")
		args = append(args, filter.FlightID)
	}
	if filter.PassengerID != 0 {
		where = append(where, "passenger_id = ?")
		args = append(args, filter.PassengerID)
	}
	if filter.VoucherType != "" {
		where = append(where, "voucher_type = ?")
		args = append(args, filter.VoucherType)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.IntentID != "" {
		where = append(where, "intent_id = ?")
		args = append(args, filter.IntentID)
	}
	if filter.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where = append(where, "created_at < ?")
		args = append(args, filter.To.UTC())
	}

	query := `SELECT ` + issuanceColumns + ` FROM issuances`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	return r.query(ctx, query, args...)
}

// ListByFlight retrieves every issuance of a flight, including voided ones
func (r *IssuanceRepository) ListByFlight(ctx context.Context, flightID int64) ([]*entity.Issuance, error) {
	return r.List(ctx, entity.IssuanceFilter{FlightID: flightID})
}

// Void marks an issuance VOIDED
func (r *IssuanceRepository) Void(ctx context.Context, id int64, reason, voidedBy string, at time.Time) error {
	query := `
		UPDATE issuances
		SET status = ?, void_reason = ?, voided_by = ?, voided_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entity.IssuanceStatusVoided, reason, voidedBy, at.UTC(), at.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to void issuance", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to void issuance: %w", err)
	}
	return requireAffected(result, fmt.Sprintf("issuance %d", id))
}

func (r *IssuanceRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Issuance, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query issuances", zap.Error(err))
		return nil, fmt.Errorf("failed to query issuances: %w", err)
	}
	defer rows.Close()

	var issuances []*entity.Issuance
	for rows.Next() {
		iss, err := scanIssuance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issuance: %w", err)
		}
		issuances = append(issuances, iss)
	}
	return issuances, rows.Err()
}

func scanIssuance(s scanner) (*entity.Issuance, error) {
	var (
		iss      entity.Issuance
		voidedAt sql.NullTime
	)

	err := s.Scan(
		&iss.ID,
		&iss.FlightID,
		&iss.PassengerID,
		&iss.IntentID,
		&iss.VoucherType,
		&iss.AmountCents,
		&iss.Currency,
		&iss.Method,
		&iss.Serial,
		&iss.Status,
		&iss.Comment,
		&iss.Notes,
		&iss.IssuedBy,
		&iss.VoidReason,
		&iss.VoidedBy,
		&voidedAt,
		&iss.CreatedAt,
		&iss.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if voidedAt.Valid {
		iss.VoidedAt = &voidedAt.Time
	}
	return &iss, nil
}

// Verify interface compliance
var _ port.IssuanceRepository = (*IssuanceRepository)(nil)

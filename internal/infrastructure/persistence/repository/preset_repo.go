package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const presetColumns = `id, voucher_type, disruption_category, amount_cents, updated_by, updated_at`

// PresetRepository implements port.PresetRepository
type PresetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPresetRepository creates a new preset repository
func NewPresetRepository(db *sql.DB, logger *zap.Logger) port.PresetRepository {
	return &PresetRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts a preset or replaces the amount of the existing
// (voucher_type, disruption_category) row
func (r *PresetRepository) Upsert(ctx context.Context, preset *entity.Preset) error {
	query := `
		INSERT INTO presets (voucher_type, disruption_category, amount_cents, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (voucher_type, disruption_category) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`

	preset.UpdatedAt = time.Now().UTC()
	exec := sqlite.ExecutorFrom(ctx, r.db)

	_, err := exec.ExecContext(ctx, query,
		preset.VoucherType,
		preset.DisruptionCategory,
		preset.AmountCents,
		preset.UpdatedBy,
		preset.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert preset",
			zap.String("voucher_type", preset.VoucherType),
			zap.String("category", preset.DisruptionCategory),
			zap.Error(err))
		return fmt.Errorf("failed to upsert preset: %w", err)
	}

	// LastInsertId is unreliable for the update branch of an upsert
	err = exec.QueryRowContext(ctx,
		`SELECT id FROM presets WHERE voucher_type = ? AND disruption_category = ?`,
		preset.VoucherType, preset.DisruptionCategory,
	).Scan(&preset.ID)
	if err != nil {
		return fmt.Errorf("failed to read preset id: %w", err)
	}
	return nil
}

// GetByID retrieves a preset by ID
func (r *PresetRepository) GetByID(ctx context.Context, id int64) (*entity.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets WHERE id = ?`

	preset, err := scanPreset(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preset %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get preset by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get preset: %w", err)
	}
	return preset, nil
}

// Get retrieves the preset for a voucher type under a disruption category
func (r *PresetRepository) Get(ctx context.Context, voucherType, category string) (*entity.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets WHERE voucher_type = ? AND disruption_category = ?`

	preset, err := scanPreset(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, voucherType, category))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preset %s/%s: %w", voucherType, category, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get preset",
			zap.String("voucher_type", voucherType),
			zap.String("category", category),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get preset: %w", err)
	}
	return preset, nil
}

// List retrieves every preset ordered by category then voucher type
func (r *PresetRepository) List(ctx context.Context) ([]*entity.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM presets ORDER BY disruption_category, voucher_type`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list presets", zap.Error(err))
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	defer rows.Close()

	var presets []*entity.Preset
	for rows.Next() {
		preset, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preset: %w", err)
		}
		presets = append(presets, preset)
	}
	return presets, rows.Err()
}

// UpdateAmount sets a preset's amount
func (r *PresetRepository) UpdateAmount(ctx context.Context, id int64, amountCents int64, updatedBy string) error {
	query := `UPDATE presets SET amount_cents = ?, updated_by = ?, updated_at = ? WHERE id = ?`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, amountCents, updatedBy, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update preset amount", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update preset: %w", err)
	}
	return requireAffected(result, fmt.Sprintf("preset %d", id))
}

func scanPreset(s scanner) (*entity.Preset, error) {
	var p entity.Preset
	if err := s.Scan(&p.ID, &p.VoucherType, &p.DisruptionCategory, &p.AmountCents, &p.UpdatedBy, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Verify interface compliance
var _ port.PresetRepository = (*PresetRepository)(nil)

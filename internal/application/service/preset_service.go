package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/domain/event"
)

// PresetService manages the default voucher amounts
type PresetService interface {
	ListPresets(ctx context.Context) ([]*entity.Preset, error)
	ResolveAmount(ctx context.Context, voucherType, category string) (int64, error)
	UpdatePreset(ctx context.Context, id, amountCents int64, actor string) (*entity.Preset, error)
}

type presetServiceImpl struct {
	presetRepo     port.PresetRepository
	dispatcher     dispatcher.Dispatcher
	maxAmountCents int64
	logger         Logger
}

// NewPresetService creates a new PresetService
func NewPresetService(presetRepo port.PresetRepository, d dispatcher.Dispatcher, maxAmountCents int64, logger Logger) PresetService {
	return &presetServiceImpl{
		presetRepo:     presetRepo,
		dispatcher:     d,
		maxAmountCents: maxAmountCents,
		logger:         logger,
	}
}

func (s *presetServiceImpl) ListPresets(ctx context.Context) ([]*entity.Preset, error) {
	presets, err := s.presetRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	if presets == nil {
		presets = []*entity.Preset{}
	}
	return presets, nil
}

// ResolveAmount returns the preset amount or ErrPresetNotFound
func (s *presetServiceImpl) ResolveAmount(ctx context.Context, voucherType, category string) (int64, error) {
	p, err := s.presetRepo.Get(ctx, voucherType, category)
	if errors.Is(err, port.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s/%s", ErrPresetNotFound, voucherType, category)
	}
	if err != nil {
		return 0, fmt.Errorf("get preset: %w", err)
	}
	return p.AmountCents, nil
}

func (s *presetServiceImpl) UpdatePreset(ctx context.Context, id, amountCents int64, actor string) (*entity.Preset, error) {
	if amountCents <= 0 {
		return nil, invalidf("amount must be greater than zero")
	}
	if s.maxAmountCents > 0 && amountCents > s.maxAmountCents {
		return nil, invalidf("amount %d exceeds maximum %d", amountCents, s.maxAmountCents)
	}

	before, err := s.presetRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.presetRepo.UpdateAmount(ctx, id, amountCents, actor); err != nil {
		s.logger.Error("Failed to update preset", "error", err, "preset_id", id)
		return nil, fmt.Errorf("update preset: %w", err)
	}

	updated, err := s.presetRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Preset updated",
		"preset_id", id,
		"voucher_type", updated.VoucherType,
		"category", updated.DisruptionCategory,
		"old_amount_cents", before.AmountCents,
		"new_amount_cents", amountCents,
		"actor", actor,
	)

	if s.dispatcher != nil {
		_ = s.dispatcher.Dispatch(ctx, event.NewEvent(event.TypePresetUpdated, strconv.FormatInt(id, 10), actor, map[string]interface{}{
			"voucher_type":     updated.VoucherType,
			"category":         updated.DisruptionCategory,
			"old_amount_cents": before.AmountCents,
			"new_amount_cents": amountCents,
		}))
	}

	return updated, nil
}

package fixtures

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// SeedReport counts the rows written by Seed
type SeedReport struct {
	Users      int `json:"users"`
	Flights    int `json:"flights"`
	Passengers int `json:"passengers"`
	Presets    int `json:"presets"`
}

// Seeder writes fixtures into empty tables. Tables that already hold rows are
// left alone, so seeding on every start is safe.
type Seeder struct {
	users      port.UserRepository
	flights    port.FlightRepository
	passengers port.PassengerRepository
	presets    port.PresetRepository
	txManager  port.TransactionManager
	now        func() time.Time
	logger     *zap.Logger
}

// NewSeeder creates a new Seeder
func NewSeeder(
	users port.UserRepository,
	flights port.FlightRepository,
	passengers port.PassengerRepository,
	presets port.PresetRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
) *Seeder {
	return &Seeder{
		users:      users,
		flights:    flights,
		passengers: passengers,
		presets:    presets,
		txManager:  txManager,
		now:        time.Now,
		logger:     logger,
	}
}

// Seed writes set in a single transaction
func (s *Seeder) Seed(ctx context.Context, set *Set) (*SeedReport, error) {
	report := &SeedReport{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.seedUsers(txCtx, set.Users, report); err != nil {
			return err
		}
		if err := s.seedFlights(txCtx, set.Flights, report); err != nil {
			return err
		}
		return s.seedPresets(txCtx, set.Presets, report)
	})
	if err != nil {
		s.logger.Error("Seeding failed", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Fixtures seeded",
		zap.Int("users", report.Users),
		zap.Int("flights", report.Flights),
		zap.Int("passengers", report.Passengers),
		zap.Int("presets", report.Presets))
	return report, nil
}

func (s *Seeder) seedUsers(ctx context.Context, users []entity.User, report *SeedReport) error {
	n, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	for i := range users {
		u := users[i]
		if err := s.users.Upsert(ctx, &u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		report.Users++
	}
	return nil
}

func (s *Seeder) seedFlights(ctx context.Context, flights []FlightFixture, report *SeedReport) error {
	n, err := s.flights.Count(ctx)
	if err != nil {
		return fmt.Errorf("count flights: %w", err)
	}
	if n > 0 {
		return nil
	}

	base := s.now().UTC().Truncate(time.Minute)
	for _, fx := range flights {
		f := &entity.Flight{
			FlightNumber:       fx.FlightNumber,
			Origin:             fx.Origin,
			Destination:        fx.Destination,
			ScheduledDeparture: base.Add(time.Duration(fx.DepartureOffsetMinutes) * time.Minute),
			DisruptionStatus:   fx.DisruptionStatus,
			DelayMinutes:       fx.DelayMinutes,
			DisruptionReason:   fx.DisruptionReason,
		}
		if fx.DelayMinutes > 0 {
			est := f.ScheduledDeparture.Add(time.Duration(fx.DelayMinutes) * time.Minute)
			f.EstimatedDeparture = &est
		}
		if err := s.flights.Create(ctx, f); err != nil {
			return fmt.Errorf("seed flight %s: %w", fx.FlightNumber, err)
		}
		report.Flights++

		for i := range fx.Passengers {
			p := fx.Passengers[i]
			p.FlightID = f.ID
			if err := s.passengers.Create(ctx, &p); err != nil {
				return fmt.Errorf("seed passenger %s on %s: %w", p.PNR, fx.FlightNumber, err)
			}
			report.Passengers++
		}
	}
	return nil
}

func (s *Seeder) seedPresets(ctx context.Context, presets []entity.Preset, report *SeedReport) error {
	existing, err := s.presets.List(ctx)
	if err != nil {
		return fmt.Errorf("list presets: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for i := range presets {
		p := presets[i]
		p.UpdatedBy = "seed"
		if err := s.presets.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("seed preset %s/%s: %w", p.VoucherType, p.DisruptionCategory, err)
		}
		report.Presets++
	}
	return nil
}

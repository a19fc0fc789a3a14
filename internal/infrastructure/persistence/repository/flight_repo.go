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

const flightColumns = `
	id, flight_number, origin, destination, scheduled_departure,
	estimated_departure, disruption_status, delay_minutes, disruption_reason, created_at`

// FlightRepository implements port.FlightRepository
type FlightRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFlightRepository creates a new flight repository
func NewFlightRepository(db *sql.DB, logger *zap.Logger) port.FlightRepository {
	return &FlightRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a flight
func (r *FlightRepository) Create(ctx context.Context, flight *entity.Flight) error {
	query := `
		INSERT INTO flights (
			flight_number, origin, destination, scheduled_departure,
			estimated_departure, disruption_status, delay_minutes, disruption_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if flight.CreatedAt.IsZero() {
		flight.CreatedAt = time.Now().UTC()
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		flight.FlightNumber,
		flight.Origin,
		flight.Destination,
		flight.ScheduledDeparture.UTC(),
		nullTime(flight.EstimatedDeparture),
		flight.DisruptionStatus,
		flight.DelayMinutes,
		flight.DisruptionReason,
		flight.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create flight", zap.String("flight_number", flight.FlightNumber), zap.Error(err))
		return fmt.Errorf("failed to create flight: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	flight.ID = id
	return nil
}

// GetByID retrieves a flight by ID
func (r *FlightRepository) GetByID(ctx context.Context, id int64) (*entity.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights WHERE id = ?`

	flight, err := scanFlight(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("flight %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get flight by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}

	return flight, nil
}

// List retrieves flights ordered by scheduled departure
func (r *FlightRepository) List(ctx context.Context, filter port.FlightFilter) ([]*entity.Flight, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "disruption_status = ?")
		args = append(args, filter.Status)
	}
	if filter.DisruptedOnly {
		where = append(where, "disruption_status <> ?")
		args = append(args, entity.DisruptionOnTime)
	}

	query := `SELECT ` + flightColumns + ` FROM flights`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY scheduled_departure, id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list flights", zap.Error(err))
		return nil, fmt.Errorf("failed to list flights: %w", err)
	}
	defer rows.Close()

	var flights []*entity.Flight
	for rows.Next() {
		flight, err := scanFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		flights = append(flights, flight)
	}

	return flights, rows.Err()
}

// Count returns the number of flights
func (r *FlightRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, "flights")
}

func scanFlight(s scanner) (*entity.Flight, error) {
	var (
		flight    entity.Flight
		estimated sql.NullTime
	)

	err := s.Scan(
		&flight.ID,
		&flight.FlightNumber,
		&flight.Origin,
		&flight.Destination,
		&flight.ScheduledDeparture,
		&estimated,
		&flight.DisruptionStatus,
		&flight.DelayMinutes,
		&flight.DisruptionReason,
		&flight.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if estimated.Valid {
		flight.EstimatedDeparture = &estimated.Time
	}
	return &flight, nil
}

// Verify interface compliance
var _ port.FlightRepository = (*FlightRepository)(nil)

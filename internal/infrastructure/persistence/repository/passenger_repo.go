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

const passengerColumns = `
	id, flight_id, pnr, first_name, last_name, seat, boarding_status,
	qff_tier, is_transit, phone, email, created_at`

// PassengerRepository implements port.PassengerRepository
type PassengerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPassengerRepository creates a new passenger repository
func NewPassengerRepository(db *sql.DB, logger *zap.Logger) port.PassengerRepository {
	return &PassengerRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a passenger
func (r *PassengerRepository) Create(ctx context.Context, p *entity.Passenger) error {
	query := `
		INSERT INTO passengers (
			flight_id, pnr, first_name, last_name, seat, boarding_status,
			qff_tier, is_transit, phone, email, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		p.FlightID,
		strings.ToUpper(p.PNR),
		p.FirstName,
		p.LastName,
		p.Seat,
		p.BoardingStatus,
		p.QFFTier,
		p.IsTransit,
		p.Phone,
		p.Email,
		p.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create passenger",
			zap.Int64("flight_id", p.FlightID),
			zap.String("pnr", p.PNR),
			zap.Error(err))
		return fmt.Errorf("failed to create passenger: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	p.ID = id
	return nil
}

// GetByID retrieves a passenger by ID
func (r *PassengerRepository) GetByID(ctx context.Context, id int64) (*entity.Passenger, error) {
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE id = ?`

	p, err := scanPassenger(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("passenger %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get passenger by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get passenger: %w", err)
	}
	return p, nil
}

// GetByIDs retrieves the passengers that exist among ids, ordered by ID.
// Missing IDs are silently absent from the result.
func (r *PassengerRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Passenger, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`

	return r.query(ctx, query, args...)
}

// ListByFlight retrieves a flight's manifest ordered by last then first name
func (r *PassengerRepository) ListByFlight(ctx context.Context, flightID int64, filter port.PassengerFilter) ([]*entity.Passenger, error) {
	where := []string{"flight_id = ?"}
	args := []interface{}{flightID}

	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, `(LOWER(pnr) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(seat) LIKE ?)`)
		args = append(args, like, like, like, like)
	}
	if filter.BoardingStatus != "" {
		where = append(where, "boarding_status = ?")
		args = append(args, filter.BoardingStatus)
	}

	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY last_name, first_name, id`

	return r.query(ctx, query, args...)
}

func (r *PassengerRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Passenger, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query passengers", zap.Error(err))
		return nil, fmt.Errorf("failed to query passengers: %w", err)
	}
	defer rows.Close()

	var passengers []*entity.Passenger
	for rows.Next() {
		p, err := scanPassenger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan passenger: %w", err)
		}
		passengers = append(passengers, p)
	}

	return passengers, rows.Err()
}

func scanPassenger(s scanner) (*entity.Passenger, error) {
	var p entity.Passenger
	err := s.Scan(
		&p.ID,
		&p.FlightID,
		&p.PNR,
		&p.FirstName,
		&p.LastName,
		&p.Seat,
		&p.BoardingStatus,
		&p.QFFTier,
		&p.IsTransit,
		&p.Phone,
		&p.Email,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Verify interface compliance
var _ port.PassengerRepository = (*PassengerRepository)(nil)

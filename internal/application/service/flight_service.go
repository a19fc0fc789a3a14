package service

import (
	"context"
	"fmt"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// FlightView is a flight with its derived disruption category
type FlightView struct {
	*entity.Flight
	Route              string `json:"route"`
	DisruptionCategory string `json:"disruption_category,omitempty"`
}

func newFlightView(f *entity.Flight) *FlightView {
	return &FlightView{Flight: f, Route: f.Route(), DisruptionCategory: f.DisruptionCategory()}
}

// FlightService reads flights and passenger manifests
type FlightService interface {
	ListFlights(ctx context.Context, filter port.FlightFilter) ([]*FlightView, error)
	GetFlight(ctx context.Context, id int64) (*FlightView, error)
	ListPassengers(ctx context.Context, flightID int64, filter port.PassengerFilter) ([]*entity.Passenger, error)
}

type flightServiceImpl struct {
	flightRepo    port.FlightRepository
	passengerRepo port.PassengerRepository
	logger        Logger
}

// NewFlightService creates a new FlightService
func NewFlightService(flightRepo port.FlightRepository, passengerRepo port.PassengerRepository, logger Logger) FlightService {
	return &flightServiceImpl{
		flightRepo:    flightRepo,
		passengerRepo: passengerRepo,
		logger:        logger,
	}
}

func (s *flightServiceImpl) ListFlights(ctx context.Context, filter port.FlightFilter) ([]*FlightView, error) {
	flights, err := s.flightRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list flights", "error", err)
		return nil, fmt.Errorf("list flights: %w", err)
	}

	views := make([]*FlightView, 0, len(flights))
	for _, f := range flights {
		views = append(views, newFlightView(f))
	}
	return views, nil
}

func (s *flightServiceImpl) GetFlight(ctx context.Context, id int64) (*FlightView, error) {
	f, err := s.flightRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return newFlightView(f), nil
}

func (s *flightServiceImpl) ListPassengers(ctx context.Context, flightID int64, filter port.PassengerFilter) ([]*entity.Passenger, error) {
	if _, err := s.flightRepo.GetByID(ctx, flightID); err != nil {
		return nil, err
	}

	passengers, err := s.passengerRepo.ListByFlight(ctx, flightID, filter)
	if err != nil {
		s.logger.Error("Failed to list passengers", "error", err, "flight_id", flightID)
		return nil, fmt.Errorf("list passengers: %w", err)
	}
	if passengers == nil {
		passengers = []*entity.Passenger{}
	}
	return passengers, nil
}

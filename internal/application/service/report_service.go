package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// Total is a count and amount for one group. Voided and failed issuances
// are counted but never contribute to AmountCents.
type Total struct {
	Key         string `json:"key"`
	Count       int    `json:"count"`
	AmountCents int64  `json:"amount_cents"`
}

// Summary aggregates issuances for supervisor and finance views
type Summary struct {
	Currency      string  `json:"currency"`
	Overall       Total   `json:"overall"`
	ByVoucherType []Total `json:"by_voucher_type"`
	ByFlight      []Total `json:"by_flight"`
	ByStatus      []Total `json:"by_status"`
}

// ReportService builds issuance summaries
type ReportService interface {
	Summary(ctx context.Context, filter entity.IssuanceFilter) (*Summary, error)
}

type reportServiceImpl struct {
	issuanceRepo port.IssuanceRepository
	flightRepo   port.FlightRepository
	currency     string
	logger       Logger
}

// NewReportService creates a new ReportService
func NewReportService(issuanceRepo port.IssuanceRepository, flightRepo port.FlightRepository, currency string, logger Logger) ReportService {
	return &reportServiceImpl{
		issuanceRepo: issuanceRepo,
		flightRepo:   flightRepo,
		currency:     currency,
		logger:       logger,
	}
}

func (s *reportServiceImpl) Summary(ctx context.Context, filter entity.IssuanceFilter) (*Summary, error) {
	issuances, err := s.issuanceRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list issuances for summary", "error", err)
		return nil, fmt.Errorf("list issuances: %w", err)
	}

	flights, err := s.flightRepo.List(ctx, port.FlightFilter{})
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	numbers := make(map[int64]string, len(flights))
	for _, f := range flights {
		numbers[f.ID] = f.FlightNumber
	}

	return Summarize(issuances, numbers, s.currency), nil
}

// Summarize groups issuances by voucher type, flight number and status.
// Voucher types are listed in display order, the other groups by key.
func Summarize(issuances []*entity.Issuance, flightNumbers map[int64]string, currency string) *Summary {
	byType := make(map[string]*Total)
	byFlight := make(map[string]*Total)
	byStatus := make(map[string]*Total)
	sum := &Summary{Currency: currency, Overall: Total{Key: "ALL"}}

	add := func(m map[string]*Total, key string, iss *entity.Issuance) {
		t, ok := m[key]
		if !ok {
			t = &Total{Key: key}
			m[key] = t
		}
		t.Count++
		if iss.IsPayable() {
			t.AmountCents += iss.AmountCents
		}
	}

	for _, iss := range issuances {
		flight := flightNumbers[iss.FlightID]
		if flight == "" {
			flight = fmt.Sprintf("#%d", iss.FlightID)
		}
		add(byType, iss.VoucherType, iss)
		add(byFlight, flight, iss)
		add(byStatus, iss.Status, iss)
		sum.Overall.Count++
		if iss.IsPayable() {
			sum.Overall.AmountCents += iss.AmountCents
		}
	}

	sum.ByVoucherType = make([]Total, 0, len(byType))
	for _, vt := range entity.VoucherTypes() {
		if t, ok := byType[vt]; ok {
			sum.ByVoucherType = append(sum.ByVoucherType, *t)
		}
	}
	sum.ByFlight = sortedTotals(byFlight)
	sum.ByStatus = sortedTotals(byStatus)
	return sum
}

func sortedTotals(m map[string]*Total) []Total {
	out := make([]Total, 0, len(m))
	for _, t := range m {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

package service

import (
	"time"

	appwf "github.com/garyjia/voucher-desk/internal/application/workflow"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// desk wires the issuing services over in-memory mocks
type desk struct {
	flights       *mockFlightRepo
	passengers    *mockPassengerRepo
	presetRepo    *mockPresetRepo
	issuanceRepo  *mockIssuanceRepo
	intentRepo    *mockIntentRepo
	rideshare     *mockRideshare
	availability  *mockAvailability
	dispatcher    *mockDispatcher
	tx            *mockTxManager
	engine        appwf.LifecycleEngine
	issuance      IssuanceService
	queue         QueueService
	presetService PresetService
}

const (
	flightCancelled int64 = 1
	flightOnTime    int64 = 2
	flightLongDelay int64 = 3
)

func newDesk() *desk {
	sched := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	d := &desk{
		flights: &mockFlightRepo{flights: map[int64]*entity.Flight{
			flightCancelled: {ID: flightCancelled, FlightNumber: "QF401", Origin: "SYD", Destination: "MEL", ScheduledDeparture: sched, DisruptionStatus: entity.DisruptionCancelled},
			flightOnTime:    {ID: flightOnTime, FlightNumber: "QF403", Origin: "SYD", Destination: "MEL", ScheduledDeparture: sched, DisruptionStatus: entity.DisruptionOnTime},
			flightLongDelay: {ID: flightLongDelay, FlightNumber: "QF7", Origin: "SYD", Destination: "DFW", ScheduledDeparture: sched, DisruptionStatus: entity.DisruptionDelayed, DelayMinutes: 240},
		}},
		passengers: &mockPassengerRepo{passengers: map[int64]*entity.Passenger{
			1: {ID: 1, FlightID: flightCancelled, PNR: "ABC123", FirstName: "Mia", LastName: "Chen", Seat: "12A", Phone: "+61400000001"},
			2: {ID: 2, FlightID: flightCancelled, PNR: "DEF456", FirstName: "Tom", LastName: "Walsh", Seat: "12B", Email: "tom@example.com"},
			3: {ID: 3, FlightID: flightOnTime, PNR: "GHI789", FirstName: "Ana", LastName: "Silva", Seat: "3C"},
			4: {ID: 4, FlightID: flightCancelled, PNR: "JKL012", FirstName: "Raj", LastName: "Patel", Seat: "14F"},
			5: {ID: 5, FlightID: flightLongDelay, PNR: "MNO345", FirstName: "Lee", LastName: "Park", Seat: "40K"},
		}},
		presetRepo: &mockPresetRepo{presets: []*entity.Preset{
			{ID: 1, VoucherType: entity.VoucherMeal, DisruptionCategory: entity.CategoryCancellation, AmountCents: 3000},
			{ID: 2, VoucherType: entity.VoucherTaxi, DisruptionCategory: entity.CategoryCancellation, AmountCents: 5000},
			{ID: 3, VoucherType: entity.VoucherRideshare, DisruptionCategory: entity.CategoryCancellation, AmountCents: 4000},
			{ID: 4, VoucherType: entity.VoucherHotel, DisruptionCategory: entity.CategoryCancellation, AmountCents: 25000},
			{ID: 5, VoucherType: entity.VoucherMeal, DisruptionCategory: entity.CategoryDelayLong, AmountCents: 2500},
		}},
		issuanceRepo: &mockIssuanceRepo{},
		intentRepo:   &mockIntentRepo{},
		rideshare:    &mockRideshare{},
		availability: &mockAvailability{},
		dispatcher:   &mockDispatcher{},
		tx:           &mockTxManager{},
	}

	logger := &mockLogger{}
	tx := d.tx
	engine := appwf.NewEngine(d.issuanceRepo, d.intentRepo, tx, appwf.WithDispatcher(d.dispatcher))
	d.engine = engine
	d.presetService = NewPresetService(d.presetRepo, d.dispatcher, 50000, logger)
	d.issuance = NewIssuanceService(
		d.flights, d.passengers, d.issuanceRepo, d.presetService, d.rideshare,
		d.availability, engine, tx, d.dispatcher,
		IssuanceConfig{Currency: "AUD", MaxAmountCents: 50000}, logger,
	)
	d.queue = NewQueueService(d.intentRepo, d.issuance, engine, d.dispatcher, logger)
	return d
}

func mealBatch(passengerIDs ...int64) *entity.BatchRequest {
	return &entity.BatchRequest{
		FlightID:     flightCancelled,
		PassengerIDs: passengerIDs,
		Vouchers:     []entity.VoucherLine{{VoucherType: entity.VoucherMeal}},
	}
}

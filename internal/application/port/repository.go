package port

import (
	"context"
	"time"

	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// FlightFilter narrows flight listings
type FlightFilter struct {
	Status        string
	DisruptedOnly bool
}

// PassengerFilter narrows a flight's passenger manifest
type PassengerFilter struct {
	Query          string // matches PNR, first/last name or seat
	BoardingStatus string
}

// FlightRepository defines persistence operations for Flight
type FlightRepository interface {
	Create(ctx context.Context, flight *entity.Flight) error
	GetByID(ctx context.Context, id int64) (*entity.Flight, error)
	List(ctx context.Context, filter FlightFilter) ([]*entity.Flight, error)
	Count(ctx context.Context) (int, error)
}

// PassengerRepository defines persistence operations for Passenger
type PassengerRepository interface {
	Create(ctx context.Context, passenger *entity.Passenger) error
	GetByID(ctx context.Context, id int64) (*entity.Passenger, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.Passenger, error)
	ListByFlight(ctx context.Context, flightID int64, filter PassengerFilter) ([]*entity.Passenger, error)
}

// PresetRepository defines persistence operations for Preset
type PresetRepository interface {
	Upsert(ctx context.Context, preset *entity.Preset) error
	GetByID(ctx context.Context, id int64) (*entity.Preset, error)
	Get(ctx context.Context, voucherType, category string) (*entity.Preset, error)
	List(ctx context.Context) ([]*entity.Preset, error)
	UpdateAmount(ctx context.Context, id int64, amountCents int64, updatedBy string) error
}

// IssuanceRepository defines persistence operations for Issuance.
// Issuances are never deleted.
type IssuanceRepository interface {
	// Create inserts the issuance; returns ErrIssuanceExists when its intent
	// already holds the same passenger and voucher type
	Create(ctx context.Context, issuance *entity.Issuance) error
	GetByID(ctx context.Context, id int64) (*entity.Issuance, error)
	List(ctx context.Context, filter entity.IssuanceFilter) ([]*entity.Issuance, error)
	ListByFlight(ctx context.Context, flightID int64) ([]*entity.Issuance, error)
	Void(ctx context.Context, id int64, reason, voidedBy string, at time.Time) error
}

// IntentRepository defines persistence operations for the offline queue
type IntentRepository interface {
	// Create inserts the intent; returns ErrIntentExists when the id is taken
	Create(ctx context.Context, intent *entity.IssuanceIntent) error
	GetByID(ctx context.Context, id string) (*entity.IssuanceIntent, error)
	// List returns intents in creation order; empty status returns all
	List(ctx context.Context, status string) ([]*entity.IssuanceIntent, error)
	// Update writes intent only while the stored row still has prevStatus and
	// prevUpdatedAt; otherwise it returns ErrConcurrentUpdate
	Update(ctx context.Context, intent *entity.IssuanceIntent, prevStatus string, prevUpdatedAt time.Time) error
	// Delete removes the intent if its status is one of statuses. A row in any
	// other status yields ErrConcurrentUpdate.
	Delete(ctx context.Context, id string, statuses ...string) error
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	ListByIssuance(ctx context.Context, issuanceID int64) ([]*entity.Notification, error)
}

// AuditRepository defines persistence operations for AuditEntry
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
	List(ctx context.Context, limit, offset int) ([]*entity.AuditEntry, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Upsert(ctx context.Context, user *entity.User) error
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	Count(ctx context.Context) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

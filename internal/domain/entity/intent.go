package entity

import "time"

// VoucherLine is one voucher type requested for every selected passenger
type VoucherLine struct {
	VoucherType string `json:"voucher_type"`
	AmountCents int64  `json:"amount_cents,omitempty"` // zero means use the preset
	Method      string `json:"method,omitempty"`       // empty means the type's default
}

// BatchRequest is the payload of one wizard submission
type BatchRequest struct {
	FlightID        int64            `json:"flight_id"`
	PassengerIDs    []int64          `json:"passenger_ids"`
	Vouchers        []VoucherLine    `json:"vouchers"`
	Notes           string           `json:"notes,omitempty"`
	Comments        map[int64]string `json:"comments,omitempty"` // per-passenger comment
	AllowDuplicates bool             `json:"allow_duplicates,omitempty"`
	IntentID        string           `json:"intent_id,omitempty"`
}

// IssuanceIntent is a deferred batch waiting in the offline queue
type IssuanceIntent struct {
	ID          string       `json:"id"`
	Payload     BatchRequest `json:"payload"`
	Status      string       `json:"status"`
	Attempts    int          `json:"attempts"`
	LastError   string       `json:"last_error,omitempty"`
	IssuanceIDs []int64      `json:"issuance_ids,omitempty"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	SyncedAt    *time.Time   `json:"synced_at,omitempty"`
}

// IsReplayable reports whether SyncNow should pick the intent up.
// POSTING is included so that an intent left mid-replay by a crash is retried.
func (i *IssuanceIntent) IsReplayable() bool {
	switch i.Status {
	case IntentStatusQueued, IntentStatusFailed, IntentStatusPosting:
		return true
	}
	return false
}

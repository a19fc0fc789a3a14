package entity

import "time"

// Issuance is a single voucher issued to one passenger
type Issuance struct {
	ID          int64      `json:"id"`
	FlightID    int64      `json:"flight_id"`
	PassengerID int64      `json:"passenger_id"`
	IntentID    string     `json:"intent_id,omitempty"`
	VoucherType string     `json:"voucher_type"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Method      string     `json:"method"`
	Serial      string     `json:"serial"`
	Status      string     `json:"status"`
	Comment     string     `json:"comment,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	IssuedBy    string     `json:"issued_by"`
	VoidReason  string     `json:"void_reason,omitempty"`
	VoidedBy    string     `json:"voided_by,omitempty"`
	VoidedAt    *time.Time `json:"voided_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Amount returns the amount in major currency units for display purposes.
func (i *Issuance) Amount() float64 {
	return float64(i.AmountCents) / 100.0
}

// IsActive reports whether the issuance still counts towards duplicates.
// A FAILED rideshare line stays active so it is not silently re-issued.
func (i *Issuance) IsActive() bool {
	return i.Status != IssuanceStatusVoided
}

// IsPayable reports whether the issuance contributes to amount totals
func (i *Issuance) IsPayable() bool {
	return i.Status == IssuanceStatusIssued
}

// IssuanceFilter narrows issuance listings. Zero values are ignored.
type IssuanceFilter struct {
	FlightID    int64
	PassengerID int64
	VoucherType string
	Status      string
	IntentID    string
	From        *time.Time
	To          *time.Time
}

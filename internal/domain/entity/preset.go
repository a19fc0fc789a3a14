package entity

import "time"

// Preset is the default amount for a voucher type under a disruption category
type Preset struct {
	ID                 int64     `json:"id"`
	VoucherType        string    `json:"voucher_type"`
	DisruptionCategory string    `json:"disruption_category"`
	AmountCents        int64     `json:"amount_cents"`
	UpdatedBy          string    `json:"updated_by,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

package entity

import "time"

// Passenger represents a booked passenger on a flight
type Passenger struct {
	ID             int64     `json:"id"`
	FlightID       int64     `json:"flight_id"`
	PNR            string    `json:"pnr"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Seat           string    `json:"seat"`
	BoardingStatus string    `json:"boarding_status"`
	QFFTier        string    `json:"qff_tier,omitempty"` // cosmetic loyalty badge
	IsTransit      bool      `json:"is_transit"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// FullName returns "First Last"
func (p *Passenger) FullName() string {
	return p.FirstName + " " + p.LastName
}

package entity

import "time"

// Flight represents a scheduled flight and its disruption state
type Flight struct {
	ID                 int64      `json:"id"`
	FlightNumber       string     `json:"flight_number"`
	Origin             string     `json:"origin"`
	Destination        string     `json:"destination"`
	ScheduledDeparture time.Time  `json:"scheduled_departure"`
	EstimatedDeparture *time.Time `json:"estimated_departure,omitempty"`
	DisruptionStatus   string     `json:"disruption_status"`
	DelayMinutes       int        `json:"delay_minutes"`
	DisruptionReason   string     `json:"disruption_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Route returns the route in ORIG-DEST form
func (f *Flight) Route() string {
	return f.Origin + "-" + f.Destination
}

// IsDisrupted reports whether vouchers may be issued against the flight
func (f *Flight) IsDisrupted() bool {
	return f.DisruptionCategory() != ""
}

// DisruptionCategory maps the disruption status to the preset category.
// An on-time flight has no category.
func (f *Flight) DisruptionCategory() string {
	switch f.DisruptionStatus {
	case DisruptionCancelled:
		return CategoryCancellation
	case DisruptionDiverted:
		return CategoryDiversion
	case DisruptionDelayed:
		if f.DelayMinutes >= LongDelayMinutes {
			return CategoryDelayLong
		}
		return CategoryDelayShort
	}
	return ""
}

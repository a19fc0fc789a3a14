package entity

import "time"

// Notification records a message sent to a passenger about an issuance
type Notification struct {
	ID                int64     `json:"id"`
	IssuanceID        int64     `json:"issuance_id"`
	Channel           string    `json:"channel"`
	Recipient         string    `json:"recipient"`
	Body              string    `json:"body"`
	Status            string    `json:"status"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

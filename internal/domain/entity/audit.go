package entity

import "time"

// AuditEntry is an append-only record of a domain event
type AuditEntry struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	Actor     string    `json:"actor"`
	SubjectID string    `json:"subject_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a desk user allowed to log in
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

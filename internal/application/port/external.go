package port

import "context"

// RideshareCode is the credit a rideshare provider returns for one passenger
type RideshareCode struct {
	Code        string
	AmountCents int64
	ExpiresAt   string
}

// RideshareProvider issues ride credits (mock Uber)
type RideshareProvider interface {
	IssueCredit(ctx context.Context, passengerRef string, amountCents int64, currency string) (*RideshareCode, error)
}

// MessageSender delivers SMS or e-mail to a passenger (mock messaging)
type MessageSender interface {
	// Send returns the provider message id
	Send(ctx context.Context, channel, recipient, body string) (string, error)
}

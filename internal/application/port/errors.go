package port

import "errors"

// Repository errors shared by all persistence adapters
var (
	ErrNotFound     = errors.New("record not found")
	ErrIntentExists = errors.New("intent already exists")
	// ErrIssuanceExists means the intent already issued this passenger and voucher type
	ErrIssuanceExists = errors.New("issuance already recorded for intent")
	// ErrConcurrentUpdate means the stored row changed since it was read
	ErrConcurrentUpdate = errors.New("record was changed concurrently")
)

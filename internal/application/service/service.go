package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/issuance"
	domainwf "github.com/garyjia/voucher-desk/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Service errors. Interfaces map them to status codes.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = port.ErrNotFound
	ErrPresetNotFound     = errors.New("preset not found")
	ErrDuplicateIssuance  = errors.New("duplicate issuance")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInvalidTransition  = domainwf.ErrInvalidTransition
	ErrIntentConflict     = errors.New("intent cannot be changed in its current status")
)

// DuplicateError carries the pairs that blocked a batch
type DuplicateError struct {
	Duplicates []issuance.Duplicate
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %d passenger/voucher pair(s) already issued", ErrDuplicateIssuance, len(e.Duplicates))
}

// Is lets errors.Is(err, ErrDuplicateIssuance) match
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateIssuance
}

// ValidationErrors collects every problem found in one request
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(v, "; "))
}

// Is lets errors.Is(err, ErrValidation) match
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

func (v *ValidationErrors) add(format string, args ...interface{}) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v ValidationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func invalidf(format string, args ...interface{}) error {
	return ValidationErrors{fmt.Sprintf(format, args...)}
}

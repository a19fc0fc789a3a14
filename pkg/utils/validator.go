package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex   = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)
	pnrRegex     = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	controlRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidatePhone accepts E.164 numbers such as +61400111222
func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("phone must be in E.164 format: %s", phone)
	}
	return nil
}

// ValidatePNR checks a six character booking reference
func ValidatePNR(pnr string) error {
	if !pnrRegex.MatchString(pnr) {
		return fmt.Errorf("PNR must be 6 upper-case letters or digits: %q", pnr)
	}
	return nil
}

// ValidateAmountCents checks 0 < cents <= maxCents. A non-positive maxCents
// disables the upper bound.
func ValidateAmountCents(cents, maxCents int64) error {
	if cents <= 0 {
		return fmt.Errorf("amount must be positive: %d", cents)
	}
	if maxCents > 0 && cents > maxCents {
		return fmt.Errorf("amount %d exceeds maximum %d", cents, maxCents)
	}
	return nil
}

// SanitizeString trims s and strips control characters other than tab and newline
func SanitizeString(s string) string {
	return strings.TrimSpace(controlRegex.ReplaceAllString(s, ""))
}

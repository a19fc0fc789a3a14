package entity

// Role constants for desk users
const (
	RoleAgent      = "agent"
	RoleSupervisor = "supervisor"
	RoleFinance    = "finance"
	RoleAdmin      = "admin"
)

// Disruption status constants for Flight
const (
	DisruptionOnTime    = "ON_TIME"
	DisruptionDelayed   = "DELAYED"
	DisruptionCancelled = "CANCELLED"
	DisruptionDiverted  = "DIVERTED"
)

// Disruption category constants used to key presets
const (
	CategoryDelayShort   = "DELAY_SHORT"
	CategoryDelayLong    = "DELAY_LONG"
	CategoryCancellation = "CANCELLATION"
	CategoryDiversion    = "DIVERSION"
)

// LongDelayMinutes is the delay at which a flight moves to CategoryDelayLong
const LongDelayMinutes = 180

// Voucher type constants
const (
	VoucherMeal      = "MEAL"      // meal allowance
	VoucherRideshare = "RIDESHARE" // Uber ride credit
	VoucherTaxi      = "TAXI"      // taxi docket
	VoucherHotel     = "HOTEL"     // overnight accommodation
)

// Issuance status constants
const (
	IssuanceStatusIssued = "ISSUED"
	IssuanceStatusFailed = "FAILED"
	IssuanceStatusVoided = "VOIDED"
)

// Offline intent status constants
const (
	IntentStatusQueued  = "QUEUED"
	IntentStatusPosting = "POSTING"
	IntentStatusSynced  = "SYNCED"
	IntentStatusFailed  = "FAILED"
)

// Boarding status constants for Passenger
const (
	BoardingCheckedIn    = "CHECKED_IN"
	BoardingBoarded      = "BOARDED"
	BoardingNotCheckedIn = "NOT_CHECKED_IN"
)

// Notification constants
const (
	ChannelSMS   = "SMS"
	ChannelEmail = "EMAIL"

	NotificationStatusSent   = "SENT"
	NotificationStatusFailed = "FAILED"
)

// voucherMethods lists the fulfilment methods accepted per voucher type.
// The first entry is the default.
var voucherMethods = map[string][]string{
	VoucherMeal:      {"DIGITAL", "PAPER"},
	VoucherRideshare: {"UBER"},
	VoucherTaxi:      {"CABCHARGE", "PAPER"},
	VoucherHotel:     {"BOOKING", "PAPER"},
}

// serialPrefixes are used when a voucher serial is generated locally
var serialPrefixes = map[string]string{
	VoucherMeal:      "MEL",
	VoucherRideshare: "UBR",
	VoucherTaxi:      "TAX",
	VoucherHotel:     "HTL",
}

// IsValidRole reports whether role is a known desk role
func IsValidRole(role string) bool {
	switch role {
	case RoleAgent, RoleSupervisor, RoleFinance, RoleAdmin:
		return true
	}
	return false
}

// IsValidVoucherType reports whether t is a known voucher type
func IsValidVoucherType(t string) bool {
	_, ok := voucherMethods[t]
	return ok
}

// VoucherTypes returns all voucher types in display order
func VoucherTypes() []string {
	return []string{VoucherMeal, VoucherRideshare, VoucherTaxi, VoucherHotel}
}

// DefaultMethod returns the default fulfilment method for a voucher type
func DefaultMethod(voucherType string) string {
	methods := voucherMethods[voucherType]
	if len(methods) == 0 {
		return ""
	}
	return methods[0]
}

// IsValidMethod reports whether method may fulfil the given voucher type
func IsValidMethod(voucherType, method string) bool {
	for _, m := range voucherMethods[voucherType] {
		if m == method {
			return true
		}
	}
	return false
}

// SerialPrefix returns the serial prefix for a voucher type
func SerialPrefix(voucherType string) string {
	if p, ok := serialPrefixes[voucherType]; ok {
		return p
	}
	return "VCH"
}

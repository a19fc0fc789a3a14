// Package issuance holds the pure rules of a voucher batch: duplicate
// detection, passenger-major fan-out and serial generation.
package issuance

import "github.com/garyjia/voucher-desk/internal/domain/entity"

// Duplicate is a requested (passenger, voucher type) pair that already has an
// active issuance on the same flight
type Duplicate struct {
	PassengerID        int64  `json:"passenger_id"`
	VoucherType        string `json:"voucher_type"`
	ExistingIssuanceID int64  `json:"existing_issuance_id"`
}

// DetectDuplicates scans existing issuances for every requested pair.
// Voided issuances and other flights are ignored. The result follows request
// order and reports at most one existing issuance per pair.
func DetectDuplicates(existing []*entity.Issuance, flightID int64, passengerIDs []int64, voucherTypes []string) []Duplicate {
	var dups []Duplicate
	for _, pid := range passengerIDs {
		for _, vt := range voucherTypes {
			for _, iss := range existing {
				if iss.FlightID != flightID || iss.PassengerID != pid || iss.VoucherType != vt {
					continue
				}
				if !iss.IsActive() {
					continue
				}
				dups = append(dups, Duplicate{
					PassengerID:        pid,
					VoucherType:        vt,
					ExistingIssuanceID: iss.ID,
				})
				break
			}
		}
	}
	return dups
}

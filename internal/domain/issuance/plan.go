package issuance

import (
	"strings"

	"github.com/google/uuid"

	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// Line is one issuance to be created: a single voucher for a single passenger
type Line struct {
	PassengerID int64
	VoucherType string
	Method      string
	AmountCents int64
	Comment     string
}

// Plan fans a batch out into passengers x voucher lines, passenger-major, in
// request order. Amounts must already be resolved; an empty method takes the
// voucher type's default.
func Plan(req *entity.BatchRequest) []Line {
	lines := make([]Line, 0, len(req.PassengerIDs)*len(req.Vouchers))
	for _, pid := range req.PassengerIDs {
		for _, v := range req.Vouchers {
			method := v.Method
			if method == "" {
				method = entity.DefaultMethod(v.VoucherType)
			}
			lines = append(lines, Line{
				PassengerID: pid,
				VoucherType: v.VoucherType,
				Method:      method,
				AmountCents: v.AmountCents,
				Comment:     req.Comments[pid],
			})
		}
	}
	return lines
}

// VoucherTypes returns the distinct voucher types of a batch in request order
func VoucherTypes(req *entity.BatchRequest) []string {
	seen := make(map[string]bool, len(req.Vouchers))
	types := make([]string, 0, len(req.Vouchers))
	for _, v := range req.Vouchers {
		if seen[v.VoucherType] {
			continue
		}
		seen[v.VoucherType] = true
		types = append(types, v.VoucherType)
	}
	return types
}

// NewSerial returns a locally generated serial such as MEL-3F2A9C01
func NewSerial(voucherType string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return entity.SerialPrefix(voucherType) + "-" + strings.ToUpper(id[:8])
}

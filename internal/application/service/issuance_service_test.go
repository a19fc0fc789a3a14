package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/domain/event"
	"github.com/garyjia/voucher-desk/internal/domain/issuance"
)

func TestIssuanceService_IssueBatch_FansOutPassengerMajor(t *testing.T) {
	d := newDesk()
	req := &entity.BatchRequest{
		FlightID:     flightCancelled,
		PassengerIDs: []int64{1, 2},
		Vouchers: []entity.VoucherLine{
			{VoucherType: entity.VoucherMeal},
			{VoucherType: entity.VoucherTaxi, AmountCents: 4200, Method: "PAPER"},
		},
		Notes:    "  storm at SYD  ",
		Comments: map[int64]string{2: "wheelchair"},
	}

	result, err := d.issuance.IssueBatch(context.Background(), req, "agent.kim")
	if err != nil {
		t.Fatalf("IssueBatch() error = %v", err)
	}

	type row struct {
		PassengerID int64
		Type        string
		Amount      int64
		Method      string
		Comment     string
	}
	var got []row
	for _, iss := range result.Issuances {
		got = append(got, row{iss.PassengerID, iss.VoucherType, iss.AmountCents, iss.Method, iss.Comment})
		if iss.Status != entity.IssuanceStatusIssued {
			t.Errorf("issuance %d status = %s, want ISSUED", iss.ID, iss.Status)
		}
		if iss.Currency != "AUD" || iss.IssuedBy != "agent.kim" || iss.Notes != "storm at SYD" {
			t.Errorf("issuance %d = %+v", iss.ID, iss)
		}
		if !strings.HasPrefix(iss.Serial, entity.SerialPrefix(iss.VoucherType)+"-") {
			t.Errorf("serial %q has wrong prefix", iss.Serial)
		}
	}
	want := []row{
		{1, entity.VoucherMeal, 3000, "DIGITAL", ""},
		{1, entity.VoucherTaxi, 4200, "PAPER", ""},
		{2, entity.VoucherMeal, 3000, "DIGITAL", "wheelchair"},
		{2, entity.VoucherTaxi, 4200, "PAPER", "wheelchair"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("issuances mismatch (-want +got):\n%s", diff)
	}
	if len(result.Failures) != 0 {
		t.Errorf("Failures = %v, want none", result.Failures)
	}
	if n := d.dispatcher.count(event.TypeIssuanceIssued); n != 4 {
		t.Errorf("issued events = %d, want 4", n)
	}
	// request must not be modified
	if req.Vouchers[0].AmountCents != 0 || req.Vouchers[0].Method != "" {
		t.Errorf("request was mutated: %+v", req.Vouchers[0])
	}
}

func TestIssuanceService_IssueBatch_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     *entity.BatchRequest
		wantMsg string
	}{
		{
			name:    "flight does not exist",
			req:     &entity.BatchRequest{FlightID: 99, PassengerIDs: []int64{1}, Vouchers: []entity.VoucherLine{{VoucherType: entity.VoucherMeal}}},
			wantMsg: "flight 99 does not exist",
		},
		{
			name:    "flight not disrupted",
			req:     &entity.BatchRequest{FlightID: flightOnTime, PassengerIDs: []int64{3}, Vouchers: []entity.VoucherLine{{VoucherType: entity.VoucherMeal, AmountCents: 1000}}},
			wantMsg: "is not disrupted",
		},
		{
			name:    "no passengers",
			req:     mealBatch(),
			wantMsg: "at least one passenger",
		},
		{
			name:    "no vouchers",
			req:     &entity.BatchRequest{FlightID: flightCancelled, PassengerIDs: []int64{1}},
			wantMsg: "at least one voucher",
		},
		{
			name:    "passenger listed twice",
			req:     mealBatch(1, 1),
			wantMsg: "listed twice",
		},
		{
			name:    "passenger on another flight",
			req:     mealBatch(3),
			wantMsg: "is not on flight QF401",
		},
		{
			name:    "unknown passenger",
			req:     mealBatch(42),
			wantMsg: "passenger 42 does not exist",
		},
		{
			name:    "unknown voucher type",
			req:     &entity.BatchRequest{FlightID: flightCancelled, PassengerIDs: []int64{1}, Vouchers: []entity.VoucherLine{{VoucherType: "SPA"}}},
			wantMsg: `unknown voucher type "SPA"`,
		},
		{
			name:    "voucher type twice",
			req:     &entity.BatchRequest{FlightID: flightCancelled, PassengerIDs: []int64{1}, Vouchers: []entity.VoucherLine{{VoucherType: entity.VoucherMeal}, {VoucherType: entity.VoucherMeal}}},
			wantMsg: "voucher type MEAL listed twice",
		},
		{
			name:    "method not valid for type",
			req:     &entity.BatchRequest{FlightID: flightCancelled, PassengerIDs: []int64{1}, Vouchers: []entity.VoucherLine{{VoucherType: entity.VoucherMeal, Method: "UBER"}}},
			wantMsg: "method UBER is not valid for MEAL",
		},
		{
			name:    "negative amount",
			req:     &entity.BatchRequest{FlightID: flightCancelled, PassengerIDs: []int64{1}, Vouchers: []entity.VoucherLine{{VoucherType: entity.VoucherMeal, AmountCents: -5}}},
			wantMsg: "greater than zero",
		},
		{
			name:    "amount above maximum",
			req:     &entity.BatchRequest{FlightID: flightCancelled, PassengerIDs: []int64{1}, Vouchers: []entity.VoucherLine{{VoucherType: entity.VoucherHotel, AmountCents: 60000}}},
			wantMsg: "exceeds maximum",
		},
		{
			name:    "no preset for category",
			req:     &entity.BatchRequest{FlightID: flightLongDelay, PassengerIDs: []int64{5}, Vouchers: []entity.VoucherLine{{VoucherType: entity.VoucherHotel}}},
			wantMsg: "no preset amount for HOTEL under DELAY_LONG",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDesk()
			_, err := d.issuance.IssueBatch(context.Background(), tt.req, "agent.kim")
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("IssueBatch() error = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
			if len(d.issuanceRepo.issuances) != 0 {
				t.Errorf("created %d issuances on invalid request", len(d.issuanceRepo.issuances))
			}
		})
	}
}

func TestIssuanceService_IssueBatch_Duplicates(t *testing.T) {
	ctx := context.Background()
	d := newDesk()

	first, err := d.issuance.IssueBatch(ctx, mealBatch(1), "agent.kim")
	if err != nil {
		t.Fatalf("first IssueBatch() error = %v", err)
	}

	_, err = d.issuance.IssueBatch(ctx, mealBatch(1, 2), "agent.kim")
	var dupErr *DuplicateError
	if !errors.As(err, &dupErr) {
		t.Fatalf("IssueBatch() error = %v, want *DuplicateError", err)
	}
	if !errors.Is(err, ErrDuplicateIssuance) {
		t.Errorf("errors.Is(err, ErrDuplicateIssuance) = false")
	}
	want := []issuance.Duplicate{{PassengerID: 1, VoucherType: entity.VoucherMeal, ExistingIssuanceID: first.Issuances[0].ID}}
	if diff := cmp.Diff(want, dupErr.Duplicates); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}
	if got := len(d.issuanceRepo.issuances); got != 1 {
		t.Errorf("issuances after blocked batch = %d, want 1", got)
	}

	override := mealBatch(1, 2)
	override.AllowDuplicates = true
	result, err := d.issuance.IssueBatch(ctx, override, "supervisor.ng")
	if err != nil {
		t.Fatalf("IssueBatch() with override error = %v", err)
	}
	if len(result.Issuances) != 2 {
		t.Errorf("issuances = %d, want 2", len(result.Issuances))
	}
}

func TestIssuanceService_IssueBatch_VoidedDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	d := newDesk()

	first, err := d.issuance.IssueBatch(ctx, mealBatch(1), "agent.kim")
	if err != nil {
		t.Fatalf("IssueBatch() error = %v", err)
	}
	if _, err := d.issuance.VoidIssuance(ctx, first.Issuances[0].ID, "wrong passenger", "supervisor.ng"); err != nil {
		t.Fatalf("VoidIssuance() error = %v", err)
	}
	if _, err := d.issuance.IssueBatch(ctx, mealBatch(1), "agent.kim"); err != nil {
		t.Errorf("IssueBatch() after void error = %v", err)
	}
}

func TestIssuanceService_IssueBatch_Outage(t *testing.T) {
	d := newDesk()
	d.availability.outage = true

	_, err := d.issuance.IssueBatch(context.Background(), mealBatch(1), "agent.kim")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("IssueBatch() error = %v, want ErrServiceUnavailable", err)
	}
	if len(d.issuanceRepo.issuances) != 0 {
		t.Error("issuances created during outage")
	}
}

func TestIssuanceService_IssueBatch_RideshareFailure(t *testing.T) {
	d := newDesk()
	var refs []string
	d.rideshare.issueCreditFunc = func(ctx context.Context, ref string, amountCents int64, currency string) (*port.RideshareCode, error) {
		refs = append(refs, ref)
		if strings.HasPrefix(ref, "DEF456") {
			return nil, errors.New("provider timeout")
		}
		return &port.RideshareCode{Code: "UBR-OK", AmountCents: amountCents}, nil
	}

	req := &entity.BatchRequest{
		FlightID:     flightCancelled,
		PassengerIDs: []int64{1, 2},
		Vouchers:     []entity.VoucherLine{{VoucherType: entity.VoucherRideshare}},
		Notes:        "late night",
	}
	result, err := d.issuance.IssueBatch(context.Background(), req, "agent.kim")
	if err != nil {
		t.Fatalf("IssueBatch() error = %v", err)
	}

	if diff := cmp.Diff([]string{"ABC123-1", "DEF456-2"}, refs); diff != "" {
		t.Errorf("provider refs mismatch (-want +got):\n%s", diff)
	}
	if len(result.Issuances) != 2 {
		t.Fatalf("issuances = %d, want 2", len(result.Issuances))
	}
	ok, failed := result.Issuances[0], result.Issuances[1]
	if ok.Status != entity.IssuanceStatusIssued || ok.Serial != "UBR-OK" || ok.Method != "UBER" {
		t.Errorf("successful rideshare = %+v", ok)
	}
	if failed.Status != entity.IssuanceStatusFailed || failed.Serial != "" {
		t.Errorf("failed rideshare = %+v", failed)
	}
	if failed.Notes != "late night | rideshare: provider timeout" {
		t.Errorf("failed notes = %q", failed.Notes)
	}
	wantFailures := []ProviderFailure{{IssuanceID: failed.ID, PassengerID: 2, VoucherType: entity.VoucherRideshare, Error: "provider timeout"}}
	if diff := cmp.Diff(wantFailures, result.Failures); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
}

func TestIssuanceService_IssueBatch_IntentReplay(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	req := mealBatch(1, 2)
	req.IntentID = "5f0c7f3e-3c1d-4d59-9c56-1d3c0f6f7a11"

	first, err := d.issuance.IssueBatch(ctx, req, "agent.kim")
	if err != nil {
		t.Fatalf("first IssueBatch() error = %v", err)
	}
	if first.Replayed {
		t.Error("first call reported Replayed")
	}

	second, err := d.issuance.IssueBatch(ctx, req, "agent.kim")
	if err != nil {
		t.Fatalf("second IssueBatch() error = %v", err)
	}
	if !second.Replayed {
		t.Error("second call did not report Replayed")
	}
	if len(second.Issuances) != 2 || second.Issuances[0].ID != first.Issuances[0].ID {
		t.Errorf("replay returned %+v", second.Issuances)
	}
	if got := len(d.issuanceRepo.issuances); got != 2 {
		t.Errorf("stored issuances = %d, want 2", got)
	}
}

func TestIssuanceService_IssueBatch_IntentCommittedConcurrently(t *testing.T) {
	const intentID = "5f0c7f3e-3c1d-4d59-9c56-1d3c0f6f7a12"
	winner := &entity.Issuance{FlightID: flightCancelled, PassengerID: 1, IntentID: intentID, VoucherType: entity.VoucherMeal, Status: entity.IssuanceStatusIssued, Serial: "MEAL-WIN"}

	t.Run("found inside the transaction", func(t *testing.T) {
		d := newDesk()
		// The other replay commits after our first check but before our write
		d.tx.withTransactionFunc = func(ctx context.Context, fn func(ctx context.Context) error) error {
			if len(d.issuanceRepo.issuances) == 0 {
				cp := *winner
				_ = d.issuanceRepo.Create(ctx, &cp)
			}
			return fn(ctx)
		}

		req := mealBatch(1)
		req.IntentID = intentID
		result, err := d.issuance.IssueBatch(context.Background(), req, "agent.kim")
		if err != nil {
			t.Fatalf("IssueBatch() error = %v", err)
		}
		if !result.Replayed || len(result.Issuances) != 1 || result.Issuances[0].Serial != "MEAL-WIN" {
			t.Errorf("result = %+v", result)
		}
		if got := len(d.issuanceRepo.issuances); got != 1 {
			t.Errorf("stored issuances = %d, want 1", got)
		}
		if n := d.dispatcher.count(event.TypeIssuanceIssued); n != 0 {
			t.Errorf("issued events = %d, want 0", n)
		}
	})

	t.Run("rejected by the unique index", func(t *testing.T) {
		d := newDesk()
		d.issuanceRepo.createFunc = func(ctx context.Context, iss *entity.Issuance) error {
			cp := *winner
			cp.ID = 41
			d.issuanceRepo.issuances = append(d.issuanceRepo.issuances, &cp)
			return fmt.Errorf("intent %s: %w", iss.IntentID, port.ErrIssuanceExists)
		}

		req := mealBatch(1)
		req.IntentID = intentID
		result, err := d.issuance.IssueBatch(context.Background(), req, "agent.kim")
		if err != nil {
			t.Fatalf("IssueBatch() error = %v", err)
		}
		if !result.Replayed || len(result.Issuances) != 1 || result.Issuances[0].ID != 41 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("index hit without a visible winner", func(t *testing.T) {
		d := newDesk()
		d.issuanceRepo.createFunc = func(ctx context.Context, iss *entity.Issuance) error {
			return port.ErrIssuanceExists
		}

		req := mealBatch(1)
		req.IntentID = intentID
		if _, err := d.issuance.IssueBatch(context.Background(), req, "agent.kim"); !errors.Is(err, port.ErrIssuanceExists) {
			t.Errorf("IssueBatch() error = %v, want %v", err, port.ErrIssuanceExists)
		}
	})
}

func TestIssuanceService_IssueBatch_StoreFailure(t *testing.T) {
	d := newDesk()
	d.issuanceRepo.createFunc = func(ctx context.Context, iss *entity.Issuance) error {
		return errors.New("disk full")
	}

	_, err := d.issuance.IssueBatch(context.Background(), mealBatch(1), "agent.kim")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("IssueBatch() error = %v, want disk full", err)
	}
	if n := d.dispatcher.count(event.TypeIssuanceIssued); n != 0 {
		t.Errorf("issued events = %d, want 0", n)
	}
}

func TestIssuanceService_VoidIssuance(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	result, err := d.issuance.IssueBatch(ctx, mealBatch(1), "agent.kim")
	if err != nil {
		t.Fatalf("IssueBatch() error = %v", err)
	}
	id := result.Issuances[0].ID

	if _, err := d.issuance.VoidIssuance(ctx, id, "  ", "supervisor.ng"); !errors.Is(err, ErrValidation) {
		t.Errorf("VoidIssuance() without reason error = %v, want ErrValidation", err)
	}

	voided, err := d.issuance.VoidIssuance(ctx, id, "issued to wrong PNR", "supervisor.ng")
	if err != nil {
		t.Fatalf("VoidIssuance() error = %v", err)
	}
	if voided.Status != entity.IssuanceStatusVoided || voided.VoidedBy != "supervisor.ng" || voided.VoidedAt == nil {
		t.Errorf("voided = %+v", voided)
	}
	if n := d.dispatcher.count(event.TypeIssuanceVoided); n != 1 {
		t.Errorf("voided events = %d, want 1", n)
	}

	if _, err := d.issuance.VoidIssuance(ctx, id, "again", "supervisor.ng"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second VoidIssuance() error = %v, want ErrInvalidTransition", err)
	}
	if _, err := d.issuance.VoidIssuance(ctx, 999, "missing", "supervisor.ng"); !errors.Is(err, ErrNotFound) {
		t.Errorf("VoidIssuance() unknown id error = %v, want ErrNotFound", err)
	}
}

func TestIssuanceService_CheckDuplicates(t *testing.T) {
	ctx := context.Background()
	d := newDesk()
	if _, err := d.issuance.IssueBatch(ctx, mealBatch(2), "agent.kim"); err != nil {
		t.Fatalf("IssueBatch() error = %v", err)
	}

	dups, err := d.issuance.CheckDuplicates(ctx, flightCancelled, []int64{1, 2}, []string{entity.VoucherMeal, entity.VoucherTaxi})
	if err != nil {
		t.Fatalf("CheckDuplicates() error = %v", err)
	}
	if len(dups) != 1 || dups[0].PassengerID != 2 || dups[0].VoucherType != entity.VoucherMeal {
		t.Errorf("CheckDuplicates() = %+v", dups)
	}

	none, err := d.issuance.CheckDuplicates(ctx, flightCancelled, []int64{4}, []string{entity.VoucherMeal})
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("CheckDuplicates() = %v, %v; want empty non-nil", none, err)
	}

	if _, err := d.issuance.CheckDuplicates(ctx, flightCancelled, []int64{1}, []string{"SPA"}); !errors.Is(err, ErrValidation) {
		t.Errorf("CheckDuplicates() bad type error = %v", err)
	}
}

func TestIssuanceService_ListIssuances_RejectsUnknownType(t *testing.T) {
	d := newDesk()
	if _, err := d.issuance.ListIssuances(context.Background(), entity.IssuanceFilter{VoucherType: "SPA"}); !errors.Is(err, ErrValidation) {
		t.Errorf("ListIssuances() error = %v, want ErrValidation", err)
	}
	list, err := d.issuance.ListIssuances(context.Background(), entity.IssuanceFilter{})
	if err != nil || list == nil {
		t.Errorf("ListIssuances() = %v, %v; want empty non-nil", list, err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/garyjia/voucher-desk/internal/application/dispatcher"
	"github.com/garyjia/voucher-desk/internal/application/port"
	appwf "github.com/garyjia/voucher-desk/internal/application/workflow"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/internal/domain/event"
	"github.com/garyjia/voucher-desk/internal/domain/issuance"
	"github.com/garyjia/voucher-desk/pkg/utils"
)

// IssuanceConfig holds issuing limits
type IssuanceConfig struct {
	Currency       string
	MaxAmountCents int64
}

// ProviderFailure is a rideshare call that failed during a batch
type ProviderFailure struct {
	IssuanceID  int64  `json:"issuance_id"`
	PassengerID int64  `json:"passenger_id"`
	VoucherType string `json:"voucher_type"`
	Error       string `json:"error"`
}

// BatchResult is the outcome of IssueBatch
type BatchResult struct {
	IntentID  string             `json:"intent_id,omitempty"`
	Issuances []*entity.Issuance `json:"issuances"`
	Failures  []ProviderFailure  `json:"failures"`
	Replayed  bool               `json:"replayed"`
}

// BatchIssuer is the part of IssuanceService the offline queue replays into
type BatchIssuer interface {
	IssueBatch(ctx context.Context, req *entity.BatchRequest, actor string) (*BatchResult, error)
}

// IssuanceService issues, lists and voids vouchers
type IssuanceService interface {
	BatchIssuer
	CheckDuplicates(ctx context.Context, flightID int64, passengerIDs []int64, voucherTypes []string) ([]issuance.Duplicate, error)
	ListIssuances(ctx context.Context, filter entity.IssuanceFilter) ([]*entity.Issuance, error)
	GetIssuance(ctx context.Context, id int64) (*entity.Issuance, error)
	VoidIssuance(ctx context.Context, id int64, reason, actor string) (*entity.Issuance, error)
}

type issuanceServiceImpl struct {
	flightRepo    port.FlightRepository
	passengerRepo port.PassengerRepository
	issuanceRepo  port.IssuanceRepository
	presets       PresetService
	rideshare     port.RideshareProvider
	availability  Availability
	engine        appwf.LifecycleEngine
	txManager     port.TransactionManager
	dispatcher    dispatcher.Dispatcher
	cfg           IssuanceConfig
	logger        Logger
}

// NewIssuanceService creates a new IssuanceService
func NewIssuanceService(
	flightRepo port.FlightRepository,
	passengerRepo port.PassengerRepository,
	issuanceRepo port.IssuanceRepository,
	presets PresetService,
	rideshare port.RideshareProvider,
	availability Availability,
	engine appwf.LifecycleEngine,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	cfg IssuanceConfig,
	logger Logger,
) IssuanceService {
	if cfg.Currency == "" {
		cfg.Currency = "AUD"
	}
	return &issuanceServiceImpl{
		flightRepo:    flightRepo,
		passengerRepo: passengerRepo,
		issuanceRepo:  issuanceRepo,
		presets:       presets,
		rideshare:     rideshare,
		availability:  availability,
		engine:        engine,
		txManager:     txManager,
		dispatcher:    d,
		cfg:           cfg,
		logger:        logger,
	}
}

// CheckDuplicates lists requested pairs that already hold an active issuance
func (s *issuanceServiceImpl) CheckDuplicates(ctx context.Context, flightID int64, passengerIDs []int64, voucherTypes []string) ([]issuance.Duplicate, error) {
	var verrs ValidationErrors
	if flightID <= 0 {
		verrs.add("flight_id is required")
	}
	for _, vt := range voucherTypes {
		if !entity.IsValidVoucherType(vt) {
			verrs.add("unknown voucher type %q", vt)
		}
	}
	if err := verrs.err(); err != nil {
		return nil, err
	}

	existing, err := s.issuanceRepo.ListByFlight(ctx, flightID)
	if err != nil {
		return nil, fmt.Errorf("list issuances: %w", err)
	}

	dups := issuance.DetectDuplicates(existing, flightID, passengerIDs, voucherTypes)
	if dups == nil {
		dups = []issuance.Duplicate{}
	}
	return dups, nil
}

// IssueBatch validates, fans out and records a wizard submission
func (s *issuanceServiceImpl) IssueBatch(ctx context.Context, req *entity.BatchRequest, actor string) (*BatchResult, error) {
	if s.availability != nil && s.availability.Outage() {
		return nil, fmt.Errorf("%w: issuing backend is offline", ErrServiceUnavailable)
	}

	if req.IntentID != "" {
		prior, err := s.priorIssuances(ctx, req.IntentID)
		if err != nil {
			return nil, err
		}
		if len(prior) > 0 {
			return s.replayed(req.IntentID, prior), nil
		}
	}

	resolved, passengers, err := s.validateBatch(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resolved.AllowDuplicates {
		existing, err := s.issuanceRepo.ListByFlight(ctx, resolved.FlightID)
		if err != nil {
			return nil, fmt.Errorf("list issuances: %w", err)
		}
		dups := issuance.DetectDuplicates(existing, resolved.FlightID, resolved.PassengerIDs, issuance.VoucherTypes(resolved))
		if len(dups) > 0 {
			s.logger.Info("Batch blocked by duplicates", "flight_id", resolved.FlightID, "duplicates", len(dups), "actor", actor)
			return nil, &DuplicateError{Duplicates: dups}
		}
	}

	lines := issuance.Plan(resolved)
	issuances := make([]*entity.Issuance, 0, len(lines))
	providerErrs := make([]string, len(lines))

	for i, line := range lines {
		iss := &entity.Issuance{
			FlightID:    resolved.FlightID,
			PassengerID: line.PassengerID,
			IntentID:    resolved.IntentID,
			VoucherType: line.VoucherType,
			AmountCents: line.AmountCents,
			Currency:    s.cfg.Currency,
			Method:      line.Method,
			Status:      entity.IssuanceStatusIssued,
			Comment:     line.Comment,
			Notes:       resolved.Notes,
			IssuedBy:    actor,
		}

		if line.VoucherType == entity.VoucherRideshare && s.rideshare != nil {
			p := passengers[line.PassengerID]
			code, err := s.rideshare.IssueCredit(ctx, p.PNR+"-"+strconv.FormatInt(p.ID, 10), line.AmountCents, s.cfg.Currency)
			if err != nil {
				s.logger.Error("Rideshare credit failed", "error", err, "passenger_id", line.PassengerID)
				iss.Status = entity.IssuanceStatusFailed
				iss.Notes = joinNotes(resolved.Notes, "rideshare: "+err.Error())
				providerErrs[i] = err.Error()
			} else {
				iss.Serial = code.Code
			}
		} else {
			iss.Serial = issuance.NewSerial(line.VoucherType)
		}

		issuances = append(issuances, iss)
	}

	// The intent check is repeated under the write lock so that two replays
	// of one intent cannot both insert
	var prior []*entity.Issuance
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if resolved.IntentID != "" {
			found, err := s.priorIssuances(txCtx, resolved.IntentID)
			if err != nil {
				return err
			}
			if len(found) > 0 {
				prior = found
				return nil
			}
		}
		for _, iss := range issuances {
			if err := s.issuanceRepo.Create(txCtx, iss); err != nil {
				return fmt.Errorf("create issuance: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, port.ErrIssuanceExists) {
		// Committed by a writer outside this process
		prior, err = s.priorIssuances(ctx, resolved.IntentID)
		if err == nil && len(prior) == 0 {
			err = fmt.Errorf("intent %s: %w", resolved.IntentID, port.ErrIssuanceExists)
		}
	}
	if err != nil {
		s.logger.Error("Failed to record batch", "error", err, "flight_id", resolved.FlightID)
		return nil, err
	}
	if len(prior) > 0 {
		return s.replayed(resolved.IntentID, prior), nil
	}

	result := &BatchResult{IntentID: resolved.IntentID, Issuances: issuances, Failures: []ProviderFailure{}}
	for i, msg := range providerErrs {
		if msg == "" {
			continue
		}
		result.Failures = append(result.Failures, ProviderFailure{
			IssuanceID:  issuances[i].ID,
			PassengerID: issuances[i].PassengerID,
			VoucherType: issuances[i].VoucherType,
			Error:       msg,
		})
	}

	s.emitIssued(ctx, resolved, issuances, actor)

	s.logger.Info("Batch issued",
		"flight_id", resolved.FlightID,
		"passengers", len(resolved.PassengerIDs),
		"issuances", len(issuances),
		"failures", len(result.Failures),
		"intent_id", resolved.IntentID,
		"actor", actor,
	)
	return result, nil
}

func (s *issuanceServiceImpl) priorIssuances(ctx context.Context, intentID string) ([]*entity.Issuance, error) {
	prior, err := s.issuanceRepo.List(ctx, entity.IssuanceFilter{IntentID: intentID})
	if err != nil {
		return nil, fmt.Errorf("check intent replay: %w", err)
	}
	return prior, nil
}

func (s *issuanceServiceImpl) replayed(intentID string, prior []*entity.Issuance) *BatchResult {
	s.logger.Info("Intent already issued, returning prior issuances", "intent_id", intentID, "count", len(prior))
	return &BatchResult{IntentID: intentID, Issuances: prior, Failures: []ProviderFailure{}, Replayed: true}
}

// validateBatch returns a copy of req with amounts and methods resolved
func (s *issuanceServiceImpl) validateBatch(ctx context.Context, req *entity.BatchRequest) (*entity.BatchRequest, map[int64]*entity.Passenger, error) {
	var verrs ValidationErrors

	resolved := *req
	resolved.Notes = utils.SanitizeString(req.Notes)
	if len(req.Comments) > 0 {
		resolved.Comments = make(map[int64]string, len(req.Comments))
		for id, c := range req.Comments {
			resolved.Comments[id] = utils.SanitizeString(c)
		}
	}
	resolved.Vouchers = make([]entity.VoucherLine, len(req.Vouchers))
	copy(resolved.Vouchers, req.Vouchers)

	if len(req.PassengerIDs) == 0 {
		verrs.add("at least one passenger is required")
	}
	if len(req.Vouchers) == 0 {
		verrs.add("at least one voucher is required")
	}

	flight, err := s.flightRepo.GetByID(ctx, req.FlightID)
	if errors.Is(err, port.ErrNotFound) {
		verrs.add("flight %d does not exist", req.FlightID)
		return nil, nil, verrs
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get flight: %w", err)
	}
	category := flight.DisruptionCategory()
	if category == "" {
		verrs.add("flight %s is not disrupted", flight.FlightNumber)
	}

	seen := make(map[int64]bool, len(req.PassengerIDs))
	for _, id := range req.PassengerIDs {
		if seen[id] {
			verrs.add("passenger %d listed twice", id)
		}
		seen[id] = true
	}

	passengers := make(map[int64]*entity.Passenger, len(req.PassengerIDs))
	if len(req.PassengerIDs) > 0 {
		found, err := s.passengerRepo.GetByIDs(ctx, req.PassengerIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("get passengers: %w", err)
		}
		for _, p := range found {
			passengers[p.ID] = p
		}
		for _, id := range req.PassengerIDs {
			p, ok := passengers[id]
			switch {
			case !ok:
				verrs.add("passenger %d does not exist", id)
			case p.FlightID != req.FlightID:
				verrs.add("passenger %d is not on flight %s", id, flight.FlightNumber)
			}
		}
	}

	types := make(map[string]bool, len(req.Vouchers))
	for i := range resolved.Vouchers {
		v := &resolved.Vouchers[i]
		if !entity.IsValidVoucherType(v.VoucherType) {
			verrs.add("unknown voucher type %q", v.VoucherType)
			continue
		}
		if types[v.VoucherType] {
			verrs.add("voucher type %s listed twice", v.VoucherType)
		}
		types[v.VoucherType] = true

		if v.Method == "" {
			v.Method = entity.DefaultMethod(v.VoucherType)
		} else if !entity.IsValidMethod(v.VoucherType, v.Method) {
			verrs.add("method %s is not valid for %s", v.Method, v.VoucherType)
		}

		switch {
		case v.AmountCents < 0:
			verrs.add("%s amount must be greater than zero", v.VoucherType)
		case v.AmountCents == 0 && category != "":
			amount, err := s.presets.ResolveAmount(ctx, v.VoucherType, category)
			if errors.Is(err, ErrPresetNotFound) {
				verrs.add("no preset amount for %s under %s", v.VoucherType, category)
				continue
			}
			if err != nil {
				return nil, nil, err
			}
			v.AmountCents = amount
		}
		if s.cfg.MaxAmountCents > 0 && v.AmountCents > s.cfg.MaxAmountCents {
			verrs.add("%s amount %d exceeds maximum %d", v.VoucherType, v.AmountCents, s.cfg.MaxAmountCents)
		}
	}

	if err := verrs.err(); err != nil {
		return nil, nil, err
	}
	return &resolved, passengers, nil
}

// emitIssued dispatches one issuance.issued event per issuance.
// Handler failures are logged by the dispatcher and never fail the batch.
func (s *issuanceServiceImpl) emitIssued(ctx context.Context, req *entity.BatchRequest, issuances []*entity.Issuance, actor string) {
	if s.dispatcher == nil {
		return
	}
	correlationID := req.IntentID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	for _, iss := range issuances {
		evt := event.NewEventWithCorrelation(event.TypeIssuanceIssued, strconv.FormatInt(iss.ID, 10), actor, map[string]interface{}{
			"flight_id":    iss.FlightID,
			"passenger_id": iss.PassengerID,
			"voucher_type": iss.VoucherType,
			"amount_cents": iss.AmountCents,
			"status":       iss.Status,
			"serial":       iss.Serial,
		}, correlationID)
		_ = s.dispatcher.Dispatch(ctx, evt)
	}
}

func (s *issuanceServiceImpl) ListIssuances(ctx context.Context, filter entity.IssuanceFilter) ([]*entity.Issuance, error) {
	if filter.VoucherType != "" && !entity.IsValidVoucherType(filter.VoucherType) {
		return nil, invalidf("unknown voucher type %q", filter.VoucherType)
	}
	list, err := s.issuanceRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list issuances", "error", err)
		return nil, fmt.Errorf("list issuances: %w", err)
	}
	if list == nil {
		list = []*entity.Issuance{}
	}
	return list, nil
}

func (s *issuanceServiceImpl) GetIssuance(ctx context.Context, id int64) (*entity.Issuance, error) {
	return s.issuanceRepo.GetByID(ctx, id)
}

// VoidIssuance voids an ISSUED or FAILED issuance. Voiding twice is an invalid transition.
func (s *issuanceServiceImpl) VoidIssuance(ctx context.Context, id int64, reason, actor string) (*entity.Issuance, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, invalidf("void reason is required")
	}
	iss, err := s.engine.VoidIssuance(ctx, id, reason, actor)
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			s.logger.Error("Failed to void issuance", "error", err, "issuance_id", id)
		}
		return nil, err
	}
	s.logger.Info("Issuance voided", "issuance_id", id, "actor", actor)
	return iss, nil
}

func joinNotes(notes, extra string) string {
	if notes == "" {
		return extra
	}
	return notes + " | " + extra
}

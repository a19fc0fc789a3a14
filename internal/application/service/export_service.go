package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	issuancesSheet = "Issuances"
	summarySheet   = "Summary"
)

// ExportHeader is the column order shared by the CSV and the Issuances sheet
var ExportHeader = []string{
	"issuance_id", "created_at", "flight_number", "route", "pnr", "passenger_name",
	"seat", "voucher_type", "amount", "currency", "method", "serial", "status",
	"issued_by", "comment", "notes",
}

// ExportService renders issuances for finance
type ExportService interface {
	ExportCSV(ctx context.Context, filter entity.IssuanceFilter, w io.Writer) (int, error)
	ExportXLSX(ctx context.Context, filter entity.IssuanceFilter, w io.Writer) (int, error)
	// SaveExport writes an export into file storage and returns its full path
	SaveExport(ctx context.Context, format string, filter entity.IssuanceFilter) (string, error)
}

type exportServiceImpl struct {
	issuanceRepo  port.IssuanceRepository
	flightRepo    port.FlightRepository
	passengerRepo port.PassengerRepository
	storage       port.FileStorage
	currency      string
	now           func() time.Time
	logger        Logger
}

// NewExportService creates a new ExportService. storage may be nil when
// SaveExport is not used.
func NewExportService(
	issuanceRepo port.IssuanceRepository,
	flightRepo port.FlightRepository,
	passengerRepo port.PassengerRepository,
	storage port.FileStorage,
	currency string,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		issuanceRepo:  issuanceRepo,
		flightRepo:    flightRepo,
		passengerRepo: passengerRepo,
		storage:       storage,
		currency:      currency,
		now:           time.Now,
		logger:        logger,
	}
}

type exportRow struct {
	iss       *entity.Issuance
	flight    *entity.Flight
	passenger *entity.Passenger
}

func (r exportRow) strings() []string {
	flightNumber, route := "", ""
	if r.flight != nil {
		flightNumber, route = r.flight.FlightNumber, r.flight.Route()
	}
	pnr, name, seat := "", "", ""
	if r.passenger != nil {
		pnr, name, seat = r.passenger.PNR, r.passenger.FullName(), r.passenger.Seat
	}
	return []string{
		fmt.Sprintf("%d", r.iss.ID),
		r.iss.CreatedAt.UTC().Format(time.RFC3339),
		flightNumber,
		route,
		pnr,
		name,
		seat,
		r.iss.VoucherType,
		FormatCents(r.iss.AmountCents),
		r.iss.Currency,
		r.iss.Method,
		r.iss.Serial,
		r.iss.Status,
		r.iss.IssuedBy,
		r.iss.Comment,
		r.iss.Notes,
	}
}

// FormatCents renders cents with two decimals, e.g. 2550 -> "25.50"
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func (s *exportServiceImpl) rows(ctx context.Context, filter entity.IssuanceFilter) ([]exportRow, error) {
	issuances, err := s.issuanceRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list issuances: %w", err)
	}

	flights, err := s.flightRepo.List(ctx, port.FlightFilter{})
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	flightByID := make(map[int64]*entity.Flight, len(flights))
	for _, f := range flights {
		flightByID[f.ID] = f
	}

	seen := make(map[int64]bool)
	var ids []int64
	for _, iss := range issuances {
		if !seen[iss.PassengerID] {
			seen[iss.PassengerID] = true
			ids = append(ids, iss.PassengerID)
		}
	}
	passengers, err := s.passengerRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get passengers: %w", err)
	}
	paxByID := make(map[int64]*entity.Passenger, len(passengers))
	for _, p := range passengers {
		paxByID[p.ID] = p
	}

	rows := make([]exportRow, 0, len(issuances))
	for _, iss := range issuances {
		rows = append(rows, exportRow{iss: iss, flight: flightByID[iss.FlightID], passenger: paxByID[iss.PassengerID]})
	}
	return rows, nil
}

// ExportCSV writes an RFC 4180 CSV and returns the number of data rows
func (s *exportServiceImpl) ExportCSV(ctx context.Context, filter entity.IssuanceFilter, w io.Writer) (int, error) {
	rows, err := s.rows(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to build CSV export", "error", err)
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.strings()); err != nil {
			return 0, fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}

	s.logger.Info("CSV export generated", "rows", len(rows))
	return len(rows), nil
}

// ExportXLSX writes a workbook with an Issuances sheet and a Summary sheet
func (s *exportServiceImpl) ExportXLSX(ctx context.Context, filter entity.IssuanceFilter, w io.Writer) (int, error) {
	rows, err := s.rows(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to build XLSX export", "error", err)
		return 0, err
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), issuancesSheet); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}
	if err := fillIssuancesSheet(file, rows); err != nil {
		return 0, err
	}

	issuances := make([]*entity.Issuance, 0, len(rows))
	numbers := make(map[int64]string)
	for _, r := range rows {
		issuances = append(issuances, r.iss)
		if r.flight != nil {
			numbers[r.flight.ID] = r.flight.FlightNumber
		}
	}
	if err := fillSummarySheet(file, Summarize(issuances, numbers, s.currency)); err != nil {
		return 0, err
	}

	if _, err := file.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("XLSX export generated", "rows", len(rows))
	return len(rows), nil
}

func fillIssuancesSheet(file *excelize.File, rows []exportRow) error {
	header := make([]interface{}, len(ExportHeader))
	for i, h := range ExportHeader {
		header[i] = h
	}
	if err := file.SetSheetRow(issuancesSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to set header: %w", err)
	}

	for i, r := range rows {
		values := r.strings()
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		// amount column as a number so totals work in the spreadsheet
		row[0] = r.iss.ID
		row[8] = r.iss.Amount()

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(issuancesSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to set row %d: %w", i+2, err)
		}
	}
	return nil
}

func fillSummarySheet(file *excelize.File, sum *Summary) error {
	if _, err := file.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	rows := [][]interface{}{{"voucher_type", "count", "amount", "currency"}}
	for _, t := range sum.ByVoucherType {
		rows = append(rows, []interface{}{t.Key, t.Count, float64(t.AmountCents) / 100, sum.Currency})
	}
	rows = append(rows, []interface{}{"TOTAL", sum.Overall.Count, float64(sum.Overall.AmountCents) / 100, sum.Currency})

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to set summary row %d: %w", i+1, err)
		}
	}
	return nil
}

// SaveExport renders an export into <date>/issuances-<time>.<format>
func (s *exportServiceImpl) SaveExport(ctx context.Context, format string, filter entity.IssuanceFilter) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("export storage is not configured")
	}

	var (
		buf bytes.Buffer
		n   int
		err error
	)
	switch format {
	case FormatCSV:
		n, err = s.ExportCSV(ctx, filter, &buf)
	case FormatXLSX:
		n, err = s.ExportXLSX(ctx, filter, &buf)
	default:
		return "", invalidf("unknown export format %q", format)
	}
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	rel := fmt.Sprintf("%s/issuances-%s.%s", now.Format("2006-01-02"), now.Format("150405"), format)
	if err := s.storage.Save(ctx, rel, buf.Bytes()); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}

	path := s.storage.GetFullPath(rel)
	s.logger.Info("Export saved", "path", path, "format", format, "rows", n)
	return path, nil
}

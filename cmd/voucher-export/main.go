// Command voucher-export writes an issuance export (CSV or XLSX) into the
// configured export directory and prints the file path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/voucher-desk/internal/application/service"
	"github.com/garyjia/voucher-desk/internal/config"
	"github.com/garyjia/voucher-desk/internal/container"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
	"github.com/garyjia/voucher-desk/pkg/utils"
)

func main() {
	var (
		configPath  = flag.String("config", "configs/config.yaml", "path to the YAML config file")
		format      = flag.String("format", service.FormatCSV, "export format: csv or xlsx")
		flightID    = flag.Int64("flight", 0, "only export issuances for this flight id")
		voucherType = flag.String("type", "", "only export this voucher type")
		status      = flag.String("status", "", "only export this issuance status")
		from        = flag.String("from", "", "earliest creation date, YYYY-MM-DD")
		to          = flag.String("to", "", "last creation date (inclusive), YYYY-MM-DD")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     "console",
		Service:    "voucher-export",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	filter := entity.IssuanceFilter{
		FlightID:    *flightID,
		VoucherType: strings.ToUpper(*voucherType),
		Status:      strings.ToUpper(*status),
	}
	if filter.From, err = parseDate(*from, false); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -from: %v\n", err)
		os.Exit(2)
	}
	if filter.To, err = parseDate(*to, true); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -to: %v\n", err)
		os.Exit(2)
	}

	path, err := export(cfg, logger, strings.ToLower(*format), filter)
	if err != nil {
		logger.Error("Export failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	fmt.Println(path)
}

func export(cfg *config.Config, logger *zap.Logger, format string, filter entity.IssuanceFilter) (string, error) {
	ccfg := cfg.ToContainerConfig()
	ccfg.Seed.Enabled = false
	ccfg.Worker.AutoSync = false

	c, err := container.NewContainer(ccfg, logger)
	if err != nil {
		return "", err
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		return "", err
	}
	defer func() { _ = c.Close() }()

	return c.Services().Export.SaveExport(ctx, format, filter)
}

// parseDate reads YYYY-MM-DD. An upper bound covers the whole day.
func parseDate(v string, upper bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/voucher-desk/internal/config"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("VOUCHER_JWT_SECRET", "export-test-secret-0123")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "database:\n  path: " + filepath.Join(dir, "vouchers.db") +
		"\nexport:\n  output_dir: " + filepath.Join(dir, "exports") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestExport_StartsFromFreshProcess(t *testing.T) {
	cfg := loadConfig(t)

	path, err := export(cfg, zap.NewNop(), "csv", entity.IssuanceFilter{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, cfg.Export.OutputDir))
	assert.True(t, strings.HasSuffix(path, ".csv"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only, seeding is off")
	assert.Contains(t, rows[0], "serial")
}

func TestExport_XLSXAndBadFormat(t *testing.T) {
	cfg := loadConfig(t)

	path, err := export(cfg, zap.NewNop(), "xlsx", entity.IssuanceFilter{Status: "ISSUED"})
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = export(cfg, zap.NewNop(), "pdf", entity.IssuanceFilter{})
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("", false)
	require.NoError(t, err)
	assert.Nil(t, got)

	from, err := parseDate("2026-03-14", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), *from)

	to, err := parseDate("2026-03-14", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *to, "upper bound covers the whole day")

	_, err = parseDate("14/03/2026", false)
	assert.Error(t, err)
}

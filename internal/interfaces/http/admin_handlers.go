package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportCSV handles GET /api/exports/issuances.csv
func (h *Handlers) ExportCSV(c *gin.Context) {
	filter, err := issuanceFilter(c)
	if err != nil {
		h.fail(c, "Invalid export filter", err)
		return
	}

	var buf bytes.Buffer
	n, err := h.services.Export.ExportCSV(c.Request.Context(), filter, &buf)
	if err != nil {
		h.fail(c, "CSV export failed", err)
		return
	}

	h.logger.Info("CSV export served", "rows", n, "user", actor(c))
	attachment(c, "csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportXLSX handles GET /api/exports/issuances.xlsx
func (h *Handlers) ExportXLSX(c *gin.Context) {
	filter, err := issuanceFilter(c)
	if err != nil {
		h.fail(c, "Invalid export filter", err)
		return
	}

	var buf bytes.Buffer
	n, err := h.services.Export.ExportXLSX(c.Request.Context(), filter, &buf)
	if err != nil {
		h.fail(c, "XLSX export failed", err)
		return
	}

	h.logger.Info("XLSX export served", "rows", n, "user", actor(c))
	attachment(c, "xlsx")
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func attachment(c *gin.Context, ext string) {
	name := fmt.Sprintf("issuances-%s.%s", time.Now().UTC().Format("20060102-150405"), ext)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
}

// ReportSummary handles GET /api/reports/summary
func (h *Handlers) ReportSummary(c *gin.Context) {
	filter, err := issuanceFilter(c)
	if err != nil {
		h.fail(c, "Invalid report filter", err)
		return
	}

	summary, err := h.services.Reports.Summary(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to build summary", err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// ListAudit handles GET /api/admin/audit
func (h *Handlers) ListAudit(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.badRequest(c, "limit must be an integer")
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		h.badRequest(c, "offset must be an integer")
		return
	}

	entries, err := h.services.Audit.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, "Failed to list audit entries", err)
		return
	}
	ok(c, http.StatusOK, entries)
}

// OutageRequest is the body of POST /api/admin/outage
type OutageRequest struct {
	Enabled *bool `json:"enabled"`
}

// GetOutage handles GET /api/admin/outage
func (h *Handlers) GetOutage(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"enabled": h.services.Simulation.Outage()})
}

// SetOutage handles POST /api/admin/outage
func (h *Handlers) SetOutage(c *gin.Context) {
	var req OutageRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Enabled == nil {
		h.badRequest(c, "enabled is required")
		return
	}

	h.services.Simulation.SetOutage(c.Request.Context(), *req.Enabled, actor(c))
	ok(c, http.StatusOK, gin.H{"enabled": h.services.Simulation.Outage()})
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/voucher-desk/internal/application/service"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{services: services, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Outage     bool        `json:"simulated_outage"`
	Components interface{} `json:"components,omitempty"`
}

// Version is reported by the health check
const Version = "1.0.0"

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		Outage:    h.services.Simulation.Outage(),
	}

	status := http.StatusOK
	if h.services.Health != nil {
		healthy, detail := h.services.Health(c.Request.Context())
		response.Components = detail
		if !healthy {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.services.Auth.Login(c.Request.Context(), req.Username)
	if err != nil {
		h.fail(c, "Login failed", err)
		return
	}
	ok(c, http.StatusOK, result)
}

// Me handles GET /api/me
func (h *Handlers) Me(c *gin.Context) {
	claims, _ := claimsFrom(c)
	ok(c, http.StatusOK, gin.H{
		"username":     claims.Username(),
		"display_name": claims.DisplayName,
		"role":         claims.Role,
	})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// fail writes the error envelope. Client errors are logged at info level.
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err, "path", c.Request.URL.Path)
	} else {
		h.logger.Info(msg, "error", err.Error(), "status", status, "path", c.Request.URL.Path)
	}
	c.JSON(status, resp)
}

func (h *Handlers) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: message})
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Info("Invalid request body", "error", err.Error(), "path", c.Request.URL.Path)
		h.badRequest(c, "invalid request body")
		return false
	}
	return true
}

// pathID parses the :id path parameter as a positive integer
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// queryInt64 parses an optional integer query parameter
func queryInt64(c *gin.Context, key string) (int64, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// queryTime accepts RFC3339 or YYYY-MM-DD. A bare date used as an upper
// bound covers the whole day.
func queryTime(c *gin.Context, key string, upper bool) (*time.Time, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
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

// issuanceFilter reads the shared listing/export/report query parameters
func issuanceFilter(c *gin.Context) (entity.IssuanceFilter, error) {
	var (
		filter entity.IssuanceFilter
		verrs  service.ValidationErrors
		err    error
	)

	if filter.FlightID, err = queryInt64(c, "flight_id"); err != nil {
		verrs = append(verrs, "flight_id must be an integer")
	}
	if filter.PassengerID, err = queryInt64(c, "passenger_id"); err != nil {
		verrs = append(verrs, "passenger_id must be an integer")
	}
	filter.VoucherType = strings.ToUpper(strings.TrimSpace(c.Query("voucher_type")))
	filter.Status = strings.ToUpper(strings.TrimSpace(c.Query("status")))
	filter.IntentID = strings.TrimSpace(c.Query("intent_id"))
	if filter.From, err = queryTime(c, "from", false); err != nil {
		verrs = append(verrs, "from must be RFC3339 or YYYY-MM-DD")
	}
	if filter.To, err = queryTime(c, "to", true); err != nil {
		verrs = append(verrs, "to must be RFC3339 or YYYY-MM-DD")
	}

	if len(verrs) > 0 {
		return filter, verrs
	}
	return filter, nil
}

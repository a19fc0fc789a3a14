package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/voucher-desk/internal/application/port"
)

// ListFlights handles GET /api/flights
func (h *Handlers) ListFlights(c *gin.Context) {
	filter := port.FlightFilter{
		Status: strings.ToUpper(strings.TrimSpace(c.Query("status"))),
	}
	if v := c.Query("disrupted"); v != "" {
		disrupted, err := strconv.ParseBool(v)
		if err != nil {
			h.badRequest(c, "disrupted must be a boolean")
			return
		}
		filter.DisruptedOnly = disrupted
	}

	flights, err := h.services.Flights.ListFlights(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to list flights", err)
		return
	}
	ok(c, http.StatusOK, flights)
}

// GetFlight handles GET /api/flights/:id
func (h *Handlers) GetFlight(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}

	flight, err := h.services.Flights.GetFlight(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get flight", err)
		return
	}
	ok(c, http.StatusOK, flight)
}

// ListPassengers handles GET /api/flights/:id/passengers
func (h *Handlers) ListPassengers(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}

	filter := port.PassengerFilter{
		Query:          strings.TrimSpace(c.Query("q")),
		BoardingStatus: strings.ToUpper(strings.TrimSpace(c.Query("boarding_status"))),
	}
	passengers, err := h.services.Flights.ListPassengers(c.Request.Context(), id, filter)
	if err != nil {
		h.fail(c, "Failed to list passengers", err)
		return
	}
	ok(c, http.StatusOK, passengers)
}

// ListPresets handles GET /api/presets
func (h *Handlers) ListPresets(c *gin.Context) {
	presets, err := h.services.Presets.ListPresets(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list presets", err)
		return
	}
	ok(c, http.StatusOK, presets)
}

// UpdatePresetRequest is the body of PUT /api/presets/:id
type UpdatePresetRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// UpdatePreset handles PUT /api/presets/:id
func (h *Handlers) UpdatePreset(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req UpdatePresetRequest
	if !h.bindJSON(c, &req) {
		return
	}

	preset, err := h.services.Presets.UpdatePreset(c.Request.Context(), id, req.AmountCents, actor(c))
	if err != nil {
		h.fail(c, "Failed to update preset", err)
		return
	}
	ok(c, http.StatusOK, preset)
}

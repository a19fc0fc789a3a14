package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// DuplicateCheckRequest is the body of POST /api/issuances/duplicates
type DuplicateCheckRequest struct {
	FlightID     int64    `json:"flight_id"`
	PassengerIDs []int64  `json:"passenger_ids"`
	VoucherTypes []string `json:"voucher_types"`
}

// CheckDuplicates handles POST /api/issuances/duplicates
func (h *Handlers) CheckDuplicates(c *gin.Context) {
	var req DuplicateCheckRequest
	if !h.bindJSON(c, &req) {
		return
	}

	dups, err := h.services.Issuance.CheckDuplicates(c.Request.Context(), req.FlightID, req.PassengerIDs, req.VoucherTypes)
	if err != nil {
		h.fail(c, "Duplicate check failed", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"duplicates": dups})
}

// IssueBatch handles POST /api/issuances/batch
func (h *Handlers) IssueBatch(c *gin.Context) {
	var req entity.BatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.services.Issuance.IssueBatch(c.Request.Context(), &req, actor(c))
	if err != nil {
		h.fail(c, "Batch issuance failed", err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	ok(c, status, result)
}

// ListIssuances handles GET /api/issuances
func (h *Handlers) ListIssuances(c *gin.Context) {
	filter, err := issuanceFilter(c)
	if err != nil {
		h.fail(c, "Invalid issuance filter", err)
		return
	}

	list, err := h.services.Issuance.ListIssuances(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "Failed to list issuances", err)
		return
	}
	ok(c, http.StatusOK, list)
}

// GetIssuance handles GET /api/issuances/:id
func (h *Handlers) GetIssuance(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}

	iss, err := h.services.Issuance.GetIssuance(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get issuance", err)
		return
	}
	ok(c, http.StatusOK, iss)
}

// ListNotifications handles GET /api/issuances/:id/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}

	list, err := h.services.Notifications.ListNotifications(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to list notifications", err)
		return
	}
	ok(c, http.StatusOK, list)
}

// VoidRequest is the body of POST /api/issuances/:id/void
type VoidRequest struct {
	Reason string `json:"reason"`
}

// VoidIssuance handles POST /api/issuances/:id/void
func (h *Handlers) VoidIssuance(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req VoidRequest
	if !h.bindJSON(c, &req) {
		return
	}

	iss, err := h.services.Issuance.VoidIssuance(c.Request.Context(), id, req.Reason, actor(c))
	if err != nil {
		h.fail(c, "Failed to void issuance", err)
		return
	}
	ok(c, http.StatusOK, iss)
}

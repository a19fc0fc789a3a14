package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// EnqueueRequest is the body of POST /api/intents
type EnqueueRequest struct {
	IntentID string              `json:"intent_id"`
	Payload  entity.BatchRequest `json:"payload"`
}

// EnqueueIntent handles POST /api/intents
func (h *Handlers) EnqueueIntent(c *gin.Context) {
	var req EnqueueRequest
	if !h.bindJSON(c, &req) {
		return
	}

	intent, err := h.services.Queue.Enqueue(c.Request.Context(), req.IntentID, req.Payload, actor(c))
	if err != nil {
		h.fail(c, "Failed to enqueue intent", err)
		return
	}
	ok(c, http.StatusAccepted, intent)
}

// ListIntents handles GET /api/intents
func (h *Handlers) ListIntents(c *gin.Context) {
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))

	intents, err := h.services.Queue.ListIntents(c.Request.Context(), status)
	if err != nil {
		h.fail(c, "Failed to list intents", err)
		return
	}
	ok(c, http.StatusOK, intents)
}

// SyncIntents handles POST /api/intents/sync
func (h *Handlers) SyncIntents(c *gin.Context) {
	report, err := h.services.Queue.SyncNow(c.Request.Context())
	if err != nil {
		h.fail(c, "Offline queue sync failed", err)
		return
	}
	ok(c, http.StatusOK, report)
}

// RetryIntent handles POST /api/intents/:id/retry
func (h *Handlers) RetryIntent(c *gin.Context) {
	intent, err := h.services.Queue.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to retry intent", err)
		return
	}
	ok(c, http.StatusOK, intent)
}

// DiscardIntent handles DELETE /api/intents/:id
func (h *Handlers) DiscardIntent(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Queue.Discard(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, "Failed to discard intent", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id, "discarded": true})
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"booknow/internal/middleware"
	"booknow/internal/models"

	"github.com/gin-gonic/gin"
)

// ListEvents - GET /api/events
// Каталог событий из кеша, ?refresh=true сбрасывает кеш
func (h *Handlers) ListEvents(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Query("refresh") == "true" {
		if err := h.catalog.Invalidate(ctx); err != nil {
			slog.Warn("Failed to invalidate events cache", "error", err)
		}
	}

	events, err := h.catalog.Events(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetBooking - GET /api/bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	booking, err := h.bookings.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if booking.UserID != "" && booking.UserID != middleware.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetDraft - GET /api/drafts/:formId
func (h *Handlers) GetDraft(c *gin.Context) {
	draft, err := h.drafts.Load(c.Request.Context(), middleware.UserID(c), c.Param("formId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// SaveDraft - PUT /api/drafts/:formId
func (h *Handlers) SaveDraft(c *gin.Context) {
	var req models.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := h.drafts.Save(c.Request.Context(), middleware.UserID(c), c.Param("formId"), req.Data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// DiscardDraft - DELETE /api/drafts/:formId
func (h *Handlers) DiscardDraft(c *gin.Context) {
	if err := h.drafts.Discard(c.Request.Context(), middleware.UserID(c), c.Param("formId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetOffline - GET /api/offline
func (h *Handlers) GetOffline(c *gin.Context) {
	snapshot, err := h.drafts.LoadOffline(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", snapshot)
}

// SaveOffline - PUT /api/offline
func (h *Handlers) SaveOffline(c *gin.Context) {
	var snapshot json.RawMessage
	if err := c.ShouldBindJSON(&snapshot); err != nil || len(snapshot) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON document"})
		return
	}

	if err := h.drafts.SaveOffline(c.Request.Context(), middleware.UserID(c), snapshot); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

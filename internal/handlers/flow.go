package handlers

import (
	"net/http"

	"booknow/internal/flow"
	"booknow/internal/middleware"
	"booknow/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) currentFlow(c *gin.Context) (*flow.Flow, bool) {
	f, err := h.sessions.Get(middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return f, true
}

func respondSnapshot(c *gin.Context, f *flow.Flow) {
	c.JSON(http.StatusOK, f.Snapshot(true))
}

// GetFlow - GET /api/flow
// Текущее состояние сессии, уведомления выдаются один раз
func (h *Handlers) GetFlow(c *gin.Context) {
	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	respondSnapshot(c, f)
}

// SelectEvent - POST /api/flow/event
// Шаг 0: выбор события, открывает сессию при первом обращении
func (h *Handlers) SelectEvent(c *gin.Context) {
	var req models.SelectEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := h.sessions.Open(middleware.UserID(c))
	if err := f.SelectEvent(c.Request.Context(), req.EventID); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// SelectShow - POST /api/flow/show
// Шаг 1: выбор сеанса и загрузка первой страницы мест
func (h *Handlers) SelectShow(c *gin.Context) {
	var req models.SelectShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	if err := f.SelectShow(c.Request.Context(), req.ShowID); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// LoadMoreSeats - POST /api/flow/seats/more
func (h *Handlers) LoadMoreSeats(c *gin.Context) {
	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	if _, err := f.LoadMoreSeats(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// ReloadSeats - POST /api/flow/seats/reload
func (h *Handlers) ReloadSeats(c *gin.Context) {
	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	if err := f.ReloadSeats(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// SelectSeat - POST /api/flow/seats/:seatId/select
// Оптимистичный выбор места с откатом при отказе сервера
func (h *Handlers) SelectSeat(c *gin.Context) {
	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	if err := f.SelectSeat(c.Request.Context(), c.Param("seatId")); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// DeselectSeat - POST /api/flow/seats/:seatId/deselect
func (h *Handlers) DeselectSeat(c *gin.Context) {
	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	if err := f.DeselectSeat(c.Request.Context(), c.Param("seatId")); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// Checkout - POST /api/flow/checkout
// Шаг 2: проверка и блокировка мест, запуск таймера
func (h *Handlers) Checkout(c *gin.Context) {
	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	if err := f.Checkout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// ExtendTimer - POST /api/flow/timer/extend
func (h *Handlers) ExtendTimer(c *gin.Context) {
	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	if err := f.ExtendTimer(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// SyncTimer - POST /api/flow/timer/sync
func (h *Handlers) SyncTimer(c *gin.Context) {
	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	if err := f.SyncTimer(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// Confirm - POST /api/flow/confirm
// Шаг 3: создание брони
func (h *Handlers) Confirm(c *gin.Context) {
	var req models.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, ok := h.currentFlow(c)
	if !ok {
		return
	}
	if _, err := f.Confirm(c.Request.Context(), req.PaymentMethod); err != nil {
		respondError(c, err)
		return
	}
	respondSnapshot(c, f)
}

// CloseFlow - DELETE /api/flow
func (h *Handlers) CloseFlow(c *gin.Context) {
	if err := h.sessions.Close(middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

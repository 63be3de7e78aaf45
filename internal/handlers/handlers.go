package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "booknow/internal/errors"
	"booknow/internal/external"
	"booknow/internal/flow"
	"booknow/internal/logger"
	"booknow/internal/models"

	"github.com/gin-gonic/gin"
)

// Sessions - хранилище сессий бронирования
type Sessions interface {
	Open(userID string) *flow.Flow
	Get(userID string) (*flow.Flow, error)
	Close(userID string) error
}

// Catalog - кешированный каталог событий
type Catalog interface {
	Events(ctx context.Context) ([]models.Event, error)
	Invalidate(ctx context.Context) error
}

// Bookings - чтение броней из внешнего API
type Bookings interface {
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
}

// DraftStore - черновики форм и офлайн-снимки
type DraftStore interface {
	Save(ctx context.Context, userID, formID string, data json.RawMessage) (*models.Draft, error)
	Load(ctx context.Context, userID, formID string) (*models.Draft, error)
	Discard(ctx context.Context, userID, formID string) error
	SaveOffline(ctx context.Context, userID string, snapshot json.RawMessage) error
	LoadOffline(ctx context.Context, userID string) (json.RawMessage, error)
}

type Handlers struct {
	sessions Sessions
	catalog  Catalog
	bookings Bookings
	drafts   DraftStore
}

func NewHandlers(sessions Sessions, catalog Catalog, bookings Bookings, drafts DraftStore) *Handlers {
	return &Handlers{
		sessions: sessions,
		catalog:  catalog,
		bookings: bookings,
		drafts:   drafts,
	}
}

// statusFor сопоставляет ошибку с HTTP статусом
func statusFor(err error) int {
	var apiErr *external.APIError

	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound),
		errors.Is(err, apperrors.ErrSeatNotFound),
		errors.Is(err, apperrors.ErrCacheMiss):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidStep),
		errors.Is(err, apperrors.ErrFlowBusy),
		errors.Is(err, apperrors.ErrSeatBusy),
		errors.Is(err, apperrors.ErrAlreadySelected),
		errors.Is(err, apperrors.ErrNotSelected),
		errors.Is(err, apperrors.ErrStale):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrSeatUnavailable),
		errors.Is(err, apperrors.ErrMaxSeatsExceeded),
		errors.Is(err, apperrors.ErrNoSeatsSelected),
		errors.Is(err, apperrors.ErrCannotExtend),
		errors.Is(err, apperrors.ErrTimerExpired),
		errors.Is(err, apperrors.ErrSeatsRejected),
		errors.Is(err, apperrors.ErrShowNotFound),
		errors.Is(err, apperrors.ErrRemoteRejected):
		return http.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError отвечает ошибкой и сохраняет ее в контексте gin для логгера
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("Request failed", "error", err, "path", c.FullPath())
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

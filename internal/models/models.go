package models

import (
	"encoding/json"
	"time"
)

// SeatPage - страница мест сеанса
type SeatPage struct {
	Seats       []Seat `json:"seats"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
}

// EventPage - страница каталога событий
type EventPage struct {
	Events      []Event `json:"events"`
	CurrentPage int     `json:"currentPage"`
	TotalPages  int     `json:"totalPages"`
}

// ValidateSeatsRequest - проверка мест перед оформлением
type ValidateSeatsRequest struct {
	UserID      string   `json:"userId"`
	ShowSeatIDs []string `json:"showSeatIds"`
}

// ValidateSeatsResponse - результат проверки мест
type ValidateSeatsResponse struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

// LockSeatsRequest - блокировка выбранных мест на время оформления
type LockSeatsRequest struct {
	UserID      string   `json:"userId"`
	ShowID      string   `json:"showId"`
	ShowSeatIDs []string `json:"showSeatIds"`
}

// LockSeatsResponse - ответ на блокировку мест
type LockSeatsResponse struct {
	LockedUntil time.Time `json:"lockedUntil"`
}

// BookingTimerRequest - запуск или продление таймера брони
type BookingTimerRequest struct {
	UserID string `json:"userId"`
	ShowID string `json:"showId"`
}

// CreateBookingRequest - модель для создания бронирования
type CreateBookingRequest struct {
	UserID        string   `json:"userId"`
	ShowID        string   `json:"showId"`
	ShowSeatIDs   []string `json:"showSeatIds"`
	PaymentMethod string   `json:"paymentMethod"`
}

// SelectEventRequest - выбор события (шаг 0)
type SelectEventRequest struct {
	EventID string `json:"eventId" binding:"required"`
}

// SelectShowRequest - выбор сеанса (шаг 1)
type SelectShowRequest struct {
	ShowID string `json:"showId" binding:"required"`
}

// ConfirmRequest - подтверждение брони (шаг 3)
type ConfirmRequest struct {
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

// Draft - автосохранённый черновик формы (ключ autosave_<formId>)
type Draft struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// SaveDraftRequest - сохранение черновика
type SaveDraftRequest struct {
	Data json.RawMessage `json:"data" binding:"required"`
}

// NotificationLevel - уровень пользовательского уведомления
type NotificationLevel string

const (
	NotifyInfo    NotificationLevel = "info"
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
	// NotifyAlert blocks the UI until acknowledged (timer expiry)
	NotifyAlert NotificationLevel = "alert"
)

// Notification - сообщение для пользователя (toast/alert)
type Notification struct {
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

package models

import "time"

// NATS subjects
const (
	EventSeatStatusChanged   = "seat.status.changed"
	EventSeatRolledBack      = "seat.selection.rolled_back"
	EventBookingTimerExpired = "booking.timer.expired"
	EventBookingConfirmed    = "booking.confirmed"
)

// SeatStatusChangedEvent is published by the booking platform whenever a seat changes hands
type SeatStatusChangedEvent struct {
	ShowID    string    `json:"show_id"`
	Seat      Seat      `json:"seat"`
	Timestamp time.Time `json:"timestamp"`
}

// SeatRolledBackEvent represents an optimistic selection that the server refused
type SeatRolledBackEvent struct {
	UserID    string    `json:"user_id"`
	ShowID    string    `json:"show_id"`
	SeatID    string    `json:"seat_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingTimerExpiredEvent represents a seat hold that ran out before confirmation
type BookingTimerExpiredEvent struct {
	UserID    string    `json:"user_id"`
	ShowID    string    `json:"show_id"`
	SeatIDs   []string  `json:"seat_ids"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingConfirmedEvent represents a booking created through the gateway
type BookingConfirmedEvent struct {
	BookingID string    `json:"booking_id"`
	UserID    string    `json:"user_id"`
	ShowID    string    `json:"show_id"`
	Seats     int       `json:"seats"`
	Timestamp time.Time `json:"timestamp"`
}

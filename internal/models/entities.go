package models

import (
	"time"
)

// SeatStatus is the status of a seat as seen by the current user
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatBooked    SeatStatus = "BOOKED"
	SeatLocked    SeatStatus = "LOCKED"
	SeatSelected  SeatStatus = "SELECTED"
)

// Event represents an event in the catalogue
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Venue       string    `json:"venue,omitempty"`
	StartsAt    time.Time `json:"startsAt"`
}

// Show represents one performance of an event
type Show struct {
	ID       string    `json:"id"`
	EventID  string    `json:"eventId"`
	Screen   string    `json:"screen,omitempty"`
	StartsAt time.Time `json:"startsAt"`
}

// Seat represents a seat of a show. Owned by the server; the gateway holds a cached copy.
type Seat struct {
	SeatID      string     `json:"seatId"`
	ShowSeatID  string     `json:"showSeatId,omitempty"`
	Row         string     `json:"row"`
	Section     string     `json:"section,omitempty"`
	SeatType    string     `json:"seatType,omitempty"`
	Price       float64    `json:"price"`
	Status      SeatStatus `json:"status"`
	LockedBy    string     `json:"lockedBy,omitempty"`
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
}

// RemoteID returns the identifier the realtime seat endpoints expect
func (s Seat) RemoteID() string {
	if s.ShowSeatID != "" {
		return s.ShowSeatID
	}
	return s.SeatID
}

// LockedByOther reports whether the seat is held by a different user
func (s Seat) LockedByOther(userID string) bool {
	return s.Status == SeatLocked && s.LockedBy != userID
}

// Booking is a server-owned booking. The gateway only mirrors what the API returns.
type Booking struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	ShowID        string    `json:"showId"`
	ShowSeatIDs   []string  `json:"showSeatIds"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus,omitempty"`
	TotalAmount   float64   `json:"totalAmount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// BookingTimer is the server view of a seat hold countdown
type BookingTimer struct {
	RemainingSeconds int `json:"remainingSeconds"`
}

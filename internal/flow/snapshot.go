package flow

import (
	"time"

	"booknow/internal/ledger"
	"booknow/internal/models"
	"booknow/internal/timer"
)

// Snapshot is the client-facing view of a flow
type Snapshot struct {
	UserID        string                `json:"userId"`
	Step          Step                  `json:"step"`
	StepName      string                `json:"stepName"`
	EventID       string                `json:"eventId,omitempty"`
	ShowID        string                `json:"showId,omitempty"`
	Seats         []models.Seat         `json:"seats"`
	CurrentPage   int                   `json:"currentPage"`
	TotalPages    int                   `json:"totalPages"`
	HasMore       bool                  `json:"hasMore"`
	Loading       bool                  `json:"loading"`
	Selected      []string              `json:"selectedSeats"`
	MaxSeats      int                   `json:"maxSeats"`
	TotalAmount   float64               `json:"totalAmount"`
	Timer         *timer.State          `json:"timer,omitempty"`
	LockedUntil   *time.Time            `json:"lockedUntil,omitempty"`
	Booking       *models.Booking       `json:"booking,omitempty"`
	Actions       []ledger.Action       `json:"actions"`
	Notifications []models.Notification `json:"notifications"`
}

// Snapshot assembles the current view. With drain set the pending notifications
// are handed over and removed from the inbox.
func (f *Flow) Snapshot(drain bool) Snapshot {
	f.mu.Lock()
	snap := Snapshot{
		UserID:      f.userID,
		Step:        f.step,
		StepName:    f.step.String(),
		EventID:     f.eventID,
		ShowID:      f.showID,
		LockedUntil: f.lockedUntil,
		Booking:     f.booking,
	}
	f.mu.Unlock()

	snap.Seats = f.board.Seats()
	snap.CurrentPage, snap.TotalPages = f.board.Pages()
	snap.HasMore = snap.CurrentPage < snap.TotalPages
	snap.Loading = f.board.Loading()
	snap.Selected = f.board.Selected()
	snap.MaxSeats = f.selector.MaxSeats()
	snap.TotalAmount = f.selector.Total()
	snap.Actions = f.ledger.Visible()

	if snap.Step >= StepCheckout {
		state := f.timer.State()
		snap.Timer = &state
	}

	if drain {
		snap.Notifications = f.inbox.Drain()
	} else {
		snap.Notifications = f.inbox.Peek()
	}
	if snap.Notifications == nil {
		snap.Notifications = []models.Notification{}
	}
	return snap
}

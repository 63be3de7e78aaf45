package consumers

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"booknow/internal/models"

	"github.com/nats-io/stan.go"
)

// Broadcaster hands seat updates to the sessions viewing a show
type Broadcaster interface {
	BroadcastSeat(showID string, seat models.Seat) int
}

type Handlers struct {
	sessions Broadcaster
}

func NewHandlers(sessions Broadcaster) *Handlers {
	return &Handlers{sessions: sessions}
}

func decodeSeatStatusChanged(data []byte) (models.SeatStatusChangedEvent, error) {
	var event models.SeatStatusChangedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal seat status event: %w", err)
	}
	if event.ShowID == "" || event.Seat.SeatID == "" {
		return event, fmt.Errorf("seat status event without show or seat id")
	}
	return event, nil
}

func (h *Handlers) HandleSeatStatusChanged(m *stan.Msg) {
	event, err := decodeSeatStatusChanged(m.Data)
	if err != nil {
		slog.Error("Dropping seat status event", "error", err, "sequence", m.Sequence)
		return
	}

	applied := h.sessions.BroadcastSeat(event.ShowID, event.Seat)
	slog.Debug("Processed seat status event",
		"show_id", event.ShowID,
		"seat_id", event.Seat.SeatID,
		"status", event.Seat.Status,
		"sessions", applied)
}

package seats

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "booknow/internal/errors"
	"booknow/internal/ledger"
	"booknow/internal/models"
)

const DefaultMaxSeats = 6

// SeatToggler is the remote side of seat selection
type SeatToggler interface {
	SelectSeat(ctx context.Context, showSeatID, userID string) (*models.Seat, error)
	DeselectSeat(ctx context.Context, showSeatID, userID string) (*models.Seat, error)
}

// RollbackHook is called after a seat toggle was reverted because the server refused it
type RollbackHook func(seat models.Seat, reason string)

type SelectorConfig struct {
	MaxSeats   int
	OnRollback RollbackHook
}

// Selector applies seat toggles to the board first and confirms them with the server
// afterwards, rolling back on failure.
type Selector struct {
	board    *Board
	api      SeatToggler
	ledger   *ledger.Ledger
	notifier Notifier
	recorder Recorder
	cfg      SelectorConfig
}

func NewSelector(board *Board, api SeatToggler, l *ledger.Ledger, notifier Notifier, recorder Recorder, cfg SelectorConfig) *Selector {
	if cfg.MaxSeats <= 0 {
		cfg.MaxSeats = DefaultMaxSeats
	}

	return &Selector{
		board:    board,
		api:      api,
		ledger:   l,
		notifier: notifier,
		recorder: recorder,
		cfg:      cfg,
	}
}

func (s *Selector) MaxSeats() int {
	return s.cfg.MaxSeats
}

// Select marks the seat selected immediately and asks the server to hold it.
// If the server refuses, the seat returns to the status it had before, or to the
// status the server reported for it while the call was in flight.
func (s *Selector) Select(ctx context.Context, seatID string) error {
	b := s.board
	b.mu.Lock()
	i, ok := b.index[seatID]
	if !ok {
		b.mu.Unlock()
		return apperrors.ErrSeatNotFound
	}
	if _, busy := b.inflight[seatID]; busy {
		b.mu.Unlock()
		return apperrors.ErrSeatBusy
	}
	if b.isSelectedLocked(seatID) {
		b.mu.Unlock()
		return apperrors.ErrAlreadySelected
	}
	seat := b.seats[i]
	if takenByOther(seat, b.userID, false) {
		b.mu.Unlock()
		s.record("unavailable")
		return apperrors.ErrSeatUnavailable
	}
	if b.occupiedLocked() >= s.cfg.MaxSeats {
		b.mu.Unlock()
		s.record("limit")
		s.notify(models.NotifyError, fmt.Sprintf("You can select up to %d seats", s.cfg.MaxSeats))
		return apperrors.ErrMaxSeatsExceeded
	}

	b.inflight[seatID] = &pendingOp{kind: opSelect, prior: seat}
	b.selected = append(b.selected, seatID)
	b.seats[i].Status = models.SeatSelected
	epoch := b.epoch
	userID := b.userID
	b.mu.Unlock()

	actionID := s.ledger.Add(ledger.Action{
		Type:    ledger.SeatSelect,
		Subject: seatID,
		Message: fmt.Sprintf("Selecting seat %s", seatID),
	})

	returned, err := s.api.SelectSeat(ctx, seat.RemoteID(), userID)
	if err == nil && (returned == nil || !ownedBy(*returned, userID, true)) {
		err = apperrors.ErrRemoteRejected
	}

	b.mu.Lock()
	if epoch != b.epoch {
		b.mu.Unlock()
		s.ledger.Remove(actionID)
		return apperrors.ErrStale
	}
	op := b.inflight[seatID]
	delete(b.inflight, seatID)

	if err == nil {
		display := withStatus(b.seats[b.index[seatID]], *returned)
		display.Status = models.SeatSelected
		b.putLocked(display)
		b.mu.Unlock()

		s.ledger.Update(actionID, ledger.Patch{Status: ledger.Success, Message: fmt.Sprintf("Seat %s selected", seatID)})
		s.record("success")
		return nil
	}

	b.removeSelectedLocked(seatID)
	restored := op.prior
	b.putLocked(restored)
	b.mu.Unlock()

	slog.Warn("Seat selection rolled back", "seat_id", seatID, "user_id", userID, "error", err)
	s.ledger.Update(actionID, ledger.Patch{Status: ledger.Error, Message: fmt.Sprintf("Seat %s could not be selected", seatID)})
	s.notify(models.NotifyError, fmt.Sprintf("Seat %s is no longer available", seatID))
	s.record("rolled_back")
	if s.cfg.OnRollback != nil {
		s.cfg.OnRollback(restored, err.Error())
	}
	return fmt.Errorf("failed to select seat %s: %w", seatID, err)
}

// Deselect frees the seat locally and tells the server. A failed call puts the seat
// back into the selection unless the server meanwhile gave it to someone else.
func (s *Selector) Deselect(ctx context.Context, seatID string) error {
	b := s.board
	b.mu.Lock()
	if _, busy := b.inflight[seatID]; busy {
		b.mu.Unlock()
		return apperrors.ErrSeatBusy
	}
	if !b.isSelectedLocked(seatID) {
		b.mu.Unlock()
		return apperrors.ErrNotSelected
	}
	i, ok := b.index[seatID]
	if !ok {
		b.removeSelectedLocked(seatID)
		b.mu.Unlock()
		return apperrors.ErrSeatNotFound
	}
	seat := b.seats[i]

	b.inflight[seatID] = &pendingOp{kind: opDeselect, prior: seat}
	b.removeSelectedLocked(seatID)
	b.seats[i].Status = models.SeatAvailable
	b.seats[i].LockedBy = ""
	b.seats[i].LockedUntil = nil
	epoch := b.epoch
	userID := b.userID
	b.mu.Unlock()

	returned, err := s.api.DeselectSeat(ctx, seat.RemoteID(), userID)

	b.mu.Lock()
	if epoch != b.epoch {
		b.mu.Unlock()
		return apperrors.ErrStale
	}
	op := b.inflight[seatID]
	delete(b.inflight, seatID)

	if err == nil {
		if returned != nil {
			b.putLocked(withStatus(b.seats[b.index[seatID]], *returned))
		}
		b.mu.Unlock()
		s.record("deselected")
		return nil
	}

	prior := op.prior
	if takenByOther(prior, userID, true) {
		b.putLocked(prior)
	} else {
		prior.Status = models.SeatSelected
		b.putLocked(prior)
		b.selected = append(b.selected, seatID)
	}
	b.mu.Unlock()

	slog.Warn("Seat deselection rolled back", "seat_id", seatID, "user_id", userID, "error", err)
	s.notify(models.NotifyError, fmt.Sprintf("Seat %s could not be released", seatID))
	s.record("rolled_back")
	if s.cfg.OnRollback != nil {
		s.cfg.OnRollback(prior, err.Error())
	}
	return fmt.Errorf("failed to deselect seat %s: %w", seatID, err)
}

// ApplyServerUpdate merges a pushed seat status into the board. Seats of another
// show are ignored. A selected seat taken by someone else leaves the selection.
func (s *Selector) ApplyServerUpdate(showID string, seat models.Seat) bool {
	b := s.board
	b.mu.Lock()
	if b.showID == "" || b.showID != showID {
		b.mu.Unlock()
		return false
	}
	i, known := b.index[seat.SeatID]
	if !known {
		b.mu.Unlock()
		return false
	}
	dropped := b.applyLocked(withStatus(b.seats[i], seat))
	b.mu.Unlock()

	if dropped {
		s.notify(models.NotifyError, fmt.Sprintf("Seat %s was taken and removed from your selection", seat.SeatID))
		s.record("taken")
	}
	return true
}

// Clear drops the selection locally. In-flight responses become stale.
func (s *Selector) Clear() []string {
	b := s.board
	b.mu.Lock()
	defer b.mu.Unlock()

	cleared := b.selected
	for _, id := range cleared {
		if i, ok := b.index[id]; ok && b.seats[i].Status == models.SeatSelected {
			b.seats[i].Status = models.SeatAvailable
			b.seats[i].LockedBy = ""
			b.seats[i].LockedUntil = nil
		}
	}
	for id, op := range b.inflight {
		if i, ok := b.index[id]; ok {
			b.seats[i] = op.prior
			if op.kind == opDeselect || ownedBy(op.prior, b.userID, false) {
				b.seats[i].Status = models.SeatAvailable
			}
		}
	}
	b.selected = nil
	b.inflight = make(map[string]*pendingOp)
	b.epoch++
	return cleared
}

// Total sums the prices of the selected seats
func (s *Selector) Total() float64 {
	var total float64
	for _, seat := range s.board.SelectedSeats() {
		total += seat.Price
	}
	return total
}

func (s *Selector) notify(level models.NotificationLevel, msg string) {
	if s.notifier != nil {
		s.notifier.Notify(level, msg)
	}
}

func (s *Selector) record(result string) {
	if s.recorder != nil {
		s.recorder.SeatSelection(result)
	}
}

// Package seats holds the cached seat map of one show for one user: paged loading,
// the optimistic selection overlay and its reconciliation with server updates.
package seats

import (
	"sync"

	"booknow/internal/models"
)

// Notifier receives user-visible messages
type Notifier interface {
	Notify(level models.NotificationLevel, message string)
}

// Recorder receives seat metrics
type Recorder interface {
	SeatSelection(result string)
	SeatPageLoad(result string)
}

type opKind int

const (
	opSelect opKind = iota
	opDeselect
)

// pendingOp is a seat toggle whose remote call has not settled. prior is what the
// seat rolls back to; server updates that arrive meanwhile replace it.
type pendingOp struct {
	kind  opKind
	prior models.Seat
}

// Board is the seat map shared by Loader and Selector. All fields are guarded by mu,
// which is never held across a network call.
type Board struct {
	mu     sync.Mutex
	userID string

	showID      string
	seats       []models.Seat
	index       map[string]int
	currentPage int
	totalPages  int
	loading     bool
	loadGen     uint64

	selected []string
	inflight map[string]*pendingOp
	epoch    uint64
}

func NewBoard(userID string) *Board {
	return &Board{
		userID:   userID,
		index:    make(map[string]int),
		inflight: make(map[string]*pendingOp),
	}
}

func (b *Board) UserID() string {
	return b.userID
}

func (b *Board) ShowID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.showID
}

// Pages returns the last loaded page and the total page count
func (b *Board) Pages() (current, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentPage, b.totalPages
}

func (b *Board) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Seats returns a copy of the displayed seats in load order
func (b *Board) Seats() []models.Seat {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Seat, len(b.seats))
	copy(out, b.seats)
	return out
}

func (b *Board) Seat(seatID string) (models.Seat, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[seatID]
	if !ok {
		return models.Seat{}, false
	}
	return b.seats[i], true
}

// Selected returns the selected seat ids in selection order
func (b *Board) Selected() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.selected))
	copy(out, b.selected)
	return out
}

// SelectedSeats returns the selected seats in selection order
func (b *Board) SelectedSeats() []models.Seat {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Seat, 0, len(b.selected))
	for _, id := range b.selected {
		if i, ok := b.index[id]; ok {
			out = append(out, b.seats[i])
		}
	}
	return out
}

// InFlight reports whether any seat toggle is waiting for the server
func (b *Board) InFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inflight) > 0
}

// Reset forgets the show, its seats and the selection. Pending responses become stale.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.showID = ""
	b.seats = nil
	b.index = make(map[string]int)
	b.currentPage, b.totalPages = 0, 0
	b.loading = false
	b.loadGen++
	b.selected = nil
	b.inflight = make(map[string]*pendingOp)
	b.epoch++
}

// startLoadLocked registers a new load; older loads still in flight become stale
func (b *Board) startLoadLocked() uint64 {
	b.loading = true
	b.loadGen++
	return b.loadGen
}

func (b *Board) isSelectedLocked(seatID string) bool {
	for _, id := range b.selected {
		if id == seatID {
			return true
		}
	}
	return false
}

func (b *Board) removeSelectedLocked(seatID string) bool {
	for i, id := range b.selected {
		if id == seatID {
			b.selected = append(b.selected[:i], b.selected[i+1:]...)
			return true
		}
	}
	return false
}

// occupiedLocked counts the selection slots in use, including seats whose deselect
// has not settled, since a failed deselect puts them back
func (b *Board) occupiedLocked() int {
	n := len(b.selected)
	for _, op := range b.inflight {
		if op.kind == opDeselect {
			n++
		}
	}
	return n
}

// heldByMe reports whether a hold with owner lockedBy belongs to userID. A hold with
// no owner is only trusted when mine is set, i.e. the user is selecting the seat or
// already has it in the selection.
func heldByMe(lockedBy, userID string, mine bool) bool {
	if lockedBy == "" {
		return mine
	}
	return lockedBy == userID
}

// ownedBy reports whether the server-side seat is held by userID
func ownedBy(s models.Seat, userID string, mine bool) bool {
	if s.Status != models.SeatSelected && s.Status != models.SeatLocked {
		return false
	}
	return heldByMe(s.LockedBy, userID, mine)
}

// takenByOther reports whether the seat can no longer be selected by userID
func takenByOther(s models.Seat, userID string, mine bool) bool {
	switch s.Status {
	case models.SeatBooked:
		return true
	case models.SeatLocked, models.SeatSelected:
		return !heldByMe(s.LockedBy, userID, mine)
	}
	return false
}

// withStatus copies the hold fields of a server response onto a local seat
func withStatus(local, remote models.Seat) models.Seat {
	local.Status = remote.Status
	local.LockedBy = remote.LockedBy
	local.LockedUntil = remote.LockedUntil
	return local
}

func (b *Board) putLocked(s models.Seat) {
	if i, ok := b.index[s.SeatID]; ok {
		b.seats[i] = s
		return
	}
	b.index[s.SeatID] = len(b.seats)
	b.seats = append(b.seats, s)
}

// applyLocked reconciles one server seat with the local overlay and reports whether
// the seat was dropped from the selection because someone else took it
func (b *Board) applyLocked(incoming models.Seat) (dropped bool) {
	if op, ok := b.inflight[incoming.SeatID]; ok {
		op.prior = incoming
		if i, exists := b.index[incoming.SeatID]; exists {
			display := incoming
			display.Status = b.seats[i].Status
			b.seats[i] = display
		} else {
			b.putLocked(incoming)
		}
		return false
	}

	if b.isSelectedLocked(incoming.SeatID) {
		if takenByOther(incoming, b.userID, true) {
			b.removeSelectedLocked(incoming.SeatID)
			b.putLocked(incoming)
			return true
		}
		display := incoming
		display.Status = models.SeatSelected
		b.putLocked(display)
		return false
	}

	b.putLocked(incoming)
	return false
}

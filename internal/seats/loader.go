package seats

import (
	"context"
	"fmt"
	"log/slog"

	"booknow/internal/models"
)

const DefaultPageSize = 50

// SeatLister fetches one page of seats of a show
type SeatLister interface {
	ListShowSeats(ctx context.Context, showID string, page, pageSize int) (*models.SeatPage, error)
}

type Loader struct {
	board    *Board
	api      SeatLister
	pageSize int
	notifier Notifier
	recorder Recorder
}

func NewLoader(board *Board, api SeatLister, pageSize int, notifier Notifier, recorder Recorder) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Loader{
		board:    board,
		api:      api,
		pageSize: pageSize,
		notifier: notifier,
		recorder: recorder,
	}
}

// Load fetches one page of seats for showID and replaces the board with it, or appends it
// when appendPage is set and the board already shows that show. On error the board is left
// as it was. When loads overlap, only the most recent one is applied.
func (l *Loader) Load(ctx context.Context, showID string, page int, appendPage bool) error {
	if page < 1 {
		page = 1
	}

	b := l.board
	b.mu.Lock()
	gen := b.startLoadLocked()
	b.mu.Unlock()

	return l.fetch(ctx, showID, page, appendPage, gen)
}

// fetch runs the load registered as gen. Only the latest registered load is applied.
func (l *Loader) fetch(ctx context.Context, showID string, page int, appendPage bool, gen uint64) error {
	b := l.board
	result, err := l.api.ListShowSeats(ctx, showID, page, l.pageSize)

	b.mu.Lock()
	if gen != b.loadGen {
		b.mu.Unlock()
		return nil
	}
	b.loading = false

	if err != nil {
		b.mu.Unlock()
		l.recordLoad("error")
		slog.Error("Failed to load seats", "error", err, "show_id", showID, "page", page)
		l.notify(models.NotifyError, "Could not load seats. Please try again.")
		return fmt.Errorf("failed to load seats: %w", err)
	}

	var dropped []string
	if !appendPage || b.showID != showID {
		dropped = l.replaceLocked(showID, result.Seats)
	} else {
		for _, s := range result.Seats {
			if b.applyLocked(s) {
				dropped = append(dropped, s.SeatID)
			}
		}
	}
	b.currentPage = result.CurrentPage
	if b.currentPage == 0 {
		b.currentPage = page
	}
	b.totalPages = result.TotalPages
	b.mu.Unlock()

	l.recordLoad("success")
	for _, id := range dropped {
		l.notify(models.NotifyError, fmt.Sprintf("Seat %s is no longer available and was removed from your selection", id))
	}
	return nil
}

// replaceLocked swaps the seat list. Seats of the same show that are selected or in
// flight survive a reload even when the new page does not contain them.
func (l *Loader) replaceLocked(showID string, incoming []models.Seat) []string {
	b := l.board

	var keep []models.Seat
	if b.showID == showID {
		for _, s := range b.seats {
			if _, busy := b.inflight[s.SeatID]; busy || b.isSelectedLocked(s.SeatID) {
				keep = append(keep, s)
			}
		}
	} else {
		b.selected = nil
		b.inflight = make(map[string]*pendingOp)
		b.epoch++
	}

	b.showID = showID
	b.seats = nil
	b.index = make(map[string]int)
	for _, s := range keep {
		b.putLocked(s)
	}

	var dropped []string
	for _, s := range incoming {
		if b.applyLocked(s) {
			dropped = append(dropped, s.SeatID)
		}
	}
	return dropped
}

// LoadMore appends the next page. It reports false without calling the API when the
// last page is already loaded or a load is in flight.
func (l *Loader) LoadMore(ctx context.Context) (bool, error) {
	b := l.board
	b.mu.Lock()
	showID := b.showID
	next := b.currentPage + 1
	if b.loading || showID == "" || b.currentPage >= b.totalPages {
		b.mu.Unlock()
		return false, nil
	}
	gen := b.startLoadLocked()
	b.mu.Unlock()

	if err := l.fetch(ctx, showID, next, true, gen); err != nil {
		return false, err
	}
	return true, nil
}

// Reload fetches the first page again, keeping the selection
func (l *Loader) Reload(ctx context.Context) error {
	showID := l.board.ShowID()
	if showID == "" {
		return nil
	}
	return l.Load(ctx, showID, 1, false)
}

func (l *Loader) notify(level models.NotificationLevel, msg string) {
	if l.notifier != nil {
		l.notifier.Notify(level, msg)
	}
}

func (l *Loader) recordLoad(result string) {
	if l.recorder != nil {
		l.recorder.SeatPageLoad(result)
	}
}

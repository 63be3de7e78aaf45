// Package flow sequences one user's booking attempt: event, show, seats, checkout and
// confirmation. It composes the seat board, the action ledger and the hold timer with
// the remote booking API and owns no business rules of its own.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "booknow/internal/errors"
	"booknow/internal/ledger"
	"booknow/internal/models"
	"booknow/internal/seats"
	"booknow/internal/timer"

	"github.com/jonboulle/clockwork"
)

type Step int

const (
	StepSelectEvent Step = iota
	StepSelectShow
	StepSelectSeats
	StepCheckout
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepSelectEvent:
		return "select_event"
	case StepSelectShow:
		return "select_show"
	case StepSelectSeats:
		return "select_seats"
	case StepCheckout:
		return "checkout"
	case StepConfirmation:
		return "confirmation"
	}
	return "unknown"
}

// API is the part of the remote booking API a flow talks to
type API interface {
	seats.SeatLister
	seats.SeatToggler
	ListShows(ctx context.Context, eventID string) ([]models.Show, error)
	ValidateSeats(ctx context.Context, req models.ValidateSeatsRequest) (*models.ValidateSeatsResponse, error)
	LockSeats(ctx context.Context, req models.LockSeatsRequest) (*models.LockSeatsResponse, error)
	StartBookingTimer(ctx context.Context, req models.BookingTimerRequest) (*models.BookingTimer, error)
	ExtendBookingTimer(ctx context.Context, req models.BookingTimerRequest) (*models.BookingTimer, error)
	GetBookingTimer(ctx context.Context, userID, showID string) (*models.BookingTimer, error)
	CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error)
}

// Publisher sends flow events to the message bus
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// Recorder receives flow metrics
type Recorder interface {
	seats.Recorder
	ledger.Recorder
	TimerExpired()
	TimerExtension(result string)
	FlowTransition(step string)
}

type Config struct {
	MaxSeats int
	PageSize int
	Timer    timer.Config
	Ledger   ledger.Config
}

func DefaultConfig() Config {
	return Config{
		MaxSeats: seats.DefaultMaxSeats,
		PageSize: seats.DefaultPageSize,
		Timer:    timer.DefaultConfig(),
		Ledger:   ledger.DefaultConfig(),
	}
}

// Deps groups the collaborators shared by all flows of a process
type Deps struct {
	API       API
	Clock     clockwork.Clock
	Publisher Publisher
	Recorder  Recorder
}

type Flow struct {
	mu     sync.Mutex
	userID string
	cfg    Config
	api    API
	clock  clockwork.Clock
	pub    Publisher
	rec    Recorder

	step        Step
	eventID     string
	showID      string
	lockedUntil *time.Time
	held        []string
	booking     *models.Booking
	busy        bool
	gen         uint64
	closed      bool

	// seat operations running outside a transition
	seatOps int
	// confirming is set while CreateBooking is awaited; an expiry meanwhile is deferred
	confirming    bool
	expiryPending bool

	inbox    *Inbox
	board    *seats.Board
	loader   *seats.Loader
	selector *seats.Selector
	ledger   *ledger.Ledger
	timer    *timer.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the flow of userID and starts its ledger purge loop. The loops stop
// when ctx is done or Close is called.
func New(ctx context.Context, userID string, cfg Config, deps Deps) *Flow {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	rec := deps.Recorder

	f := &Flow{
		userID: userID,
		cfg:    cfg,
		api:    deps.API,
		clock:  clock,
		pub:    deps.Publisher,
		rec:    rec,
		inbox:  NewInbox(clock),
		board:  seats.NewBoard(userID),
	}

	f.ledger = ledger.New(clock, cfg.Ledger, rec)
	f.loader = seats.NewLoader(f.board, deps.API, cfg.PageSize, f.inbox, rec)
	f.selector = seats.NewSelector(f.board, deps.API, f.ledger, f.inbox, rec, seats.SelectorConfig{
		MaxSeats:   cfg.MaxSeats,
		OnRollback: f.seatRolledBack,
	})
	f.timer = timer.New(clock, cfg.Timer, f.expire)

	f.ctx, f.cancel = context.WithCancel(ctx)
	go f.ledger.Run(f.ctx)

	return f
}

func (f *Flow) UserID() string {
	return f.userID
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// ShowID returns the show whose seats are on the board
func (f *Flow) ShowID() string {
	return f.board.ShowID()
}

func (f *Flow) Inbox() *Inbox {
	return f.inbox
}

// begin reserves a transition out of want. Only one transition runs at a time.
func (f *Flow) begin(want ...Step) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, apperrors.ErrSessionNotFound
	}
	if f.busy {
		return 0, apperrors.ErrFlowBusy
	}
	allowed := false
	for _, s := range want {
		if f.step == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0, apperrors.ErrInvalidStep
	}

	f.busy = true
	return f.gen, nil
}

// end releases the transition. A false result means the flow moved on meanwhile
// and the caller must drop its result.
func (f *Flow) end(gen uint64) bool {
	if gen != f.gen {
		return false
	}
	f.busy = false
	return true
}

// enterSeats admits a seat operation. Seats are frozen while a transition such as
// Checkout is in flight.
func (f *Flow) enterSeats() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return apperrors.ErrSessionNotFound
	}
	if f.step != StepSelectSeats {
		return apperrors.ErrInvalidStep
	}
	if f.busy {
		return apperrors.ErrFlowBusy
	}
	f.seatOps++
	return nil
}

func (f *Flow) leaveSeats() {
	f.mu.Lock()
	f.seatOps--
	f.mu.Unlock()
}

func (f *Flow) requireStep(want Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return apperrors.ErrSessionNotFound
	}
	if f.step != want {
		return apperrors.ErrInvalidStep
	}
	return nil
}

// moveLocked must be called with f.mu held
func (f *Flow) moveLocked(to Step) {
	f.step = to
	if f.rec != nil {
		f.rec.FlowTransition(to.String())
	}
}

func (f *Flow) SelectEvent(ctx context.Context, eventID string) error {
	if _, err := f.begin(StepSelectEvent, StepSelectShow); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.busy = false
	f.eventID = eventID
	f.moveLocked(StepSelectShow)
	return nil
}

// SelectShow checks that showID belongs to the chosen event and loads its first page of seats
func (f *Flow) SelectShow(ctx context.Context, showID string) error {
	gen, err := f.begin(StepSelectShow)
	if err != nil {
		return err
	}

	f.mu.Lock()
	eventID := f.eventID
	f.mu.Unlock()

	err = f.loadShow(ctx, eventID, showID)

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.end(gen) {
		return apperrors.ErrStale
	}
	if err != nil {
		return err
	}

	f.showID = showID
	f.moveLocked(StepSelectSeats)
	return nil
}

func (f *Flow) loadShow(ctx context.Context, eventID, showID string) error {
	shows, err := f.api.ListShows(ctx, eventID)
	if err != nil {
		f.inbox.Notify(models.NotifyError, "Could not load shows. Please try again.")
		return fmt.Errorf("failed to list shows: %w", err)
	}

	found := false
	for _, s := range shows {
		if s.ID == showID {
			found = true
			break
		}
	}
	if !found {
		return apperrors.ErrShowNotFound
	}

	return f.loader.Load(ctx, showID, 1, false)
}

func (f *Flow) SelectSeat(ctx context.Context, seatID string) error {
	if err := f.enterSeats(); err != nil {
		return err
	}
	defer f.leaveSeats()
	return f.selector.Select(ctx, seatID)
}

func (f *Flow) DeselectSeat(ctx context.Context, seatID string) error {
	if err := f.enterSeats(); err != nil {
		return err
	}
	defer f.leaveSeats()
	return f.selector.Deselect(ctx, seatID)
}

func (f *Flow) LoadMoreSeats(ctx context.Context) (bool, error) {
	if err := f.enterSeats(); err != nil {
		return false, err
	}
	defer f.leaveSeats()
	return f.loader.LoadMore(ctx)
}

func (f *Flow) ReloadSeats(ctx context.Context) error {
	if err := f.enterSeats(); err != nil {
		return err
	}
	defer f.leaveSeats()
	return f.loader.Reload(ctx)
}

// ApplyServerUpdate merges a pushed seat status of showID into the board
func (f *Flow) ApplyServerUpdate(showID string, seat models.Seat) bool {
	return f.selector.ApplyServerUpdate(showID, seat)
}

// Checkout validates and locks the selected seats, then starts the hold timer.
// The seats it locked are the seats Confirm books.
func (f *Flow) Checkout(ctx context.Context) error {
	gen, err := f.begin(StepSelectSeats)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.seatOps > 0 {
		f.end(gen)
		f.mu.Unlock()
		return apperrors.ErrSeatBusy
	}
	f.mu.Unlock()

	ids, lockedUntil, remaining, err := f.holdSeats(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.end(gen) {
		return apperrors.ErrStale
	}
	if err != nil {
		return err
	}

	f.lockedUntil = lockedUntil
	f.held = ids
	f.timer.Start(f.ctx, remaining)
	f.moveLocked(StepCheckout)
	return nil
}

func (f *Flow) holdSeats(ctx context.Context) ([]string, *time.Time, int, error) {
	if f.board.InFlight() {
		return nil, nil, 0, apperrors.ErrSeatBusy
	}
	selected := f.board.SelectedSeats()
	if len(selected) == 0 {
		return nil, nil, 0, apperrors.ErrNoSeatsSelected
	}

	ids := make([]string, 0, len(selected))
	for _, s := range selected {
		ids = append(ids, s.RemoteID())
	}
	showID := f.board.ShowID()

	validation, err := f.api.ValidateSeats(ctx, models.ValidateSeatsRequest{UserID: f.userID, ShowSeatIDs: ids})
	if err != nil {
		f.inbox.Notify(models.NotifyError, "Could not verify your seats. Please try again.")
		return nil, nil, 0, fmt.Errorf("failed to validate seats: %w", err)
	}
	if !validation.IsValid {
		msg := validation.Message
		if msg == "" {
			msg = "Some of your seats are no longer available"
		}
		f.inbox.Notify(models.NotifyError, msg)
		return nil, nil, 0, fmt.Errorf("%w: %s", apperrors.ErrSeatsRejected, msg)
	}

	lock, err := f.api.LockSeats(ctx, models.LockSeatsRequest{UserID: f.userID, ShowID: showID, ShowSeatIDs: ids})
	if err != nil {
		f.inbox.Notify(models.NotifyError, "Could not hold your seats. Please try again.")
		return nil, nil, 0, fmt.Errorf("failed to lock seats: %w", err)
	}

	t, err := f.api.StartBookingTimer(ctx, models.BookingTimerRequest{UserID: f.userID, ShowID: showID})
	if err != nil {
		f.inbox.Notify(models.NotifyError, "Could not start the booking timer. Please try again.")
		return nil, nil, 0, fmt.Errorf("failed to start booking timer: %w", err)
	}

	if t.RemainingSeconds <= 0 {
		f.inbox.Notify(models.NotifyError, "Could not start the booking timer. Please try again.")
		return nil, nil, 0, fmt.Errorf("%w: server reported no hold time", apperrors.ErrTimerExpired)
	}

	lockedUntil := lock.LockedUntil
	return ids, &lockedUntil, t.RemainingSeconds, nil
}

// ExtendTimer asks the server for more hold time and adds it once the server agrees
func (f *Flow) ExtendTimer(ctx context.Context) error {
	if err := f.requireStep(StepCheckout); err != nil {
		return err
	}

	showID := f.board.ShowID()
	err := f.timer.Extend(ctx, func(ctx context.Context) error {
		_, err := f.api.ExtendBookingTimer(ctx, models.BookingTimerRequest{UserID: f.userID, ShowID: showID})
		return err
	})

	switch {
	case err == nil:
		f.recordExtension("success")
		f.inbox.Notify(models.NotifySuccess, fmt.Sprintf("Your hold was extended by %d minutes", int(f.cfg.Timer.ExtendIncrement/time.Minute)))
		return nil
	case errors.Is(err, apperrors.ErrCannotExtend):
		f.recordExtension("rejected")
		return err
	case errors.Is(err, apperrors.ErrTimerExpired), errors.Is(err, apperrors.ErrStale):
		return err
	default:
		f.recordExtension("error")
		f.inbox.Notify(models.NotifyError, "Could not extend your hold. Please try again.")
		return fmt.Errorf("failed to extend booking timer: %w", err)
	}
}

// SyncTimer lowers the local countdown to the server's remaining hold time
func (f *Flow) SyncTimer(ctx context.Context) error {
	if err := f.requireStep(StepCheckout); err != nil {
		return err
	}

	t, err := f.api.GetBookingTimer(ctx, f.userID, f.board.ShowID())
	if err != nil {
		return fmt.Errorf("failed to get booking timer: %w", err)
	}

	if err := f.requireStep(StepCheckout); err != nil {
		return apperrors.ErrStale
	}
	f.timer.Sync(t.RemainingSeconds)
	return nil
}

// Confirm creates the booking for the held seats
func (f *Flow) Confirm(ctx context.Context, paymentMethod string) (*models.Booking, error) {
	gen, err := f.begin(StepCheckout)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return nil, apperrors.ErrTimerExpired
	}
	f.confirming = true
	ids := append([]string(nil), f.held...)
	f.mu.Unlock()

	if f.timer.State().IsExpired {
		if f.finishConfirm(gen) {
			f.expire()
		}
		return nil, apperrors.ErrTimerExpired
	}
	showID := f.board.ShowID()

	actionID := f.ledger.Add(ledger.Action{Type: ledger.BookingCreate, Message: "Creating booking"})
	booking, err := f.api.CreateBooking(ctx, models.CreateBookingRequest{
		UserID:        f.userID,
		ShowID:        showID,
		ShowSeatIDs:   ids,
		PaymentMethod: paymentMethod,
	})

	f.mu.Lock()
	f.confirming = false
	expired := f.expiryPending
	f.expiryPending = false
	if !f.end(gen) {
		f.mu.Unlock()
		f.ledger.Remove(actionID)
		return nil, apperrors.ErrStale
	}
	if err != nil {
		f.mu.Unlock()
		f.ledger.Update(actionID, ledger.Patch{Status: ledger.Error, Message: "Booking failed"})
		f.inbox.Notify(models.NotifyError, "Could not complete your booking. Please try again.")
		if expired {
			f.expire()
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	f.booking = booking
	f.moveLocked(StepConfirmation)
	f.mu.Unlock()

	f.timer.Stop()
	f.ledger.Update(actionID, ledger.Patch{Status: ledger.Success, Message: fmt.Sprintf("Booking %s confirmed", booking.ID)})
	f.inbox.Notify(models.NotifySuccess, "Your booking is confirmed")
	f.publish(models.EventBookingConfirmed, models.BookingConfirmedEvent{
		BookingID: booking.ID,
		UserID:    f.userID,
		ShowID:    showID,
		Seats:     len(ids),
		Timestamp: f.clock.Now(),
	})
	return booking, nil
}

// finishConfirm ends a Confirm that never reached the API and reports whether an
// expiry arrived while it ran
func (f *Flow) finishConfirm(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.confirming = false
	expired := f.expiryPending
	f.expiryPending = false
	f.end(gen)
	return expired
}

// expire runs on the timer goroutine when the hold runs out. It sends the user back
// to seat selection with an empty selection. While a booking is being created the
// back-transition waits for the API answer: a booking it returns stands.
func (f *Flow) expire() {
	f.mu.Lock()
	if f.closed || f.step != StepCheckout {
		f.mu.Unlock()
		return
	}
	if f.confirming {
		f.expiryPending = true
		f.mu.Unlock()
		slog.Info("Booking timer expired while the booking is being created", "user_id", f.userID)
		return
	}
	f.gen++
	f.busy = false
	f.lockedUntil = nil
	f.held = nil
	f.moveLocked(StepSelectSeats)
	f.mu.Unlock()

	showID := f.board.ShowID()
	cleared := f.selector.Clear()

	slog.Info("Booking timer expired", "user_id", f.userID, "show_id", showID, "seats", len(cleared))
	if f.rec != nil {
		f.rec.TimerExpired()
	}
	f.inbox.Notify(models.NotifyAlert, "Your seat hold has expired. Please select your seats again.")
	f.publish(models.EventBookingTimerExpired, models.BookingTimerExpiredEvent{
		UserID:    f.userID,
		ShowID:    showID,
		SeatIDs:   cleared,
		Timestamp: f.clock.Now(),
	})
}

func (f *Flow) seatRolledBack(seat models.Seat, reason string) {
	f.publish(models.EventSeatRolledBack, models.SeatRolledBackEvent{
		UserID:    f.userID,
		ShowID:    f.board.ShowID(),
		SeatID:    seat.SeatID,
		Reason:    reason,
		Timestamp: f.clock.Now(),
	})
}

// Reset abandons the attempt and returns to event selection. Responses still in
// flight are dropped.
func (f *Flow) Reset() {
	f.timer.Disarm()
	f.board.Reset()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.busy = false
	f.confirming = false
	f.expiryPending = false
	f.eventID = ""
	f.showID = ""
	f.lockedUntil = nil
	f.held = nil
	f.booking = nil
	f.step = StepSelectEvent
}

// Close resets the flow and stops its background loops
func (f *Flow) Close() {
	f.Reset()

	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	f.cancel()
}

func (f *Flow) publish(subject string, data interface{}) {
	if f.pub == nil {
		return
	}
	if err := f.pub.Publish(subject, data); err != nil {
		slog.Error("Failed to publish flow event", "error", err, "subject", subject, "user_id", f.userID)
	}
}

func (f *Flow) recordExtension(result string) {
	if f.rec != nil {
		f.rec.TimerExtension(result)
	}
}

package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "booknow/internal/errors"
	"booknow/internal/ledger"
	"booknow/internal/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu sync.Mutex

	showsGate    chan struct{}
	validateGate chan struct{}
	extendGate   chan struct{}
	bookingGate  chan struct{}

	valid       bool
	validMsg    string
	lockErr     error
	timerSecs   int
	serverSecs  int
	extendErr   error
	bookingErr  error
	bookingReqs []models.CreateBookingRequest
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{valid: true, timerSecs: 900, serverSecs: 900}
}

func (f *fakeAPI) ListShowSeats(_ context.Context, showID string, page, _ int) (*models.SeatPage, error) {
	seats := make([]models.Seat, 0, 5)
	for i := 1; i <= 5; i++ {
		seats = append(seats, models.Seat{
			SeatID:     fmt.Sprintf("A%d", i),
			ShowSeatID: fmt.Sprintf("%s-ss-%d", showID, i),
			Price:      25,
			Status:     models.SeatAvailable,
		})
	}
	return &models.SeatPage{Seats: seats, CurrentPage: page, TotalPages: 1}, nil
}

func (f *fakeAPI) SelectSeat(_ context.Context, showSeatID, userID string) (*models.Seat, error) {
	return &models.Seat{SeatID: showSeatID, Status: models.SeatSelected, LockedBy: userID}, nil
}

func (f *fakeAPI) DeselectSeat(_ context.Context, showSeatID, _ string) (*models.Seat, error) {
	return &models.Seat{SeatID: showSeatID, Status: models.SeatAvailable}, nil
}

func (f *fakeAPI) ListShows(_ context.Context, eventID string) ([]models.Show, error) {
	if f.showsGate != nil {
		<-f.showsGate
	}
	return []models.Show{{ID: "show-1", EventID: eventID}, {ID: "show-2", EventID: eventID}}, nil
}

func (f *fakeAPI) ValidateSeats(context.Context, models.ValidateSeatsRequest) (*models.ValidateSeatsResponse, error) {
	if f.validateGate != nil {
		<-f.validateGate
	}
	return &models.ValidateSeatsResponse{IsValid: f.valid, Message: f.validMsg}, nil
}

func (f *fakeAPI) LockSeats(context.Context, models.LockSeatsRequest) (*models.LockSeatsResponse, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return &models.LockSeatsResponse{LockedUntil: time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC)}, nil
}

func (f *fakeAPI) StartBookingTimer(context.Context, models.BookingTimerRequest) (*models.BookingTimer, error) {
	return &models.BookingTimer{RemainingSeconds: f.timerSecs}, nil
}

func (f *fakeAPI) ExtendBookingTimer(context.Context, models.BookingTimerRequest) (*models.BookingTimer, error) {
	if f.extendGate != nil {
		<-f.extendGate
	}
	if f.extendErr != nil {
		return nil, f.extendErr
	}
	return &models.BookingTimer{RemainingSeconds: f.timerSecs + 300}, nil
}

func (f *fakeAPI) GetBookingTimer(context.Context, string, string) (*models.BookingTimer, error) {
	return &models.BookingTimer{RemainingSeconds: f.serverSecs}, nil
}

func (f *fakeAPI) CreateBooking(_ context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	f.mu.Lock()
	f.bookingReqs = append(f.bookingReqs, req)
	gate, bookingErr := f.bookingGate, f.bookingErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if bookingErr != nil {
		return nil, bookingErr
	}
	return &models.Booking{ID: "booking-1", UserID: req.UserID, ShowID: req.ShowID, ShowSeatIDs: req.ShowSeatIDs, Status: "CONFIRMED"}, nil
}

func (f *fakeAPI) bookingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookingReqs)
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *fakePublisher) Publish(subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.subjects))
	copy(out, p.subjects)
	return out
}

func newTestFlow(t *testing.T, api *fakeAPI) (*Flow, *fakePublisher) {
	t.Helper()

	pub := &fakePublisher{}
	f := New(context.Background(), "user-1", DefaultConfig(), Deps{
		API:       api,
		Clock:     clockwork.NewFakeClock(),
		Publisher: pub,
	})
	t.Cleanup(f.Close)
	return f, pub
}

// toSeats drives a flow up to seat selection with A1 and A2 selected
func toSeats(t *testing.T, f *Flow) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.SelectEvent(ctx, "event-1"))
	require.NoError(t, f.SelectShow(ctx, "show-1"))
	require.NoError(t, f.SelectSeat(ctx, "A1"))
	require.NoError(t, f.SelectSeat(ctx, "A2"))
}

func TestFlow_HappyPath(t *testing.T) {
	api := newFakeAPI()
	f, pub := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)
	assert.Equal(t, StepSelectSeats, f.Step())

	require.NoError(t, f.Checkout(ctx))
	snap := f.Snapshot(false)
	assert.Equal(t, StepCheckout, snap.Step)
	require.NotNil(t, snap.Timer)
	assert.Equal(t, 900, snap.Timer.RemainingSeconds)
	assert.True(t, snap.Timer.Running)
	assert.NotNil(t, snap.LockedUntil)
	assert.InDelta(t, 50.0, snap.TotalAmount, 0.001)

	booking, err := f.Confirm(ctx, "card")
	require.NoError(t, err)
	assert.Equal(t, "booking-1", booking.ID)
	assert.Equal(t, StepConfirmation, f.Step())

	require.Len(t, api.bookingReqs, 1)
	assert.Equal(t, []string{"show-1-ss-1", "show-1-ss-2"}, api.bookingReqs[0].ShowSeatIDs)
	assert.Equal(t, "card", api.bookingReqs[0].PaymentMethod)

	assert.False(t, f.timer.State().Running)
	assert.Contains(t, pub.published(), models.EventBookingConfirmed)

	var created bool
	for _, a := range f.Snapshot(false).Actions {
		if a.Type == ledger.BookingCreate && a.Status == ledger.Success {
			created = true
		}
	}
	assert.True(t, created)
}

func TestFlow_StepGuards(t *testing.T) {
	f, _ := newTestFlow(t, newFakeAPI())
	ctx := context.Background()

	assert.ErrorIs(t, f.SelectShow(ctx, "show-1"), apperrors.ErrInvalidStep)
	assert.ErrorIs(t, f.SelectSeat(ctx, "A1"), apperrors.ErrInvalidStep)
	assert.ErrorIs(t, f.Checkout(ctx), apperrors.ErrInvalidStep)
	assert.ErrorIs(t, f.ExtendTimer(ctx), apperrors.ErrInvalidStep)
	_, err := f.Confirm(ctx, "card")
	assert.ErrorIs(t, err, apperrors.ErrInvalidStep)

	require.NoError(t, f.SelectEvent(ctx, "event-1"))
	assert.ErrorIs(t, f.SelectShow(ctx, "show-9"), apperrors.ErrShowNotFound)
	assert.Equal(t, StepSelectShow, f.Step())

	require.NoError(t, f.SelectShow(ctx, "show-1"))
	assert.ErrorIs(t, f.Checkout(ctx), apperrors.ErrNoSeatsSelected)
	assert.Equal(t, StepSelectSeats, f.Step())
}

func TestFlow_CheckoutAbortsOnValidation(t *testing.T) {
	api := newFakeAPI()
	api.valid = false
	api.validMsg = "Seat A2 was just booked"
	f, _ := newTestFlow(t, api)

	toSeats(t, f)
	err := f.Checkout(context.Background())
	require.ErrorIs(t, err, apperrors.ErrSeatsRejected)

	snap := f.Snapshot(true)
	assert.Equal(t, StepSelectSeats, snap.Step)
	assert.Nil(t, snap.Timer)
	require.NotEmpty(t, snap.Notifications)
	assert.Equal(t, "Seat A2 was just booked", snap.Notifications[len(snap.Notifications)-1].Message)
	assert.Empty(t, f.Snapshot(true).Notifications)
}

func TestFlow_CheckoutAbortsOnLockFailure(t *testing.T) {
	api := newFakeAPI()
	api.lockErr = errors.New("upstream 503")
	f, _ := newTestFlow(t, api)

	toSeats(t, f)
	require.Error(t, f.Checkout(context.Background()))
	assert.Equal(t, StepSelectSeats, f.Step())
	assert.Len(t, f.Snapshot(false).Selected, 2)
}

func TestFlow_SeatsFrozenDuringCheckout(t *testing.T) {
	api := newFakeAPI()
	api.validateGate = make(chan struct{})
	f, _ := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)

	done := make(chan error, 1)
	go func() { done <- f.Checkout(ctx) }()

	require.Eventually(t, func() bool {
		return errors.Is(f.SelectSeat(ctx, "A3"), apperrors.ErrFlowBusy)
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, f.DeselectSeat(ctx, "A1"), apperrors.ErrFlowBusy)
	assert.ErrorIs(t, f.ReloadSeats(ctx), apperrors.ErrFlowBusy)

	close(api.validateGate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"A1", "A2"}, f.Snapshot(false).Selected)

	_, err := f.Confirm(ctx, "card")
	require.NoError(t, err)
	require.Len(t, api.bookingReqs, 1)
	assert.Equal(t, []string{"show-1-ss-1", "show-1-ss-2"}, api.bookingReqs[0].ShowSeatIDs)
}

func TestFlow_ConfirmBooksTheLockedSeats(t *testing.T) {
	api := newFakeAPI()
	f, _ := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)
	require.NoError(t, f.Checkout(ctx))

	// the board may change under a running checkout through pushed updates
	f.ApplyServerUpdate("show-1", models.Seat{SeatID: "A2", Status: models.SeatBooked})
	require.Equal(t, []string{"A1"}, f.Snapshot(false).Selected)

	_, err := f.Confirm(ctx, "card")
	require.NoError(t, err)
	require.Len(t, api.bookingReqs, 1)
	assert.Equal(t, []string{"show-1-ss-1", "show-1-ss-2"}, api.bookingReqs[0].ShowSeatIDs)
}

func TestFlow_CheckoutFailsWithoutHoldTime(t *testing.T) {
	api := newFakeAPI()
	api.timerSecs = 0
	f, pub := newTestFlow(t, api)

	toSeats(t, f)
	err := f.Checkout(context.Background())
	require.ErrorIs(t, err, apperrors.ErrTimerExpired)

	snap := f.Snapshot(true)
	assert.Equal(t, StepSelectSeats, snap.Step)
	assert.Equal(t, []string{"A1", "A2"}, snap.Selected)
	assert.Nil(t, snap.LockedUntil)
	require.NotEmpty(t, snap.Notifications)
	assert.Equal(t, models.NotifyError, snap.Notifications[len(snap.Notifications)-1].Level)
	assert.NotContains(t, pub.published(), models.EventBookingTimerExpired)

	_, err = f.Confirm(context.Background(), "card")
	assert.ErrorIs(t, err, apperrors.ErrInvalidStep)
}

func TestFlow_ExpiryWhileConfirmingKeepsBooking(t *testing.T) {
	api := newFakeAPI()
	api.bookingGate = make(chan struct{})
	f, pub := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)
	require.NoError(t, f.Checkout(ctx))
	f.timer.Stop()

	type result struct {
		booking *models.Booking
		err     error
	}
	done := make(chan result, 1)
	go func() {
		b, err := f.Confirm(ctx, "card")
		done <- result{b, err}
	}()

	require.Eventually(t, func() bool { return api.bookingCalls() == 1 }, time.Second, 5*time.Millisecond)
	f.timer.Sync(0)
	assert.Equal(t, StepCheckout, f.Step())

	close(api.bookingGate)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "booking-1", res.booking.ID)

	snap := f.Snapshot(false)
	assert.Equal(t, StepConfirmation, snap.Step)
	require.NotNil(t, snap.Booking)
	assert.Equal(t, "booking-1", snap.Booking.ID)
	assert.Contains(t, pub.published(), models.EventBookingConfirmed)
	assert.NotContains(t, pub.published(), models.EventBookingTimerExpired)
}

func TestFlow_ExpiryWhileConfirmingAppliesOnFailure(t *testing.T) {
	api := newFakeAPI()
	api.bookingGate = make(chan struct{})
	api.bookingErr = errors.New("payment declined")
	f, pub := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)
	require.NoError(t, f.Checkout(ctx))
	f.timer.Stop()

	done := make(chan error, 1)
	go func() {
		_, err := f.Confirm(ctx, "card")
		done <- err
	}()

	require.Eventually(t, func() bool { return api.bookingCalls() == 1 }, time.Second, 5*time.Millisecond)
	f.timer.Sync(0)

	close(api.bookingGate)
	require.Error(t, <-done)

	snap := f.Snapshot(false)
	assert.Equal(t, StepSelectSeats, snap.Step)
	assert.Empty(t, snap.Selected)
	assert.Nil(t, snap.Booking)
	assert.Contains(t, pub.published(), models.EventBookingTimerExpired)
}

func TestFlow_TimerExpiryReturnsToSeats(t *testing.T) {
	api := newFakeAPI()
	api.timerSecs = 3
	f, pub := newTestFlow(t, api)

	toSeats(t, f)
	require.NoError(t, f.Checkout(context.Background()))
	f.timer.Stop()

	f.timer.Tick()
	f.timer.Tick()
	assert.Equal(t, StepCheckout, f.Step())
	f.timer.Tick()
	f.timer.Tick()

	snap := f.Snapshot(true)
	assert.Equal(t, StepSelectSeats, snap.Step)
	assert.Empty(t, snap.Selected)
	assert.Nil(t, snap.LockedUntil)
	require.NotEmpty(t, snap.Notifications)
	assert.Equal(t, models.NotifyAlert, snap.Notifications[len(snap.Notifications)-1].Level)

	expired := 0
	for _, s := range pub.published() {
		if s == models.EventBookingTimerExpired {
			expired++
		}
	}
	assert.Equal(t, 1, expired)

	_, err := f.Confirm(context.Background(), "card")
	assert.ErrorIs(t, err, apperrors.ErrInvalidStep)
}

func TestFlow_ExtendTimer(t *testing.T) {
	api := newFakeAPI()
	api.timerSecs = 200
	f, _ := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)
	require.NoError(t, f.Checkout(ctx))
	f.timer.Stop()

	require.NoError(t, f.ExtendTimer(ctx))
	assert.Equal(t, 500, f.timer.State().RemainingSeconds)
	assert.ErrorIs(t, f.ExtendTimer(ctx), apperrors.ErrCannotExtend)
	assert.Equal(t, 500, f.timer.State().RemainingSeconds)
}

func TestFlow_ExtendFailureKeepsTimer(t *testing.T) {
	api := newFakeAPI()
	api.timerSecs = 100
	api.extendErr = errors.New("upstream 500")
	f, _ := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)
	require.NoError(t, f.Checkout(ctx))
	f.timer.Stop()

	require.Error(t, f.ExtendTimer(ctx))
	assert.Equal(t, 100, f.timer.State().RemainingSeconds)
	assert.Equal(t, StepCheckout, f.Step())
}

func TestFlow_SyncTimer(t *testing.T) {
	api := newFakeAPI()
	api.serverSecs = 420
	f, _ := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)
	require.NoError(t, f.Checkout(ctx))
	f.timer.Stop()

	require.NoError(t, f.SyncTimer(ctx))
	assert.Equal(t, 420, f.timer.State().RemainingSeconds)
}

func TestFlow_ConfirmFailureStaysAtCheckout(t *testing.T) {
	api := newFakeAPI()
	api.bookingErr = errors.New("payment declined")
	f, _ := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)
	require.NoError(t, f.Checkout(ctx))

	_, err := f.Confirm(ctx, "card")
	require.Error(t, err)
	assert.Equal(t, StepCheckout, f.Step())

	actions := f.Snapshot(false).Actions
	require.NotEmpty(t, actions)
	assert.Equal(t, ledger.Error, actions[len(actions)-1].Status)
}

func TestFlow_ResetDropsLateResponse(t *testing.T) {
	api := newFakeAPI()
	api.showsGate = make(chan struct{})
	f, _ := newTestFlow(t, api)
	ctx := context.Background()

	require.NoError(t, f.SelectEvent(ctx, "event-1"))

	done := make(chan error, 1)
	go func() { done <- f.SelectShow(ctx, "show-1") }()

	require.Eventually(t, func() bool {
		return errors.Is(f.SelectEvent(ctx, "event-2"), apperrors.ErrFlowBusy)
	}, time.Second, 5*time.Millisecond)

	f.Reset()
	close(api.showsGate)

	assert.ErrorIs(t, <-done, apperrors.ErrStale)
	assert.Equal(t, StepSelectEvent, f.Step())
}

func TestFlow_ResetDropsTimerExtension(t *testing.T) {
	api := newFakeAPI()
	api.timerSecs = 200
	api.extendGate = make(chan struct{})
	f, _ := newTestFlow(t, api)
	ctx := context.Background()

	toSeats(t, f)
	require.NoError(t, f.Checkout(ctx))
	f.timer.Stop()

	done := make(chan error, 1)
	go func() { done <- f.ExtendTimer(ctx) }()

	require.Eventually(t, func() bool {
		return !f.timer.State().CanExtend
	}, time.Second, 5*time.Millisecond)

	f.Reset()
	close(api.extendGate)

	assert.ErrorIs(t, <-done, apperrors.ErrStale)
	assert.Equal(t, StepSelectEvent, f.Step())

	state := f.timer.State()
	assert.Equal(t, 0, state.RemainingSeconds)
	assert.False(t, state.Running)
	assert.False(t, state.IsExpired)
}

func TestFlow_ClosedRejectsOperations(t *testing.T) {
	f, _ := newTestFlow(t, newFakeAPI())
	f.Close()

	assert.ErrorIs(t, f.SelectEvent(context.Background(), "event-1"), apperrors.ErrSessionNotFound)
}

func TestFlow_ServerUpdateDropsSelectedSeat(t *testing.T) {
	f, _ := newTestFlow(t, newFakeAPI())
	toSeats(t, f)

	assert.True(t, f.ApplyServerUpdate("show-1", models.Seat{SeatID: "A1", Status: models.SeatBooked}))
	assert.Equal(t, []string{"A2"}, f.Snapshot(false).Selected)
}

package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"booknow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListShowSeats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/customer/shows/show-1/seats", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("pageSize"))

		json.NewEncoder(w).Encode(models.SeatPage{
			Seats:       []models.Seat{{SeatID: "A5", ShowSeatID: "ss-5", Row: "A", Status: models.SeatAvailable}},
			CurrentPage: 2,
			TotalPages:  3,
		})
	}))
	defer srv.Close()

	client := NewBookingClient(BookingAPIConfig{BaseURL: srv.URL})

	page, err := client.ListShowSeats(context.Background(), "show-1", 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Seats, 1)
	assert.Equal(t, "ss-5", page.Seats[0].RemoteID())
}

func TestSelectSeat_SendsUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/customer/realtime-seats/ss-5/select", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))

		json.NewEncoder(w).Encode(models.Seat{SeatID: "A5", ShowSeatID: "ss-5", Status: models.SeatSelected, LockedBy: "user-1"})
	}))
	defer srv.Close()

	client := NewBookingClient(BookingAPIConfig{BaseURL: srv.URL})

	seat, err := client.SelectSeat(context.Background(), "ss-5", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SeatSelected, seat.Status)
}

func TestAPIError_CarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"Seat already locked"}`))
	}))
	defer srv.Close()

	client := NewBookingClient(BookingAPIConfig{BaseURL: srv.URL})

	_, err := client.LockSeats(context.Background(), models.LockSeatsRequest{UserID: "u", ShowID: "s", ShowSeatIDs: []string{"ss-1"}})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Seat already locked", apiErr.Message)
}

func TestCreateBooking_PostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customer/bookings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.CreateBookingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"ss-1", "ss-2"}, req.ShowSeatIDs)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Booking{ID: "b-1", ShowSeatIDs: req.ShowSeatIDs, Status: "CONFIRMED"})
	}))
	defer srv.Close()

	client := NewBookingClient(BookingAPIConfig{BaseURL: srv.URL})

	booking, err := client.CreateBooking(context.Background(), models.CreateBookingRequest{
		UserID:        "u",
		ShowID:        "show-1",
		ShowSeatIDs:   []string{"ss-1", "ss-2"},
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "b-1", booking.ID)
}

func TestGetBookingTimer_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.BookingTimer{RemainingSeconds: 10})
	}))
	defer srv.Close()

	client := NewBookingClient(BookingAPIConfig{BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetBookingTimer(ctx, "u", "show-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"booknow/internal/models"
)

type BookingClient struct {
	baseURL    string
	httpClient *http.Client
}

type BookingAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// APIError is returned for any non-2xx answer of the booking API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Message)
}

// errorBody covers the two error shapes the API answers with
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func NewBookingClient(cfg BookingAPIConfig) *BookingClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &BookingClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (bc *BookingClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, bc.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := bc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil && json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = eb.Message
			if apiErr.Message == "" {
				apiErr.Message = eb.Error
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (bc *BookingClient) ListEvents(ctx context.Context, page, pageSize int) (*models.EventPage, error) {
	path := fmt.Sprintf("/customer/events?page=%d&pageSize=%d", page, pageSize)

	var result models.EventPage
	if err := bc.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return &result, nil
}

func (bc *BookingClient) ListShows(ctx context.Context, eventID string) ([]models.Show, error) {
	var shows []models.Show
	if err := bc.do(ctx, http.MethodGet, "/customer/events/"+url.PathEscape(eventID)+"/shows", nil, &shows); err != nil {
		return nil, fmt.Errorf("failed to list shows: %w", err)
	}

	return shows, nil
}

func (bc *BookingClient) ListShowSeats(ctx context.Context, showID string, page, pageSize int) (*models.SeatPage, error) {
	path := fmt.Sprintf("/customer/shows/%s/seats?page=%d&pageSize=%d", url.PathEscape(showID), page, pageSize)

	var result models.SeatPage
	if err := bc.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}

	return &result, nil
}

func (bc *BookingClient) SelectSeat(ctx context.Context, showSeatID, userID string) (*models.Seat, error) {
	return bc.toggleSeat(ctx, showSeatID, userID, "select")
}

func (bc *BookingClient) DeselectSeat(ctx context.Context, showSeatID, userID string) (*models.Seat, error) {
	return bc.toggleSeat(ctx, showSeatID, userID, "deselect")
}

func (bc *BookingClient) toggleSeat(ctx context.Context, showSeatID, userID, action string) (*models.Seat, error) {
	path := "/customer/realtime-seats/" + url.PathEscape(showSeatID) + "/" + action + "?userId=" + url.QueryEscape(userID)

	var seat models.Seat
	if err := bc.do(ctx, http.MethodPost, path, nil, &seat); err != nil {
		return nil, fmt.Errorf("failed to %s seat: %w", action, err)
	}

	return &seat, nil
}

func (bc *BookingClient) ValidateSeats(ctx context.Context, req models.ValidateSeatsRequest) (*models.ValidateSeatsResponse, error) {
	var result models.ValidateSeatsResponse
	if err := bc.do(ctx, http.MethodPost, "/customer/checkout/validate-seats", req, &result); err != nil {
		return nil, fmt.Errorf("failed to validate seats: %w", err)
	}

	return &result, nil
}

func (bc *BookingClient) LockSeats(ctx context.Context, req models.LockSeatsRequest) (*models.LockSeatsResponse, error) {
	var result models.LockSeatsResponse
	if err := bc.do(ctx, http.MethodPost, "/customer/seats/lock", req, &result); err != nil {
		return nil, fmt.Errorf("failed to lock seats: %w", err)
	}

	return &result, nil
}

func (bc *BookingClient) StartBookingTimer(ctx context.Context, req models.BookingTimerRequest) (*models.BookingTimer, error) {
	var result models.BookingTimer
	if err := bc.do(ctx, http.MethodPost, "/customer/booking-timer/start", req, &result); err != nil {
		return nil, fmt.Errorf("failed to start booking timer: %w", err)
	}

	return &result, nil
}

func (bc *BookingClient) ExtendBookingTimer(ctx context.Context, req models.BookingTimerRequest) (*models.BookingTimer, error) {
	var result models.BookingTimer
	if err := bc.do(ctx, http.MethodPost, "/customer/booking-timer/extend", req, &result); err != nil {
		return nil, fmt.Errorf("failed to extend booking timer: %w", err)
	}

	return &result, nil
}

func (bc *BookingClient) GetBookingTimer(ctx context.Context, userID, showID string) (*models.BookingTimer, error) {
	query := url.Values{}
	query.Set("userId", userID)
	query.Set("showId", showID)

	var result models.BookingTimer
	if err := bc.do(ctx, http.MethodGet, "/customer/booking-timer?"+query.Encode(), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get booking timer: %w", err)
	}

	return &result, nil
}

func (bc *BookingClient) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	var result models.Booking
	if err := bc.do(ctx, http.MethodPost, "/customer/bookings", req, &result); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return &result, nil
}

func (bc *BookingClient) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var result models.Booking
	if err := bc.do(ctx, http.MethodGet, "/customer/bookings/"+url.PathEscape(bookingID), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &result, nil
}

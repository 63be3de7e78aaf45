package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"booknow/internal/cache"
	"booknow/internal/config"
	"booknow/internal/external"
	"booknow/internal/flow"
	"booknow/internal/metrics"
	"booknow/internal/middleware"
	"booknow/internal/models"
	"booknow/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream imitates the booking API the gateway talks to
type upstream struct {
	mu       sync.Mutex
	holders  map[string]string
	bookings []models.CreateBookingRequest
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	u := &upstream{holders: map[string]string{}}

	r := gin.New()
	c := r.Group("/customer")
	c.GET("/events", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.EventPage{
			Events:      []models.Event{{ID: "ev-1", Title: "Абай"}},
			CurrentPage: 1,
			TotalPages:  1,
		})
	})
	c.GET("/events/:id/shows", func(c *gin.Context) {
		c.JSON(http.StatusOK, []models.Show{{ID: "show-1", EventID: c.Param("id")}})
	})
	c.GET("/shows/:id/seats", func(c *gin.Context) {
		seats := make([]models.Seat, 0, 4)
		for i := 1; i <= 4; i++ {
			seats = append(seats, models.Seat{
				SeatID:     fmt.Sprintf("A%d", i),
				ShowSeatID: fmt.Sprintf("ss-%d", i),
				Row:        "A",
				Price:      3000,
				Status:     models.SeatAvailable,
			})
		}
		c.JSON(http.StatusOK, models.SeatPage{Seats: seats, CurrentPage: 1, TotalPages: 1})
	})
	c.POST("/realtime-seats/:id/:action", func(c *gin.Context) {
		u.mu.Lock()
		defer u.mu.Unlock()

		id, user := c.Param("id"), c.Query("userId")
		if holder, ok := u.holders[id]; ok && holder != user {
			c.JSON(http.StatusConflict, gin.H{"message": "seat is held by another user"})
			return
		}
		if c.Param("action") == "select" {
			u.holders[id] = user
			c.JSON(http.StatusOK, models.Seat{ShowSeatID: id, Status: models.SeatSelected, LockedBy: user})
			return
		}
		delete(u.holders, id)
		c.JSON(http.StatusOK, models.Seat{ShowSeatID: id, Status: models.SeatAvailable})
	})
	c.POST("/checkout/validate-seats", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.ValidateSeatsResponse{IsValid: true})
	})
	c.POST("/seats/lock", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.LockSeatsResponse{LockedUntil: time.Now().Add(15 * time.Minute)})
	})
	c.POST("/booking-timer/start", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.BookingTimer{RemainingSeconds: 900})
	})
	c.POST("/bookings", func(c *gin.Context) {
		var req models.CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u.mu.Lock()
		u.bookings = append(u.bookings, req)
		u.mu.Unlock()
		c.JSON(http.StatusCreated, models.Booking{
			ID:          "bk-1",
			UserID:      req.UserID,
			ShowID:      req.ShowID,
			ShowSeatIDs: req.ShowSeatIDs,
			Status:      "CONFIRMED",
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// TestClient drives the gateway the way the frontend does
type TestClient struct {
	t      *testing.T
	server *httptest.Server
	userID string
}

func (c *TestClient) makeRequest(method, path string, body interface{}) *http.Response {
	c.t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(c.t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reqBody)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(middleware.HeaderUserID, c.userID)
	}

	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })

	if c.userID == "" {
		c.userID = resp.Header.Get(middleware.HeaderUserID)
	}
	return resp
}

func (c *TestClient) snapshot(method, path string, body interface{}) flow.Snapshot {
	c.t.Helper()

	resp := c.makeRequest(method, path, body)
	raw, _ := io.ReadAll(resp.Body)
	require.Equal(c.t, http.StatusOK, resp.StatusCode, string(raw))

	var snap flow.Snapshot
	require.NoError(c.t, json.Unmarshal(raw, &snap))
	return snap
}

func newGateway(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up := newUpstream(t)
	client := external.NewBookingClient(external.BookingAPIConfig{BaseURL: up.URL, Timeout: 5 * time.Second})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := cache.NewStoreFromClient(rdb, "booknow")

	clock := clockwork.NewRealClock()
	m := metrics.New()
	sessions := session.NewManager(context.Background(), session.DefaultConfig(), flow.DefaultConfig(),
		flow.Deps{API: client, Clock: clock, Recorder: m}, m)
	t.Cleanup(sessions.CloseAll)

	cfg := &config.Config{
		Port:           "0",
		GinMode:        gin.TestMode,
		RequestTimeout: 5 * time.Second,
		AllowedOrigins: []string{"*"},
	}
	server := NewServer(cfg, Deps{
		Sessions: sessions,
		Catalog:  cache.NewEventsCache(store, client, clock, time.Minute),
		Bookings: client,
		Drafts:   cache.NewDrafts(store, clock, time.Hour),
		Metrics:  m,
		Cache:    store,
	})

	gw := httptest.NewServer(server.GetRouter())
	t.Cleanup(gw.Close)
	return gw, sessions
}

func TestGateway_FullBookingFlow(t *testing.T) {
	gw, sessions := newGateway(t)
	client := &TestClient{t: t, server: gw}

	resp := client.makeRequest(http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err := uuid.Parse(client.userID)
	require.NoError(t, err, "gateway must issue an anonymous id")

	snap := client.snapshot(http.MethodPost, "/api/flow/event", models.SelectEventRequest{EventID: "ev-1"})
	assert.Equal(t, flow.StepSelectShow, snap.Step)

	snap = client.snapshot(http.MethodPost, "/api/flow/show", models.SelectShowRequest{ShowID: "show-1"})
	assert.Equal(t, flow.StepSelectSeats, snap.Step)
	require.Len(t, snap.Seats, 4)

	client.snapshot(http.MethodPost, "/api/flow/seats/A1/select", nil)
	snap = client.snapshot(http.MethodPost, "/api/flow/seats/A2/select", nil)
	assert.ElementsMatch(t, []string{"A1", "A2"}, snap.Selected)
	assert.InDelta(t, 6000.0, snap.TotalAmount, 0.001)

	snap = client.snapshot(http.MethodPost, "/api/flow/checkout", nil)
	assert.Equal(t, flow.StepCheckout, snap.Step)
	require.NotNil(t, snap.Timer)
	assert.Greater(t, snap.Timer.RemainingSeconds, 0)

	snap = client.snapshot(http.MethodPost, "/api/flow/confirm", models.ConfirmRequest{PaymentMethod: "card"})
	assert.Equal(t, flow.StepConfirmation, snap.Step)
	require.NotNil(t, snap.Booking)
	assert.Equal(t, "bk-1", snap.Booking.ID)
	assert.ElementsMatch(t, []string{"ss-1", "ss-2"}, snap.Booking.ShowSeatIDs)

	assert.Equal(t, 1, sessions.Len())
}

func TestGateway_SeatHeldByAnotherUser(t *testing.T) {
	gw, _ := newGateway(t)
	alice := &TestClient{t: t, server: gw, userID: uuid.NewString()}
	bob := &TestClient{t: t, server: gw, userID: uuid.NewString()}

	for _, c := range []*TestClient{alice, bob} {
		c.snapshot(http.MethodPost, "/api/flow/event", models.SelectEventRequest{EventID: "ev-1"})
		c.snapshot(http.MethodPost, "/api/flow/show", models.SelectShowRequest{ShowID: "show-1"})
	}

	alice.snapshot(http.MethodPost, "/api/flow/seats/A1/select", nil)

	resp := bob.makeRequest(http.MethodPost, "/api/flow/seats/A1/select", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	snap := bob.snapshot(http.MethodGet, "/api/flow", nil)
	assert.Empty(t, snap.Selected)
	require.NotEmpty(t, snap.Notifications)
	assert.Equal(t, models.NotifyError, snap.Notifications[0].Level)
}

func TestGateway_HealthAndMetrics(t *testing.T) {
	gw, _ := newGateway(t)
	client := &TestClient{t: t, server: gw}

	resp := client.makeRequest(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client.makeRequest(http.MethodGet, "/api/flow", nil)

	resp = client.makeRequest(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `route="/api/flow"`)
}

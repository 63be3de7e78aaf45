package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"booknow/internal/models"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	eventsKey     = "events-cache"
	eventsTimeKey = "events-cache-time"

	DefaultEventsTTL = 5 * time.Minute
	eventsPageSize   = 100
)

// EventLister fetches one page of the events catalogue
type EventLister interface {
	ListEvents(ctx context.Context, page, pageSize int) (*models.EventPage, error)
}

// EventsCache keeps the events catalogue for a few minutes. Concurrent misses share
// one upstream call.
type EventsCache struct {
	store *Store
	api   EventLister
	clock clockwork.Clock
	ttl   time.Duration
	group singleflight.Group
}

func NewEventsCache(store *Store, api EventLister, clock clockwork.Clock, ttl time.Duration) *EventsCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultEventsTTL
	}

	return &EventsCache{
		store: store,
		api:   api,
		clock: clock,
		ttl:   ttl,
	}
}

// Events returns the cached catalogue, refreshing it when older than the TTL.
// If the refresh fails and an older copy exists, the older copy is returned.
func (c *EventsCache) Events(ctx context.Context) ([]models.Event, error) {
	cached, fresh, err := c.cached(ctx)
	if err == nil && fresh {
		return cached, nil
	}

	v, err, _ := c.group.Do(eventsKey, func() (interface{}, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		if cached != nil {
			slog.Warn("Serving stale events catalogue", "error", err)
			return cached, nil
		}
		return nil, err
	}
	return v.([]models.Event), nil
}

func (c *EventsCache) cached(ctx context.Context) ([]models.Event, bool, error) {
	var storedAt int64
	if err := c.store.Get(ctx, c.store.key(eventsTimeKey), &storedAt); err != nil {
		return nil, false, err
	}

	var events []models.Event
	if err := c.store.Get(ctx, c.store.key(eventsKey), &events); err != nil {
		return nil, false, err
	}

	age := c.clock.Since(time.UnixMilli(storedAt))
	return events, age < c.ttl, nil
}

func (c *EventsCache) refresh(ctx context.Context) ([]models.Event, error) {
	page, err := c.api.ListEvents(ctx, 1, eventsPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	events := page.Events
	if events == nil {
		events = []models.Event{}
	}

	// the copy outlives the TTL so it can be served when a refresh fails
	keep := 10 * c.ttl
	if err := c.store.Set(ctx, c.store.key(eventsKey), events, keep); err != nil {
		slog.Error("Failed to cache events", "error", err)
		return events, nil
	}
	if err := c.store.Set(ctx, c.store.key(eventsTimeKey), c.clock.Now().UnixMilli(), keep); err != nil {
		slog.Error("Failed to cache events timestamp", "error", err)
	}
	return events, nil
}

// Invalidate drops the cached catalogue so the next call fetches it again
func (c *EventsCache) Invalidate(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.store.key(eventsKey), c.store.key(eventsTimeKey)); err != nil {
		return fmt.Errorf("failed to invalidate events cache: %w", err)
	}
	return nil
}

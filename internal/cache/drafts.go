package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"booknow/internal/models"

	"github.com/jonboulle/clockwork"
)

const (
	draftKeyPrefix = "autosave_"
	offlineKey     = "booknow_offline_data"

	DefaultDraftTTL = 7 * 24 * time.Hour
)

// Drafts stores autosaved form data and offline snapshots per user
type Drafts struct {
	store *Store
	clock clockwork.Clock
	ttl   time.Duration
}

func NewDrafts(store *Store, clock clockwork.Clock, ttl time.Duration) *Drafts {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &Drafts{store: store, clock: clock, ttl: ttl}
}

func (d *Drafts) draftKey(userID, formID string) string {
	return d.store.key("user", userID, draftKeyPrefix+formID)
}

func (d *Drafts) offlineKey(userID string) string {
	return d.store.key("user", userID, offlineKey)
}

func (d *Drafts) Save(ctx context.Context, userID, formID string, data json.RawMessage) (*models.Draft, error) {
	draft := &models.Draft{Data: data, Timestamp: d.clock.Now().UTC()}
	if err := d.store.Set(ctx, d.draftKey(userID, formID), draft, d.ttl); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return draft, nil
}

// Load returns the draft of formID or ErrCacheMiss
func (d *Drafts) Load(ctx context.Context, userID, formID string) (*models.Draft, error) {
	var draft models.Draft
	if err := d.store.Get(ctx, d.draftKey(userID, formID), &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (d *Drafts) Discard(ctx context.Context, userID, formID string) error {
	return d.store.Delete(ctx, d.draftKey(userID, formID))
}

// SaveOffline keeps the last known session view of userID
func (d *Drafts) SaveOffline(ctx context.Context, userID string, snapshot json.RawMessage) error {
	if err := d.store.Set(ctx, d.offlineKey(userID), snapshot, d.ttl); err != nil {
		return fmt.Errorf("failed to save offline snapshot: %w", err)
	}
	return nil
}

// LoadOffline returns the raw snapshot or ErrCacheMiss
func (d *Drafts) LoadOffline(ctx context.Context, userID string) (json.RawMessage, error) {
	var snapshot json.RawMessage
	if err := d.store.Get(ctx, d.offlineKey(userID), &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Package session keeps one booking flow per anonymous user.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "booknow/internal/errors"
	"booknow/internal/flow"
	"booknow/internal/logger"
	"booknow/internal/models"

	"github.com/jonboulle/clockwork"
)

// Recorder receives session gauges
type Recorder interface {
	SessionOpened()
	SessionClosed()
}

type Config struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		IdleTimeout:   30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

type entry struct {
	flow     *flow.Flow
	lastSeen time.Time
}

type Manager struct {
	mu       sync.Mutex
	ctx      context.Context
	cfg      Config
	flowCfg  flow.Config
	deps     flow.Deps
	clock    clockwork.Clock
	recorder Recorder
	sessions map[string]*entry
}

func NewManager(ctx context.Context, cfg Config, flowCfg flow.Config, deps flow.Deps, recorder Recorder) *Manager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}

	return &Manager{
		ctx:      ctx,
		cfg:      cfg,
		flowCfg:  flowCfg,
		deps:     deps,
		clock:    deps.Clock,
		recorder: recorder,
		sessions: make(map[string]*entry),
	}
}

// Open returns the flow of userID, creating it on first use
func (m *Manager) Open(userID string) *flow.Flow {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[userID]; ok {
		e.lastSeen = m.clock.Now()
		return e.flow
	}

	f := flow.New(m.ctx, userID, m.flowCfg, m.deps)
	m.sessions[userID] = &entry{flow: f, lastSeen: m.clock.Now()}
	if m.recorder != nil {
		m.recorder.SessionOpened()
	}
	logger.WithUserID(userID).Debug("Booking session opened", "active", len(m.sessions))
	return f
}

// Get returns an existing flow without creating one
func (m *Manager) Get(userID string) (*flow.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	e.lastSeen = m.clock.Now()
	return e.flow, nil
}

// Close stops the flow of userID and forgets it
func (m *Manager) Close(userID string) error {
	m.mu.Lock()
	e, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if !ok {
		return apperrors.ErrSessionNotFound
	}
	m.closeFlow(e.flow)
	return nil
}

func (m *Manager) closeFlow(f *flow.Flow) {
	f.Close()
	if m.recorder != nil {
		m.recorder.SessionClosed()
	}
	logger.WithUserID(f.UserID()).Debug("Booking session closed", "step", f.Step().String())
}

// CloseAll stops every flow. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	flows := make([]*flow.Flow, 0, len(m.sessions))
	for id, e := range m.sessions {
		flows = append(flows, e.flow)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, f := range flows {
		m.closeFlow(f)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// BroadcastSeat hands a seat status change to every flow showing showID and
// returns how many flows applied it
func (m *Manager) BroadcastSeat(showID string, seat models.Seat) int {
	m.mu.Lock()
	flows := make([]*flow.Flow, 0, len(m.sessions))
	for _, e := range m.sessions {
		flows = append(flows, e.flow)
	}
	m.mu.Unlock()

	applied := 0
	for _, f := range flows {
		if f.ShowID() != showID {
			continue
		}
		if f.ApplyServerUpdate(showID, seat) {
			applied++
		}
	}
	return applied
}

// Sweep closes flows that were not touched for the idle timeout
func (m *Manager) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	var idle []*flow.Flow
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) >= m.cfg.IdleTimeout {
			idle = append(idle, e.flow)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, f := range idle {
		m.closeFlow(f)
	}
	if len(idle) > 0 {
		slog.Info("Closed idle booking sessions", "count", len(idle))
	}
	return len(idle)
}

// Run sweeps idle sessions until ctx is done
func (m *Manager) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}

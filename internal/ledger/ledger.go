// Package ledger keeps the per-session list of optimistic actions the UI shows
// while a mutation is in flight and shortly after it settles.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type ActionType string

const (
	SeatSelect     ActionType = "seat_select"
	BookingCreate  ActionType = "booking_create"
	PaymentProcess ActionType = "payment_process"
)

type Status string

const (
	Pending Status = "pending"
	Success Status = "success"
	Error   Status = "error"
)

// Action is one user-initiated mutation. Timestamp is reset whenever the status changes,
// so the visibility windows count from the moment an action settled.
type Action struct {
	ID        string     `json:"id"`
	Type      ActionType `json:"type"`
	Status    Status     `json:"status"`
	Subject   string     `json:"subject,omitempty"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// Patch is applied by Update. Empty fields are left untouched.
type Patch struct {
	Status  Status
	Message string
}

type Config struct {
	SuccessTTL    time.Duration
	ErrorTTL      time.Duration
	PurgeInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		SuccessTTL:    3 * time.Second,
		ErrorTTL:      5 * time.Second,
		PurgeInterval: time.Second,
	}
}

// Recorder receives settled actions
type Recorder interface {
	OptimisticAction(actionType, status string)
}

type Ledger struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	cfg      Config
	recorder Recorder
	actions  []Action
}

func New(clock clockwork.Clock, cfg Config, recorder Recorder) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if cfg.SuccessTTL <= 0 {
		cfg.SuccessTTL = def.SuccessTTL
	}
	if cfg.ErrorTTL <= 0 {
		cfg.ErrorTTL = def.ErrorTTL
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = def.PurgeInterval
	}

	return &Ledger{
		clock:    clock,
		cfg:      cfg,
		recorder: recorder,
	}
}

// Add records a pending action and returns its id. ID, Status and Timestamp of a are ignored.
func (l *Ledger) Add(a Action) string {
	a.ID = uuid.Must(uuid.NewV7()).String()
	a.Status = Pending
	a.Timestamp = l.clock.Now()

	l.mu.Lock()
	l.actions = append(l.actions, a)
	l.mu.Unlock()

	return a.ID
}

// Update patches the action with the given id. It reports false if the action is gone.
func (l *Ledger) Update(id string, p Patch) bool {
	l.mu.Lock()
	var settled *Action
	found := false
	for i := range l.actions {
		a := &l.actions[i]
		if a.ID != id {
			continue
		}
		found = true
		if p.Message != "" {
			a.Message = p.Message
		}
		if p.Status != "" && p.Status != a.Status {
			a.Status = p.Status
			a.Timestamp = l.clock.Now()
			if p.Status != Pending {
				cp := *a
				settled = &cp
			}
		}
		break
	}
	l.mu.Unlock()

	if settled != nil && l.recorder != nil {
		l.recorder.OptimisticAction(string(settled.Type), string(settled.Status))
	}
	return found
}

func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.actions {
		if l.actions[i].ID == id {
			l.actions = append(l.actions[:i], l.actions[i+1:]...)
			return
		}
	}
}

func (l *Ledger) Get(id string) (Action, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range l.actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// expired reports whether a settled action has outlived its visibility window
func (l *Ledger) expired(a Action, now time.Time) bool {
	age := now.Sub(a.Timestamp)
	switch a.Status {
	case Success:
		return age >= l.cfg.SuccessTTL
	case Error:
		return age >= l.cfg.ErrorTTL
	default:
		return false
	}
}

// Purge drops settled actions whose visibility window has passed and returns how many were dropped
func (l *Ledger) Purge() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.actions[:0]
	for _, a := range l.actions {
		if !l.expired(a, now) {
			kept = append(kept, a)
		}
	}
	dropped := len(l.actions) - len(kept)
	for i := len(kept); i < len(l.actions); i++ {
		l.actions[i] = Action{}
	}
	l.actions = kept

	return dropped
}

// Visible returns the actions the UI should render, oldest first
func (l *Ledger) Visible() []Action {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Action, 0, len(l.actions))
	for _, a := range l.actions {
		if !l.expired(a, now) {
			out = append(out, a)
		}
	}
	return out
}

// Run purges the ledger every PurgeInterval until ctx is done
func (l *Ledger) Run(ctx context.Context) {
	ticker := l.clock.NewTicker(l.cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.Purge()
		}
	}
}

// Package timer implements the seat-hold countdown of one booking attempt.
//
// The countdown ticks once per second on an injected clock. Reaching zero marks
// the timer expired and invokes the expiry callback exactly once per Start. One
// extension is allowed per cooldown window and only when little time is left.
package timer

import (
	"context"
	"sync"
	"time"

	apperrors "booknow/internal/errors"

	"github.com/jonboulle/clockwork"
)

type Band string

const (
	BandNormal   Band = "normal"
	BandHurry    Band = "hurry"
	BandCritical Band = "critical"
)

const (
	hurrySeconds    = 120
	criticalSeconds = 60
)

type Config struct {
	ExtendIncrement time.Duration
	ExtendThreshold time.Duration
	ExtendCooldown  time.Duration
	TickInterval    time.Duration
}

func DefaultConfig() Config {
	return Config{
		ExtendIncrement: 300 * time.Second,
		ExtendThreshold: 300 * time.Second,
		ExtendCooldown:  60 * time.Second,
		TickInterval:    time.Second,
	}
}

type State struct {
	InitialSeconds   int  `json:"initialSeconds"`
	RemainingSeconds int  `json:"remainingSeconds"`
	IsExpired        bool `json:"isExpired"`
	CanExtend        bool `json:"canExtend"`
	Running          bool `json:"running"`
	Band             Band `json:"band"`
}

type Timer struct {
	mu    sync.Mutex
	clock clockwork.Clock
	cfg   Config

	initial    int
	remaining  int
	started    bool
	expired    bool
	extending  bool
	extendedAt time.Time
	generation uint64

	onExpired func()
	cancel    context.CancelFunc
}

func New(clock clockwork.Clock, cfg Config, onExpired func()) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if cfg.ExtendIncrement <= 0 {
		cfg.ExtendIncrement = def.ExtendIncrement
	}
	if cfg.ExtendThreshold <= 0 {
		cfg.ExtendThreshold = def.ExtendThreshold
	}
	if cfg.ExtendCooldown <= 0 {
		cfg.ExtendCooldown = def.ExtendCooldown
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}

	return &Timer{
		clock:     clock,
		cfg:       cfg,
		onExpired: onExpired,
	}
}

// Reset arms the countdown at initialSeconds without starting the tick loop
func (t *Timer) Reset(initialSeconds int) {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	t.initial = initialSeconds
	t.remaining = initialSeconds
	t.started = true
	t.expired = false
	t.extending = false
	t.extendedAt = time.Time{}
	if initialSeconds <= 0 {
		t.remaining = 0
		t.expired = true
	}
}

// Start arms the countdown and ticks it on the clock until it expires, Stop is called or ctx is done
func (t *Timer) Start(ctx context.Context, initialSeconds int) {
	t.Reset(initialSeconds)

	runCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(runCtx)
}

func (t *Timer) run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if t.tick(ctx) {
				return
			}
		}
	}
}

// Tick advances the countdown by one second and reports whether the timer is expired
func (t *Timer) Tick() bool {
	return t.tick(context.Background())
}

// tick ignores ticks of a loop that was stopped while the ticker fired
func (t *Timer) tick(ctx context.Context) bool {
	t.mu.Lock()
	if ctx.Err() != nil {
		t.mu.Unlock()
		return true
	}
	if !t.started || t.expired {
		expired := t.expired
		t.mu.Unlock()
		return expired
	}

	t.remaining--
	fire := false
	if t.remaining <= 0 {
		t.remaining = 0
		t.expired = true
		fire = true
	}
	cb := t.onExpired
	t.mu.Unlock()

	if fire && cb != nil {
		cb()
	}
	return fire
}

// Stop cancels the tick loop. The countdown state is kept. Stop does not wait for
// the loop goroutine, so it is safe to call from the expiry callback.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Disarm stops the countdown and forgets it. An extension still in flight is dropped.
func (t *Timer) Disarm() {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	t.initial = 0
	t.remaining = 0
	t.started = false
	t.expired = false
	t.extending = false
	t.extendedAt = time.Time{}
}

// Sync lowers the countdown to the server's remaining time. It never adds time;
// a server value of zero or less expires the timer.
func (t *Timer) Sync(remainingSeconds int) {
	t.mu.Lock()
	if !t.started || t.expired || remainingSeconds >= t.remaining {
		t.mu.Unlock()
		return
	}
	if remainingSeconds > 0 {
		t.remaining = remainingSeconds
		t.mu.Unlock()
		return
	}
	t.remaining = 0
	t.expired = true
	cb := t.onExpired
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (t *Timer) canExtendLocked() bool {
	if !t.started || t.expired || t.extending {
		return false
	}
	if time.Duration(t.remaining)*time.Second > t.cfg.ExtendThreshold {
		return false
	}
	if !t.extendedAt.IsZero() && t.clock.Since(t.extendedAt) < t.cfg.ExtendCooldown {
		return false
	}
	return true
}

func (t *Timer) CanExtend() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canExtendLocked()
}

// Extend calls remote and, once it succeeds, adds the extension increment.
// A failed remote call leaves the countdown untouched.
func (t *Timer) Extend(ctx context.Context, remote func(ctx context.Context) error) error {
	t.mu.Lock()
	if t.expired {
		t.mu.Unlock()
		return apperrors.ErrTimerExpired
	}
	if !t.canExtendLocked() {
		t.mu.Unlock()
		return apperrors.ErrCannotExtend
	}
	t.extending = true
	gen := t.generation
	t.mu.Unlock()

	err := remote(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation {
		return apperrors.ErrStale
	}
	t.extending = false
	if err != nil {
		return err
	}
	if t.expired {
		return apperrors.ErrTimerExpired
	}

	t.remaining += int(t.cfg.ExtendIncrement / time.Second)
	t.extendedAt = t.clock.Now()
	return nil
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	band := BandNormal
	switch {
	case t.remaining <= criticalSeconds:
		band = BandCritical
	case t.remaining <= hurrySeconds:
		band = BandHurry
	}

	return State{
		InitialSeconds:   t.initial,
		RemainingSeconds: t.remaining,
		IsExpired:        t.expired,
		CanExtend:        t.canExtendLocked(),
		Running:          t.cancel != nil && !t.expired,
		Band:             band,
	}
}

package flow

import (
	"sync"

	"booknow/internal/models"

	"github.com/jonboulle/clockwork"
)

const inboxLimit = 50

// Inbox collects notifications until the client drains them. The oldest entries
// are dropped once the limit is reached.
type Inbox struct {
	mu    sync.Mutex
	clock clockwork.Clock
	items []models.Notification
}

func NewInbox(clock clockwork.Clock) *Inbox {
	return &Inbox{clock: clock}
}

func (in *Inbox) Notify(level models.NotificationLevel, message string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.items = append(in.items, models.Notification{
		Level:     level,
		Message:   message,
		Timestamp: in.clock.Now(),
	})
	if len(in.items) > inboxLimit {
		in.items = in.items[len(in.items)-inboxLimit:]
	}
}

// Drain returns pending notifications and empties the inbox
func (in *Inbox) Drain() []models.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := in.items
	in.items = nil
	return out
}

func (in *Inbox) Peek() []models.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := make([]models.Notification, len(in.items))
	copy(out, in.items)
	return out
}

package trigger

import (
	"sync"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CooldownTracker records the last firing time per trigger name. A trigger
// with no recorded firing is never in cooldown.
type CooldownTracker struct {
	clock Clock

	mu        sync.RWMutex
	lastFired map[string]time.Time
}

// NewCooldownTracker returns a tracker using wall-clock time.
func NewCooldownTracker() *CooldownTracker {
	return NewCooldownTrackerWithClock(realClock{})
}

// NewCooldownTrackerWithClock returns a tracker with a custom clock (for testing).
func NewCooldownTrackerWithClock(clock Clock) *CooldownTracker {
	return &CooldownTracker{
		clock:     clock,
		lastFired: make(map[string]time.Time),
	}
}

// MarkUsed records now as the trigger's last firing, overwriting any prior record.
func (c *CooldownTracker) MarkUsed(t ContextualTrigger) {
	c.MarkUsedAt(t.Name, c.clock.Now())
}

// MarkUsedAt records a specific firing time by name. Used to rehydrate
// tracker state from persisted trigger events at startup.
func (c *CooldownTracker) MarkUsedAt(name string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFired[name] = at
}

// InCooldown reports whether the trigger fired within its cooldown window.
func (c *CooldownTracker) InCooldown(t ContextualTrigger) bool {
	c.mu.RLock()
	last, ok := c.lastFired[t.Name]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	return c.clock.Now().Sub(last) < t.Cooldown()
}

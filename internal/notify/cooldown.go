package notify

import (
	"sync"
	"time"
)

// DefaultCooldown is the window during which repeat notifications from the
// same sender identifier are silenced.
const DefaultCooldown = 12 * time.Hour

// Cooldown suppresses duplicate notifications per sender identifier.
//
// It owns its lock; the lock is held only for the read-check-update sequence,
// never across a network call. State lives for the process lifetime unless
// seeded/persisted through storage by the caller.
type Cooldown struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{
		window:   window,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// SetWindow adjusts the cooldown window (config hot reload).
func (c *Cooldown) SetWindow(window time.Duration) {
	if window <= 0 {
		window = DefaultCooldown
	}
	c.mu.Lock()
	c.window = window
	c.mu.Unlock()
}

// Allow reports whether a send for senderID is permitted now and, if so,
// records the send time. Remaining is non-zero when the send was silenced.
func (c *Cooldown) Allow(senderID string) (allowed bool, remaining time.Duration) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.lastSent[senderID]; ok {
		if since := now.Sub(last); since < c.window {
			return false, c.window - since
		}
	}
	c.lastSent[senderID] = now
	return true, 0
}

// Remaining reports the unexpired portion of the window for senderID
// without recording anything. Zero means a send would be permitted now.
func (c *Cooldown) Remaining(senderID string) time.Duration {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.lastSent[senderID]; ok {
		if since := now.Sub(last); since < c.window {
			return c.window - since
		}
	}
	return 0
}

// Seed records a historical send time without permitting anything,
// used to restore persisted state after a restart.
func (c *Cooldown) Seed(senderID string, at time.Time) {
	if senderID == "" || at.IsZero() {
		return
	}
	c.mu.Lock()
	if cur, ok := c.lastSent[senderID]; !ok || at.After(cur) {
		c.lastSent[senderID] = at
	}
	c.mu.Unlock()
}

// LastSent returns the recorded send time for senderID, if any.
func (c *Cooldown) LastSent(senderID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastSent[senderID]
	return t, ok
}

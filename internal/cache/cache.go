// Package cache holds the in-process session cache. Authenticated requests
// resolve their principal here first so the hot path stays off the database.
package cache

import (
	"sync"
	"time"

	"github.com/cardfile/cardfile/internal/domain"
)

// DefaultTTL bounds how stale a cached principal snapshot may get. Mutating
// flows overwrite or delete entries synchronously, so the TTL only matters
// for changes made outside the process.
const DefaultTTL = time.Hour

// sweepInterval is how often the background sweeper walks the map.
const sweepInterval = 10 * time.Minute

type entry struct {
	user      domain.User
	expiresAt time.Time
}

// SessionCache maps email -> user snapshot with a fixed TTL. A nil
// *SessionCache is valid and behaves as a permanent miss, so callers never
// need to branch on whether caching is enabled.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &SessionCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns the cached snapshot for email. Expired entries are treated as
// misses and evicted lazily.
func (c *SessionCache) Get(email string) (domain.User, bool) {
	if c == nil {
		return domain.User{}, false
	}

	c.mu.RLock()
	e, ok := c.entries[email]
	c.mu.RUnlock()
	if !ok {
		return domain.User{}, false
	}
	if time.Now().After(e.expiresAt) {
		c.Delete(email)
		return domain.User{}, false
	}
	return e.user, true
}

// Put stores a fresh snapshot, resetting the TTL.
func (c *SessionCache) Put(email string, u domain.User) {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.entries[email] = entry{user: u, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Delete removes the entry, if any.
func (c *SessionCache) Delete(email string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	delete(c.entries, email)
	c.mu.Unlock()
}

// Close stops the background sweeper. Safe to call more than once.
func (c *SessionCache) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.done) })
}

func (c *SessionCache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for email, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, email)
				}
			}
			c.mu.Unlock()
		}
	}
}

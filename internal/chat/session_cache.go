package chat

import (
	"sync"
	"time"
)

const defaultSessionTTL = 30 * time.Minute

// SessionCache is a process-local mapping from a chat id to an opaque
// conversation payload. Entries expire lazily: every read first sweeps
// anything older than the TTL, so memory stays bounded by access frequency
// without a background timer.
//
// The cache owns no durable fact. A process restart silently drops all
// entries, and entries are never visible across processes.
type SessionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]sessionEntry
}

type sessionEntry struct {
	value     any
	createdAt time.Time
}

// SessionCacheOption customises the SessionCache.
type SessionCacheOption func(*SessionCache)

// WithSessionClock injects a custom clock primarily for testing.
func WithSessionClock(now func() time.Time) SessionCacheOption {
	return func(c *SessionCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewSessionCache constructs a SessionCache with the given TTL
// (defaulting to 30 minutes when non-positive).
func NewSessionCache(ttl time.Duration, opts ...SessionCacheOption) *SessionCache {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	cache := &SessionCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]sessionEntry),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// Get returns the payload stored for the chat, sweeping expired entries first.
func (c *SessionCache) Get(chatID int64) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()

	entry, ok := c.entries[chatID]
	if !ok {
		return nil, false
	}
	return entry.value, true
}

// Has reports whether a live entry exists for the chat.
func (c *SessionCache) Has(chatID int64) bool {
	_, ok := c.Get(chatID)
	return ok
}

// Set stores a fresh entry for the chat, replacing any previous one. The
// creation time always restarts; there is no merge with prior state.
func (c *SessionCache) Set(chatID int64, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[chatID] = sessionEntry{value: value, createdAt: c.now()}
}

// Delete removes the entry for the chat unconditionally.
func (c *SessionCache) Delete(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, chatID)
}

// Len returns the number of live entries after a sweep.
func (c *SessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()
	return len(c.entries)
}

// sweep drops every entry older than the TTL. Callers must hold the lock.
func (c *SessionCache) sweep() {
	deadline := c.now().Add(-c.ttl)
	for key, entry := range c.entries {
		if entry.createdAt.Before(deadline) {
			delete(c.entries, key)
		}
	}
}

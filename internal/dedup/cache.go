package dedup

import (
	"context"
	"sync"
	"time"

	"pumpsync/internal/model"
)

// Cache is the in-memory Store: a mutex-guarded map bounded both by a
// time window and by entry count. The zero value is not usable; use
// NewCache.
type Cache struct {
	mu      sync.Mutex
	window  time.Duration
	maxSize int
	entries map[model.EventIdentity]time.Time
}

// NewCache builds an in-memory store. window should cover the maximum
// plausible archive overlap; maxSize bounds worst-case memory.
func NewCache(window time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 50000
	}
	return &Cache{
		window:  window,
		maxSize: maxSize,
		entries: make(map[model.EventIdentity]time.Time),
	}
}

// Seen reports whether the identity is present and still inside the window.
func (c *Cache) Seen(_ context.Context, id model.EventIdentity) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.entries[id]
	if !ok {
		return false, nil
	}
	if time.Since(ts) > c.window {
		delete(c.entries, id)
		return false, nil
	}
	return true, nil
}

// MarkSeen records the identity. When the cache is full the oldest
// entry is evicted first.
func (c *Cache) MarkSeen(_ context.Context, id model.EventIdentity, eventTime time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[id] = eventTime
	return nil
}

// Sweep drops entries with event time before the cutoff.
func (c *Cache) Sweep(_ context.Context, olderThan time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, ts := range c.entries {
		if ts.Before(olderThan) {
			delete(c.entries, id)
			n++
		}
	}
	return n, nil
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictOldestLocked() {
	var oldest model.EventIdentity
	var oldestTS time.Time
	first := true
	for id, ts := range c.entries {
		if first || ts.Before(oldestTS) {
			oldest, oldestTS, first = id, ts, false
		}
	}
	if !first {
		delete(c.entries, oldest)
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cache provides a typed in-memory cache with TTL support.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64 // Get calls that returned a live entry
	Misses      int64 // Get calls for absent or expired keys
	Sets        int64
	Evictions   int64 // expired entries removed by the janitor
	CurrentSize int
}

type entry[V any] struct {
	value      V
	expiration time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// Memory is a thread-safe TTL cache. A zero ttl on Set keeps the entry until
// it is deleted.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     func() time.Time

	hits, misses, sets, evictions atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMemory creates a cache. When cleanupInterval is positive a janitor
// goroutine removes expired entries until Close is called.
func NewMemory[V any](cleanupInterval time.Duration) *Memory[V] {
	c := &Memory[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	} else {
		close(c.done)
	}
	return c
}

// Get returns the live value stored under key.
func (c *Memory[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.expired(c.now()) {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key for ttl.
func (c *Memory[V]) Set(key string, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiration = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	c.sets.Add(1)
}

// Delete removes key and reports whether it was present.
func (c *Memory[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes every entry.
func (c *Memory[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (c *Memory[V]) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

func (c *Memory[V]) deleteExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			count++
		}
	}
	c.evictions.Add(int64(count))
	return count
}

// Close stops the janitor and waits for it to exit. It is safe to call more
// than once.
func (c *Memory[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Memory[V]) janitor(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

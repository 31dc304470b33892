// Package cache provides an in-memory TTL cache with per-key single-flight
// fetching. Entries expire lazily on read; nothing runs in the background.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Clock supplies the current time. Tests substitute a controllable clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// FetchFunc produces a value for a missing key.
type FetchFunc[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

// live reports whether the entry may still be served at now.
func (e entry[V]) live(now time.Time) bool {
	return now.Sub(e.insertedAt) < e.ttl
}

// Cache is a generic expiring key/value store. The zero value is not usable;
// construct with New.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	group   singleflight.Group
	clock   Clock

	hits     atomic.Int64
	misses   atomic.Int64
	fetches  atomic.Int64
	failures atomic.Int64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides the clock used for insertion timestamps and expiry checks.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// New creates an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{clock: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		clock:   o.clock,
	}
}

// GetOrFetch returns the live value for key, or runs fetch to produce one.
// Concurrent callers missing on the same key share a single fetch. A failed
// fetch is returned to every waiter and leaves no entry behind. The boolean
// result is true when the value was served from a live entry.
//
// The shared fetch runs under the context of the caller that started it.
// Each caller stops waiting when its own ctx is done; a waiter that receives
// another caller's cancellation while its own ctx is still live retries once.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc[V]) (V, bool, error) {
	var zero V
	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return v, true, nil
	}
	c.misses.Add(1)

	for attempt := 0; ; attempt++ {
		ch := c.group.DoChan(key, func() (interface{}, error) {
			// A flight that finished between our miss and joining the group
			// has already stored the value.
			if v, ok := c.lookup(key); ok {
				return v, nil
			}
			c.fetches.Add(1)
			v, err := fetch(ctx)
			if err != nil {
				c.failures.Add(1)
				return v, err
			}
			c.Set(key, v, ttl)
			return v, nil
		})

		select {
		case res := <-ch:
			if res.Err != nil {
				if attempt == 0 && ctx.Err() == nil && isContextErr(res.Err) {
					continue
				}
				return zero, false, res.Err
			}
			// Val is nil when V is an interface and fetch returned nil.
			v, _ := res.Val.(V)
			return v, false, nil
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Peek returns the live value for key without fetching.
func (c *Cache[V]) Peek(key string) (V, bool) {
	v, ok := c.lookup(key)
	if ok {
		c.hits.Add(1)
	}
	return v, ok
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !e.live(c.clock.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any existing entry.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, insertedAt: c.clock.Now(), ttl: ttl}
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache[V]) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !e.live(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries  int   `json:"entries"`
	Live     int   `json:"live"`
	Expired  int   `json:"expired"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Fetches  int64 `json:"fetches"`
	Failures int64 `json:"failures"`
}

// Stats returns current counters. Expired entries still held in memory are
// counted separately from live ones.
func (c *Cache[V]) Stats() Stats {
	now := c.clock.Now()
	c.mu.RLock()
	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if e.live(now) {
			s.Live++
		} else {
			s.Expired++
		}
	}
	c.mu.RUnlock()
	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	s.Fetches = c.fetches.Load()
	s.Failures = c.failures.Load()
	return s
}

// Key builds a namespace-qualified key such as "provider:hashicorp/aws".
// Namespacing lets one process apply different TTLs per class of entry.
func Key(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, "/")
}

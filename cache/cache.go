// Package cache holds the most recently resolved rates and classifies their age.
package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	tracker "go-exchange-rate-tracker"
)

const (
	// HardTTL age after which cached rates are stale. Stale rates are still served.
	HardTTL = 5 * time.Minute
	// SoftTTL age after which a background refresh is triggered.
	SoftTTL = 4 * time.Minute
)

// ErrInvalidTTL is returned when the TTLs do not satisfy 0 < soft < hard
var ErrInvalidTTL = errors.New("invalid cache ttl")

// Snapshot cached rates annotated with their age at the time of the read
type Snapshot struct {
	Data      tracker.ResolvedRates
	FetchedAt time.Time
	Age       time.Duration
	// IsStale age is past the hard TTL
	IsStale bool
	// NeedsRefresh age is past the soft TTL
	NeedsRefresh bool
}

// Stats read-only view of the cache for health reporting
type Stats struct {
	HasData      bool
	FetchedAt    time.Time
	Age          time.Duration
	IsStale      bool
	IsRefreshing bool
}

// Cache of the latest resolved rates. The Cache is concurrency safe.
type Cache struct {
	hardTTL time.Duration
	softTTL time.Duration

	// lock guards data and fetchedAt, which always change together
	lock      sync.RWMutex
	data      *tracker.ResolvedRates
	fetchedAt time.Time

	// refreshing advisory flag serializing refresh attempts
	refreshing atomic.Bool

	now func() time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New returns an empty Cache. softTTL must be positive and below hardTTL.
func New(hardTTL, softTTL time.Duration, opts ...Option) (*Cache, error) {
	if softTTL <= 0 || softTTL >= hardTTL {
		return nil, fmt.Errorf("%w: soft %v, hard %v", ErrInvalidTTL, softTTL, hardTTL)
	}
	c := &Cache{
		hardTTL: hardTTL,
		softTTL: softTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached rates with their current age, even when stale.
// It reports false only when nothing was ever cached.
func (c *Cache) Get() (Snapshot, bool) {
	c.lock.RLock()
	data, fetchedAt := c.data, c.fetchedAt
	c.lock.RUnlock()

	if data == nil {
		return Snapshot{}, false
	}

	age := c.now().Sub(fetchedAt)
	return Snapshot{
		Data:         *data,
		FetchedAt:    fetchedAt,
		Age:          age,
		IsStale:      age > c.hardTTL,
		NeedsRefresh: age > c.softTTL,
	}, true
}

// Set replaces the cached rates and stamps them with the current time.
func (c *Cache) Set(data tracker.ResolvedRates) {
	data.Rates = data.Rates.Clone()
	data.Sources = append([]string(nil), data.Sources...)
	now := c.now()

	c.lock.Lock()
	defer c.lock.Unlock()
	c.data = &data
	c.fetchedAt = now
}

// IsRefreshing reports whether a refresh is in flight.
func (c *Cache) IsRefreshing() bool {
	return c.refreshing.Load()
}

// SetRefreshing sets the refreshing flag.
func (c *Cache) SetRefreshing(refreshing bool) {
	c.refreshing.Store(refreshing)
}

// TryStartRefresh sets the refreshing flag unless it is already set.
// It reports whether the caller now owns the refresh and must clear the flag when done.
func (c *Cache) TryStartRefresh() bool {
	return c.refreshing.CompareAndSwap(false, true)
}

// Clear empties the cache and resets the refreshing flag.
func (c *Cache) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.data = nil
	c.fetchedAt = time.Time{}
	c.refreshing.Store(false)
}

// Stats returns the health view of the cache.
func (c *Cache) Stats() Stats {
	stats := Stats{IsRefreshing: c.IsRefreshing()}
	if snapshot, ok := c.Get(); ok {
		stats.HasData = true
		stats.FetchedAt = snapshot.FetchedAt
		stats.Age = snapshot.Age
		stats.IsStale = snapshot.IsStale
	}
	return stats
}

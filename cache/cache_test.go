package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tracker "go-exchange-rate-tracker"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T) (*Cache, *clock) {
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c, err := New(HardTTL, SoftTTL, WithClock(clk.Now))
	require.NoError(t, err)
	return c, clk
}

var resolved = tracker.ResolvedRates{
	Rates:      tracker.Rates{"EUR": 0.92},
	Timestamp:  time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
	Sources:    []string{"a", "b"},
	Resolution: tracker.Averaged,
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		hard    time.Duration
		soft    time.Duration
		wantErr bool
	}{
		{"defaults", HardTTL, SoftTTL, false},
		{"soft equals hard", time.Minute, time.Minute, true},
		{"soft above hard", time.Minute, 2 * time.Minute, true},
		{"zero soft", time.Minute, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.hard, tt.soft)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTTL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCache_GetEmpty(t *testing.T) {
	c, _ := newTestCache(t)

	_, ok := c.Get()

	assert.False(t, ok)
}

func TestCache_Staleness(t *testing.T) {
	c, clk := newTestCache(t)
	c.Set(resolved)
	setAt := clk.Now()

	tests := []struct {
		name             string
		advance          time.Duration
		wantNeedsRefresh bool
		wantStale        bool
	}{
		{"immediately after set", 0, false, false},
		{"at the soft ttl", 4 * time.Minute, false, false},
		{"just past the soft ttl", time.Millisecond, true, false},
		{"at the hard ttl", time.Minute - time.Millisecond, true, false},
		{"just past the hard ttl", time.Millisecond, true, true},
		{"long after", time.Hour, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk.Advance(tt.advance)

			snapshot, ok := c.Get()

			require.True(t, ok, "stale data is still returned")
			assert.Equal(t, resolved, snapshot.Data)
			assert.Equal(t, setAt, snapshot.FetchedAt)
			assert.Equal(t, clk.Now().Sub(setAt), snapshot.Age)
			assert.Equal(t, tt.wantNeedsRefresh, snapshot.NeedsRefresh)
			assert.Equal(t, tt.wantStale, snapshot.IsStale)
		})
	}
}

func TestCache_SetResetsAge(t *testing.T) {
	c, clk := newTestCache(t)
	c.Set(resolved)
	clk.Advance(6 * time.Minute)

	c.Set(resolved)
	snapshot, ok := c.Get()

	require.True(t, ok)
	assert.Equal(t, time.Duration(0), snapshot.Age)
	assert.False(t, snapshot.IsStale)
	assert.False(t, snapshot.NeedsRefresh)
}

func TestCache_SetCopies(t *testing.T) {
	c, _ := newTestCache(t)
	data := tracker.ResolvedRates{Rates: tracker.Rates{"EUR": 0.9}, Sources: []string{"a"}}

	c.Set(data)
	data.Rates["EUR"] = 1.0
	data.Sources[0] = "z"

	snapshot, _ := c.Get()
	assert.Equal(t, tracker.Rate(0.9), snapshot.Data.Rates["EUR"])
	assert.Equal(t, []string{"a"}, snapshot.Data.Sources)
}

func TestCache_Refreshing(t *testing.T) {
	c, _ := newTestCache(t)
	assert.False(t, c.IsRefreshing())

	assert.True(t, c.TryStartRefresh())
	assert.True(t, c.IsRefreshing())
	assert.False(t, c.TryStartRefresh(), "second refresh must not start")

	c.SetRefreshing(false)
	assert.False(t, c.IsRefreshing())
	assert.True(t, c.TryStartRefresh())
}

func TestCache_TryStartRefreshConcurrent(t *testing.T) {
	c, _ := newTestCache(t)
	var started int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryStartRefresh() {
				atomic.AddInt32(&started, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started)
}

func TestCache_Clear(t *testing.T) {
	c, _ := newTestCache(t)
	c.Set(resolved)
	c.SetRefreshing(true)

	c.Clear()

	_, ok := c.Get()
	assert.False(t, ok)
	assert.False(t, c.IsRefreshing())
}

func TestCache_Stats(t *testing.T) {
	c, clk := newTestCache(t)
	assert.Equal(t, Stats{}, c.Stats())

	c.Set(resolved)
	clk.Advance(6 * time.Minute)
	c.SetRefreshing(true)

	stats := c.Stats()
	assert.True(t, stats.HasData)
	assert.Equal(t, 6*time.Minute, stats.Age)
	assert.True(t, stats.IsStale)
	assert.True(t, stats.IsRefreshing)
}

func TestCache_ConcurrentReadWrite(t *testing.T) {
	c, _ := newTestCache(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Set(tracker.ResolvedRates{
				Rates:   tracker.Rates{"EUR": tracker.Rate(i)},
				Sources: []string{"a"},
			})
		}(i)
		go func() {
			defer wg.Done()
			if snapshot, ok := c.Get(); ok {
				assert.Len(t, snapshot.Data.Sources, 1)
			}
		}()
	}
	wg.Wait()
}

package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tracker "go-exchange-rate-tracker"
)

var currencies = Currencies{
	Base:    "USD",
	Targets: []tracker.Currency{"EUR", "GBP"},
}

var cachedRates = tracker.ResolvedRates{
	Rates:      tracker.Rates{"EUR": 0.95},
	Timestamp:  t0.Add(-time.Hour),
	Sources:    []string{"a"},
	Resolution: tracker.SingleSource,
}

func TestService_Rates(t *testing.T) {
	tests := []struct {
		name string
		// cacheAge how old the cached rates are, no cache when negative
		cacheAge time.Duration
		// sourcesUp whether the providers respond
		sourcesUp bool

		wantStatus     Status
		wantCached     bool
		wantRates      tracker.Rates
		wantWarning    bool
		wantFetches    int32
		wantRetryAfter time.Duration
	}{
		{
			name: "fresh cache is served without fetching", cacheAge: time.Minute, sourcesUp: true,
			wantStatus: StatusLive, wantCached: true, wantRates: cachedRates.Rates, wantFetches: 0,
		},
		{
			name: "cache due for refresh is served and refreshed in background", cacheAge: 4*time.Minute + time.Second, sourcesUp: true,
			wantStatus: StatusLive, wantCached: true, wantRates: cachedRates.Rates, wantFetches: 1,
		},
		{
			name: "empty cache fetches", cacheAge: -1, sourcesUp: true,
			wantStatus: StatusLive, wantCached: false, wantRates: tracker.Rates{"EUR": 0.92}, wantFetches: 1,
		},
		{
			name: "stale cache fetches", cacheAge: 6 * time.Minute, sourcesUp: true,
			wantStatus: StatusLive, wantCached: false, wantRates: tracker.Rates{"EUR": 0.92}, wantFetches: 1,
		},
		{
			name: "stale cache served when sources are down", cacheAge: 6 * time.Minute, sourcesUp: false,
			wantStatus: StatusStale, wantCached: true, wantRates: cachedRates.Rates, wantWarning: true, wantFetches: 1,
		},
		{
			name: "nothing available", cacheAge: -1, sourcesUp: false,
			wantStatus: StatusUnavailable, wantFetches: 1, wantRetryAfter: DefaultRetryAfter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.sourcesUp {
				f.fetcher.setResults(sourceResults())
			}
			if tt.cacheAge >= 0 {
				f.cache.Set(cachedRates)
				f.clock.Advance(tt.cacheAge)
			}
			s := NewService(f.cache, f.refresher, currencies, 0)

			o := s.Rates(context.Background())
			f.refresher.Wait()

			assert.Equal(t, tt.wantStatus, o.Status)
			assert.Equal(t, tt.wantCached, o.Cached)
			assert.Equal(t, tt.wantRates, o.Rates.Rates)
			assert.Equal(t, tt.wantWarning, o.Warning != "")
			assert.Equal(t, tt.wantRetryAfter, o.RetryAfter)
			assert.Equal(t, tt.wantFetches, f.fetcher.calls())
			if tt.wantCached {
				assert.Equal(t, tt.cacheAge, o.CacheAge)
			}
		})
	}
}

func TestService_RatesStaleWhileRefreshRunning(t *testing.T) {
	f := newFixture(t)
	f.fetcher.setResults(sourceResults())
	f.cache.Set(cachedRates)
	f.clock.Advance(10 * time.Minute)
	f.cache.SetRefreshing(true)
	s := NewService(f.cache, f.refresher, currencies, 10*time.Second)

	o := s.Rates(context.Background())

	assert.Equal(t, StatusStale, o.Status)
	assert.Equal(t, StaleWarning, o.Warning)
	assert.Equal(t, int32(0), f.fetcher.calls())
}

func TestService_RatesUnavailable(t *testing.T) {
	f := newFixture(t)
	s := NewService(f.cache, f.refresher, currencies, 10*time.Second)

	o := s.Rates(context.Background())

	assert.Equal(t, StatusUnavailable, o.Status)
	assert.Equal(t, UnavailableMessage, o.Error)
	assert.Equal(t, 10*time.Second, o.RetryAfter)
	assert.Nil(t, o.Rates.Rates)
}

func TestService_HealthAndCurrencies(t *testing.T) {
	f := newFixture(t)
	s := NewService(f.cache, f.refresher, currencies, 0)

	health := s.Health(context.Background())
	assert.False(t, health.Cache.HasData)
	assert.GreaterOrEqual(t, health.Uptime, time.Duration(0))

	f.cache.Set(cachedRates)
	f.clock.Advance(2 * time.Minute)
	health = s.Health(context.Background())
	assert.True(t, health.Cache.HasData)
	assert.Equal(t, 2*time.Minute, health.Cache.Age)
	assert.False(t, health.Cache.IsStale)

	assert.Equal(t, currencies, s.Currencies(context.Background()))
}

func TestService_Decorators(t *testing.T) {
	f := newFixture(t)
	var s Service = NewService(f.cache, f.refresher, currencies, 0)
	s = NewLoggingService(log.NewNopLogger(), s)
	s = NewInstrumentingService(f.metrics, s)

	o := s.Rates(context.Background())
	require.Equal(t, StatusUnavailable, o.Status)

	f.fetcher.setResults(sourceResults())
	o = s.Rates(context.Background())
	require.Equal(t, StatusLive, o.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RateResponses.WithLabelValues(string(StatusUnavailable))))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RateResponses.WithLabelValues(string(StatusLive))))
	assert.Equal(t, currencies, s.Currencies(context.Background()))
	assert.False(t, s.Health(context.Background()).Cache.IsRefreshing)
}

// Package exchange serves aggregated rates with graceful degradation.
package exchange

import (
	"context"
	"time"

	tracker "go-exchange-rate-tracker"
	"go-exchange-rate-tracker/cache"
)

// DefaultRetryAfter suggested client retry delay when no rates are available
const DefaultRetryAfter = 30 * time.Second

const (
	// StaleWarning accompanies rates served from a stale cache
	StaleWarning = "Data may be outdated. Live sources are temporarily unavailable."
	// UnavailableMessage explains an unavailable outcome
	UnavailableMessage = "Exchange rate data is temporarily unavailable. Please try again later."
)

// Status of a rates read
type Status string

const (
	// StatusLive fresh cached rates or rates fetched for this read
	StatusLive Status = "live"
	// StatusStale rates from a stale cache, the providers could not be reached
	StatusStale Status = "stale"
	// StatusUnavailable no rates at all
	StatusUnavailable Status = "unavailable"
)

// Outcome of a rates read. Every read ends in one of the three statuses.
type Outcome struct {
	Status Status
	// Rates zero when unavailable
	Rates tracker.ResolvedRates
	// Cached whether Rates came from the cache
	Cached   bool
	CacheAge time.Duration
	// Warning set when stale
	Warning string
	// Error and RetryAfter set when unavailable
	Error      string
	RetryAfter time.Duration
}

// Health read-only introspection of the service
type Health struct {
	Uptime time.Duration
	Cache  cache.Stats
}

// Currencies the fixed base and the tracked target currencies
type Currencies struct {
	Base    tracker.Currency
	Targets []tracker.Currency
}

// Service interface for reading aggregated exchange rates
type Service interface {
	Rates(ctx context.Context) Outcome
	Health(ctx context.Context) Health
	Currencies(ctx context.Context) Currencies
}

// service implements the read policy over the cache and the refresher
type service struct {
	cache      *cache.Cache
	refresher  *Refresher
	currencies Currencies
	retryAfter time.Duration
	started    time.Time
}

// NewService constructs a valid Service
func NewService(c *cache.Cache, r *Refresher, currencies Currencies, retryAfter time.Duration) Service {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	return &service{
		cache:      c,
		refresher:  r,
		currencies: currencies,
		retryAfter: retryAfter,
		started:    time.Now(),
	}
}

// Rates returns fresh cached rates when it can, refreshing them in the
// background once they near expiry. Otherwise it refreshes synchronously and
// falls back to stale cached rates, then to an unavailable outcome.
func (s *service) Rates(ctx context.Context) Outcome {
	snapshot, cached := s.cache.Get()

	if cached && !snapshot.IsStale {
		s.refresher.MaybeBackgroundRefresh(ctx, snapshot)
		return Outcome{
			Status:   StatusLive,
			Rates:    snapshot.Data,
			Cached:   true,
			CacheAge: snapshot.Age,
		}
	}

	if fresh, ok := s.refresher.Refresh(ctx); ok {
		return Outcome{
			Status: StatusLive,
			Rates:  fresh,
		}
	}

	if cached {
		return Outcome{
			Status:   StatusStale,
			Rates:    snapshot.Data,
			Cached:   true,
			CacheAge: snapshot.Age,
			Warning:  StaleWarning,
		}
	}

	return Outcome{
		Status:     StatusUnavailable,
		Error:      UnavailableMessage,
		RetryAfter: s.retryAfter,
	}
}

func (s *service) Health(_ context.Context) Health {
	return Health{
		Uptime: time.Since(s.started),
		Cache:  s.cache.Stats(),
	}
}

func (s *service) Currencies(_ context.Context) Currencies {
	return s.currencies
}

package exchange

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	tracker "go-exchange-rate-tracker"
	"go-exchange-rate-tracker/cache"
	"go-exchange-rate-tracker/metrics"
	"go-exchange-rate-tracker/resolve"
	"go-exchange-rate-tracker/source"
)

// Fetcher fetches from all providers and returns the successful results
type Fetcher interface {
	FetchAll(ctx context.Context, providers []source.Provider) []tracker.SourceResult
}

// Refresher refreshes the cache from the providers.
// It is the only writer of the cache and of its refreshing flag.
type Refresher struct {
	fetcher   Fetcher
	providers []source.Provider
	cache     *cache.Cache
	metrics   *metrics.Metrics
	logger    log.Logger

	// background tracks detached refreshes
	background sync.WaitGroup

	now func() time.Time
}

// NewRefresher constructs a valid Refresher
func NewRefresher(f Fetcher, providers []source.Provider, c *cache.Cache, m *metrics.Metrics, logger log.Logger) *Refresher {
	return &Refresher{
		fetcher:   f,
		providers: providers,
		cache:     c,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Refresh fetches from every provider, resolves the results and caches them.
// When a refresh is already in flight it returns false at once without fetching.
// It also returns false when no provider responded, leaving the cache untouched.
func (r *Refresher) Refresh(ctx context.Context) (tracker.ResolvedRates, bool) {
	if !r.cache.TryStartRefresh() {
		level.Debug(r.logger).Log("msg", "refresh already in progress, skipping")
		r.metrics.Refreshes.WithLabelValues(metrics.RefreshSkipped).Inc()
		return tracker.ResolvedRates{}, false
	}
	defer r.cache.SetRefreshing(false)

	logger := log.With(r.logger, "refresh_id", uuid.NewString())

	results := r.fetcher.FetchAll(ctx, r.providers)
	stats := resolve.Stats(results, r.now())
	level.Info(logger).Log(
		"msg", "fetched sources",
		"succeeded", stats.Count,
		"total", len(r.providers),
		"sources", strings.Join(stats.Sources, ","),
		"spread", stats.Spread(),
	)

	resolved, ok := resolve.Resolve(results)
	if !ok {
		level.Warn(logger).Log("msg", "no source responded, cache left as is")
		r.metrics.Refreshes.WithLabelValues(metrics.RefreshEmpty).Inc()
		return tracker.ResolvedRates{}, false
	}

	r.cache.Set(resolved)
	r.metrics.Resolutions.WithLabelValues(string(resolved.Resolution)).Inc()
	r.metrics.Refreshes.WithLabelValues(metrics.RefreshUpdated).Inc()
	level.Info(logger).Log(
		"msg", "cache updated",
		"resolution", resolved.Resolution,
		"sources", strings.Join(resolved.Sources, ","),
		"rates", len(resolved.Rates),
	)
	return resolved, true
}

// MaybeBackgroundRefresh starts a detached refresh when snapshot is due for
// one and no refresh is running. It reports whether a refresh was started.
// The refresh outlives ctx's cancellation; its failures are only logged.
func (r *Refresher) MaybeBackgroundRefresh(ctx context.Context, snapshot cache.Snapshot) bool {
	if !snapshot.NeedsRefresh || r.cache.IsRefreshing() {
		return false
	}

	level.Info(r.logger).Log("msg", "triggering background refresh", "cache_age", snapshot.Age)
	r.goRefresh(context.WithoutCancel(ctx), "background")
	return true
}

// Warm refreshes the cache once in the background, typically at startup.
// Unlike MaybeBackgroundRefresh the refresh is aborted when ctx is done.
func (r *Refresher) Warm(ctx context.Context) {
	r.goRefresh(ctx, "warm-up")
}

// goRefresh runs Refresh on a goroutine tracked by Wait, logging its failures and panics
func (r *Refresher) goRefresh(ctx context.Context, kind string) {
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		defer func() {
			if p := recover(); p != nil {
				level.Error(r.logger).Log("msg", "refresh panicked", "kind", kind, "panic", p)
			}
		}()
		if _, ok := r.Refresh(ctx); !ok {
			level.Warn(r.logger).Log("msg", "refresh produced no data", "kind", kind)
		}
	}()
}

// Wait blocks until every background and warm-up refresh has returned.
func (r *Refresher) Wait() {
	r.background.Wait()
}

// RefreshPeriodically refreshes the cache on a given schedule until ctx is done.
// This is expected to be called from a go-routine. It returns at once when every <= 0.
func (r *Refresher) RefreshPeriodically(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	for {
		select {
		case <-time.After(every):
			level.Debug(r.logger).Log("msg", "periodic refresh")
			if _, ok := r.Refresh(ctx); !ok {
				// Don't return, just log and hope this is a transient error
				level.Warn(r.logger).Log("msg", "periodic refresh produced no data")
			}
		case <-ctx.Done():
			level.Info(r.logger).Log("msg", "shutting down periodic refresh")
			return
		}
	}
}

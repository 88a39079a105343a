// Package metrics defines the Prometheus collectors of the rate tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rates_tracker"

// Fetch outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Refresh outcomes
const (
	RefreshUpdated = "updated"
	RefreshEmpty   = "empty"
	RefreshSkipped = "skipped"
)

// Metrics holds every collector, registered against one registry
type Metrics struct {
	// SourceFetches counts provider fetches by source and outcome
	SourceFetches *prometheus.CounterVec
	// SourceFetchDuration observes provider fetch latency by source
	SourceFetchDuration *prometheus.HistogramVec
	// Resolutions counts resolved results by resolution mode
	Resolutions *prometheus.CounterVec
	// Refreshes counts refresh attempts by outcome
	Refreshes *prometheus.CounterVec
	// RateResponses counts read policy outcomes by status
	RateResponses *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SourceFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_fetches_total",
				Help:      "Number of rate provider fetches",
			},
			[]string{"source", "outcome"},
		),
		SourceFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_fetch_duration_seconds",
				Help:      "Latency of rate provider fetches",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"source"},
		),
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Number of resolved rate sets by resolution mode",
			},
			[]string{"resolution"},
		),
		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refreshes_total",
				Help:      "Number of cache refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		RateResponses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_responses_total",
				Help:      "Number of rate reads by served status",
			},
			[]string{"status"},
		),
	}
}

// RegisterCacheGauges exposes the cache age and the refreshing flag as gauges
// computed at scrape time.
func RegisterCacheGauges(reg prometheus.Registerer, ageSeconds func() float64, refreshing func() float64) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_age_seconds",
		Help:      "Age of the cached rates, 0 when empty",
	}, ageSeconds)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_refreshing",
		Help:      "1 while a refresh is in flight",
	}, refreshing)
}

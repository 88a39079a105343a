package source

import (
	"context"
	"time"

	tracker "go-exchange-rate-tracker"
	"go-exchange-rate-tracker/metrics"
)

// instrumentingClient decorates a Client with Prometheus metrics
type instrumentingClient struct {
	next    Client
	metrics *metrics.Metrics
}

// NewInstrumentingClient returns a Client recording fetch counts and latency
func NewInstrumentingClient(m *metrics.Metrics, c Client) Client {
	return &instrumentingClient{
		next:    c,
		metrics: m,
	}
}

func (c *instrumentingClient) Fetch(ctx context.Context, p Provider) (result tracker.SourceResult, ok bool) {
	defer func(begin time.Time) {
		outcome := metrics.OutcomeSuccess
		if !ok {
			outcome = metrics.OutcomeFailure
		}
		c.metrics.SourceFetches.WithLabelValues(p.ID, outcome).Inc()
		c.metrics.SourceFetchDuration.WithLabelValues(p.ID).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return c.next.Fetch(ctx, p)
}

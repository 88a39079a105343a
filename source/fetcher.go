package source

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	tracker "go-exchange-rate-tracker"
)

// Fetcher fetches from every provider concurrently
type Fetcher struct {
	client Client
	logger log.Logger
}

// NewFetcher constructs a valid Fetcher
func NewFetcher(client Client, logger log.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logger,
	}
}

// FetchAll fetches from all providers at once and waits for every one of them,
// so the total latency is bounded by the slowest single fetch.
// Only successful results are returned, in provider order. The result may be empty.
func (f *Fetcher) FetchAll(ctx context.Context, providers []Provider) []tracker.SourceResult {
	results := make([]tracker.SourceResult, len(providers))
	succeeded := make([]bool, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			results[i], succeeded[i] = f.client.Fetch(ctx, p)
			return nil
		})
	}
	_ = g.Wait() // fetches never return errors

	successful := make([]tracker.SourceResult, 0, len(providers))
	for i, ok := range succeeded {
		if ok {
			successful = append(successful, results[i])
		}
	}

	level.Debug(f.logger).Log("msg", "fetched sources", "succeeded", len(successful), "total", len(providers))
	return successful
}

// Package source fetches and normalizes rates from remote providers.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	tracker "go-exchange-rate-tracker"
)

// maxBodySize caps how much of a provider response is read
const maxBodySize = 1 << 20

// Client fetches rates from a single provider.
// A failed fetch is reported as false and never as an error, so callers
// can treat every fetch uniformly as "maybe got something".
type Client interface {
	Fetch(ctx context.Context, p Provider) (tracker.SourceResult, bool)
}

// client fetches over HTTP
type client struct {
	// base currency all rates are expressed in
	base tracker.Currency

	// targets currencies kept from a response, everything else is dropped
	targets []tracker.Currency

	// httpClient for HTTP requests, timeouts are set per request
	httpClient *http.Client

	logger log.Logger

	now func() time.Time
}

// NewClient constructs a valid HTTP Client.
func NewClient(base tracker.Currency, targets []tracker.Currency, logger log.Logger) Client {
	return &client{
		base:       base,
		targets:    targets,
		httpClient: &http.Client{},
		logger:     logger,
		now:        time.Now,
	}
}

// Fetch loads the latest rates of one provider, filtered to the target currencies.
func (c *client) Fetch(ctx context.Context, p Provider) (tracker.SourceResult, bool) {
	result, err := c.fetch(ctx, p)
	if err != nil {
		level.Warn(c.logger).Log("msg", "fetch failed", "source", p.ID, "err", err)
		return tracker.SourceResult{}, false
	}
	return result, true
}

func (c *client) fetch(ctx context.Context, p Provider) (tracker.SourceResult, error) {
	normalize, err := NormalizerFor(p.Kind)
	if err != nil {
		return tracker.SourceResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	url := p.Endpoint(c.base)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return tracker.SourceResult{}, fmt.Errorf("building http request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tracker.SourceResult{}, fmt.Errorf("timed out after %v: %w", p.timeout(), err)
		}
		return tracker.SourceResult{}, fmt.Errorf("http get: %w", err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return tracker.SourceResult{}, fmt.Errorf("http status %d", httpResponse.StatusCode)
	}

	bytes, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxBodySize))
	if err != nil {
		return tracker.SourceResult{}, fmt.Errorf("reading body: %w", err)
	}

	normalized, err := normalize(bytes, c.now())
	if err != nil {
		return tracker.SourceResult{}, fmt.Errorf("normalizing %s response: %w", p.Kind, err)
	}

	return tracker.SourceResult{
		Rates:     normalized.Rates.Filter(c.targets),
		Timestamp: normalized.Timestamp,
		Source:    p.ID,
	}, nil
}

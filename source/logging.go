package source

import (
	"context"
	"time"

	"github.com/go-kit/log"

	tracker "go-exchange-rate-tracker"
)

// loggingClient decorates a Client with logging
type loggingClient struct {
	next   Client
	logger log.Logger
}

// NewLoggingClient returns a new logging Client
func NewLoggingClient(logger log.Logger, c Client) Client {
	return &loggingClient{
		next:   c,
		logger: logger,
	}
}

func (c *loggingClient) Fetch(ctx context.Context, p Provider) (result tracker.SourceResult, ok bool) {
	defer func(begin time.Time) {
		c.logger.Log(
			"method", "fetch",
			"source", p.ID,
			"ok", ok,
			"rates", len(result.Rates),
			"took", time.Since(begin),
		)
	}(time.Now())
	return c.next.Fetch(ctx, p)
}

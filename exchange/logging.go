package exchange

import (
	"context"
	"time"

	"github.com/go-kit/log"
)

// loggingService decorates an exchange.Service with logging
type loggingService struct {
	logger log.Logger
	next   Service
}

// NewLoggingService returns a new instance of a logging Service
func NewLoggingService(logger log.Logger, s Service) Service {
	return &loggingService{
		next:   s,
		logger: logger,
	}
}

func (s *loggingService) Rates(ctx context.Context) (o Outcome) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "rates",
			"status", o.Status,
			"resolution", o.Rates.Resolution,
			"cached", o.Cached,
			"cache_age", o.CacheAge,
			"took", time.Since(begin),
		)
	}(time.Now())
	return s.next.Rates(ctx)
}

func (s *loggingService) Health(ctx context.Context) Health {
	return s.next.Health(ctx)
}

func (s *loggingService) Currencies(ctx context.Context) Currencies {
	return s.next.Currencies(ctx)
}

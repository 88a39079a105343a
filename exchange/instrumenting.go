package exchange

import (
	"context"

	"go-exchange-rate-tracker/metrics"
)

// instrumentingService counts rate reads by status
type instrumentingService struct {
	metrics *metrics.Metrics
	next    Service
}

// NewInstrumentingService returns a Service recording read outcomes
func NewInstrumentingService(m *metrics.Metrics, s Service) Service {
	return &instrumentingService{
		metrics: m,
		next:    s,
	}
}

func (s *instrumentingService) Rates(ctx context.Context) Outcome {
	o := s.next.Rates(ctx)
	s.metrics.RateResponses.WithLabelValues(string(o.Status)).Inc()
	return o
}

func (s *instrumentingService) Health(ctx context.Context) Health {
	return s.next.Health(ctx)
}

func (s *instrumentingService) Currencies(ctx context.Context) Currencies {
	return s.next.Currencies(ctx)
}

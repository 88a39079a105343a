package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tracker "go-exchange-rate-tracker"
	"go-exchange-rate-tracker/exchange"
)

// Server dependencies for HTTP Server functions
type Server struct {
	Service exchange.Service
	router  *http.ServeMux
	logger  log.Logger
}

// NewServer returns a Server routing the rate API and, when gatherer is not nil, /metrics.
func NewServer(s exchange.Service, gatherer prometheus.Gatherer, logger log.Logger) *Server {
	server := &Server{
		Service: s,
		router:  http.NewServeMux(),
		logger:  logger,
	}
	server.routes(gatherer)
	return server
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.router.Handle("GET /api/rates", s.rates())
	s.router.Handle("GET /api/health", s.health())
	s.router.Handle("GET /api/currencies", s.currencies())
	if gatherer != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	// the rates API is read by a browser frontend served from another origin
	rw.Header().Set("Access-Control-Allow-Origin", "*")
	s.router.ServeHTTP(rw, r)
}

// rates produces the HTTP handler serving aggregated rates
func (s *Server) rates() http.HandlerFunc {

	// response for marshalling JSON responses to return to clients.
	// Timestamp is in epoch milliseconds, CacheAge in milliseconds, RetryAfter in seconds.
	type response struct {
		Status     exchange.Status    `json:"status"`
		Base       tracker.Currency   `json:"base"`
		Currencies []tracker.Currency `json:"currencies"`
		Rates      *tracker.Rates     `json:"rates,omitempty"`
		Timestamp  int64              `json:"timestamp,omitempty"`
		Sources    []string           `json:"sources,omitempty"`
		Resolution tracker.Resolution `json:"resolution,omitempty"`
		Cached     *bool              `json:"cached,omitempty"`
		CacheAge   *int64             `json:"cacheAge,omitempty"`
		Warning    string             `json:"warning,omitempty"`
		Error      string             `json:"error,omitempty"`
		RetryAfter int64              `json:"retryAfter,omitempty"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		currencies := s.Service.Currencies(r.Context())
		outcome := s.Service.Rates(r.Context())

		response := response{
			Status:     outcome.Status,
			Base:       currencies.Base,
			Currencies: currencies.Targets,
		}

		if outcome.Status == exchange.StatusUnavailable {
			retryAfter := int64(outcome.RetryAfter / time.Second)
			response.Error = outcome.Error
			response.RetryAfter = retryAfter
			rw.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			s.encode(r.Context(), rw, http.StatusServiceUnavailable, &response)
			return
		}

		rates := outcome.Rates.Rates
		if rates == nil {
			rates = tracker.Rates{}
		}
		response.Rates = &rates
		response.Timestamp = outcome.Rates.Timestamp.UnixMilli()
		response.Sources = outcome.Rates.Sources
		response.Resolution = outcome.Rates.Resolution
		response.Cached = &outcome.Cached
		if outcome.Cached {
			age := outcome.CacheAge.Milliseconds()
			response.CacheAge = &age
		}
		response.Warning = outcome.Warning

		s.encode(r.Context(), rw, http.StatusOK, &response)
	}
}

// health produces the HTTP handler reporting cache state
func (s *Server) health() http.HandlerFunc {

	// cacheStats Timestamp is in epoch milliseconds, Age in milliseconds
	type cacheStats struct {
		HasData      bool   `json:"hasData"`
		Timestamp    *int64 `json:"timestamp"`
		Age          *int64 `json:"age"`
		IsStale      *bool  `json:"isStale"`
		IsRefreshing bool   `json:"isRefreshing"`
	}

	// response Uptime is in seconds
	type response struct {
		Status string     `json:"status"`
		Uptime float64    `json:"uptime"`
		Cache  cacheStats `json:"cache"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		health := s.Service.Health(r.Context())

		response := response{
			Status: "ok",
			Uptime: health.Uptime.Seconds(),
			Cache: cacheStats{
				HasData:      health.Cache.HasData,
				IsRefreshing: health.Cache.IsRefreshing,
			},
		}
		if health.Cache.HasData {
			timestamp := health.Cache.FetchedAt.UnixMilli()
			age := health.Cache.Age.Milliseconds()
			response.Cache.Timestamp = &timestamp
			response.Cache.Age = &age
			response.Cache.IsStale = &health.Cache.IsStale
		}

		s.encode(r.Context(), rw, http.StatusOK, &response)
	}
}

// currencies produces the HTTP handler listing the tracked currencies
func (s *Server) currencies() http.HandlerFunc {

	type response struct {
		Base    tracker.Currency   `json:"base"`
		Targets []tracker.Currency `json:"targets"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		currencies := s.Service.Currencies(r.Context())
		s.encode(r.Context(), rw, http.StatusOK, &response{
			Base:    currencies.Base,
			Targets: currencies.Targets,
		})
	}
}

func (s *Server) encode(_ context.Context, rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		level.Error(s.logger).Log("msg", "failed json encoding", "err", err)
	}
}

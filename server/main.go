package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-exchange-rate-tracker/cache"
	"go-exchange-rate-tracker/config"
	"go-exchange-rate-tracker/exchange"
	"go-exchange-rate-tracker/http"
	"go-exchange-rate-tracker/metrics"
	"go-exchange-rate-tracker/source"

	nhttp "net/http"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.NewLogfmtLogger(os.Stderr).Log("msg", "invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	level.Info(logger).Log("msg", "starting", "env", cfg.Env, "addr", cfg.HTTP.Addr, "base", cfg.Base(), "targets", len(cfg.Targets()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		level.Error(logger).Log("msg", "exiting", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) log.Logger {
	w := log.NewSyncWriter(os.Stderr)
	var logger log.Logger
	if cfg.Log.Format == "json" {
		logger = log.NewJSONLogger(w)
	} else {
		logger = log.NewLogfmtLogger(w)
	}
	// Validate has already rejected unknown levels
	opt, _ := cfg.LevelOption()
	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

func run(ctx context.Context, cfg *config.Config, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rateCache, err := cache.New(cfg.Cache.HardTTL, cfg.Cache.SoftTTL)
	if err != nil {
		return err
	}
	metrics.RegisterCacheGauges(reg,
		func() float64 { return rateCache.Stats().Age.Seconds() },
		func() float64 {
			if rateCache.IsRefreshing() {
				return 1
			}
			return 0
		},
	)

	providers := cfg.SourceProviders()
	for _, p := range providers {
		level.Info(logger).Log("msg", "provider", "id", p.ID, "kind", p.Kind, "timeout", p.Timeout)
	}

	sourceClient := source.NewClient(cfg.Base(), cfg.Targets(), log.With(logger, "component", "source"))
	sourceClient = source.NewLoggingClient(log.With(logger, "component", "source"), sourceClient)
	sourceClient = source.NewInstrumentingClient(m, sourceClient)
	fetcher := source.NewFetcher(sourceClient, log.With(logger, "component", "fetcher"))

	refresher := exchange.NewRefresher(fetcher, providers, rateCache, m, log.With(logger, "component", "refresher"))

	exchangeService := exchange.NewService(rateCache, refresher, exchange.Currencies{
		Base:    cfg.Base(),
		Targets: cfg.Targets(),
	}, cfg.Rates.RetryAfter)
	exchangeService = exchange.NewLoggingService(log.With(logger, "component", "exchange"), exchangeService)
	exchangeService = exchange.NewInstrumentingService(m, exchangeService)

	handler := http.NewServer(exchangeService, reg, log.With(logger, "component", "http"))

	// warm the cache so the first request is not the one paying for the fetch
	refresher.Warm(ctx)
	defer refresher.Wait()
	go refresher.RefreshPeriodically(ctx, cfg.Rates.RefreshInterval)

	srv := &nhttp.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "listening", "addr", cfg.HTTP.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, nhttp.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		level.Info(logger).Log("msg", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}

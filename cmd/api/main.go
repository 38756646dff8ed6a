package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"crypto-price-monitor/internal/application/dto"
	"crypto-price-monitor/internal/application/services"
	"crypto-price-monitor/internal/infrastructure/breaker"
	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/exchange"
	"crypto-price-monitor/internal/infrastructure/exchange/coingecko"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
	"crypto-price-monitor/internal/infrastructure/queue"
	"crypto-price-monitor/internal/infrastructure/ratelimit"
	"crypto-price-monitor/internal/infrastructure/repositories/store"
	"crypto-price-monitor/internal/infrastructure/web/handlers"
	"crypto-price-monitor/internal/infrastructure/web/server"
	"crypto-price-monitor/internal/infrastructure/web/stream"
)

const serviceVersion = "1.0.0"

// @title Crypto Price Monitor API
// @version 1.0
// @description Serves cryptocurrency market prices from a two tier cache kept fresh against the CoinGecko API under a strict request budget.
// @host localhost:8080
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "crypto-price-monitor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	environment := config.GetEnvironment()

	cfg, err := config.NewLoader().LoadForEnvironment(environment)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logConfig := logging.NewConfig("crypto-price-monitor", serviceVersion, environment).
		WithLevel(logging.LogLevelFromString(cfg.Logging.Level)).
		WithFormat(logging.LogFormatFromString(cfg.Logging.Format)).
		WithSource(cfg.Logging.AddSource)
	if err := logging.InitializeGlobalLoggers(logConfig); err != nil {
		return err
	}

	ctx := context.Background()
	logging.Info(ctx, "Starting crypto price monitor", logging.Fields{
		"environment":   environment,
		"coins":         cfg.Upstream.CoinIDs,
		"store_backend": cfg.Store.Backend,
	})

	clock := clockwork.NewRealClock()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewCollector(registry)

	// Presupuesto de salida: governor -> cola -> breaker -> cliente
	governor := ratelimit.NewRateGovernor(ratelimit.GovernorConfigFrom(cfg.RateLimit), clock, m)

	requestQueue := queue.NewRequestQueue(queue.Config{
		TaskTimeout:  cfg.Queue.TaskTimeout,
		PollInterval: cfg.Queue.PollInterval,
		MaxDepth:     cfg.Queue.MaxDepth,
	}, governor, clock, m)

	client, err := coingecko.NewClient(cfg.Upstream, cfg.RateLimit.CooldownDuration, governor, m,
		coingecko.WithClock(clock),
		coingecko.WithReserver(governor),
	)
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	cb := breaker.New(breaker.FromConfig(coingecko.ServiceName, cfg.Breaker), clock, m)

	storeCtx, cancelStore := context.WithTimeout(ctx, 10*time.Second)
	priceStore, err := store.NewStore(storeCtx, cfg.Store)
	cancelStore()
	if err != nil {
		return fmt.Errorf("failed to open durable store: %w", err)
	}

	upstream := exchange.NewGuardedExchange(client, cb, priceStore, m)

	priceService, err := services.NewPriceService(services.NewConfig(cfg.Cache, cfg.Upstream), services.Dependencies{
		Store:    priceStore,
		Upstream: upstream,
		Queue:    requestQueue,
		Gate:     governor,
		Breaker:  cb,
		Clock:    clock,
		Metrics:  m,
	})
	if err != nil {
		_ = priceStore.Close()
		return err
	}

	scheduler := services.NewScheduler(priceService, cfg.Scheduler, clock, m)
	mapper := dto.NewPriceMapper(cfg.Cache.DurableTTL)

	var hub *stream.Hub
	if cfg.Stream.Enabled {
		hub = stream.NewHub(priceService, mapper, cfg.Stream.PushInterval, clock, m)
	}

	deps := server.RouterDeps{
		Prices:      handlers.NewPricesHandler(priceService, mapper, clock),
		Admin:       handlers.NewAdminHandler(priceService, cb),
		Health:      handlers.NewHealthHandler(priceStore, cb),
		RateLimiter: ratelimit.NewRateLimitMiddleware(cfg.HTTPRateLimit, m),
		Metrics:     m,
		Gatherer:    registry,
	}
	if hub != nil {
		deps.Stream = http.HandlerFunc(hub.ServeWS)
	}
	httpServer := server.NewServer(server.NewRouter(deps), cfg.Server)

	// Arranque: cola primero, el scheduler encola el warmup
	requestQueue.Start()
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	scheduler.Start(runCtx)
	if hub != nil {
		hub.Start(runCtx)
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logging.Info(ctx, "Shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Orden: server, scheduler, hub, cola, store
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logging.WarnWithError(ctx, "HTTP server forced to shutdown", err, nil)
		}
		scheduler.Stop()
		if hub != nil {
			hub.Stop()
		}
		cancelRun()
		if err := requestQueue.Stop(shutdownCtx); err != nil {
			logging.WarnWithError(ctx, "Request queue did not drain in time", err, nil)
		}
		if err := priceStore.Close(); err != nil {
			logging.WarnWithError(ctx, "Failed to close durable store", err, nil)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logging.ErrorWithError(ctx, "HTTP server stopped unexpectedly", err, nil)
		return err
	}

	logging.Info(ctx, "Shutdown completed", nil)
	return nil
}

package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "crypto-price-monitor/internal/docs"
	"crypto-price-monitor/internal/infrastructure/metrics"
	"crypto-price-monitor/internal/infrastructure/ratelimit"
	"crypto-price-monitor/internal/infrastructure/web/handlers"
	"crypto-price-monitor/internal/infrastructure/web/middleware"
)

// RouterDeps todo lo que el router monta. Stream nil deshabilita /ws/prices.
type RouterDeps struct {
	Prices      *handlers.PricesHandler
	Admin       *handlers.AdminHandler
	Health      *handlers.HealthHandler
	Stream      http.Handler
	RateLimiter *ratelimit.RateLimitMiddleware
	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer
}

// NewRouter orden de middlewares: tracing, logging/recovery, métricas, rate limit
func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.RequestTracingMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(deps.Metrics.HTTPMetricsMiddleware)

	r.HandleFunc("/health", deps.Health.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", deps.Health.Ready).Methods(http.MethodGet)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.HandleFunc("/docs", redirectToSwagger)
	r.HandleFunc("/docs/", redirectToSwagger)

	api := r.PathPrefix("/api/v1").Subrouter()
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Handler)
	}
	api.HandleFunc("/prices", deps.Prices.GetPrices).Methods(http.MethodGet)
	api.HandleFunc("/prices/{id}", deps.Prices.GetPrice).Methods(http.MethodGet)

	// admin en el mismo subrouter: un segundo nivel de anidado pierde el 405
	api.HandleFunc("/admin/stats", deps.Admin.Stats).Methods(http.MethodGet)
	api.HandleFunc("/admin/cache/clear", deps.Admin.ClearCache).Methods(http.MethodPost)
	api.HandleFunc("/admin/refresh", deps.Admin.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/admin/breaker/{action}", deps.Admin.Breaker).Methods(http.MethodPost)

	if deps.Stream != nil {
		r.Handle("/ws/prices", deps.Stream).Methods(http.MethodGet)
	}

	return r
}

func redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
}

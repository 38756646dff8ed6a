package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crypto_price"

// Collector agrupa las métricas del servicio. Se construye una vez y se inyecta;
// un *Collector nil es válido y no registra nada (útil en tests).
type Collector struct {
	// HTTP
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	httpResponseSizeBytes *prometheus.HistogramVec
	inboundRateLimited    *prometheus.CounterVec

	// Upstream
	externalAPIRequestsTotal   *prometheus.CounterVec
	externalAPIRequestDuration *prometheus.HistogramVec
	externalAPIRetries         *prometheus.CounterVec
	upstreamRateLimited        *prometheus.CounterVec

	// RateGovernor
	governorDecisions *prometheus.CounterVec
	governorWindow    prometheus.Gauge
	governorCooldown  prometheus.Gauge
	governorWait      prometheus.Histogram

	// RequestQueue
	queueDepth       prometheus.Gauge
	queueTasksTotal  *prometheus.CounterVec
	queueWaitSeconds *prometheus.HistogramVec

	// CircuitBreaker
	circuitBreakerState *prometheus.GaugeVec
	breakerCallsTotal   *prometheus.CounterVec

	// Cache tiers
	cacheLookupsTotal *prometheus.CounterVec
	cacheTierEntries  *prometheus.GaugeVec
	cacheTierAge      *prometheus.GaugeVec
	fallbackTotal     *prometheus.CounterVec
	coalescedTotal    *prometheus.CounterVec
	priceRefreshes    *prometheus.CounterVec
	currentPrices     *prometheus.GaugeVec

	// Stream / app
	streamClients    prometheus.Gauge
	streamBroadcasts *prometheus.CounterVec
	uptimeSeconds    prometheus.Gauge
}

// NewCollector registra todas las métricas en reg
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpResponseSizeBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		inboundRateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limit_requests_total",
				Help:      "Requests processed by the inbound rate limiter",
			},
			[]string{"result"}, // allowed/blocked
		),

		externalAPIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_api_requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"service", "endpoint", "status_code"},
		),
		externalAPIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_api_request_duration_seconds",
				Help:      "External API request duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"service", "endpoint"},
		),
		externalAPIRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_api_retries_total",
				Help:      "Total number of external API retry attempts",
			},
			[]string{"service", "endpoint", "attempt"},
		),
		upstreamRateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_rate_limited_total",
				Help:      "Upstream responses rejected with HTTP 429",
			},
			[]string{"endpoint"},
		),

		governorDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_governor_decisions_total",
				Help:      "Reservations evaluated by the outbound rate governor",
			},
			[]string{"result"}, // allowed/rejected
		),
		governorWindow: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_governor_requests_in_window",
			Help:      "Reservations counted in the trailing window",
		}),
		governorCooldown: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_governor_cooldown_active",
			Help:      "1 while an upstream rate-limit cooldown is active",
		}),
		governorWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_governor_wait_seconds",
			Help:      "Time the queue worker slept waiting for rate budget",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "request_queue_depth",
			Help:      "Tasks waiting in the request queue",
		}),
		queueTasksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_queue_tasks_total",
				Help:      "Tasks finished by the queue worker",
			},
			[]string{"priority", "outcome"}, // success/error/timeout/panic/closed
		),
		queueWaitSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_queue_wait_seconds",
				Help:      "Time between enqueue and execution",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"priority"},
		),

		circuitBreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open, 3=forced_open, 4=disabled)",
			},
			[]string{"service"},
		),
		breakerCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_calls_total",
				Help:      "Calls evaluated by the circuit breaker",
			},
			[]string{"service", "outcome"}, // success/failure/slow/rejected
		),

		cacheLookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Lookups per cache tier",
			},
			[]string{"tier", "result"}, // memory/durable/upstream, hit/miss/stale/error
		),
		cacheTierEntries: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_tier_entries",
				Help:      "Number of records held by each tier",
			},
			[]string{"tier"},
		),
		cacheTierAge: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_tier_age_seconds",
				Help:      "Age of the oldest record in each tier",
			},
			[]string{"tier"},
		),
		fallbackTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_activations_total",
				Help:      "Reads served from the degraded durable snapshot",
			},
			[]string{"reason"},
		),
		coalescedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_coalesced_total",
				Help:      "Callers that joined an in-flight fetch instead of starting one",
			},
			[]string{"key"},
		),
		priceRefreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_refreshes_total",
				Help:      "Full refresh attempts",
			},
			[]string{"trigger", "result"},
		),
		currentPrices: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "current_price",
				Help:      "Last fetched price per coin",
			},
			[]string{"coin"},
		),

		streamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected websocket clients",
		}),
		streamBroadcasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_messages_total",
				Help:      "Websocket messages sent or dropped",
			},
			[]string{"result"}, // sent/dropped
		),
		uptimeSeconds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		}),
	}
}

// RecordHTTPRequest records HTTP request metrics
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, duration float64, responseSize int64) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
	if responseSize > 0 {
		c.httpResponseSizeBytes.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

func (c *Collector) RecordInboundRateLimit(allowed bool) {
	if c == nil {
		return
	}
	c.inboundRateLimited.WithLabelValues(allowedLabel(allowed, "allowed", "blocked")).Inc()
}

// RecordExternalAPICall records external API call metrics
func (c *Collector) RecordExternalAPICall(service, endpoint string, statusCode int, duration float64) {
	if c == nil {
		return
	}
	c.externalAPIRequestsTotal.WithLabelValues(service, endpoint, strconv.Itoa(statusCode)).Inc()
	c.externalAPIRequestDuration.WithLabelValues(service, endpoint).Observe(duration)
}

// RecordExternalAPIRetry records retry attempts
func (c *Collector) RecordExternalAPIRetry(service, endpoint string, attempt uint) {
	if c == nil {
		return
	}
	c.externalAPIRetries.WithLabelValues(service, endpoint, strconv.FormatUint(uint64(attempt), 10)).Inc()
}

func (c *Collector) RecordUpstreamRateLimited(endpoint string) {
	if c == nil {
		return
	}
	c.upstreamRateLimited.WithLabelValues(endpoint).Inc()
}

func (c *Collector) RecordGovernorDecision(allowed bool, inWindow int) {
	if c == nil {
		return
	}
	c.governorDecisions.WithLabelValues(allowedLabel(allowed, "allowed", "rejected")).Inc()
	c.governorWindow.Set(float64(inWindow))
}

func (c *Collector) SetCooldownActive(active bool) {
	if c == nil {
		return
	}
	if active {
		c.governorCooldown.Set(1)
	} else {
		c.governorCooldown.Set(0)
	}
}

func (c *Collector) ObserveGovernorWait(seconds float64) {
	if c == nil {
		return
	}
	c.governorWait.Observe(seconds)
}

func (c *Collector) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

func (c *Collector) RecordQueueTask(priority, outcome string) {
	if c == nil {
		return
	}
	c.queueTasksTotal.WithLabelValues(priority, outcome).Inc()
}

func (c *Collector) ObserveQueueWait(priority string, seconds float64) {
	if c == nil {
		return
	}
	c.queueWaitSeconds.WithLabelValues(priority).Observe(seconds)
}

// SetCircuitBreakerState 0=closed, 1=open, 2=half_open, 3=forced_open, 4=disabled
func (c *Collector) SetCircuitBreakerState(service string, state int) {
	if c == nil {
		return
	}
	c.circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

func (c *Collector) RecordBreakerCall(service, outcome string) {
	if c == nil {
		return
	}
	c.breakerCallsTotal.WithLabelValues(service, outcome).Inc()
}

// RecordCacheLookup tier: memory/durable/upstream; result: hit/miss/stale/error
func (c *Collector) RecordCacheLookup(tier, result string) {
	if c == nil {
		return
	}
	c.cacheLookupsTotal.WithLabelValues(tier, result).Inc()
}

func (c *Collector) SetTierStats(tier string, entries int, ageSeconds float64) {
	if c == nil {
		return
	}
	c.cacheTierEntries.WithLabelValues(tier).Set(float64(entries))
	c.cacheTierAge.WithLabelValues(tier).Set(ageSeconds)
}

func (c *Collector) RecordFallback(reason string) {
	if c == nil {
		return
	}
	c.fallbackTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordCoalesced(key string) {
	if c == nil {
		return
	}
	c.coalescedTotal.WithLabelValues(key).Inc()
}

// RecordPriceRefresh trigger: request/scheduled/forced; result: success/error/skipped
func (c *Collector) RecordPriceRefresh(trigger, result string) {
	if c == nil {
		return
	}
	c.priceRefreshes.WithLabelValues(trigger, result).Inc()
}

func (c *Collector) SetCurrentPrice(coin string, price float64) {
	if c == nil {
		return
	}
	c.currentPrices.WithLabelValues(coin).Set(price)
}

func (c *Collector) SetStreamClients(n int) {
	if c == nil {
		return
	}
	c.streamClients.Set(float64(n))
}

func (c *Collector) RecordStreamMessage(sent bool) {
	if c == nil {
		return
	}
	c.streamBroadcasts.WithLabelValues(allowedLabel(sent, "sent", "dropped")).Inc()
}

func (c *Collector) SetUptime(seconds float64) {
	if c == nil {
		return
	}
	c.uptimeSeconds.Set(seconds)
}

func allowedLabel(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

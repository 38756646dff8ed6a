package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
)

// idleClientTTL limitadores sin uso más tiempo que esto se descartan
const idleClientTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware limita requests entrantes por cliente (IP)
type RateLimitMiddleware struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	skipPaths map[string]bool
	enabled   bool
	metrics   *metrics.Collector
	lastSweep time.Time
}

// NewRateLimitMiddleware creates a new rate limiting middleware with configuration
func NewRateLimitMiddleware(cfg config.HTTPRateLimitConfig, m *metrics.Collector) *RateLimitMiddleware {
	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skipPaths[p] = true
	}

	return &RateLimitMiddleware{
		clients:   make(map[string]*clientLimiter),
		limit:     rate.Limit(cfg.RequestsPerSecond),
		burst:     cfg.Burst,
		skipPaths: skipPaths,
		enabled:   cfg.Enabled,
		metrics:   m,
		lastSweep: time.Now(),
	}
}

// Handler returns the HTTP middleware handler
func (rlm *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rlm.enabled || rlm.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		clientID := getClientID(r)
		limiter := rlm.limiterFor(clientID)
		allowed := limiter.Allow()
		rlm.metrics.RecordInboundRateLimit(allowed)

		if !allowed {
			logging.Security().RateLimitExceeded(r.Context(), clientID, r.URL.Path)
			rlm.writeRateLimitError(w)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rlm.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		next.ServeHTTP(w, r)
	})
}

func (rlm *RateLimitMiddleware) limiterFor(clientID string) *rate.Limiter {
	rlm.mu.Lock()
	defer rlm.mu.Unlock()

	now := time.Now()
	if now.Sub(rlm.lastSweep) > idleClientTTL {
		for id, c := range rlm.clients {
			if now.Sub(c.lastSeen) > idleClientTTL {
				delete(rlm.clients, id)
			}
		}
		rlm.lastSweep = now
	}

	c, ok := rlm.clients[clientID]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rlm.limit, rlm.burst)}
		rlm.clients[clientID] = c
	}
	c.lastSeen = now
	return c.limiter
}

// getClientID extracts a client identifier from the request
func getClientID(r *http.Request) string {
	if xForwardedFor := r.Header.Get("X-Forwarded-For"); xForwardedFor != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		parts := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(parts[0])
	}

	if xRealIP := r.Header.Get("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// writeRateLimitError writes a rate limit exceeded error response
func (rlm *RateLimitMiddleware) writeRateLimitError(w http.ResponseWriter) {
	retryAfter := 1
	if rlm.limit > 0 {
		if secs := int(time.Duration(float64(time.Second) / float64(rlm.limit)).Seconds()); secs > retryAfter {
			retryAfter = secs
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   "RATE_LIMIT_EXCEEDED",
		"message": "Rate limit exceeded. Please slow down your requests.",
		"code":    http.StatusTooManyRequests,
		"details": map[string]interface{}{
			"retry_after_seconds": retryAfter,
		},
	})
}

// Stats returns rate limiting statistics
func (rlm *RateLimitMiddleware) Stats() map[string]interface{} {
	rlm.mu.Lock()
	defer rlm.mu.Unlock()

	return map[string]interface{}{
		"enabled":             rlm.enabled,
		"tracked_clients":     len(rlm.clients),
		"requests_per_second": float64(rlm.limit),
		"burst":               rlm.burst,
	}
}

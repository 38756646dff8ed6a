package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.RecordGovernorDecision(true, 1)
		c.SetCircuitBreakerState("coingecko", 1)
		c.RecordQueueTask("HIGH", "success")
		c.RecordFallback("circuit_open")
		c.SetTierStats("memory", 2, 10)
	})
}

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGovernorDecision(true, 1)
	c.RecordGovernorDecision(false, 1)
	c.RecordGovernorDecision(false, 1)
	c.RecordUpstreamRateLimited("/coins/markets")
	c.SetCircuitBreakerState("coingecko", 2)
	c.SetCooldownActive(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.governorDecisions.WithLabelValues("allowed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.governorDecisions.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamRateLimited.WithLabelValues("/coins/markets")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.circuitBreakerState.WithLabelValues("coingecko")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.governorCooldown))
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	router := mux.NewRouter()
	router.Use(c.HTTPMetricsMiddleware)
	router.HandleFunc("/api/v1/prices/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"bitcoin", "ethereum"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prices/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/api/v1/prices/{id}", "404")))
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/":                     "/",
		"/health":               "/health",
		"/api/v1/prices/":       "/api/v1/prices",
		"/api/v1/prices/solana": "/api/v1/prices/{id}",
		"/api/v1/admin/stats":   "/api/v1/admin/*",
		"/swagger/index.html":   "/swagger/*",
		"/wp-login.php":         "/unknown",
	}

	for in, want := range tests {
		assert.Equal(t, want, normalizePath(in), in)
	}
}

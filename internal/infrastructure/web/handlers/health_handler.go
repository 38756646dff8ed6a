package handlers

import (
	"context"
	"net/http"
	"time"

	"crypto-price-monitor/internal/application/dto"
	"crypto-price-monitor/internal/infrastructure/breaker"
)

const readyTimeout = 2 * time.Second

// Pinger dependencia que /ready verifica
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerStateReader estado informativo para /ready
type BreakerStateReader interface {
	State() breaker.State
}

// HealthHandler maneja los endpoints de health check
type HealthHandler struct {
	store   Pinger
	breaker BreakerStateReader
}

// NewHealthHandler crea una nueva instancia del health handler
func NewHealthHandler(store Pinger, cb BreakerStateReader) *HealthHandler {
	return &HealthHandler{
		store:   store,
		breaker: cb,
	}
}

// Health godoc
// @Summary Basic health check
// @Description Verifies that the service is running correctly. Responds quickly without checking external dependencies.
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse "Service is running correctly"
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"service": "running",
	}

	writeJSONResponse(r.Context(), w, http.StatusOK, dto.NewHealthResponse("healthy", services))
}

// Ready godoc
// @Summary Complete readiness check
// @Description Pings the durable store. An open breaker is reported but does not fail readiness: reads keep being served from the tiers.
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse "Service is ready to receive traffic"
// @Failure 503 {object} dto.HealthResponse "Durable store unreachable"
// @Router /ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	services := make(map[string]string)
	if h.breaker != nil {
		services["breaker"] = h.breaker.State().String()
	}

	if err := h.store.Ping(ctx); err != nil {
		services["store"] = "error: " + err.Error()
		writeJSONResponse(ctx, w, http.StatusServiceUnavailable, dto.NewHealthResponse("unhealthy", services))
		return
	}

	services["store"] = "ready"
	services["service"] = "ready"
	writeJSONResponse(ctx, w, http.StatusOK, dto.NewHealthResponse("ready", services))
}

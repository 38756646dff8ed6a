package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"crypto-price-monitor/internal/application/dto"
	"crypto-price-monitor/internal/domain/entities"
	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/infrastructure/breaker"
	"crypto-price-monitor/internal/infrastructure/logging"
)

// PriceAdmin operaciones administrativas del servicio de precios
type PriceAdmin interface {
	ClearCache(ctx context.Context)
	ForceUpdate(ctx context.Context) error
	Stats(ctx context.Context) entities.SystemStats
}

// BreakerController controles manuales del circuit breaker
type BreakerController interface {
	Snapshot() breaker.Snapshot
	ForceOpen()
	Disable()
	Reset()
}

// AdminHandler maneja los endpoints /api/v1/admin
type AdminHandler struct {
	service PriceAdmin
	breaker BreakerController
}

func NewAdminHandler(service PriceAdmin, cb BreakerController) *AdminHandler {
	return &AdminHandler{service: service, breaker: cb}
}

// Stats godoc
// @Summary Operational stats
// @Description Queue, rate governor, breaker and cache tier state.
// @Tags admin
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Router /api/v1/admin/stats [get]
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSONResponse(ctx, w, http.StatusOK, &dto.StatsResponse{
		Stats:   h.service.Stats(ctx),
		Breaker: h.breaker.Snapshot(),
	})
}

// ClearCache godoc
// @Summary Clear memory tier
// @Description Empties the in-memory tier and resets the full update throttle. The durable tier is kept.
// @Tags admin
// @Produce json
// @Success 200 {object} dto.ActionResponse
// @Router /api/v1/admin/cache/clear [post]
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.service.ClearCache(ctx)

	logging.Info(ctx, "Memory tier cleared by admin request", nil)
	writeJSONResponse(ctx, w, http.StatusOK, dto.NewActionResponse("cache_clear", "ok", "Memory tier cleared"))
}

// Refresh godoc
// @Summary Force a full refresh
// @Description Bypasses the full update throttle once. Never bypasses an active upstream 429 cooldown: while it lasts the call returns 429 with status skipped and no request is sent.
// @Tags admin
// @Produce json
// @Success 200 {object} dto.ActionResponse "Refresh completed"
// @Failure 429 {object} dto.ActionResponse "Upstream cooldown active, refresh skipped"
// @Failure 502 {object} dto.ActionResponse "Upstream failed, tiers left untouched"
// @Failure 504 {object} dto.ActionResponse "Refresh did not run in time"
// @Router /api/v1/admin/refresh [post]
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.service.ForceUpdate(ctx)
	if err == nil {
		writeJSONResponse(ctx, w, http.StatusOK, dto.NewActionResponse("refresh", "ok", "Forced price update completed"))
		return
	}

	status, result := refreshFailureStatus(err)
	logging.WarnWithError(ctx, "Forced refresh did not complete", err, logging.Fields{
		"result": result,
	})
	writeJSONResponse(ctx, w, status, dto.NewActionResponse("refresh", result, err.Error()))
}

func refreshFailureStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domainerrors.ErrFetchNotPermitted):
		return http.StatusTooManyRequests, "skipped"
	case domainerrors.IsQueueTimeout(err), errors.Is(err, domainerrors.ErrQueueClosed):
		return http.StatusGatewayTimeout, "failed"
	default:
		return http.StatusBadGateway, "failed"
	}
}

// Breaker godoc
// @Summary Manual circuit breaker control
// @Description force-open rejects every upstream call, disable lets every call through unrecorded, reset returns to CLOSED with an empty window.
// @Tags admin
// @Produce json
// @Param action path string true "Breaker action" Enums(force-open, disable, reset)
// @Success 200 {object} breaker.Snapshot
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/admin/breaker/{action} [post]
func (h *AdminHandler) Breaker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	action, err := dto.ParseBreakerAction(mux.Vars(r)["action"])
	if err != nil {
		writeErrorResponse(ctx, w, http.StatusBadRequest, "INVALID_ACTION", err.Error())
		return
	}

	switch action {
	case dto.BreakerForceOpen:
		h.breaker.ForceOpen()
	case dto.BreakerDisable:
		h.breaker.Disable()
	case dto.BreakerReset:
		h.breaker.Reset()
	}

	snapshot := h.breaker.Snapshot()
	logging.Warn(ctx, "Circuit breaker changed by admin request", logging.Fields{
		"action":                  string(action),
		logging.FieldBreakerState: snapshot.State,
	})
	writeJSONResponse(ctx, w, http.StatusOK, snapshot)
}

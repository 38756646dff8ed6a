package exchange

import (
	"context"
	"errors"
	"time"

	"crypto-price-monitor/internal/domain/entities"
	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/domain/interfaces"
	"crypto-price-monitor/internal/infrastructure/breaker"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
)

// GuardedExchange envuelve el upstream con el circuit breaker. Cuando el breaker
// cortocircuita o la llamada falla, devuelve el snapshot del tier durable.
// Nunca inventa precios: si el durable está vacío el resultado va vacío.
type GuardedExchange struct {
	upstream interfaces.PriceUpstream
	breaker  *breaker.CircuitBreaker
	store    interfaces.PriceStore
	metrics  *metrics.Collector
}

var _ interfaces.GuardedUpstream = (*GuardedExchange)(nil)

func NewGuardedExchange(upstream interfaces.PriceUpstream, cb *breaker.CircuitBreaker, store interfaces.PriceStore, m *metrics.Collector) *GuardedExchange {
	return &GuardedExchange{
		upstream: upstream,
		breaker:  cb,
		store:    store,
		metrics:  m,
	}
}

// Breaker expone el breaker para las operaciones administrativas
func (g *GuardedExchange) Breaker() *breaker.CircuitBreaker {
	return g.breaker
}

// FetchAll trae todas las monedas o cae al snapshot durable
func (g *GuardedExchange) FetchAll(ctx context.Context) interfaces.FetchOutcome {
	start := time.Now()
	records, err := breaker.Call(ctx, g.breaker, g.upstream.FetchAll)
	if err == nil {
		logging.Debug(ctx, "Upstream fetch succeeded", logging.Fields{
			logging.FieldCoinCount:    len(records),
			logging.FieldDuration:     float64(time.Since(start).Nanoseconds()) / 1e6,
			logging.FieldBreakerState: g.breaker.State().String(),
		})
		return interfaces.FetchOutcome{Records: records}
	}

	reason := fallbackReason(err)
	g.metrics.RecordFallback(reason)

	snapshot, storeErr := g.store.FindAll(ctx)
	if storeErr != nil {
		logging.Cache().CacheError(ctx, "durable", "find_all", storeErr)
		snapshot = nil
	}

	logging.WarnWithError(ctx, "Upstream fetch failed, serving durable snapshot", err, logging.Fields{
		"fallback_reason":         reason,
		logging.FieldCoinCount:    len(snapshot),
		logging.FieldBreakerState: g.breaker.State().String(),
	})

	return interfaces.FetchOutcome{Records: snapshot, Fallback: true, Err: err}
}

// FetchOne trae una moneda o cae al registro durable de ese id
func (g *GuardedExchange) FetchOne(ctx context.Context, id string) interfaces.FetchOutcome {
	type single struct {
		record entities.PriceRecord
		found  bool
	}

	result, err := breaker.Call(ctx, g.breaker, func(ctx context.Context) (single, error) {
		record, found, err := g.upstream.FetchOne(ctx, id)
		return single{record: record, found: found}, err
	})
	if err == nil {
		if !result.found {
			return interfaces.FetchOutcome{}
		}
		return interfaces.FetchOutcome{Records: []entities.PriceRecord{result.record}}
	}

	reason := fallbackReason(err)
	g.metrics.RecordFallback(reason)

	outcome := interfaces.FetchOutcome{Fallback: true, Err: err}
	record, found, storeErr := g.store.FindByID(ctx, id)
	switch {
	case storeErr != nil:
		logging.Cache().CacheError(ctx, "durable", "find_by_id", storeErr)
	case found:
		outcome.Records = []entities.PriceRecord{record}
	}

	logging.WarnWithError(ctx, "Upstream fetch failed for coin, serving durable record", err, logging.Fields{
		logging.FieldCoinID: id,
		"fallback_reason":   reason,
		"durable_hit":       len(outcome.Records) > 0,
	})

	return outcome
}

// fallbackReason etiqueta para métricas y logs
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrCircuitOpen):
		return "circuit_open"
	case domainerrors.IsRateLimited(err):
		return "rate_limited"
	case errors.Is(err, domainerrors.ErrEmptyUpstreamResponse):
		return "empty_response"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domainerrors.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "unknown"
	}
}

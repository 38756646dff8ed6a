package interfaces

import (
	"context"

	"crypto-price-monitor/internal/domain/entities"
)

// PriceUpstream es el proveedor externo de cotizaciones.
type PriceUpstream interface {
	// FetchAll obtiene todas las monedas configuradas.
	FetchAll(ctx context.Context) ([]entities.PriceRecord, error)
	// FetchOne obtiene una sola moneda; found=false si el upstream no la conoce.
	FetchOne(ctx context.Context, id string) (entities.PriceRecord, bool, error)
}

// FetchOutcome resultado de una llamada protegida por el circuit breaker.
// Con Fallback=true, Records es el snapshot del tier durable (puede estar vacío)
// y Err explica por qué no se usó el upstream.
type FetchOutcome struct {
	Records  []entities.PriceRecord
	Fallback bool
	Err      error
}

// GuardedUpstream upstream envuelto por breaker + fallback.
type GuardedUpstream interface {
	FetchAll(ctx context.Context) FetchOutcome
	FetchOne(ctx context.Context, id string) FetchOutcome
}

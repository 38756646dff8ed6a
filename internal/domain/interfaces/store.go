package interfaces

import (
	"context"

	"crypto-price-monitor/internal/domain/entities"
)

// PriceStore es el tier durable. Last-write-wins por id, sin transacciones.
type PriceStore interface {
	// FindAll devuelve los registros ordenados por market cap descendente.
	FindAll(ctx context.Context) ([]entities.PriceRecord, error)
	FindByID(ctx context.Context, id string) (entities.PriceRecord, bool, error)
	Upsert(ctx context.Context, record entities.PriceRecord) error
	UpsertAll(ctx context.Context, records []entities.PriceRecord) error
	Ping(ctx context.Context) error
	Close() error
}

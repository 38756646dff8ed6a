package interfaces

import (
	"context"

	"crypto-price-monitor/internal/domain/entities"
)

// PriceService define los casos de uso de lectura de precios y las operaciones
// administrativas. Las lecturas nunca fallan por falta de datos frescos:
// devuelven datos (quizás viejos) o un resultado vacío.
type PriceService interface {
	// GetCurrentPrices recorre memoria -> durable -> fetch encolado -> durable degradado.
	GetCurrentPrices(ctx context.Context) []entities.PriceRecord

	// GetPrice busca por id o símbolo.
	GetPrice(ctx context.Context, idOrSymbol string) (entities.PriceRecord, bool)

	// ClearCache vacía el tier de memoria y resetea el último full update.
	ClearCache(ctx context.Context)

	// ForceUpdate ignora el throttle de full update una vez.
	ForceUpdate(ctx context.Context) error

	// ScheduledUpdate lo invoca el scheduler periódico.
	ScheduledUpdate(ctx context.Context) error
}

// StatsProvider expone el estado operativo para dashboards.
type StatsProvider interface {
	Stats(ctx context.Context) entities.SystemStats
}

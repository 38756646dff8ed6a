package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord es la cotización de una moneda tal como la entrega el upstream.
// Se reemplaza completa en cada refresh, nunca se muta parcialmente.
type PriceRecord struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Change1h     *float64        `json:"price_change_percentage_1h,omitempty"`
	Change24h    *float64        `json:"price_change_percentage_24h,omitempty"`
	Change7d     *float64        `json:"price_change_percentage_7d,omitempty"`
	MarketCap    decimal.Decimal `json:"market_cap"`
	TotalVolume  decimal.Decimal `json:"total_volume"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// NewPriceRecord normaliza id y símbolo. Los campos opcionales se asignan después.
func NewPriceRecord(id, symbol, name string, price decimal.Decimal, lastUpdated time.Time) PriceRecord {
	return PriceRecord{
		ID:           strings.ToLower(strings.TrimSpace(id)),
		Symbol:       NormalizeSymbol(symbol),
		Name:         name,
		CurrentPrice: price,
		LastUpdated:  lastUpdated,
	}
}

// NormalizeSymbol devuelve la forma usada por el índice de símbolos (mayúsculas).
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (p PriceRecord) Age(now time.Time) time.Duration {
	return now.Sub(p.LastUpdated)
}

// CacheEntry envuelve un PriceRecord con el instante en que entró al tier de memoria.
type CacheEntry struct {
	Record   PriceRecord
	CachedAt time.Time
}

func NewCacheEntry(record PriceRecord, cachedAt time.Time) CacheEntry {
	return CacheEntry{Record: record, CachedAt: cachedAt}
}

func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

func (e CacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// Float64Ptr helper para los cambios porcentuales opcionales.
func Float64Ptr(v float64) *float64 {
	return &v
}

package coingecko

import (
	"time"

	"github.com/shopspring/decimal"

	"crypto-price-monitor/internal/domain/entities"
)

// MarketCoin un elemento de la respuesta de /coins/markets.
// CoinGecko devuelve null en varios campos cuando no tiene el dato.
type MarketCoin struct {
	ID           string              `json:"id"`
	Symbol       string              `json:"symbol"`
	Name         string              `json:"name"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
	MarketCap    decimal.NullDecimal `json:"market_cap"`
	TotalVolume  decimal.NullDecimal `json:"total_volume"`

	PriceChange24h *float64 `json:"price_change_percentage_24h"`

	// con price_change_percentage=1h,24h,7d
	PriceChange1hInCurrency  *float64 `json:"price_change_percentage_1h_in_currency"`
	PriceChange24hInCurrency *float64 `json:"price_change_percentage_24h_in_currency"`
	PriceChange7dInCurrency  *float64 `json:"price_change_percentage_7d_in_currency"`

	LastUpdated time.Time `json:"last_updated"`
}

// ToRecord convierte al modelo de dominio. Devuelve false si falta id o precio.
func (m MarketCoin) ToRecord(now time.Time) (entities.PriceRecord, bool) {
	if m.ID == "" || !m.CurrentPrice.Valid {
		return entities.PriceRecord{}, false
	}

	lastUpdated := m.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = now
	}

	record := entities.NewPriceRecord(m.ID, m.Symbol, m.Name, m.CurrentPrice.Decimal, lastUpdated.UTC())
	record.Change1h = m.PriceChange1hInCurrency
	record.Change24h = m.PriceChange24hInCurrency
	if record.Change24h == nil {
		record.Change24h = m.PriceChange24h
	}
	record.Change7d = m.PriceChange7dInCurrency
	if m.MarketCap.Valid {
		record.MarketCap = m.MarketCap.Decimal
	}
	if m.TotalVolume.Valid {
		record.TotalVolume = m.TotalVolume.Decimal
	}

	return record, true
}

package dto

import (
	"time"

	"crypto-price-monitor/internal/domain/entities"
)

// PriceMapper maneja la conversión entre entidades del dominio y DTOs.
// staleAfter es el TTL del tier durable: más viejo que eso se marca stale.
type PriceMapper struct {
	staleAfter time.Duration
}

// NewPriceMapper crea una nueva instancia del mapper
func NewPriceMapper(staleAfter time.Duration) *PriceMapper {
	return &PriceMapper{staleAfter: staleAfter}
}

// ToPricesResponse conserva el orden del servicio (market cap desc)
func (m *PriceMapper) ToPricesResponse(records []entities.PriceRecord, now time.Time) *PricesResponse {
	resp := &PricesResponse{
		Prices:      make([]PriceData, 0, len(records)),
		GeneratedAt: now.UTC(),
	}

	for _, r := range records {
		data := m.ToPriceData(r, now)
		resp.Stale = resp.Stale || data.Stale
		resp.Prices = append(resp.Prices, data)
	}
	resp.Count = len(resp.Prices)

	return resp
}

// ToPriceData convierte un PriceRecord a PriceData DTO
func (m *PriceMapper) ToPriceData(r entities.PriceRecord, now time.Time) PriceData {
	age := r.Age(now)
	if age < 0 {
		age = 0
	}

	return PriceData{
		ID:           r.ID,
		Symbol:       r.Symbol,
		Name:         r.Name,
		CurrentPrice: r.CurrentPrice,
		Change1h:     r.Change1h,
		Change24h:    r.Change24h,
		Change7d:     r.Change7d,
		MarketCap:    r.MarketCap,
		TotalVolume:  r.TotalVolume,
		LastUpdated:  r.LastUpdated.UTC(),
		AgeSeconds:   int64(age / time.Second),
		Stale:        m.staleAfter > 0 && age >= m.staleAfter,
	}
}

// FilterRecords filtra por los ids/símbolos de la request
func (m *PriceMapper) FilterRecords(records []entities.PriceRecord, req *GetPricesRequest) []entities.PriceRecord {
	if req == nil || len(req.Keys) == 0 {
		return records
	}

	filtered := make([]entities.PriceRecord, 0, len(req.Keys))
	for _, r := range records {
		if req.Matches(r.ID, r.Symbol) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

package services

import (
	"sort"
	"sync"
	"time"

	"crypto-price-monitor/internal/domain/entities"
)

// memoryTier tier 1: id -> entrada, más un índice símbolo -> id.
// replaceAll lo reconstruye completo bajo el lock de escritura, así los
// lectores nunca ven una mezcla de dos refreshes.
type memoryTier struct {
	mu       sync.RWMutex
	entries  map[string]entities.CacheEntry
	bySymbol map[string]string
}

func newMemoryTier() *memoryTier {
	return &memoryTier{
		entries:  make(map[string]entities.CacheEntry),
		bySymbol: make(map[string]string),
	}
}

// replaceAll reemplaza el contenido. Ante símbolos repetidos gana el de mayor market cap.
func (m *memoryTier) replaceAll(records []entities.PriceRecord, cachedAt time.Time) {
	sorted := append([]entities.PriceRecord(nil), records...)
	sortRecords(sorted)

	entries := make(map[string]entities.CacheEntry, len(sorted))
	bySymbol := make(map[string]string, len(sorted))
	for _, r := range sorted {
		entries[r.ID] = entities.NewCacheEntry(r, cachedAt)
		if _, taken := bySymbol[r.Symbol]; !taken {
			bySymbol[r.Symbol] = r.ID
		}
	}

	m.mu.Lock()
	m.entries = entries
	m.bySymbol = bySymbol
	m.mu.Unlock()
}

// put agrega o reemplaza una sola moneda
func (m *memoryTier) put(record entities.PriceRecord, cachedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[record.ID] = entities.NewCacheEntry(record, cachedAt)
	if owner, taken := m.bySymbol[record.Symbol]; !taken || owner == record.ID {
		m.bySymbol[record.Symbol] = record.ID
	}
}

func (m *memoryTier) get(id string) (entities.CacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	return e, ok
}

func (m *memoryTier) getBySymbol(symbol string) (entities.CacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySymbol[symbol]
	if !ok {
		return entities.CacheEntry{}, false
	}
	e, ok := m.entries[id]
	return e, ok
}

// snapshot registros ordenados por market cap y el CachedAt más viejo
func (m *memoryTier) snapshot() ([]entities.PriceRecord, time.Time) {
	m.mu.RLock()
	records := make([]entities.PriceRecord, 0, len(m.entries))
	var oldest time.Time
	for _, e := range m.entries {
		records = append(records, e.Record)
		if oldest.IsZero() || e.CachedAt.Before(oldest) {
			oldest = e.CachedAt
		}
	}
	m.mu.RUnlock()

	sortRecords(records)
	return records, oldest
}

func (m *memoryTier) stats() (int, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest time.Time
	for _, e := range m.entries {
		if oldest.IsZero() || e.CachedAt.Before(oldest) {
			oldest = e.CachedAt
		}
	}
	return len(m.entries), oldest
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	m.entries = make(map[string]entities.CacheEntry)
	m.bySymbol = make(map[string]string)
	m.mu.Unlock()
}

func sortRecords(records []entities.PriceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if c := records[i].MarketCap.Cmp(records[j].MarketCap); c != 0 {
			return c > 0
		}
		return records[i].ID < records[j].ID
	})
}

// oldestUpdate LastUpdated más viejo; zero si no hay registros
func oldestUpdate(records []entities.PriceRecord) time.Time {
	var oldest time.Time
	for _, r := range records {
		if oldest.IsZero() || r.LastUpdated.Before(oldest) {
			oldest = r.LastUpdated
		}
	}
	return oldest
}

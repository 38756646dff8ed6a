package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"crypto-price-monitor/internal/domain/entities"
)

// MemoryStore tier durable en proceso. Sirve para tests y despliegues de una sola instancia.
type MemoryStore struct {
	records map[string]entities.PriceRecord
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]entities.PriceRecord),
	}
}

func (s *MemoryStore) FindAll(ctx context.Context) ([]entities.PriceRecord, error) {
	s.mu.RLock()
	out := make([]entities.PriceRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sortByMarketCap(out)
	return out, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (entities.PriceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[strings.ToLower(id)]
	return r, ok, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, record entities.PriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = record
	return nil
}

func (s *MemoryStore) UpsertAll(ctx context.Context, records []entities.PriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len método auxiliar para tests
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// sortByMarketCap orden descendente por market cap, desempate por id
func sortByMarketCap(records []entities.PriceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if c := records[i].MarketCap.Cmp(records[j].MarketCap); c != 0 {
			return c > 0
		}
		return records[i].ID < records[j].ID
	})
}

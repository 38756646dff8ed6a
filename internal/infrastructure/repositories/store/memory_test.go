package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-price-monitor/internal/domain/entities"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ConcurrentUpserts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Upsert(ctx, record("bitcoin", "btc", "1", "1", now))
			_, _ = s.FindAll(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
	require.NoError(t, s.Close())
}

func TestSortByMarketCap_TieBreaksByID(t *testing.T) {
	now := time.Now()
	records := []entities.PriceRecord{
		record("zcash", "zec", "1", "100", now),
		record("aave", "aave", "1", "100", now),
		record("bitcoin", "btc", "1", "500", now),
	}

	sortByMarketCap(records)

	assert.Equal(t, []string{"bitcoin", "aave", "zcash"}, []string{records[0].ID, records[1].ID, records[2].ID})
}

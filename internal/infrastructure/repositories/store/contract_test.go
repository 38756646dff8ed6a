package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-price-monitor/internal/domain/entities"
	"crypto-price-monitor/internal/domain/interfaces"
)

func record(id, symbol, price, marketCap string, updated time.Time) entities.PriceRecord {
	r := entities.NewPriceRecord(id, symbol, id, decimal.RequireFromString(price), updated)
	r.MarketCap = decimal.RequireFromString(marketCap)
	r.TotalVolume = decimal.RequireFromString("1000")
	r.Change24h = entities.Float64Ptr(1.25)
	return r
}

// runStoreContract comportamiento común a todos los backends
func runStoreContract(t *testing.T, s interfaces.PriceStore) {
	ctx := context.Background()
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty store", func(t *testing.T) {
		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		_, found, err := s.FindByID(ctx, "bitcoin")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("upsert all ordered by market cap", func(t *testing.T) {
		err := s.UpsertAll(ctx, []entities.PriceRecord{
			record("ethereum", "eth", "3100.10", "372000000000", updated),
			record("bitcoin", "btc", "67123.45", "1320000000000", updated),
			record("solana", "sol", "145.5", "65000000000", updated),
		})
		require.NoError(t, err)

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "bitcoin", all[0].ID)
		assert.Equal(t, "ethereum", all[1].ID)
		assert.Equal(t, "solana", all[2].ID)

		btc := all[0]
		assert.Equal(t, "BTC", btc.Symbol)
		assert.True(t, decimal.RequireFromString("67123.45").Equal(btc.CurrentPrice))
		require.NotNil(t, btc.Change24h)
		assert.InDelta(t, 1.25, *btc.Change24h, 1e-9)
		assert.Nil(t, btc.Change1h)
		assert.True(t, updated.Equal(btc.LastUpdated))
	})

	t.Run("last write wins", func(t *testing.T) {
		newer := record("bitcoin", "btc", "70000", "1400000000000", updated.Add(time.Minute))
		require.NoError(t, s.Upsert(ctx, newer))

		got, found, err := s.FindByID(ctx, "BITCOIN")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, decimal.RequireFromString("70000").Equal(got.CurrentPrice))
		assert.True(t, updated.Add(time.Minute).Equal(got.LastUpdated))

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"crypto-price-monitor/internal/domain/entities"
)

// RedisStore guarda cada moneda como JSON en <prefix>coin:<id> y mantiene
// un sorted set <prefix>by_market_cap para el orden de FindAll.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore usa un cliente ya creado (el factory hace el ping)
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) coinKey(id string) string {
	return s.prefix + "coin:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "by_market_cap"
}

func (s *RedisStore) FindAll(ctx context.Context) ([]entities.PriceRecord, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.coinKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	records := make([]entities.PriceRecord, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// índice sin valor, se ignora
			continue
		}
		var r entities.PriceRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		records = append(records, r)
	}

	// ZREVRANGE desempata por miembro descendente; se normaliza al orden común
	sortByMarketCap(records)
	return records, nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (entities.PriceRecord, bool, error) {
	raw, err := s.client.Get(ctx, s.coinKey(strings.ToLower(id))).Bytes()
	if errors.Is(err, redis.Nil) {
		return entities.PriceRecord{}, false, nil
	}
	if err != nil {
		return entities.PriceRecord{}, false, fmt.Errorf("redis get: %w", err)
	}

	var r entities.PriceRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return entities.PriceRecord{}, false, fmt.Errorf("decode %s: %w", id, err)
	}
	return r, true, nil
}

func (s *RedisStore) Upsert(ctx context.Context, record entities.PriceRecord) error {
	return s.UpsertAll(ctx, []entities.PriceRecord{record})
}

// UpsertAll escribe valores e índice en una sola transacción MULTI/EXEC
func (s *RedisStore) UpsertAll(ctx context.Context, records []entities.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.ID, err)
		}
		pipe.Set(ctx, s.coinKey(r.ID), b, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  r.MarketCap.InexactFloat64(),
			Member: r.ID,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis upsert %d records: %w", len(records), err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

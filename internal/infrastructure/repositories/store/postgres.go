package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"crypto-price-monitor/internal/domain/entities"
	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/infrastructure/config"
)

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS coin_prices (
	id            TEXT PRIMARY KEY,
	symbol        TEXT NOT NULL,
	name          TEXT NOT NULL,
	current_price NUMERIC NOT NULL,
	change_1h     DOUBLE PRECISION,
	change_24h    DOUBLE PRECISION,
	change_7d     DOUBLE PRECISION,
	market_cap    NUMERIC NOT NULL DEFAULT 0,
	total_volume  NUMERIC NOT NULL DEFAULT 0,
	last_updated  TIMESTAMPTZ NOT NULL
)`

	selectColumns = `id, symbol, name, current_price::text, change_1h, change_24h, change_7d,
	market_cap::text, total_volume::text, last_updated`

	upsertSQL = `
INSERT INTO coin_prices (id, symbol, name, current_price, change_1h, change_24h, change_7d, market_cap, total_volume, last_updated)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8::numeric, $9::numeric, $10)
ON CONFLICT (id) DO UPDATE SET
	symbol = EXCLUDED.symbol,
	name = EXCLUDED.name,
	current_price = EXCLUDED.current_price,
	change_1h = EXCLUDED.change_1h,
	change_24h = EXCLUDED.change_24h,
	change_7d = EXCLUDED.change_7d,
	market_cap = EXCLUDED.market_cap,
	total_volume = EXCLUDED.total_volume,
	last_updated = EXCLUDED.last_updated`
)

// PostgresStore tier durable sobre pgx. Last-write-wins por id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore abre el pool, verifica la conexión y crea la tabla si falta
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres dsn: %w", domainerrors.ErrInvalidConfiguration, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create coin_prices table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) FindAll(ctx context.Context) ([]entities.PriceRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM coin_prices ORDER BY market_cap DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query coin_prices: %w", err)
	}
	defer rows.Close()

	var records []entities.PriceRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coin_prices: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (entities.PriceRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM coin_prices WHERE id = $1`, strings.ToLower(id))
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.PriceRecord{}, false, nil
	}
	if err != nil {
		return entities.PriceRecord{}, false, err
	}
	return r, true, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, record entities.PriceRecord) error {
	if _, err := s.pool.Exec(ctx, upsertSQL, upsertArgs(record)...); err != nil {
		return fmt.Errorf("upsert %s: %w", record.ID, err)
	}
	return nil
}

// UpsertAll manda todos los upserts en un batch
func (s *PostgresStore) UpsertAll(ctx context.Context, records []entities.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertSQL, upsertArgs(r)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	for _, r := range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close upsert batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func upsertArgs(r entities.PriceRecord) []any {
	return []any{
		r.ID,
		r.Symbol,
		r.Name,
		r.CurrentPrice.String(),
		r.Change1h,
		r.Change24h,
		r.Change7d,
		r.MarketCap.String(),
		r.TotalVolume.String(),
		r.LastUpdated.UTC(),
	}
}

func scanRecord(row pgx.Row) (entities.PriceRecord, error) {
	var (
		r                        entities.PriceRecord
		price, marketCap, volume string
	)
	err := row.Scan(
		&r.ID,
		&r.Symbol,
		&r.Name,
		&price,
		&r.Change1h,
		&r.Change24h,
		&r.Change7d,
		&marketCap,
		&volume,
		&r.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan coin_prices row: %w", err)
	}

	if r.CurrentPrice, err = decimal.NewFromString(price); err != nil {
		return r, fmt.Errorf("parse current_price of %s: %w", r.ID, err)
	}
	if r.MarketCap, err = decimal.NewFromString(marketCap); err != nil {
		return r, fmt.Errorf("parse market_cap of %s: %w", r.ID, err)
	}
	if r.TotalVolume, err = decimal.NewFromString(volume); err != nil {
		return r, fmt.Errorf("parse total_volume of %s: %w", r.ID, err)
	}
	r.LastUpdated = r.LastUpdated.UTC()
	return r, nil
}

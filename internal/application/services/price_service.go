package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"crypto-price-monitor/internal/domain/entities"
	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/domain/interfaces"
	"crypto-price-monitor/internal/infrastructure/breaker"
	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
	"crypto-price-monitor/internal/infrastructure/queue"
	"crypto-price-monitor/internal/infrastructure/ratelimit"
)

const (
	tierMemory  = "memory"
	tierDurable = "durable"

	bulkFlightKey   = "all"
	coinFlightKeyFx = "coin:"
)

// RateGate vista del RateGovernor que necesita el servicio
type RateGate interface {
	HasBudget() bool
	Stats() ratelimit.GovernorStats
}

// BreakerStateReader estado del breaker para Stats
type BreakerStateReader interface {
	State() breaker.State
}

// Config política de frescura
type Config struct {
	MemoryTTL          time.Duration
	DurableTTL         time.Duration
	FullUpdateInterval time.Duration // 0 = sin throttle
	RequestTimeout     time.Duration
	CoinIDs            []string
}

func NewConfig(cache config.CacheConfig, upstream config.UpstreamConfig) Config {
	return Config{
		MemoryTTL:          cache.MemoryTTL,
		DurableTTL:         cache.DurableTTL,
		FullUpdateInterval: cache.FullUpdateInterval,
		RequestTimeout:     cache.RequestTimeout,
		CoinIDs:            upstream.CoinIDs,
	}
}

// Dependencies colaboradores del servicio. Clock y Metrics son opcionales.
type Dependencies struct {
	Store    interfaces.PriceStore
	Upstream interfaces.GuardedUpstream
	Queue    *queue.RequestQueue
	Gate     RateGate
	Breaker  BreakerStateReader
	Clock    clockwork.Clock
	Metrics  *metrics.Collector
}

type refreshMode struct {
	trigger         string
	priority        queue.Priority
	skipIfFresh     bool
	respectThrottle bool
}

var (
	onDemandRefresh  = refreshMode{trigger: "on_demand", priority: queue.PriorityHigh, skipIfFresh: true, respectThrottle: true}
	scheduledRefresh = refreshMode{trigger: "scheduled", priority: queue.PriorityHigh, respectThrottle: true}
	warmupRefresh    = refreshMode{trigger: "warmup", priority: queue.PriorityHigh, respectThrottle: true}
	forcedRefresh    = refreshMode{trigger: "forced", priority: queue.PriorityHigh}
)

// PriceService cache de dos tiers (memoria + durable) delante de un upstream
// con cuota. Las lecturas nunca devuelven error: datos, datos viejos o vacío.
type PriceService struct {
	config     Config
	configured map[string]struct{}

	memory   *memoryTier
	store    interfaces.PriceStore
	upstream interfaces.GuardedUpstream
	queue    *queue.RequestQueue
	gate     RateGate
	breaker  BreakerStateReader
	clock    clockwork.Clock
	metrics  *metrics.Collector

	flights singleflight.Group

	mu             sync.Mutex
	lastFullUpdate time.Time
}

var (
	_ interfaces.PriceService  = (*PriceService)(nil)
	_ interfaces.StatsProvider = (*PriceService)(nil)
)

// NewPriceService valida la configuración; es el único punto donde el servicio devuelve error de config
func NewPriceService(cfg Config, deps Dependencies) (*PriceService, error) {
	switch {
	case cfg.MemoryTTL <= 0:
		return nil, fmt.Errorf("%w: memory ttl must be positive", domainerrors.ErrInvalidConfiguration)
	case cfg.DurableTTL < cfg.MemoryTTL:
		return nil, fmt.Errorf("%w: durable ttl shorter than memory ttl", domainerrors.ErrInvalidConfiguration)
	case cfg.FullUpdateInterval < 0:
		return nil, fmt.Errorf("%w: negative full update interval", domainerrors.ErrInvalidConfiguration)
	case cfg.RequestTimeout <= 0:
		return nil, fmt.Errorf("%w: request timeout must be positive", domainerrors.ErrInvalidConfiguration)
	case deps.Store == nil || deps.Upstream == nil || deps.Queue == nil || deps.Gate == nil:
		return nil, fmt.Errorf("%w: price service requires store, upstream, queue and rate gate", domainerrors.ErrInvalidConfiguration)
	}

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	configured := make(map[string]struct{}, len(cfg.CoinIDs))
	for _, id := range cfg.CoinIDs {
		configured[strings.ToLower(strings.TrimSpace(id))] = struct{}{}
	}

	return &PriceService{
		config:     cfg,
		configured: configured,
		memory:     newMemoryTier(),
		store:      deps.Store,
		upstream:   deps.Upstream,
		queue:      deps.Queue,
		gate:       deps.Gate,
		breaker:    deps.Breaker,
		clock:      clock,
		metrics:    deps.Metrics,
	}, nil
}

// GetCurrentPrices memoria fresca -> durable fresco -> fetch encolado -> durable en modo degradado
func (s *PriceService) GetCurrentPrices(ctx context.Context) []entities.PriceRecord {
	now := s.clock.Now()

	if records, ok := s.freshMemory(now); ok {
		s.metrics.RecordCacheLookup(tierMemory, "hit")
		return records
	}
	s.metrics.RecordCacheLookup(tierMemory, "miss")

	durable := s.loadDurable(ctx)
	if len(durable) > 0 && s.durableFresh(durable, now) {
		s.metrics.RecordCacheLookup(tierDurable, "hit")
		s.memory.replaceAll(durable, now)
		logging.Cache().Populated(ctx, tierMemory, len(durable))
		return durable
	}
	s.metrics.RecordCacheLookup(tierDurable, "miss")

	if s.fetchPermitted(now) {
		outcome, err := s.refreshAll(ctx, onDemandRefresh)
		if err == nil && len(outcome.Records) > 0 {
			return outcome.Records
		}
		if outcome.Fallback && len(outcome.Records) > 0 {
			durable = outcome.Records
		}
		logging.InfoWithError(ctx, "Fresh prices unavailable, serving degraded result", err, logging.Fields{
			logging.FieldCoinCount: len(durable),
		})
	}

	// otro caller pudo completar el refresh mientras leíamos el durable
	if records, ok := s.freshMemory(s.clock.Now()); ok {
		s.metrics.RecordCacheLookup(tierMemory, "hit")
		return records
	}

	if len(durable) > 0 {
		s.metrics.RecordCacheLookup(tierDurable, "stale")
		logging.Debug(ctx, "Serving stale durable prices", logging.Fields{
			logging.FieldCoinCount:  len(durable),
			logging.FieldAgeSeconds: int64(s.clock.Since(oldestUpdate(durable)).Seconds()),
		})
		return durable
	}

	// el durable puede haber fallado al escribir; la memoria vieja es mejor que nada
	if records, _ := s.memory.snapshot(); len(records) > 0 {
		s.metrics.RecordCacheLookup(tierMemory, "stale")
		return records
	}
	return []entities.PriceRecord{}
}

// GetPrice busca por id o por símbolo en cada tier antes de considerar el upstream
func (s *PriceService) GetPrice(ctx context.Context, idOrSymbol string) (entities.PriceRecord, bool) {
	key := strings.TrimSpace(idOrSymbol)
	if key == "" {
		return entities.PriceRecord{}, false
	}
	id := strings.ToLower(key)
	symbol := entities.NormalizeSymbol(key)
	now := s.clock.Now()

	// 1. memoria
	staleMemory, inMemory := s.memory.get(id)
	if !inMemory {
		staleMemory, inMemory = s.memory.getBySymbol(symbol)
	}
	if inMemory && staleMemory.IsFresh(now, s.config.MemoryTTL) {
		s.metrics.RecordCacheLookup(tierMemory, "hit")
		logging.Cache().Hit(ctx, tierMemory, key)
		return staleMemory.Record, true
	}
	s.metrics.RecordCacheLookup(tierMemory, "miss")

	// 2. durable por id y luego por símbolo
	durable, inDurable := s.findDurable(ctx, id, symbol)
	if inDurable && durable.Age(now) < s.config.DurableTTL {
		s.metrics.RecordCacheLookup(tierDurable, "hit")
		s.memory.put(durable, now)
		logging.Cache().Hit(ctx, tierDurable, key)
		return durable, true
	}
	s.metrics.RecordCacheLookup(tierDurable, "miss")

	// 3. fetch puntual, solo para monedas configuradas
	if target := s.configuredID(id, durable, inDurable, staleMemory, inMemory); target != "" && s.gate.HasBudget() {
		outcome, err := s.refreshOne(ctx, target)
		if err == nil && len(outcome.Records) > 0 {
			return outcome.Records[0], true
		}
		if outcome.Fallback && len(outcome.Records) > 0 {
			durable, inDurable = outcome.Records[0], true
		}
		if err != nil {
			logging.InfoWithError(ctx, "Targeted fetch failed, serving degraded result", err, logging.Fields{
				logging.FieldCoinID: target,
			})
		}
	}

	// 4. lo que haya, aunque esté viejo; antes, un refresh concurrente pudo dejar memoria fresca
	if entry, ok := s.memory.get(id); ok && entry.IsFresh(s.clock.Now(), s.config.MemoryTTL) {
		s.metrics.RecordCacheLookup(tierMemory, "hit")
		return entry.Record, true
	}
	switch {
	case inDurable:
		s.metrics.RecordCacheLookup(tierDurable, "stale")
		return durable, true
	case inMemory:
		s.metrics.RecordCacheLookup(tierMemory, "stale")
		return staleMemory.Record, true
	}

	logging.Cache().Miss(ctx, "all", key)
	return entities.PriceRecord{}, false
}

// CachedPrices lectura solo de tiers, nunca llama al upstream. La usan los
// consumidores periódicos (stream) para no gastar cuota.
func (s *PriceService) CachedPrices(ctx context.Context) []entities.PriceRecord {
	if records, _ := s.memory.snapshot(); len(records) > 0 {
		return records
	}
	if durable := s.loadDurable(ctx); len(durable) > 0 {
		return durable
	}
	return []entities.PriceRecord{}
}

// ClearCache vacía la memoria y resetea el throttle; el durable se conserva
func (s *PriceService) ClearCache(ctx context.Context) {
	s.memory.clear()

	s.mu.Lock()
	s.lastFullUpdate = time.Time{}
	s.mu.Unlock()

	s.metrics.SetTierStats(tierMemory, 0, 0)
	logging.Cache().Cleared(ctx, tierMemory)
}

// ForceUpdate refresh completo ignorando el throttle de full update. El
// governor sigue mandando: durante un cooldown por 429 no se intenta.
func (s *PriceService) ForceUpdate(ctx context.Context) error {
	if st := s.gate.Stats(); st.InCooldown {
		return fmt.Errorf("%w: upstream cooldown active for %s", domainerrors.ErrFetchNotPermitted, st.CooldownRemaining.Round(time.Second))
	}

	outcome, err := s.refreshAll(ctx, forcedRefresh)
	if err != nil {
		return err
	}

	logging.Info(ctx, "Forced price update completed", logging.Fields{
		logging.FieldCoinCount: len(outcome.Records),
	})
	return nil
}

// ScheduledUpdate lo llama el Scheduler. Sin trabajo si el throttle todavía no lo permite.
func (s *PriceService) ScheduledUpdate(ctx context.Context) error {
	now := s.clock.Now()
	if s.throttled(now) {
		logging.Debug(ctx, "Scheduled update skipped, full update interval not elapsed", logging.Fields{
			"last_update_minutes_ago": s.lastUpdateMinutesAgo(now),
		})
		return nil
	}
	if !s.gate.HasBudget() {
		return fmt.Errorf("%w: no rate budget for scheduled update", domainerrors.ErrFetchNotPermitted)
	}

	_, err := s.refreshAll(ctx, scheduledRefresh)
	return err
}

// Warmup carga el durable en memoria si está fresco; si no, pide un refresh
func (s *PriceService) Warmup(ctx context.Context) error {
	now := s.clock.Now()
	durable := s.loadDurable(ctx)
	if len(durable) > 0 && s.durableFresh(durable, now) {
		s.memory.replaceAll(durable, now)
		logging.Cache().Populated(ctx, tierMemory, len(durable))
		return nil
	}

	_, err := s.refreshAll(ctx, warmupRefresh)
	return err
}

// Stats snapshot operativo para /admin/stats
func (s *PriceService) Stats(ctx context.Context) entities.SystemStats {
	now := s.clock.Now()
	qs := s.queue.Stats()
	gs := s.gate.Stats()

	stats := entities.SystemStats{
		QueueDepth:             qs.Depth,
		QueueProcessed:         qs.Processed,
		QueueFailed:            qs.Failed,
		QueueTimedOut:          qs.TimedOut,
		RequestsInWindow:       gs.RequestsInWindow,
		MaxRequestsPerMin:      gs.MaxRequests,
		InCooldown:             gs.InCooldown,
		CooldownRemaining:      int64(math.Ceil(gs.CooldownRemaining.Seconds())),
		LastUpdateMinutesAgo:   s.lastUpdateMinutesAgo(now),
		FullUpdateIntervalMins: int64(s.config.FullUpdateInterval / time.Minute),
	}
	if s.breaker != nil {
		stats.BreakerState = s.breaker.State().String()
	}

	count, oldest := s.memory.stats()
	stats.MemoryEntries = count
	if count > 0 {
		stats.MemoryAgeSeconds = now.Sub(oldest).Seconds()
	}

	durable := s.loadDurable(ctx)
	stats.DurableEntries = len(durable)
	if len(durable) > 0 {
		stats.DurableAgeSeconds = now.Sub(oldestUpdate(durable)).Seconds()
	}

	s.metrics.SetTierStats(tierMemory, stats.MemoryEntries, stats.MemoryAgeSeconds)
	s.metrics.SetTierStats(tierDurable, stats.DurableEntries, stats.DurableAgeSeconds)
	return stats
}

// refreshAll coalesce todos los refreshes completos concurrentes en un solo fetch.
// Dentro del vuelo se vuelve a mirar la memoria y el throttle, así quien llega
// tarde nunca dispara un segundo fetch.
func (s *PriceService) refreshAll(ctx context.Context, mode refreshMode) (interfaces.FetchOutcome, error) {
	ch := s.flights.DoChan(bulkFlightKey, func() (any, error) {
		now := s.clock.Now()
		if mode.skipIfFresh {
			if records, ok := s.freshMemory(now); ok {
				return interfaces.FetchOutcome{Records: records}, nil
			}
		}
		if mode.respectThrottle {
			if s.throttled(now) {
				return interfaces.FetchOutcome{}, fmt.Errorf("%w: full update interval not elapsed", domainerrors.ErrFetchNotPermitted)
			}
			// un 429 pudo llegar entre el chequeo del caller y este vuelo
			if !s.gate.HasBudget() {
				return interfaces.FetchOutcome{}, fmt.Errorf("%w: no rate budget", domainerrors.ErrFetchNotPermitted)
			}
		}

		future := queue.Enqueue(s.queue, mode.priority, func(ctx context.Context) (interfaces.FetchOutcome, error) {
			return s.fetchAllTask(ctx, mode.trigger)
		})

		// timeout propio, independiente de quién inició el vuelo
		awaitCtx, cancel := context.WithTimeout(context.Background(), s.config.RequestTimeout)
		defer cancel()
		return future.Await(awaitCtx)
	})

	return s.awaitFlight(ctx, bulkFlightKey, ch)
}

// fetchAllTask corre en el worker de la cola. Puebla los tiers aunque ya no
// quede nadie esperando el resultado.
func (s *PriceService) fetchAllTask(ctx context.Context, trigger string) (interfaces.FetchOutcome, error) {
	outcome := s.upstream.FetchAll(ctx)
	if outcome.Fallback {
		s.metrics.RecordPriceRefresh(trigger, "fallback")
		return outcome, outcome.Err
	}

	now := s.clock.Now()
	if err := s.store.UpsertAll(ctx, outcome.Records); err != nil {
		logging.Cache().CacheError(ctx, tierDurable, "upsert_all", err)
	}
	s.memory.replaceAll(outcome.Records, now)
	for _, r := range outcome.Records {
		s.metrics.SetCurrentPrice(r.ID, r.CurrentPrice.InexactFloat64())
	}

	s.mu.Lock()
	s.lastFullUpdate = now
	s.mu.Unlock()

	s.metrics.RecordPriceRefresh(trigger, "success")
	s.metrics.SetTierStats(tierMemory, len(outcome.Records), 0)
	logging.Info(ctx, "Price tiers refreshed from upstream", logging.Fields{
		logging.FieldCoinCount: len(outcome.Records),
		"trigger":              trigger,
	})
	return outcome, nil
}

// refreshOne fetch puntual de una moneda configurada, coalescido por id
func (s *PriceService) refreshOne(ctx context.Context, id string) (interfaces.FetchOutcome, error) {
	key := coinFlightKeyFx + id
	ch := s.flights.DoChan(key, func() (any, error) {
		if !s.gate.HasBudget() {
			return interfaces.FetchOutcome{}, fmt.Errorf("%w: no rate budget", domainerrors.ErrFetchNotPermitted)
		}
		future := queue.Enqueue(s.queue, queue.PriorityNormal, func(ctx context.Context) (interfaces.FetchOutcome, error) {
			outcome := s.upstream.FetchOne(ctx, id)
			if outcome.Fallback {
				s.metrics.RecordPriceRefresh("single", "fallback")
				return outcome, outcome.Err
			}
			if len(outcome.Records) > 0 {
				record := outcome.Records[0]
				if err := s.store.Upsert(ctx, record); err != nil {
					logging.Cache().CacheError(ctx, tierDurable, "upsert", err)
				}
				s.memory.put(record, s.clock.Now())
				s.metrics.SetCurrentPrice(record.ID, record.CurrentPrice.InexactFloat64())
			}
			s.metrics.RecordPriceRefresh("single", "success")
			return outcome, nil
		})

		awaitCtx, cancel := context.WithTimeout(context.Background(), s.config.RequestTimeout)
		defer cancel()
		return future.Await(awaitCtx)
	})

	return s.awaitFlight(ctx, key, ch)
}

func (s *PriceService) awaitFlight(ctx context.Context, key string, ch <-chan singleflight.Result) (interfaces.FetchOutcome, error) {
	select {
	case res := <-ch:
		if res.Shared {
			s.metrics.RecordCoalesced(key)
		}
		outcome, _ := res.Val.(interfaces.FetchOutcome)
		return outcome, res.Err
	case <-ctx.Done():
		return interfaces.FetchOutcome{}, fmt.Errorf("%w: %w", domainerrors.ErrQueueTimeout, ctx.Err())
	}
}

func (s *PriceService) freshMemory(now time.Time) ([]entities.PriceRecord, bool) {
	records, oldest := s.memory.snapshot()
	if len(records) == 0 || now.Sub(oldest) >= s.config.MemoryTTL {
		return nil, false
	}
	return records, true
}

func (s *PriceService) durableFresh(records []entities.PriceRecord, now time.Time) bool {
	return now.Sub(oldestUpdate(records)) < s.config.DurableTTL
}

// loadDurable un fallo del store equivale a tier vacío
func (s *PriceService) loadDurable(ctx context.Context) []entities.PriceRecord {
	records, err := s.store.FindAll(ctx)
	if err != nil {
		logging.Cache().CacheError(ctx, tierDurable, "find_all", err)
		return nil
	}
	return records
}

// findDurable por id y, si no está, recorrido lineal por símbolo
func (s *PriceService) findDurable(ctx context.Context, id, symbol string) (entities.PriceRecord, bool) {
	record, found, err := s.store.FindByID(ctx, id)
	if err != nil {
		logging.Cache().CacheError(ctx, tierDurable, "find_by_id", err)
	}
	if found {
		return record, true
	}

	for _, r := range s.loadDurable(ctx) {
		if r.Symbol == symbol {
			return r, true
		}
	}
	return entities.PriceRecord{}, false
}

// configuredID resuelve qué id configurado pedir upstream; "" si ninguno
func (s *PriceService) configuredID(id string, durable entities.PriceRecord, inDurable bool, memory entities.CacheEntry, inMemory bool) string {
	candidates := []string{id}
	if inDurable {
		candidates = append(candidates, durable.ID)
	}
	if inMemory {
		candidates = append(candidates, memory.Record.ID)
	}
	for _, c := range candidates {
		if _, ok := s.configured[c]; ok {
			return c
		}
	}
	return ""
}

func (s *PriceService) fetchPermitted(now time.Time) bool {
	return s.gate.HasBudget() && !s.throttled(now)
}

func (s *PriceService) throttled(now time.Time) bool {
	if s.config.FullUpdateInterval <= 0 {
		return false
	}
	s.mu.Lock()
	last := s.lastFullUpdate
	s.mu.Unlock()
	return !last.IsZero() && now.Sub(last) < s.config.FullUpdateInterval
}

// lastUpdateMinutesAgo -1 si todavía no hubo un full update
func (s *PriceService) lastUpdateMinutesAgo(now time.Time) int64 {
	s.mu.Lock()
	last := s.lastFullUpdate
	s.mu.Unlock()
	if last.IsZero() {
		return -1
	}
	return int64(now.Sub(last) / time.Minute)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-price-monitor/internal/domain/entities"
	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/domain/interfaces"
	"crypto-price-monitor/internal/infrastructure/breaker"
	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/exchange"
	"crypto-price-monitor/internal/infrastructure/exchange/coingecko"
	"crypto-price-monitor/internal/infrastructure/queue"
	"crypto-price-monitor/internal/infrastructure/ratelimit"
	"crypto-price-monitor/internal/infrastructure/repositories/store"
)

var testCoins = []string{"bitcoin", "ethereum"}

// openGate governor permisivo para la cola y el servicio
type openGate struct {
	noBudget atomic.Bool
	cooldown atomic.Bool
}

func (g *openGate) TryReserve() bool            { return true }
func (g *openGate) WaitDuration() time.Duration { return 0 }
func (g *openGate) HasBudget() bool             { return !g.noBudget.Load() && !g.cooldown.Load() }

func (g *openGate) Stats() ratelimit.GovernorStats {
	st := ratelimit.GovernorStats{MaxRequests: 25}
	if g.cooldown.Load() {
		st.InCooldown = true
		st.CooldownRemaining = 30 * time.Second
	}
	return st
}

// fakeUpstream imita al GuardedExchange: en error devuelve el snapshot durable
type fakeUpstream struct {
	clock   clockwork.Clock
	store   interfaces.PriceStore
	release chan struct{}

	mu  sync.Mutex
	err error

	allCalls atomic.Int32
	oneCalls atomic.Int32
}

func (f *fakeUpstream) failWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeUpstream) currentErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeUpstream) FetchAll(ctx context.Context) interfaces.FetchOutcome {
	f.allCalls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if err := f.currentErr(); err != nil {
		snapshot, _ := f.store.FindAll(ctx)
		return interfaces.FetchOutcome{Records: snapshot, Fallback: true, Err: err}
	}
	now := f.clock.Now()
	return interfaces.FetchOutcome{Records: []entities.PriceRecord{
		priceAt("bitcoin", "btc", 67000, 1_320_000_000_000, now),
		priceAt("ethereum", "eth", 3100, 372_000_000_000, now),
	}}
}

func (f *fakeUpstream) FetchOne(ctx context.Context, id string) interfaces.FetchOutcome {
	f.oneCalls.Add(1)
	if err := f.currentErr(); err != nil {
		r, found, _ := f.store.FindByID(ctx, id)
		if !found {
			return interfaces.FetchOutcome{Fallback: true, Err: err}
		}
		return interfaces.FetchOutcome{Records: []entities.PriceRecord{r}, Fallback: true, Err: err}
	}
	if id != "solana" {
		return interfaces.FetchOutcome{}
	}
	return interfaces.FetchOutcome{Records: []entities.PriceRecord{
		priceAt("solana", "sol", 150, 70_000_000_000, f.clock.Now()),
	}}
}

func priceAt(id, symbol string, price, marketCap int64, updated time.Time) entities.PriceRecord {
	r := entities.NewPriceRecord(id, symbol, id, decimal.NewFromInt(price), updated)
	r.MarketCap = decimal.NewFromInt(marketCap)
	return r
}

func testConfig() Config {
	return Config{
		MemoryTTL:          30 * time.Minute,
		DurableTTL:         120 * time.Minute,
		FullUpdateInterval: 60 * time.Minute,
		RequestTimeout:     5 * time.Second,
		CoinIDs:            []string{"bitcoin", "ethereum", "solana"},
	}
}

type serviceFixture struct {
	service  *PriceService
	upstream *fakeUpstream
	store    *store.MemoryStore
	gate     *openGate
	clock    *clockwork.FakeClock
}

func newTestQueue(t *testing.T, gov queue.Governor) *queue.RequestQueue {
	t.Helper()
	q := queue.NewRequestQueue(queue.Config{TaskTimeout: 10 * time.Second, PollInterval: 50 * time.Millisecond}, gov, nil, nil)
	q.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q
}

func newFixture(t *testing.T, cfg Config) *serviceFixture {
	t.Helper()
	return newFixtureWithStore(t, cfg, nil)
}

// newFixtureWithStore wrap envuelve el store que ve el servicio; el upstream sigue usando el crudo
func newFixtureWithStore(t *testing.T, cfg Config, wrap func(*store.MemoryStore) interfaces.PriceStore) *serviceFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore()
	gate := &openGate{}
	up := &fakeUpstream{clock: clock, store: st}

	var serviceStore interfaces.PriceStore = st
	if wrap != nil {
		serviceStore = wrap(st)
	}

	svc, err := NewPriceService(cfg, Dependencies{
		Store:    serviceStore,
		Upstream: up,
		Queue:    newTestQueue(t, gate),
		Gate:     gate,
		Clock:    clock,
	})
	require.NoError(t, err)

	return &serviceFixture{service: svc, upstream: up, store: st, gate: gate, clock: clock}
}

func TestNewPriceService_InvalidConfig(t *testing.T) {
	valid := Dependencies{
		Store:    store.NewMemoryStore(),
		Upstream: &fakeUpstream{},
		Queue:    queue.NewRequestQueue(queue.DefaultConfig(), &openGate{}, nil, nil),
		Gate:     &openGate{},
	}

	tests := []struct {
		name   string
		mutate func(*Config, *Dependencies)
	}{
		{"zero memory ttl", func(c *Config, _ *Dependencies) { c.MemoryTTL = 0 }},
		{"durable shorter than memory", func(c *Config, _ *Dependencies) { c.DurableTTL = time.Minute }},
		{"negative interval", func(c *Config, _ *Dependencies) { c.FullUpdateInterval = -time.Second }},
		{"zero request timeout", func(c *Config, _ *Dependencies) { c.RequestTimeout = 0 }},
		{"missing store", func(_ *Config, d *Dependencies) { d.Store = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, deps := testConfig(), valid
			tt.mutate(&cfg, &deps)

			_, err := NewPriceService(cfg, deps)
			assert.ErrorIs(t, err, domainerrors.ErrInvalidConfiguration)
		})
	}
}

func TestGetCurrentPrices_BothTiersEmptyFetchesAndPopulates(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	assert.Equal(t, int64(-1), f.service.Stats(ctx).LastUpdateMinutesAgo)

	prices := f.service.GetCurrentPrices(ctx)

	require.Len(t, prices, 2)
	assert.Equal(t, "bitcoin", prices[0].ID)
	assert.Equal(t, "ethereum", prices[1].ID)
	assert.Equal(t, int32(1), f.upstream.allCalls.Load())
	assert.Equal(t, 2, f.store.Len())

	stats := f.service.Stats(ctx)
	assert.Equal(t, 2, stats.MemoryEntries)
	assert.Equal(t, 2, stats.DurableEntries)
	assert.Equal(t, int64(0), stats.LastUpdateMinutesAgo)
	assert.Equal(t, int64(60), stats.FullUpdateIntervalMins)
}

func TestGetCurrentPrices_IdempotentWithinMemoryTTL(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	first := f.service.GetCurrentPrices(ctx)
	f.clock.Advance(10 * time.Minute)
	second := f.service.GetCurrentPrices(ctx)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.upstream.allCalls.Load())
}

func TestGetCurrentPrices_ClearCacheConsultsDurableFirst(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	f.service.GetCurrentPrices(ctx)
	f.service.ClearCache(ctx)
	assert.Equal(t, 0, f.service.Stats(ctx).MemoryEntries)

	prices := f.service.GetCurrentPrices(ctx)
	require.Len(t, prices, 2)
	assert.Equal(t, int32(1), f.upstream.allCalls.Load(), "durable tier is fresh, no upstream call")
	assert.Equal(t, 2, f.service.Stats(ctx).MemoryEntries)

	// durable viejo: ahora sí se va al upstream, clearCache reseteó el throttle
	f.clock.Advance(3 * time.Hour)
	f.service.ClearCache(ctx)
	f.service.GetCurrentPrices(ctx)
	assert.Equal(t, int32(2), f.upstream.allCalls.Load())
}

func TestGetCurrentPrices_ConcurrentCallersShareOneFetch(t *testing.T) {
	f := newFixture(t, testConfig())
	f.upstream.release = make(chan struct{})

	const callers = 50
	results := make([][]entities.PriceRecord, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.service.GetCurrentPrices(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(f.upstream.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.upstream.allCalls.Load())
	for i := range results {
		require.Len(t, results[i], 2)
		assert.Equal(t, results[0], results[i])
	}
}

type holdKey struct{}

// holdingStore lee y después retiene la respuesta a los contextos marcados
// con holdKey hasta release, así el caller vuelve con datos ya viejos
type holdingStore struct {
	*store.MemoryStore
	release chan struct{}
	held    atomic.Int32
}

func (h *holdingStore) hold(ctx context.Context) {
	if ctx.Value(holdKey{}) == nil {
		return
	}
	h.held.Add(1)
	<-h.release
}

func (h *holdingStore) FindAll(ctx context.Context) ([]entities.PriceRecord, error) {
	records, err := h.MemoryStore.FindAll(ctx)
	h.hold(ctx)
	return records, err
}

func (h *holdingStore) FindByID(ctx context.Context, id string) (entities.PriceRecord, bool, error) {
	record, found, err := h.MemoryStore.FindByID(ctx, id)
	h.hold(ctx)
	return record, found, err
}

func newHoldingFixture(t *testing.T) (*serviceFixture, *holdingStore) {
	t.Helper()
	var holding *holdingStore
	f := newFixtureWithStore(t, testConfig(), func(st *store.MemoryStore) interfaces.PriceStore {
		holding = &holdingStore{MemoryStore: st, release: make(chan struct{})}
		return holding
	})
	return f, holding
}

// seedStaleTiers deja memoria y durable con precio 1, ambos vencidos
func seedStaleTiers(t *testing.T, f *serviceFixture) {
	t.Helper()
	ctx := context.Background()
	seeded := f.clock.Now().Add(-90 * time.Minute)
	require.NoError(t, f.store.UpsertAll(ctx, []entities.PriceRecord{
		priceAt("bitcoin", "btc", 1, 1_320_000_000_000, seeded),
		priceAt("ethereum", "eth", 1, 372_000_000_000, seeded),
	}))
	require.Len(t, f.service.GetCurrentPrices(ctx), 2)
	require.Equal(t, int32(0), f.upstream.allCalls.Load())

	f.clock.Advance(31 * time.Minute)
}

func TestGetCurrentPrices_ConcurrentCallersWithStaleTiersConverge(t *testing.T) {
	f, holding := newHoldingFixture(t)
	seedStaleTiers(t, f)

	const callers = 50
	heldCtx := context.WithValue(context.Background(), holdKey{}, true)
	results := make([][]entities.PriceRecord, callers)
	var wg sync.WaitGroup
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.service.GetCurrentPrices(heldCtx)
		}(i)
	}
	require.Eventually(t, func() bool {
		return holding.held.Load() == callers-1
	}, time.Second, 5*time.Millisecond)

	// el primero refresca mientras el resto sigue leyendo el durable viejo
	results[0] = f.service.GetCurrentPrices(context.Background())
	close(holding.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.upstream.allCalls.Load())
	require.Len(t, results[0], 2)
	assert.True(t, results[0][0].CurrentPrice.Equal(decimal.NewFromInt(67000)))
	for i := range results {
		assert.Equal(t, results[0], results[i], "caller %d", i)
	}
}

func TestGetPrice_PrefersMemoryRefreshedWhileReadingDurable(t *testing.T) {
	f, holding := newHoldingFixture(t)
	seedStaleTiers(t, f)

	heldCtx := context.WithValue(context.Background(), holdKey{}, true)
	done := make(chan entities.PriceRecord, 1)
	go func() {
		r, _ := f.service.GetPrice(heldCtx, "bitcoin")
		done <- r
	}()
	require.Eventually(t, func() bool { return holding.held.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.service.GetCurrentPrices(context.Background())
	f.gate.noBudget.Store(true)
	close(holding.release)

	r := <-done
	assert.True(t, r.CurrentPrice.Equal(decimal.NewFromInt(67000)))
	assert.Equal(t, int32(0), f.upstream.oneCalls.Load())
}

func TestGetCurrentPrices_ThrottleServesStaleDurable(t *testing.T) {
	cfg := testConfig()
	cfg.DurableTTL = cfg.MemoryTTL
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.service.GetCurrentPrices(ctx)

	// ambos tiers viejos pero dentro del intervalo de full update
	f.clock.Advance(31 * time.Minute)
	prices := f.service.GetCurrentPrices(ctx)
	require.Len(t, prices, 2)
	assert.Equal(t, int32(1), f.upstream.allCalls.Load())

	f.clock.Advance(30 * time.Minute)
	f.service.GetCurrentPrices(ctx)
	assert.Equal(t, int32(2), f.upstream.allCalls.Load())
}

func TestGetCurrentPrices_UpstreamFailureServesStaleDurable(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	old := f.clock.Now().Add(-5 * time.Hour)
	require.NoError(t, f.store.UpsertAll(ctx, []entities.PriceRecord{
		priceAt("bitcoin", "btc", 60000, 1_200_000_000_000, old),
	}))
	f.upstream.failWith(domainerrors.NewUpstreamError(503, errors.New("unavailable")))

	prices := f.service.GetCurrentPrices(ctx)

	require.Len(t, prices, 1)
	assert.True(t, prices[0].CurrentPrice.Equal(decimal.NewFromInt(60000)))
	assert.Equal(t, int32(1), f.upstream.allCalls.Load())
	assert.Equal(t, int64(-1), f.service.Stats(ctx).LastUpdateMinutesAgo)
}

func TestGetCurrentPrices_EmptyEverywhereReturnsEmpty(t *testing.T) {
	f := newFixture(t, testConfig())
	f.upstream.failWith(fmt.Errorf("%w: 0 markets", domainerrors.ErrEmptyUpstreamResponse))

	prices := f.service.GetCurrentPrices(context.Background())

	assert.NotNil(t, prices)
	assert.Empty(t, prices)
}

func TestGetCurrentPrices_NoBudgetSkipsUpstream(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gate.noBudget.Store(true)

	prices := f.service.GetCurrentPrices(context.Background())

	assert.Empty(t, prices)
	assert.Zero(t, f.upstream.allCalls.Load())
}

func TestGetCurrentPrices_CallerContextCancelled(t *testing.T) {
	f := newFixture(t, testConfig())
	f.upstream.release = make(chan struct{})
	defer close(f.upstream.release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	prices := f.service.GetCurrentPrices(ctx)
	assert.Empty(t, prices)
}

func TestGetPrice_FreshDurableWithoutUpstream(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.store.Upsert(ctx, priceAt("bitcoin", "btc", 67000, 1_320_000_000_000, f.clock.Now().Add(-10*time.Minute))))

	record, found := f.service.GetPrice(ctx, "bitcoin")

	require.True(t, found)
	assert.Equal(t, "bitcoin", record.ID)
	assert.Zero(t, f.upstream.allCalls.Load())
	assert.Zero(t, f.upstream.oneCalls.Load())
	assert.Equal(t, 1, f.service.Stats(ctx).MemoryEntries)
}

func TestGetPrice_BySymbol(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	f.service.GetCurrentPrices(ctx)

	for _, key := range []string{"ETH", "eth", "ethereum", " Ethereum "} {
		record, found := f.service.GetPrice(ctx, key)
		require.True(t, found, key)
		assert.Equal(t, "ethereum", record.ID)
	}
	assert.Equal(t, int32(1), f.upstream.allCalls.Load())

	// símbolo solo en el durable
	f.service.ClearCache(ctx)
	record, found := f.service.GetPrice(ctx, "btc")
	require.True(t, found)
	assert.Equal(t, "bitcoin", record.ID)
	assert.Zero(t, f.upstream.oneCalls.Load())
}

func TestGetPrice_TargetedFetchForConfiguredCoin(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	record, found := f.service.GetPrice(ctx, "solana")

	require.True(t, found)
	assert.Equal(t, "SOL", record.Symbol)
	assert.Equal(t, int32(1), f.upstream.oneCalls.Load())

	_, inStore, err := f.store.FindByID(ctx, "solana")
	require.NoError(t, err)
	assert.True(t, inStore)

	// segunda lectura desde memoria
	_, found = f.service.GetPrice(ctx, "SOL")
	assert.True(t, found)
	assert.Equal(t, int32(1), f.upstream.oneCalls.Load())
}

func TestGetPrice_UnknownCoinNeverHitsUpstream(t *testing.T) {
	f := newFixture(t, testConfig())

	_, found := f.service.GetPrice(context.Background(), "dogecoin")
	assert.False(t, found)

	_, found = f.service.GetPrice(context.Background(), "  ")
	assert.False(t, found)

	assert.Zero(t, f.upstream.oneCalls.Load())
	assert.Zero(t, f.upstream.allCalls.Load())
}

func TestGetPrice_StaleDurableWhenUpstreamFails(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.store.Upsert(ctx, priceAt("bitcoin", "btc", 50000, 1, f.clock.Now().Add(-6*time.Hour))))
	f.upstream.failWith(&domainerrors.RateLimitError{StatusCode: 429})

	record, found := f.service.GetPrice(ctx, "bitcoin")

	require.True(t, found)
	assert.True(t, record.CurrentPrice.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, int32(1), f.upstream.oneCalls.Load())
}

func TestForceUpdate(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	f.service.GetCurrentPrices(ctx)
	require.NoError(t, f.service.ForceUpdate(ctx))
	assert.Equal(t, int32(2), f.upstream.allCalls.Load(), "force ignores fresh memory and throttle")

	f.gate.cooldown.Store(true)
	err := f.service.ForceUpdate(ctx)
	assert.ErrorIs(t, err, domainerrors.ErrFetchNotPermitted)
	assert.Equal(t, int32(2), f.upstream.allCalls.Load())
}

func TestForceUpdate_PropagatesUpstreamError(t *testing.T) {
	f := newFixture(t, testConfig())
	f.upstream.failWith(&domainerrors.RateLimitError{StatusCode: 429})

	err := f.service.ForceUpdate(context.Background())
	assert.True(t, domainerrors.IsRateLimited(err))
}

func TestScheduledUpdate(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	require.NoError(t, f.service.ScheduledUpdate(ctx))
	assert.Equal(t, int32(1), f.upstream.allCalls.Load())

	// dentro del intervalo: no-op
	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.service.ScheduledUpdate(ctx))
	assert.Equal(t, int32(1), f.upstream.allCalls.Load())

	f.clock.Advance(time.Hour)
	f.gate.noBudget.Store(true)
	assert.ErrorIs(t, f.service.ScheduledUpdate(ctx), domainerrors.ErrFetchNotPermitted)

	f.gate.noBudget.Store(false)
	require.NoError(t, f.service.ScheduledUpdate(ctx))
	assert.Equal(t, int32(2), f.upstream.allCalls.Load())
}

func TestWarmup(t *testing.T) {
	t.Run("fresh durable loads memory", func(t *testing.T) {
		f := newFixture(t, testConfig())
		ctx := context.Background()
		require.NoError(t, f.store.Upsert(ctx, priceAt("bitcoin", "btc", 67000, 1, f.clock.Now())))

		require.NoError(t, f.service.Warmup(ctx))
		assert.Zero(t, f.upstream.allCalls.Load())
		assert.Equal(t, 1, f.service.Stats(ctx).MemoryEntries)
	})

	t.Run("empty durable fetches", func(t *testing.T) {
		f := newFixture(t, testConfig())
		require.NoError(t, f.service.Warmup(context.Background()))
		assert.Equal(t, int32(1), f.upstream.allCalls.Load())
	})
}

func TestStats_ReportsBreakerAndCooldown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := &openGate{}
	gate.cooldown.Store(true)
	cb := breaker.New(breaker.DefaultConfig("coingecko"), clock, nil)
	cb.ForceOpen()

	svc, err := NewPriceService(testConfig(), Dependencies{
		Store:    store.NewMemoryStore(),
		Upstream: &fakeUpstream{clock: clock},
		Queue:    queue.NewRequestQueue(queue.DefaultConfig(), gate, nil, nil),
		Gate:     gate,
		Breaker:  cb,
		Clock:    clock,
	})
	require.NoError(t, err)

	stats := svc.Stats(context.Background())
	assert.Equal(t, "FORCED_OPEN", stats.BreakerState)
	assert.True(t, stats.InCooldown)
	assert.Equal(t, int64(30), stats.CooldownRemaining)
	assert.Equal(t, 25, stats.MaxRequestsPerMin)
}

// Con el stack real: un 429 activa el cooldown del governor y ningún caller
// vuelve a llamar al upstream mientras dure.
func TestRateLimitedUpstream_SingleCallDuringCooldown(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	governor := ratelimit.NewRateGovernor(ratelimit.DefaultGovernorConfig(), clock, nil)

	upstreamCfg := config.GetDefaultConfig().Upstream
	upstreamCfg.BaseURL = server.URL
	upstreamCfg.CoinIDs = testCoins
	upstreamCfg.Timeout = 2 * time.Second
	client, err := coingecko.NewClient(upstreamCfg, time.Minute, governor, nil, coingecko.WithClock(clock))
	require.NoError(t, err)

	st := store.NewMemoryStore()
	cb := breaker.New(breaker.DefaultConfig(coingecko.ServiceName), clock, nil)
	svc, err := NewPriceService(testConfig(), Dependencies{
		Store:    st,
		Upstream: exchange.NewGuardedExchange(client, cb, st, nil),
		Queue:    newTestQueue(t, governor),
		Gate:     governor,
		Breaker:  cb,
		Clock:    clock,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Empty(t, svc.GetCurrentPrices(context.Background()))
		}()
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		svc.GetCurrentPrices(context.Background())
		svc.GetPrice(context.Background(), "bitcoin")
	}

	assert.Equal(t, int32(1), hits.Load())
	stats := svc.Stats(context.Background())
	assert.True(t, stats.InCooldown)
	assert.Equal(t, int64(70), stats.CooldownRemaining)
}

func TestCachedPrices_NeverFetches(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	assert.Empty(t, f.service.CachedPrices(ctx))

	require.NoError(t, f.store.Upsert(ctx, priceAt("bitcoin", "btc", 67000, 1, f.clock.Now().Add(-5*time.Hour))))
	prices := f.service.CachedPrices(ctx)
	require.Len(t, prices, 1)
	assert.Equal(t, "bitcoin", prices[0].ID)

	assert.Zero(t, f.upstream.allCalls.Load())
	assert.Zero(t, f.upstream.oneCalls.Load())
}

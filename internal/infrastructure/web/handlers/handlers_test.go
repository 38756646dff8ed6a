package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crypto-price-monitor/internal/application/dto"
	"crypto-price-monitor/internal/domain/entities"
	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/infrastructure/breaker"
)

// MockPriceService implementa PriceReader y PriceAdmin
type MockPriceService struct {
	mock.Mock
}

func (m *MockPriceService) GetCurrentPrices(ctx context.Context) []entities.PriceRecord {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]entities.PriceRecord)
	return records
}

func (m *MockPriceService) GetPrice(ctx context.Context, idOrSymbol string) (entities.PriceRecord, bool) {
	args := m.Called(ctx, idOrSymbol)
	return args.Get(0).(entities.PriceRecord), args.Bool(1)
}

func (m *MockPriceService) ClearCache(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockPriceService) ForceUpdate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPriceService) Stats(ctx context.Context) entities.SystemStats {
	return m.Called(ctx).Get(0).(entities.SystemStats)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testRecords() []entities.PriceRecord {
	btc := entities.NewPriceRecord("bitcoin", "btc", "Bitcoin", decimal.NewFromInt(67000), testNow.Add(-time.Minute))
	eth := entities.NewPriceRecord("ethereum", "eth", "Ethereum", decimal.NewFromInt(3100), testNow.Add(-3*time.Hour))
	return []entities.PriceRecord{btc, eth}
}

func newRouter(svc *MockPriceService, cb *breaker.CircuitBreaker) *mux.Router {
	prices := NewPricesHandler(svc, dto.NewPriceMapper(2*time.Hour), clockwork.NewFakeClockAt(testNow))
	admin := NewAdminHandler(svc, cb)

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/prices", prices.GetPrices).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/prices/{id}", prices.GetPrice).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/admin/stats", admin.Stats).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/admin/cache/clear", admin.ClearCache).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/admin/refresh", admin.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/admin/breaker/{action}", admin.Breaker).Methods(http.MethodPost)
	return r
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestPricesHandler_GetPrices(t *testing.T) {
	svc := &MockPriceService{}
	svc.On("GetCurrentPrices", mock.Anything).Return(testRecords())
	r := newRouter(svc, nil)

	rec := serve(t, r, http.MethodGet, "/api/v1/prices")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp dto.PricesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.True(t, resp.Stale)
	assert.Equal(t, "bitcoin", resp.Prices[0].ID)
	assert.True(t, resp.Prices[0].CurrentPrice.Equal(decimal.NewFromInt(67000)))
}

func TestPricesHandler_GetPricesFiltered(t *testing.T) {
	svc := &MockPriceService{}
	svc.On("GetCurrentPrices", mock.Anything).Return(testRecords())
	r := newRouter(svc, nil)

	rec := serve(t, r, http.MethodGet, "/api/v1/prices?ids=BTC")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.PricesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Prices, 1)
	assert.Equal(t, "bitcoin", resp.Prices[0].ID)
	assert.False(t, resp.Stale)
}

func TestPricesHandler_EmptyIsStillOK(t *testing.T) {
	svc := &MockPriceService{}
	svc.On("GetCurrentPrices", mock.Anything).Return([]entities.PriceRecord{})
	r := newRouter(svc, nil)

	rec := serve(t, r, http.MethodGet, "/api/v1/prices")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, mustField(t, rec.Body.Bytes(), "prices"))
}

func TestPricesHandler_InvalidIDs(t *testing.T) {
	svc := &MockPriceService{}
	r := newRouter(svc, nil)

	rec := serve(t, r, http.MethodGet, "/api/v1/prices?ids=BTC/USD")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "GetCurrentPrices", mock.Anything)
}

func TestPricesHandler_GetPrice(t *testing.T) {
	svc := &MockPriceService{}
	svc.On("GetPrice", mock.Anything, "btc").Return(testRecords()[0], true)
	svc.On("GetPrice", mock.Anything, "dogecoin").Return(entities.PriceRecord{}, false)
	r := newRouter(svc, nil)

	rec := serve(t, r, http.MethodGet, "/api/v1/prices/btc")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.PriceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BTC", resp.Price.Symbol)
	assert.Equal(t, int64(60), resp.Price.AgeSeconds)

	rec = serve(t, r, http.MethodGet, "/api/v1/prices/dogecoin")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "PRICE_NOT_FOUND", errResp.Error)
}

func TestAdminHandler_StatsAndClear(t *testing.T) {
	svc := &MockPriceService{}
	svc.On("Stats", mock.Anything).Return(entities.SystemStats{MemoryEntries: 5, BreakerState: "CLOSED"})
	svc.On("ClearCache", mock.Anything).Once()
	cb := breaker.New(breaker.DefaultConfig("coingecko"), clockwork.NewFakeClock(), nil)
	r := newRouter(svc, cb)

	rec := serve(t, r, http.MethodGet, "/api/v1/admin/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats dto.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 5, stats.Stats.MemoryEntries)
	assert.Equal(t, "CLOSED", stats.Breaker.State)

	rec = serve(t, r, http.MethodPost, "/api/v1/admin/cache/clear")
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestAdminHandler_Refresh(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		result string
	}{
		{"ok", nil, http.StatusOK, "ok"},
		{"cooldown", fmt.Errorf("%w: cooldown", domainerrors.ErrFetchNotPermitted), http.StatusTooManyRequests, "skipped"},
		{"rate limited", &domainerrors.RateLimitError{StatusCode: 429}, http.StatusBadGateway, "failed"},
		{"queue timeout", domainerrors.ErrQueueTimeout, http.StatusGatewayTimeout, "failed"},
		{"upstream down", domainerrors.NewUpstreamError(503, errors.New("down")), http.StatusBadGateway, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockPriceService{}
			svc.On("ForceUpdate", mock.Anything).Return(tt.err).Once()
			r := newRouter(svc, nil)

			rec := serve(t, r, http.MethodPost, "/api/v1/admin/refresh")

			assert.Equal(t, tt.status, rec.Code)
			var resp dto.ActionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.result, resp.Status)
		})
	}
}

func TestAdminHandler_Breaker(t *testing.T) {
	cb := breaker.New(breaker.DefaultConfig("coingecko"), clockwork.NewFakeClock(), nil)
	r := newRouter(&MockPriceService{}, cb)

	rec := serve(t, r, http.MethodPost, "/api/v1/admin/breaker/force-open")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, breaker.StateForcedOpen, cb.State())

	rec = serve(t, r, http.MethodPost, "/api/v1/admin/breaker/disable")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, breaker.StateDisabled, cb.State())

	rec = serve(t, r, http.MethodPost, "/api/v1/admin/breaker/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, breaker.StateClosed, cb.State())

	rec = serve(t, r, http.MethodPost, "/api/v1/admin/breaker/explode")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	cb := breaker.New(breaker.DefaultConfig("coingecko"), clockwork.NewFakeClock(), nil)

	healthy := NewHealthHandler(stubPinger{}, cb)
	rec := serve(t, http.HandlerFunc(healthy.Health), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, http.HandlerFunc(healthy.Ready), http.MethodGet, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "CLOSED", resp.Services["breaker"])

	broken := NewHealthHandler(stubPinger{err: errors.New("connection refused")}, cb)
	rec = serve(t, http.HandlerFunc(broken.Ready), http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func mustField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	return string(raw[field])
}

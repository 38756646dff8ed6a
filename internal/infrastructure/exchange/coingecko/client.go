package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonboulle/clockwork"

	"crypto-price-monitor/internal/domain/entities"
	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
)

const (
	ServiceName     = "coingecko"
	MarketsEndpoint = "/coins/markets"

	// límite de lectura del body de error, solo para el log
	maxErrorBodyBytes = 512
)

// CooldownActivator recibe la señal de 429. Lo implementa el RateGovernor.
type CooldownActivator interface {
	ActivateCooldown(d time.Duration)
}

// Reserver descuenta una llamada del presupuesto de salida. Lo implementa el RateGovernor.
type Reserver interface {
	TryReserve() bool
}

// Client cliente REST de CoinGecko para /coins/markets
type Client struct {
	baseURL      string
	vsCurrency   string
	coinIDs      []string
	apiKey       string
	apiKeyHeader string

	httpClient *http.Client
	timeout    time.Duration

	attempts uint
	delay    time.Duration
	maxDelay time.Duration

	cooldown  time.Duration
	activator CooldownActivator
	reserver  Reserver

	metrics *metrics.Collector
	clock   clockwork.Clock
}

// Option ajustes opcionales del cliente
type Option func(*Client)

// WithHTTPClient reemplaza el http.Client (tests)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock reemplaza el reloj usado para completar last_updated faltantes
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithReserver cada reintento consume una reserva; el primer intento lo reserva la cola
func WithReserver(r Reserver) Option {
	return func(c *Client) { c.reserver = r }
}

// NewClient crea el cliente. cooldown es el mínimo que se aplica ante un 429.
func NewClient(cfg config.UpstreamConfig, cooldown time.Duration, activator CooldownActivator, m *metrics.Collector, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid coingecko base url %q", domainerrors.ErrInvalidConfiguration, cfg.BaseURL)
	}
	if len(cfg.CoinIDs) == 0 {
		return nil, fmt.Errorf("%w: no coin ids configured", domainerrors.ErrInvalidConfiguration)
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		vsCurrency:   cfg.VsCurrency,
		coinIDs:      append([]string(nil), cfg.CoinIDs...),
		apiKey:       cfg.APIKey,
		apiKeyHeader: cfg.APIKeyHeader,
		httpClient:   &http.Client{Timeout: cfg.Timeout + 5*time.Second},
		timeout:      cfg.Timeout,
		attempts:     uint(attempts),
		delay:        cfg.RetryDelay,
		maxDelay:     cfg.RetryMaxDelay,
		cooldown:     cooldown,
		activator:    activator,
		metrics:      m,
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CoinIDs ids configurados, en orden
func (c *Client) CoinIDs() []string {
	return append([]string(nil), c.coinIDs...)
}

// FetchAll trae todas las monedas configuradas
func (c *Client) FetchAll(ctx context.Context) ([]entities.PriceRecord, error) {
	records, err := c.fetchWithRetry(ctx, "FetchAll", c.coinIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch all markets: %w", err)
	}
	return records, nil
}

// FetchOne trae una sola moneda. Una respuesta vacía significa que el id no existe upstream.
func (c *Client) FetchOne(ctx context.Context, id string) (entities.PriceRecord, bool, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	records, err := c.fetchWithRetry(ctx, "FetchOne", []string{id})
	if errors.Is(err, domainerrors.ErrEmptyUpstreamResponse) {
		return entities.PriceRecord{}, false, nil
	}
	if err != nil {
		return entities.PriceRecord{}, false, fmt.Errorf("fetch market %s: %w", id, err)
	}

	for _, r := range records {
		if r.ID == id {
			return r, true, nil
		}
	}
	return entities.PriceRecord{}, false, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, operation string, ids []string) ([]entities.PriceRecord, error) {
	var (
		records []entities.PriceRecord
		lastErr error
		attempt int
	)

	err := retry.Do(
		func() error {
			attempt++
			if attempt > 1 && c.reserver != nil && !c.reserver.TryReserve() {
				// sin %w sobre lastErr: no debe volver a ser reintentable
				return fmt.Errorf("%w: no rate budget for retry %d, last error: %v",
					domainerrors.ErrFetchNotPermitted, attempt, lastErr)
			}

			reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			result, err := c.doMarketsRequest(reqCtx, ids)
			if err != nil {
				lastErr = err
				return err
			}
			records = result
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(c.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		// 429 y respuestas vacías nunca se reintentan
		retry.RetryIf(domainerrors.IsRetryable),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.metrics.RecordExternalAPIRetry(ServiceName, MarketsEndpoint, n+1)
			logging.WarnWithError(ctx, "CoinGecko request failed, retrying", err, logging.Fields{
				logging.FieldExternalService: ServiceName,
				"operation":                  operation,
				logging.FieldAttempt:         n + 1,
				"max_attempts":               c.attempts,
				logging.FieldCoinCount:       len(ids),
			})
		}),
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) marketsURL(ids []string) string {
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("ids", strings.Join(ids, ","))
	q.Set("order", "market_cap_desc")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "1h,24h,7d")
	return c.baseURL + MarketsEndpoint + "?" + q.Encode()
}

// doMarketsRequest un único intento HTTP, sin retry
func (c *Client) doMarketsRequest(ctx context.Context, ids []string) ([]entities.PriceRecord, error) {
	endpoint := c.marketsURL(ids)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domainerrors.NewUpstreamError(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	logging.ExternalAPI().RequestStarted(ctx, ServiceName, MarketsEndpoint, http.MethodGet)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	durationMs := float64(time.Since(start).Nanoseconds()) / 1e6
	if err != nil {
		c.metrics.RecordExternalAPICall(ServiceName, MarketsEndpoint, 0, durationMs)
		logging.ExternalAPI().RequestFailed(ctx, ServiceName, MarketsEndpoint, 0, err, durationMs)
		return nil, domainerrors.NewUpstreamError(0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.metrics.RecordExternalAPICall(ServiceName, MarketsEndpoint, resp.StatusCode, durationMs)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, c.handleRateLimited(ctx, resp)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		statusErr := fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body)))
		logging.ExternalAPI().RequestFailed(ctx, ServiceName, MarketsEndpoint, resp.StatusCode, statusErr, durationMs)
		return nil, domainerrors.NewUpstreamError(resp.StatusCode, statusErr)
	}

	var markets []MarketCoin
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		logging.ExternalAPI().RequestFailed(ctx, ServiceName, MarketsEndpoint, resp.StatusCode, err, durationMs)
		return nil, domainerrors.NewUpstreamError(resp.StatusCode, fmt.Errorf("decode markets: %w", err))
	}

	now := c.clock.Now()
	records := make([]entities.PriceRecord, 0, len(markets))
	for _, m := range markets {
		record, ok := m.ToRecord(now)
		if !ok {
			logging.Debug(ctx, "Skipping market without price", logging.Fields{logging.FieldCoinID: m.ID})
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %d markets requested, none usable", domainerrors.ErrEmptyUpstreamResponse, len(ids))
	}

	logging.ExternalAPI().RequestCompleted(ctx, ServiceName, MarketsEndpoint, resp.StatusCode, durationMs)
	return records, nil
}

// handleRateLimited activa el cooldown y devuelve el error tipado
func (c *Client) handleRateLimited(ctx context.Context, resp *http.Response) error {
	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.clock.Now())

	cooldown := c.cooldown
	if retryAfter > cooldown {
		cooldown = retryAfter
	}
	if c.activator != nil {
		c.activator.ActivateCooldown(cooldown)
	}

	c.metrics.RecordUpstreamRateLimited(MarketsEndpoint)
	logging.ExternalAPI().RateLimited(ctx, ServiceName, MarketsEndpoint, cooldown.Seconds())

	return &domainerrors.RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
}

// parseRetryAfter acepta segundos o fecha HTTP; 0 si falta o es inválido
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

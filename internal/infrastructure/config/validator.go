package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	domainerrors "crypto-price-monitor/internal/domain/errors"
)

// Validator valida la configuración cargada
type Validator struct{}

// NewValidator crea una nueva instancia del validador
func NewValidator() *Validator {
	return &Validator{}
}

// Validate valida toda la configuración. Los errores envuelven ErrInvalidConfiguration.
func (v *Validator) Validate(config *Config) error {
	checks := []struct {
		section string
		fn      func() error
	}{
		{"server", func() error { return v.validateServer(config.Server) }},
		{"upstream", func() error { return v.validateUpstream(config.Upstream) }},
		{"rate limit", func() error { return v.validateRateLimit(config.RateLimit) }},
		{"queue", func() error { return v.validateQueue(config.Queue) }},
		{"breaker", func() error { return v.validateBreaker(config.Breaker) }},
		{"cache", func() error { return v.validateCache(config.Cache, config.Queue) }},
		{"scheduler", func() error { return v.validateScheduler(config.Scheduler) }},
		{"store", func() error { return v.validateStore(config.Store) }},
		{"http rate limit", func() error { return v.validateHTTPRateLimit(config.HTTPRateLimit) }},
		{"stream", func() error { return v.validateStream(config.Stream) }},
		{"logging", func() error { return v.validateLogging(config.Logging) }},
	}

	for _, c := range checks {
		if err := c.fn(); err != nil {
			return fmt.Errorf("%w: %s config validation failed: %w", domainerrors.ErrInvalidConfiguration, c.section, err)
		}
	}

	return nil
}

// validateServer valida la configuración del servidor
func (v *Validator) validateServer(config ServerConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("invalid port: %d, must be between 1-65535", config.Port)
	}

	if config.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got: %v", config.ShutdownTimeout)
	}

	if config.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown_timeout too long: %v, max 5 minutes", config.ShutdownTimeout)
	}

	if config.ReadTimeout <= 0 || config.WriteTimeout <= 0 {
		return fmt.Errorf("read_timeout and write_timeout must be positive")
	}

	return nil
}

var coinIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// validateUpstream valida la configuración del proveedor
func (v *Validator) validateUpstream(config UpstreamConfig) error {
	if err := v.validateURL(config.BaseURL, "upstream base_url"); err != nil {
		return err
	}

	if config.VsCurrency == "" {
		return fmt.Errorf("vs_currency cannot be empty")
	}

	if len(config.CoinIDs) == 0 {
		return fmt.Errorf("coin_ids cannot be empty")
	}

	for _, id := range config.CoinIDs {
		if !coinIDPattern.MatchString(id) {
			return fmt.Errorf("invalid coin id: %q, expected lowercase coingecko id", id)
		}
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got: %v", config.Timeout)
	}

	if config.RetryAttempts < 1 || config.RetryAttempts > 5 {
		return fmt.Errorf("upstream retry_attempts must be between 1-5, got: %d", config.RetryAttempts)
	}

	if config.RetryDelay <= 0 || config.RetryMaxDelay < config.RetryDelay {
		return fmt.Errorf("invalid retry backoff: delay %v, max %v", config.RetryDelay, config.RetryMaxDelay)
	}

	if config.APIKey != "" && config.APIKeyHeader == "" {
		return fmt.Errorf("api_key_header required when api_key is set")
	}

	return nil
}

// validateRateLimit valida los límites hacia el upstream
func (v *Validator) validateRateLimit(config RateLimitConfig) error {
	if config.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("max_requests_per_minute must be positive, got: %d", config.MaxRequestsPerMinute)
	}

	if config.Window <= 0 {
		return fmt.Errorf("window must be positive, got: %v", config.Window)
	}

	if config.MinInterval < 0 {
		return fmt.Errorf("min_interval cannot be negative, got: %v", config.MinInterval)
	}

	if config.MinInterval >= config.Window {
		return fmt.Errorf("min_interval (%v) must be shorter than window (%v)", config.MinInterval, config.Window)
	}

	if config.CooldownDuration <= 0 {
		return fmt.Errorf("cooldown_duration must be positive, got: %v", config.CooldownDuration)
	}

	return nil
}

func (v *Validator) validateQueue(config QueueConfig) error {
	if config.TaskTimeout <= 0 {
		return fmt.Errorf("task_timeout must be positive, got: %v", config.TaskTimeout)
	}

	if config.PollInterval <= 0 || config.PollInterval > config.TaskTimeout {
		return fmt.Errorf("poll_interval must be in (0, task_timeout], got: %v", config.PollInterval)
	}

	if config.MaxDepth < 0 {
		return fmt.Errorf("max_depth cannot be negative, got: %d", config.MaxDepth)
	}

	return nil
}

func (v *Validator) validateBreaker(config BreakerConfig) error {
	if config.SlidingWindowSize <= 0 {
		return fmt.Errorf("sliding_window_size must be positive, got: %d", config.SlidingWindowSize)
	}

	if config.MinimumCalls <= 0 || config.MinimumCalls > config.SlidingWindowSize {
		return fmt.Errorf("minimum_calls must be in [1, sliding_window_size], got: %d", config.MinimumCalls)
	}

	if config.FailureRateThreshold <= 0 || config.FailureRateThreshold > 100 {
		return fmt.Errorf("failure_rate_threshold must be in (0, 100], got: %v", config.FailureRateThreshold)
	}

	if config.SlowCallRateThreshold <= 0 || config.SlowCallRateThreshold > 100 {
		return fmt.Errorf("slow_call_rate_threshold must be in (0, 100], got: %v", config.SlowCallRateThreshold)
	}

	if config.SlowCallDuration <= 0 || config.WaitDurationInOpen <= 0 {
		return fmt.Errorf("slow_call_duration and wait_duration_in_open must be positive")
	}

	if config.PermittedCallsInHalfOpen <= 0 {
		return fmt.Errorf("permitted_calls_in_half_open must be positive, got: %d", config.PermittedCallsInHalfOpen)
	}

	return nil
}

// validateCache valida la política de frescura
func (v *Validator) validateCache(config CacheConfig, queue QueueConfig) error {
	if config.MemoryTTL <= 0 {
		return fmt.Errorf("memory_ttl must be positive, got: %v", config.MemoryTTL)
	}

	if config.DurableTTL < config.MemoryTTL {
		return fmt.Errorf("durable_ttl (%v) must be >= memory_ttl (%v)", config.DurableTTL, config.MemoryTTL)
	}

	if config.DurableTTL > 24*time.Hour {
		return fmt.Errorf("durable_ttl too long: %v, max 24 hours", config.DurableTTL)
	}

	if config.FullUpdateInterval < 0 {
		return fmt.Errorf("full_update_interval cannot be negative, got: %v", config.FullUpdateInterval)
	}

	if config.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got: %v", config.RequestTimeout)
	}

	if config.RequestTimeout < queue.TaskTimeout/10 {
		return fmt.Errorf("request_timeout (%v) too short for queue task_timeout (%v)", config.RequestTimeout, queue.TaskTimeout)
	}

	return nil
}

func (v *Validator) validateScheduler(config SchedulerConfig) error {
	if config.Enabled && config.Interval < time.Second {
		return fmt.Errorf("scheduler interval too short: %v, min 1s", config.Interval)
	}
	return nil
}

// validateStore valida el backend durable
func (v *Validator) validateStore(config StoreConfig) error {
	validBackends := []string{"memory", "redis", "postgres"}
	if !contains(validBackends, config.Backend) {
		return fmt.Errorf("invalid store backend: %s, must be one of: %v", config.Backend, validBackends)
	}

	switch strings.ToLower(config.Backend) {
	case "redis":
		return v.validateRedis(config.Redis)
	case "postgres":
		if config.Postgres.DSN == "" {
			return fmt.Errorf("postgres dsn cannot be empty")
		}
		if config.Postgres.MaxConns <= 0 {
			return fmt.Errorf("postgres max_conns must be positive, got: %d", config.Postgres.MaxConns)
		}
	}

	return nil
}

// validateRedis valida la configuración de Redis
func (v *Validator) validateRedis(config RedisConfig) error {
	if config.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty")
	}

	if !strings.Contains(config.Addr, ":") {
		return fmt.Errorf("invalid redis addr format: %s, expected host:port", config.Addr)
	}

	if config.DB < 0 || config.DB > 15 {
		return fmt.Errorf("invalid redis DB: %d, must be between 0-15", config.DB)
	}

	return nil
}

func (v *Validator) validateHTTPRateLimit(config HTTPRateLimitConfig) error {
	if !config.Enabled {
		return nil
	}

	if config.RequestsPerSecond <= 0 {
		return fmt.Errorf("http_rate_limit requests_per_second must be positive when enabled, got: %v", config.RequestsPerSecond)
	}

	if config.Burst <= 0 {
		return fmt.Errorf("http_rate_limit burst must be positive when enabled, got: %d", config.Burst)
	}

	return nil
}

func (v *Validator) validateStream(config StreamConfig) error {
	if config.Enabled && config.PushInterval < time.Second {
		return fmt.Errorf("stream push_interval too short: %v, min 1s", config.PushInterval)
	}
	return nil
}

// validateLogging valida la configuración de logging
func (v *Validator) validateLogging(config LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, config.Level) {
		return fmt.Errorf("invalid log level: %s, must be one of: %v", config.Level, validLevels)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, config.Format) {
		return fmt.Errorf("invalid log format: %s, must be one of: %v", config.Format, validFormats)
	}

	return nil
}

// validateURL valida que una URL sea válida para HTTP/HTTPS
func (v *Validator) validateURL(rawURL, fieldName string) error {
	if rawURL == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %s, error: %v", fieldName, rawURL, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("invalid %s scheme: %s, must be http or https", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s must have a host", fieldName)
	}

	return nil
}

// contains verifica si un slice contiene un elemento
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}

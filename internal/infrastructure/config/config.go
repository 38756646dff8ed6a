package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream" mapstructure:"upstream"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" mapstructure:"rate_limit"`
	Queue         QueueConfig         `yaml:"queue" mapstructure:"queue"`
	Breaker       BreakerConfig       `yaml:"breaker" mapstructure:"breaker"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Scheduler     SchedulerConfig     `yaml:"scheduler" mapstructure:"scheduler"`
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	HTTPRateLimit HTTPRateLimitConfig `yaml:"http_rate_limit" mapstructure:"http_rate_limit"`
	Stream        StreamConfig        `yaml:"stream" mapstructure:"stream"`
	Logging       LoggingConfig       `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// UpstreamConfig configuración del proveedor de precios (CoinGecko)
type UpstreamConfig struct {
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	VsCurrency    string        `yaml:"vs_currency" mapstructure:"vs_currency"`
	CoinIDs       []string      `yaml:"coin_ids" mapstructure:"coin_ids"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	RetryMaxDelay time.Duration `yaml:"retry_max_delay" mapstructure:"retry_max_delay"`
	APIKey        string        `yaml:"api_key" mapstructure:"api_key"`
	APIKeyHeader  string        `yaml:"api_key_header" mapstructure:"api_key_header"`
}

// RateLimitConfig límites de salida hacia el upstream
type RateLimitConfig struct {
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute" mapstructure:"max_requests_per_minute"`
	Window               time.Duration `yaml:"window" mapstructure:"window"`
	MinInterval          time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	CooldownDuration     time.Duration `yaml:"cooldown_duration" mapstructure:"cooldown_duration"`
}

// QueueConfig cola de fetches hacia el upstream
type QueueConfig struct {
	TaskTimeout  time.Duration `yaml:"task_timeout" mapstructure:"task_timeout"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	MaxDepth     int           `yaml:"max_depth" mapstructure:"max_depth"`
}

// BreakerConfig circuit breaker alrededor del upstream
type BreakerConfig struct {
	SlidingWindowSize        int           `yaml:"sliding_window_size" mapstructure:"sliding_window_size"`
	MinimumCalls             int           `yaml:"minimum_calls" mapstructure:"minimum_calls"`
	FailureRateThreshold     float64       `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	SlowCallRateThreshold    float64       `yaml:"slow_call_rate_threshold" mapstructure:"slow_call_rate_threshold"`
	SlowCallDuration         time.Duration `yaml:"slow_call_duration" mapstructure:"slow_call_duration"`
	WaitDurationInOpen       time.Duration `yaml:"wait_duration_in_open" mapstructure:"wait_duration_in_open"`
	PermittedCallsInHalfOpen int           `yaml:"permitted_calls_in_half_open" mapstructure:"permitted_calls_in_half_open"`
}

// CacheConfig política de frescura de los tiers
type CacheConfig struct {
	MemoryTTL          time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DurableTTL         time.Duration `yaml:"durable_ttl" mapstructure:"durable_ttl"`
	FullUpdateInterval time.Duration `yaml:"full_update_interval" mapstructure:"full_update_interval"`
	RequestTimeout     time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// SchedulerConfig refresh periódico
type SchedulerConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
	WarmupOnStart bool          `yaml:"warmup_on_start" mapstructure:"warmup_on_start"`
}

// StoreConfig tier durable
type StoreConfig struct {
	Backend  string         `yaml:"backend" mapstructure:"backend"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// RedisConfig contains Redis-specific configuration
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// PostgresConfig contains Postgres-specific configuration
type PostgresConfig struct {
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// HTTPRateLimitConfig rate limit de entrada por cliente
type HTTPRateLimitConfig struct {
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int      `yaml:"burst" mapstructure:"burst"`
	SkipPaths         []string `yaml:"skip_paths" mapstructure:"skip_paths"`
}

// StreamConfig broadcast por websocket
type StreamConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	PushInterval time.Duration `yaml:"push_interval" mapstructure:"push_interval"`
}

// LoggingConfig contains logging system configuration
type LoggingConfig struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	AddSource bool   `yaml:"add_source" mapstructure:"add_source"`
}

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:       "https://api.coingecko.com/api/v3",
			VsCurrency:    "usd",
			CoinIDs:       []string{"bitcoin", "ethereum", "solana", "cardano", "ripple"},
			Timeout:       30 * time.Second,
			RetryAttempts: 2,
			RetryDelay:    5 * time.Second,
			RetryMaxDelay: 15 * time.Second,
			APIKeyHeader:  "x-cg-demo-api-key",
		},
		RateLimit: RateLimitConfig{
			MaxRequestsPerMinute: 25,
			Window:               time.Minute,
			MinInterval:          2 * time.Second,
			CooldownDuration:     60 * time.Second,
		},
		Queue: QueueConfig{
			TaskTimeout:  30 * time.Second,
			PollInterval: time.Second,
			MaxDepth:     100,
		},
		Breaker: BreakerConfig{
			SlidingWindowSize:        10,
			MinimumCalls:             5,
			FailureRateThreshold:     50,
			SlowCallRateThreshold:    100,
			SlowCallDuration:         20 * time.Second,
			WaitDurationInOpen:       60 * time.Second,
			PermittedCallsInHalfOpen: 2,
		},
		Cache: CacheConfig{
			MemoryTTL:          30 * time.Minute,
			DurableTTL:         120 * time.Minute,
			FullUpdateInterval: 60 * time.Minute,
			RequestTimeout:     30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			Interval:      5 * time.Minute,
			WarmupOnStart: true,
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				DB:        0,
				KeyPrefix: "cpm:",
			},
			Postgres: PostgresConfig{
				MaxConns: 5,
			},
		},
		HTTPRateLimit: HTTPRateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
			SkipPaths:         []string{"/health", "/ready", "/metrics"},
		},
		Stream: StreamConfig{
			Enabled:      true,
			PushInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

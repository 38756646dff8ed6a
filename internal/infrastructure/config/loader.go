package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CRYPTO_PRICE"

// Loader handles configuration loading using Viper
type Loader struct {
	v       *viper.Viper
	paths   []string
	envFile string
}

// NewLoader creates a new configuration loader instance
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
		paths: []string{
			"./configs",
			"../configs",
			".",
			"/etc/crypto-price-monitor",
		},
		envFile: ".env",
	}
}

// NewLoaderWithPaths restringe la búsqueda de config.yaml a los directorios dados
func NewLoaderWithPaths(paths ...string) *Loader {
	l := NewLoader()
	l.paths = paths
	return l
}

// Load loads configuration from files and environment variables
func (l *Loader) Load() (*Config, error) {
	// 0. .env opcional, no pisa variables ya exportadas
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", l.envFile, err)
		}
	}

	// 1. Configure Viper
	l.setupViper()

	// 2. Read configuration
	if err := l.v.ReadInConfig(); err != nil {
		// If config.yaml doesn't exist, use only env vars and defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 3. Unmarshal sobre los defaults
	config := GetDefaultConfig()
	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 4. Casos especiales de env vars
	l.overrideWithEnvVars(config)

	return config, nil
}

// setupViper configures Viper to read files and env vars
func (l *Loader) setupViper() {
	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")
	for _, p := range l.paths {
		l.v.AddConfigPath(p)
	}

	// CRYPTO_PRICE_SERVER_PORT -> server.port
	l.v.AutomaticEnv()
	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.bindEnvVars()
}

// prefixedKeys claves que aceptan override vía CRYPTO_PRICE_<KEY>.
// AutomaticEnv solo resuelve claves que viper ya conoce, por eso se enlazan explícitamente.
var prefixedKeys = []string{
	"server.port",
	"server.shutdown_timeout",
	"upstream.base_url",
	"upstream.vs_currency",
	"upstream.timeout",
	"upstream.retry_attempts",
	"upstream.api_key",
	"rate_limit.max_requests_per_minute",
	"rate_limit.min_interval",
	"rate_limit.cooldown_duration",
	"queue.task_timeout",
	"breaker.failure_rate_threshold",
	"breaker.wait_duration_in_open",
	"cache.memory_ttl",
	"cache.durable_ttl",
	"cache.full_update_interval",
	"cache.request_timeout",
	"scheduler.enabled",
	"scheduler.interval",
	"store.backend",
	"store.redis.addr",
	"store.redis.password",
	"store.redis.db",
	"store.postgres.dsn",
	"http_rate_limit.enabled",
	"stream.enabled",
	"logging.level",
	"logging.format",
	"logging.add_source",
}

// bindEnvVars maps environment variables to configuration keys
func (l *Loader) bindEnvVars() {
	for _, key := range prefixedKeys {
		_ = l.v.BindEnv(key)
	}

	// Nombres cortos habituales en despliegues (docker-compose, PaaS)
	envMappings := map[string]string{
		"server.port":          "PORT",
		"store.redis.addr":     "REDIS_ADDR",
		"store.redis.password": "REDIS_PASSWORD",
		"store.postgres.dsn":   "DATABASE_URL",
		"upstream.api_key":     "COINGECKO_API_KEY",
		"logging.level":        "LOG_LEVEL",
		"logging.format":       "LOG_FORMAT",
		"logging.add_source":   "LOG_ADD_SOURCE",
	}

	for configKey, envVar := range envMappings {
		_ = l.v.BindEnv(configKey, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(configKey, ".", "_")), envVar)
	}
}

// overrideWithEnvVars maneja casos especiales de env vars
func (l *Loader) overrideWithEnvVars(config *Config) {
	// COIN_IDS como string separado por comas
	raw := os.Getenv(envPrefix + "_UPSTREAM_COIN_IDS")
	if raw == "" {
		raw = os.Getenv("COIN_IDS")
	}
	if raw != "" {
		if ids := ParseCoinIDs(raw); len(ids) > 0 {
			config.Upstream.CoinIDs = ids
		}
	}
}

// ParseCoinIDs normaliza una lista separada por comas: minúsculas, sin vacíos ni duplicados
func ParseCoinIDs(raw string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// LoadForEnvironment loads specific configuration for an environment
func (l *Loader) LoadForEnvironment(environment string) (*Config, error) {
	config, err := l.Load()
	if err != nil {
		return nil, err
	}

	if environment == "" {
		return config, nil
	}

	l.v.SetConfigName(fmt.Sprintf("config.%s", environment))
	if err := l.v.MergeInConfig(); err != nil {
		// Not a critical error if environment file doesn't exist
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to merge environment config: %w", err)
		}
	}

	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merged config: %w", err)
	}
	l.overrideWithEnvVars(config)

	return config, nil
}

// GetEnvironment determina el entorno actual desde ENV vars
func GetEnvironment() string {
	env := strings.ToLower(os.Getenv("ENV"))
	if env == "" {
		env = strings.ToLower(os.Getenv("ENVIRONMENT"))
	}
	if env == "" {
		env = "development"
	}
	return env
}

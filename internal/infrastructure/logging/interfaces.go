package logging

import (
	"context"
)

// Logger define la interfaz principal para logging estructurado
type Logger interface {
	// Métodos básicos de logging por nivel
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields)

	// Métodos con error incluido
	InfoWithError(ctx context.Context, message string, err error, fields Fields)
	WarnWithError(ctx context.Context, message string, err error, fields Fields)
	ErrorWithError(ctx context.Context, message string, err error, fields Fields)

	// Configuración
	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

// DomainLogger representa loggers especializados por dominio
type DomainLogger interface {
	Logger

	Domain() string
}

// HTTPLogger especializado para logs relacionados con HTTP
type HTTPLogger interface {
	DomainLogger

	RequestCompleted(ctx context.Context, method, path string, statusCode int, duration float64)
	RequestFailed(ctx context.Context, method, path string, statusCode int, err error, duration float64)
}

// ExternalAPILogger especializado para logs de APIs externas
type ExternalAPILogger interface {
	DomainLogger

	RequestStarted(ctx context.Context, service, endpoint, method string)
	RequestCompleted(ctx context.Context, service, endpoint string, statusCode int, duration float64)
	RequestFailed(ctx context.Context, service, endpoint string, statusCode int, err error, duration float64)
	RateLimited(ctx context.Context, service, endpoint string, retryAfterSeconds float64)
}

// CacheLogger especializado para logs de los tiers de cache
type CacheLogger interface {
	DomainLogger

	Hit(ctx context.Context, tier, key string)
	Miss(ctx context.Context, tier, key string)
	Populated(ctx context.Context, tier string, entries int)
	Cleared(ctx context.Context, tier string)
	CacheError(ctx context.Context, tier, operation string, err error)
}

// SecurityLogger especializado para el rate limit de entrada
type SecurityLogger interface {
	DomainLogger

	RateLimitExceeded(ctx context.Context, clientIP string, endpoint string)
}

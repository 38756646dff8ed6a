package logging

import (
	"context"
)

// BaseDomainLogger implementa funcionalidad común para loggers de dominio
type BaseDomainLogger struct {
	Logger
	domain string
}

// Domain retorna el dominio del logger
func (dl *BaseDomainLogger) Domain() string {
	return dl.domain
}

// withDomain copia los campos y agrega el dominio
func (dl *BaseDomainLogger) withDomain(fields Fields) Fields {
	out := make(Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[FieldDomain] = dl.domain
	return out
}

func (dl *BaseDomainLogger) logWithDomain(ctx context.Context, level LogLevel, message string, fields Fields) {
	fields = dl.withDomain(fields)

	switch level {
	case LevelDebug:
		dl.Logger.Debug(ctx, message, fields)
	case LevelInfo:
		dl.Logger.Info(ctx, message, fields)
	case LevelWarn:
		dl.Logger.Warn(ctx, message, fields)
	case LevelError:
		dl.Logger.Error(ctx, message, fields)
	}
}

func (dl *BaseDomainLogger) Debug(ctx context.Context, message string, fields Fields) {
	dl.logWithDomain(ctx, LevelDebug, message, fields)
}

func (dl *BaseDomainLogger) Info(ctx context.Context, message string, fields Fields) {
	dl.logWithDomain(ctx, LevelInfo, message, fields)
}

func (dl *BaseDomainLogger) Warn(ctx context.Context, message string, fields Fields) {
	dl.logWithDomain(ctx, LevelWarn, message, fields)
}

func (dl *BaseDomainLogger) Error(ctx context.Context, message string, fields Fields) {
	dl.logWithDomain(ctx, LevelError, message, fields)
}

func (dl *BaseDomainLogger) WarnWithError(ctx context.Context, message string, err error, fields Fields) {
	dl.Logger.WarnWithError(ctx, message, err, dl.withDomain(fields))
}

func (dl *BaseDomainLogger) ErrorWithError(ctx context.Context, message string, err error, fields Fields) {
	dl.Logger.ErrorWithError(ctx, message, err, dl.withDomain(fields))
}

// levelForStatus 4xx -> WARN, 5xx -> ERROR
func levelForStatus(statusCode int) LogLevel {
	switch {
	case statusCode >= 500:
		return LevelError
	case statusCode >= 400:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// HTTPDomainLogger especializado para logs HTTP
type HTTPDomainLogger struct {
	*BaseDomainLogger
}

func NewHTTPLogger(baseLogger Logger) HTTPLogger {
	return &HTTPDomainLogger{
		BaseDomainLogger: &BaseDomainLogger{Logger: baseLogger, domain: "http"},
	}
}

func (hl *HTTPDomainLogger) RequestCompleted(ctx context.Context, method, path string, statusCode int, duration float64) {
	fields := NewFieldBuilder().
		WithHTTPInfo(method, path, statusCode).
		WithCustomField(FieldDuration, duration).
		Build()

	hl.logWithDomain(ctx, levelForStatus(statusCode), "HTTP request completed", fields)
}

func (hl *HTTPDomainLogger) RequestFailed(ctx context.Context, method, path string, statusCode int, err error, duration float64) {
	fields := NewFieldBuilder().
		WithHTTPInfo(method, path, statusCode).
		WithCustomField(FieldDuration, duration).
		Build()

	hl.ErrorWithError(ctx, "HTTP request failed", err, fields)
}

// ExternalAPIDomainLogger especializado para APIs externas
type ExternalAPIDomainLogger struct {
	*BaseDomainLogger
}

func NewExternalAPILogger(baseLogger Logger) ExternalAPILogger {
	return &ExternalAPIDomainLogger{
		BaseDomainLogger: &BaseDomainLogger{Logger: baseLogger, domain: "external_api"},
	}
}

func (el *ExternalAPIDomainLogger) RequestStarted(ctx context.Context, service, endpoint, method string) {
	fields := NewFieldBuilder().
		WithCustomField(FieldExternalService, service).
		WithCustomField(FieldExternalEndpoint, endpoint).
		WithCustomField(FieldExternalMethod, method).
		Build()

	el.Debug(ctx, "External API request started", fields)
}

func (el *ExternalAPIDomainLogger) RequestCompleted(ctx context.Context, service, endpoint string, statusCode int, duration float64) {
	fields := NewFieldBuilder().
		WithExternalAPI(service, endpoint, statusCode, duration).
		Build()

	el.logWithDomain(ctx, levelForStatus(statusCode), "External API request completed", fields)
}

func (el *ExternalAPIDomainLogger) RequestFailed(ctx context.Context, service, endpoint string, statusCode int, err error, duration float64) {
	fields := NewFieldBuilder().
		WithExternalAPI(service, endpoint, statusCode, duration).
		Build()

	el.ErrorWithError(ctx, "External API request failed", err, fields)
}

func (el *ExternalAPIDomainLogger) RateLimited(ctx context.Context, service, endpoint string, retryAfterSeconds float64) {
	fields := NewFieldBuilder().
		WithCustomField(FieldExternalService, service).
		WithCustomField(FieldExternalEndpoint, endpoint).
		WithCustomField(FieldRetryAfter, retryAfterSeconds).
		Build()

	el.Warn(ctx, "External API rate limited the service", fields)
}

// CacheDomainLogger especializado para cache
type CacheDomainLogger struct {
	*BaseDomainLogger
}

func NewCacheLogger(baseLogger Logger) CacheLogger {
	return &CacheDomainLogger{
		BaseDomainLogger: &BaseDomainLogger{Logger: baseLogger, domain: "cache"},
	}
}

func (cl *CacheDomainLogger) Hit(ctx context.Context, tier, key string) {
	fields := NewFieldBuilder().
		WithCache(CacheOpGet, key, true).
		WithCustomField(FieldCacheTier, tier).
		Build()

	cl.Debug(ctx, "Cache hit", fields)
}

func (cl *CacheDomainLogger) Miss(ctx context.Context, tier, key string) {
	fields := NewFieldBuilder().
		WithCache(CacheOpGet, key, false).
		WithCustomField(FieldCacheTier, tier).
		Build()

	cl.Debug(ctx, "Cache miss", fields)
}

func (cl *CacheDomainLogger) Populated(ctx context.Context, tier string, entries int) {
	cl.Debug(ctx, "Cache tier populated", Fields{
		FieldCacheOperation: CacheOpSet,
		FieldCacheTier:      tier,
		FieldCoinCount:      entries,
	})
}

func (cl *CacheDomainLogger) Cleared(ctx context.Context, tier string) {
	cl.Info(ctx, "Cache tier cleared", Fields{
		FieldCacheOperation: CacheOpClear,
		FieldCacheTier:      tier,
	})
}

func (cl *CacheDomainLogger) CacheError(ctx context.Context, tier, operation string, err error) {
	cl.ErrorWithError(ctx, "Cache operation failed", err, Fields{
		FieldCacheOperation: operation,
		FieldCacheTier:      tier,
	})
}

// SecurityDomainLogger especializado para seguridad
type SecurityDomainLogger struct {
	*BaseDomainLogger
}

func NewSecurityLogger(baseLogger Logger) SecurityLogger {
	return &SecurityDomainLogger{
		BaseDomainLogger: &BaseDomainLogger{Logger: baseLogger, domain: "security"},
	}
}

func (sl *SecurityDomainLogger) RateLimitExceeded(ctx context.Context, clientIP string, endpoint string) {
	sl.Warn(ctx, "Rate limit exceeded", Fields{
		FieldClientIP: clientIP,
		FieldHTTPPath: endpoint,
	})
}

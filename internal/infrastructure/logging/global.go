package logging

import (
	"context"
)

// Funciones globales de conveniencia. Usan el logger global por defecto.

func Debug(ctx context.Context, message string, fields Fields) {
	GetGlobalLogger().Debug(ctx, message, fields)
}

func Info(ctx context.Context, message string, fields Fields) {
	GetGlobalLogger().Info(ctx, message, fields)
}

func Warn(ctx context.Context, message string, fields Fields) {
	GetGlobalLogger().Warn(ctx, message, fields)
}

func Error(ctx context.Context, message string, fields Fields) {
	GetGlobalLogger().Error(ctx, message, fields)
}

func InfoWithError(ctx context.Context, message string, err error, fields Fields) {
	GetGlobalLogger().InfoWithError(ctx, message, err, fields)
}

func WarnWithError(ctx context.Context, message string, err error, fields Fields) {
	GetGlobalLogger().WarnWithError(ctx, message, err, fields)
}

func ErrorWithError(ctx context.Context, message string, err error, fields Fields) {
	GetGlobalLogger().ErrorWithError(ctx, message, err, fields)
}

// HTTP retorna el logger HTTP global
func HTTP() HTTPLogger {
	return GetGlobalLoggers().HTTP
}

// ExternalAPI retorna el logger de API externa global
func ExternalAPI() ExternalAPILogger {
	return GetGlobalLoggers().ExternalAPI
}

// Cache retorna el logger de cache global
func Cache() CacheLogger {
	return GetGlobalLoggers().Cache
}

// Security retorna el logger de seguridad global
func Security() SecurityLogger {
	return GetGlobalLoggers().Security
}

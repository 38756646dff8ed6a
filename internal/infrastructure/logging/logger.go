package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// StructuredLogger implementa Logger sobre logrus
type StructuredLogger struct {
	config *LoggerConfig
	logger *logrus.Logger
}

// NewStructuredLogger crea un nuevo logger estructurado
func NewStructuredLogger(config *LoggerConfig) (*StructuredLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}

	l := logrus.New()
	l.SetOutput(config.Output)
	l.SetReportCaller(config.AddSource)
	switch config.Format {
	case FormatText:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "message",
			},
		})
	}
	l.SetLevel(toLogrusLevel(config.Level))

	return &StructuredLogger{
		config: config,
		logger: l,
	}, nil
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// entry arma la entrada logrus con los campos fijos del servicio y los del contexto
func (sl *StructuredLogger) entry(ctx context.Context, fields Fields) *logrus.Entry {
	lf := logrus.Fields{
		FieldService: sl.config.Service,
	}
	if sl.config.Version != "" {
		lf[FieldVersion] = sl.config.Version
	}
	if sl.config.Environment != "" {
		lf[FieldEnv] = sl.config.Environment
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		lf[FieldRequestID] = requestID
	}
	if startTime := GetStartTime(ctx); !startTime.IsZero() {
		if _, ok := fields[FieldDuration]; !ok {
			lf[FieldDuration] = float64(time.Since(startTime).Nanoseconds()) / 1e6
		}
	}
	for k, v := range fields {
		lf[k] = v
	}
	return sl.logger.WithFields(lf)
}

func (sl *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	sl.entry(ctx, fields).Debug(message)
}

func (sl *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	sl.entry(ctx, fields).Info(message)
}

func (sl *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	sl.entry(ctx, fields).Warn(message)
}

func (sl *StructuredLogger) Error(ctx context.Context, message string, fields Fields) {
	sl.entry(ctx, fields).Error(message)
}

// InfoWithError logs an info message with error details
func (sl *StructuredLogger) InfoWithError(ctx context.Context, message string, err error, fields Fields) {
	sl.Info(ctx, message, enrichWithError(fields, err))
}

// WarnWithError logs a warning message with error details
func (sl *StructuredLogger) WarnWithError(ctx context.Context, message string, err error, fields Fields) {
	sl.Warn(ctx, message, enrichWithError(fields, err))
}

// ErrorWithError logs an error message with error details
func (sl *StructuredLogger) ErrorWithError(ctx context.Context, message string, err error, fields Fields) {
	sl.Error(ctx, message, enrichWithError(fields, err))
}

// enrichWithError copia los campos para no mutar el map del caller
func enrichWithError(fields Fields, err error) Fields {
	if err == nil {
		return fields
	}

	enriched := make(Fields, len(fields)+2)
	for k, v := range fields {
		enriched[k] = v
	}
	enriched[FieldError] = err.Error()
	enriched[FieldErrorType] = getErrorType(err)
	return enriched
}

func (sl *StructuredLogger) SetLevel(level LogLevel) {
	sl.config.Level = level
	sl.logger.SetLevel(toLogrusLevel(level))
}

func (sl *StructuredLogger) GetLevel() LogLevel {
	return sl.config.Level
}

// GetConfig retorna la configuración actual
func (sl *StructuredLogger) GetConfig() *LoggerConfig {
	return sl.config
}

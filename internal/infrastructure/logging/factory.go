package logging

import (
	"fmt"
	"sync"
)

// LoggerFactory facilita la creación de diferentes tipos de loggers
type LoggerFactory struct {
	baseLogger Logger
}

// NewLoggerFactory crea una nueva factory de loggers
func NewLoggerFactory(config *LoggerConfig) (*LoggerFactory, error) {
	baseLogger, err := NewStructuredLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create base logger: %w", err)
	}

	return &LoggerFactory{baseLogger: baseLogger}, nil
}

func (f *LoggerFactory) GetBaseLogger() Logger {
	return f.baseLogger
}

// UpdateLogLevel actualiza el nivel de log del logger base
func (f *LoggerFactory) UpdateLogLevel(level LogLevel) {
	f.baseLogger.SetLevel(level)
}

// LoggerSet contiene todos los loggers especializados
type LoggerSet struct {
	Base        Logger
	HTTP        HTTPLogger
	ExternalAPI ExternalAPILogger
	Cache       CacheLogger
	Security    SecurityLogger
}

// GetLoggerSet retorna un set completo de loggers especializados
func (f *LoggerFactory) GetLoggerSet() *LoggerSet {
	return &LoggerSet{
		Base:        f.baseLogger,
		HTTP:        NewHTTPLogger(f.baseLogger),
		ExternalAPI: NewExternalAPILogger(f.baseLogger),
		Cache:       NewCacheLogger(f.baseLogger),
		Security:    NewSecurityLogger(f.baseLogger),
	}
}

var (
	globalMu      sync.RWMutex
	globalFactory *LoggerFactory
	globalLoggers *LoggerSet
)

// InitializeGlobalLoggers inicializa los loggers globales
func InitializeGlobalLoggers(config *LoggerConfig) error {
	factory, err := NewLoggerFactory(config)
	if err != nil {
		return fmt.Errorf("failed to initialize global loggers: %w", err)
	}

	globalMu.Lock()
	globalFactory = factory
	globalLoggers = factory.GetLoggerSet()
	globalMu.Unlock()
	return nil
}

// GetGlobalLoggers retorna todos los loggers globales.
// Sin inicializar usa la configuración por defecto.
func GetGlobalLoggers() *LoggerSet {
	globalMu.RLock()
	set := globalLoggers
	globalMu.RUnlock()
	if set != nil {
		return set
	}

	_ = InitializeGlobalLoggers(DefaultConfig())
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLoggers
}

// GetGlobalLogger retorna el logger base global
func GetGlobalLogger() Logger {
	return GetGlobalLoggers().Base
}

// SetGlobalLogLevel actualiza el nivel de log global
func SetGlobalLogLevel(level LogLevel) {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory != nil {
		globalFactory.UpdateLogLevel(level)
	}
}

// NewTestingConfig configuración para tests, escribe donde indique el test
func NewTestingConfig(service string) *LoggerConfig {
	return NewConfig(service, "test", "testing").
		WithLevel(LevelDebug).
		WithFormat(FormatJSON)
}

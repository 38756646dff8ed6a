package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LogFormat formatter de logrus
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

const defaultService = "crypto-price-monitor"

// LoggerConfig Service, Version y Environment viajan en cada entrada
type LoggerConfig struct {
	Level       LogLevel
	Format      LogFormat
	Output      io.Writer
	Service     string
	Version     string
	Environment string

	// AddSource activa ReportCaller (func y file:line por entrada)
	AddSource bool
}

// DefaultConfig info/json a stdout, lo que usa el logger global antes de main
func DefaultConfig() *LoggerConfig {
	return NewConfig(defaultService, "dev", "development")
}

func NewConfig(service, version, environment string) *LoggerConfig {
	return &LoggerConfig{
		Level:       LevelInfo,
		Format:      FormatJSON,
		Output:      os.Stdout,
		Service:     service,
		Version:     version,
		Environment: environment,
	}
}

func (c *LoggerConfig) WithLevel(level LogLevel) *LoggerConfig {
	c.Level = level
	return c
}

func (c *LoggerConfig) WithFormat(format LogFormat) *LoggerConfig {
	c.Format = format
	return c
}

func (c *LoggerConfig) WithOutput(output io.Writer) *LoggerConfig {
	c.Output = output
	return c
}

func (c *LoggerConfig) WithSource(addSource bool) *LoggerConfig {
	c.AddSource = addSource
	return c
}

// Validate junta todos los campos inválidos en un solo error
func (c *LoggerConfig) Validate() error {
	var errs []error
	if _, ok := ParseLevel(string(c.Level)); !ok {
		errs = append(errs, &ConfigError{Field: "level", Value: string(c.Level), Message: "unknown log level"})
	}
	switch c.Format {
	case FormatJSON, FormatText:
	default:
		errs = append(errs, &ConfigError{Field: "format", Value: string(c.Format), Message: "want json or text"})
	}
	if c.Output == nil {
		errs = append(errs, &ConfigError{Field: "output", Message: "nil writer"})
	}
	if strings.TrimSpace(c.Service) == "" {
		errs = append(errs, &ConfigError{Field: "service", Message: "empty service name"})
	}
	return errors.Join(errs...)
}

// ConfigError campo inválido de LoggerConfig
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("logging config %s=%q: %s", e.Field, e.Value, e.Message)
}

var levelNames = map[string]LogLevel{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel acepta los nombres de config (debug, info...) y los de LogLevel (DEBUG, INFO...)
func ParseLevel(s string) (LogLevel, bool) {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	return level, ok
}

// LogLevelFromString como ParseLevel pero cae a info
func LogLevelFromString(s string) LogLevel {
	if level, ok := ParseLevel(s); ok {
		return level
	}
	return LevelInfo
}

func LogFormatFromString(format string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(format), string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := NewStructuredLogger(NewTestingConfig("test-service").WithOutput(buf).WithLevel(level))
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestStructuredLogger_IncludesServiceAndRequestID(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelDebug)
	ctx := WithRequestID(context.Background(), "req_123")

	logger.Info(ctx, "prices served", Fields{FieldCoinCount: 2})

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "prices served", entries[0]["message"])
	assert.Equal(t, "test-service", entries[0][FieldService])
	assert.Equal(t, "req_123", entries[0][FieldRequestID])
	assert.Equal(t, float64(2), entries[0][FieldCoinCount])
	assert.Equal(t, "info", entries[0]["level"])
}

func TestStructuredLogger_RespectsLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelWarn)

	logger.Debug(context.Background(), "debug", nil)
	logger.Info(context.Background(), "info", nil)
	logger.Warn(context.Background(), "warn", nil)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0]["message"])

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.GetLevel())
	logger.Debug(context.Background(), "debug again", nil)
	assert.Len(t, decodeLines(t, buf), 2)
}

func TestStructuredLogger_WithErrorDoesNotMutateCallerFields(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelDebug)
	fields := Fields{"coin_id": "bitcoin"}

	logger.ErrorWithError(context.Background(), "fetch failed", errors.New("boom"), fields)

	_, mutated := fields[FieldError]
	assert.False(t, mutated)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0][FieldError])
	assert.Equal(t, "*errors.errorString", entries[0][FieldErrorType])
}

func TestDomainLoggers_AddDomain(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelDebug)

	NewExternalAPILogger(logger).RateLimited(context.Background(), "coingecko", "/coins/markets", 60)
	NewCacheLogger(logger).Cleared(context.Background(), "memory")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "external_api", entries[0][FieldDomain])
	assert.Equal(t, float64(60), entries[0][FieldRetryAfter])
	assert.Equal(t, "warning", entries[0]["level"])
	assert.Equal(t, "cache", entries[1][FieldDomain])
	assert.Equal(t, "memory", entries[1][FieldCacheTier])
}

func TestLoggerConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *LoggerConfig)
		wantField string
	}{
		{"default ok", func(c *LoggerConfig) {}, ""},
		{"bad level", func(c *LoggerConfig) { c.Level = "TRACE" }, "level"},
		{"bad format", func(c *LoggerConfig) { c.Format = "xml" }, "format"},
		{"nil output", func(c *LoggerConfig) { c.Output = nil }, "output"},
		{"empty service", func(c *LoggerConfig) { c.Service = "" }, "service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestLoggerConfig_ValidateReportsEveryField(t *testing.T) {
	cfg := NewConfig(" ", "test", "testing").WithLevel("TRACE").WithFormat("xml")

	err := cfg.Validate()

	require.Error(t, err)
	for _, field := range []string{"level", "format", "service"} {
		assert.Contains(t, err.Error(), "logging config "+field)
	}
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel(" Warning ")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, level)

	level, ok = ParseLevel(string(LevelDebug))
	assert.True(t, ok)
	assert.Equal(t, LevelDebug, level)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, LevelInfo, LogLevelFromString("verbose"))
	assert.Equal(t, FormatText, LogFormatFromString("TEXT"))
	assert.Equal(t, FormatJSON, LogFormatFromString("yaml"))
}

func TestStructuredLogger_WithSourceReportsCaller(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewStructuredLogger(NewTestingConfig("test-service").WithOutput(buf).WithSource(true))
	require.NoError(t, err)

	logger.Info(context.Background(), "with caller", nil)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "file")
	assert.Contains(t, entries[0], "func")
}

func TestGenerateRequestID(t *testing.T) {
	a := GenerateRequestID()
	b := GenerateRequestID()

	assert.True(t, strings.HasPrefix(a, "req_"))
	assert.NotEqual(t, a, b)
	assert.Len(t, NewRequestIDGenerator("ws").GenerateShort(), len("ws_")+8)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, LevelDebug, LogLevelFromString("DEBUG"))
	assert.Equal(t, LevelWarn, LogLevelFromString("warning"))
	assert.Equal(t, LevelInfo, LogLevelFromString("nonsense"))
	assert.Equal(t, FormatText, LogFormatFromString("TEXT"))
	assert.Equal(t, FormatJSON, LogFormatFromString(""))
}

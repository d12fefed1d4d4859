package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestWithExchangeAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &Logger{Logger: zap.New(core)}

	log.WithExchange("ex-1", "corr-1").Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "ex-1", fields["exchange_id"])
		assert.Equal(t, "corr-1", fields["correlation_id"])
	}
}

func TestNewFormats(t *testing.T) {
	for _, format := range []string{"", FormatJSON, "CONSOLE"} {
		l, err := New("debug", format)
		if assert.NoError(t, err, format) {
			assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
		}
	}
}

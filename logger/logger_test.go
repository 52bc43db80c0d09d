package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpersWriteToGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := globalLogger
	Set(zap.New(core))
	t.Cleanup(func() { Set(prev) })

	Debug("hidden")
	Info("frame", String("sessionId", "s1"), Uint64("seq", 3), Float64("intensity", 0.5))
	Warn("cache", ErrorField(errors.New("down")))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "frame", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "s1", fields["sessionId"])
	assert.Equal(t, uint64(3), fields["seq"])
	assert.Equal(t, "down", entries[1].ContextMap()["error"])
}

func TestHelpersWithoutLogger(t *testing.T) {
	prev := globalLogger
	Set(nil)
	t.Cleanup(func() { Set(prev) })

	assert.NotPanics(t, func() {
		Info("nothing")
		Sync()
	})
	assert.NotNil(t, L())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

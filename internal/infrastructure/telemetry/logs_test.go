package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewBridgedLogger_Disabled(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, NewBridgedLogger(base, nil, "ledger"))
	assert.Same(t, base, NewBridgedLogger(base, &LoggerProvider{}, "ledger"))
}

func TestNewZapOTELCore_Disabled(t *testing.T) {
	core := NewZapOTELCore("ledger", nil, zapcore.InfoLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	logger := zap.New(core).With(zap.String("tenant_id", "t1"))
	logger.Info("dropped")
	logger.Warn("kept")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "kept", entries[0].Message)
		assert.Equal(t, "t1", entries[0].ContextMap()["tenant_id"])
	}
}

package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxevent"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeFx(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := Zap()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(previous) })
	return logs
}

func TestFxLoggerAdapter_WiringEventsAreDebug(t *testing.T) {
	logs := observeFx(t)
	adapter := NewFxLoggerAdapter()

	adapter.LogEvent(&fxevent.Provided{ConstructorName: "app.NewJobRepository()", OutputTypeNames: []string{"repository.JobRepository"}})
	adapter.LogEvent(&fxevent.OnStartExecuting{FunctionName: "metrics.(*MetricsServer).Start", CallerName: "metrics.ProvideMetricRecorder"})

	entries := logs.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, zapcore.DebugLevel, e.Level)
		assert.Equal(t, "fx", e.LoggerName)
	}
}

func TestFxLoggerAdapter_FailuresAreErrors(t *testing.T) {
	logs := observeFx(t)

	NewFxLoggerAdapter().LogEvent(&fxevent.Invoked{FunctionName: "job.Register", Err: errors.New("duplicate job")})

	failures := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, failures, 1)
	assert.Equal(t, "fx", failures[0].LoggerName)
}

func TestFxLoggerAdapter_StartedIsInfo(t *testing.T) {
	logs := observeFx(t)

	NewFxLoggerAdapter().LogEvent(&fxevent.Started{})

	entries := logs.FilterLevelExact(zapcore.InfoLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Application started.", entries[0].Message)
}

func TestModule_FlushesOnStop(t *testing.T) {
	observeFx(t)
	lc := fxtest.NewLifecycle(t)
	registerSync(lc)
	lc.RequireStart().RequireStop()
}

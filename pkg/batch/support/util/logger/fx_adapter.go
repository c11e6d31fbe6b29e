package logger

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

// FxLoggerAdapter routes fx lifecycle events to the pipeline's zap logger under the "fx" name.
// Wiring events (provide, invoke, hooks) are logged at DEBUG so they stay out of job output;
// failures are logged at ERROR.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter creates the fxevent.Logger installed by Module.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// LogEvent logs an fx event. The zap logger is resolved per event so SetLogger also applies to
// an application that is already running.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	if started, ok := event.(*fxevent.Started); ok && started.Err == nil {
		Infof("Application started.")
		return
	}
	zl := &fxevent.ZapLogger{Logger: Zap().Named("fx")}
	zl.UseLogLevel(zapcore.DebugLevel)
	zl.UseErrorLevel(zapcore.ErrorLevel)
	zl.LogEvent(event)
}

package logger

import (
	"context"

	"go.uber.org/fx"
)

// Module installs the fx event adapter and flushes buffered log entries when the
// application stops.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
	fx.Invoke(registerSync),
)

func registerSync(lc fx.Lifecycle) {
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		Sync()
		return nil
	}})
}

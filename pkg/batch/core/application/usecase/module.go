package usecase

import (
	"go.uber.org/fx"
)

// Module is the Fx module for the job registry, JobLauncher and JobExplorer.
var Module = fx.Options(
	fx.Provide(NewJobRegistry),
	fx.Provide(fx.Annotate(
		NewSimpleJobExplorer,
		fx.As(new(JobExplorer)),
	)),
	fx.Provide(fx.Annotate(
		NewSimpleJobLauncher,
		fx.As(new(JobLauncher)),
	)),
)

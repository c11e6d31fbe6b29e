package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/usecase"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/support/incrementer"
)

// Options are the inputs of the application taken from the command line.
type Options struct {
	EmbeddedConfig config.EmbeddedConfig
	// EnvFilePath is a .env file loaded before the configuration. Empty means ./.env if present.
	EnvFilePath string
	// ConfigFilePath is a YAML file overriding the embedded configuration.
	ConfigFilePath string
}

// Application is the started dependency graph.
type Application struct {
	app      *fx.App
	launcher usecase.JobLauncher
	explorer usecase.JobExplorer
	registry *usecase.JobRegistry
}

// New builds the application graph. extra options are appended after Module, mostly to
// replace providers in tests.
func New(opts Options, extra ...fx.Option) (*Application, error) {
	a := &Application{}
	options := []fx.Option{
		fx.Supply(
			opts.EmbeddedConfig,
			fx.Annotated{Name: "envFilePath", Target: opts.EnvFilePath},
			fx.Annotated{Name: "configFilePath", Target: opts.ConfigFilePath},
		),
		Module,
		fx.Populate(&a.launcher, &a.explorer, &a.registry),
		fx.StopTimeout(30 * time.Second),
	}
	a.app = fx.New(append(options, extra...)...)
	if err := a.app.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

// Start runs the start hooks, e.g. the metrics endpoint.
func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

// Stop flushes exporters and closes every connection.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// Launch runs jobName to completion. Invalid parameters are reported as a validation error
// before anything is written.
func (a *Application) Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	return a.launcher.Launch(ctx, jobName, params)
}

// JobNames lists the jobs the application can launch.
func (a *Application) JobNames() []string {
	return a.registry.Names()
}

// Explorer queries the executions recorded in the job repository.
func (a *Application) Explorer() usecase.JobExplorer {
	return a.explorer
}

// NextParameters adds a run id to params so that they identify a job instance that has never
// run.
func (a *Application) NextParameters(ctx context.Context, jobName string, params model.JobParameters) (model.JobParameters, error) {
	return incrementer.NewRunIDIncrementer("").NextInstance(ctx, a.explorer, jobName, params)
}

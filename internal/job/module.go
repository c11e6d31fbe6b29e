package job

import (
	"go.uber.org/fx"

	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	"github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/usecase"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/metrics"
	"github.com/selvaebi/eva-pipeline/pkg/batch/listener/logging"
)

// StepFactoryParams are the dependencies of the StepFactory.
type StepFactoryParams struct {
	fx.In
	Config    *config.Config
	Repo      repository.JobRepository
	DB        *gormadapter.DBProvider
	Storage   *storage.StorageProvider
	Recorder  metrics.MetricRecorder
	Tracer    metrics.Tracer
	Listeners logging.Listeners
}

// NewStepFactory creates the StepFactory from the application graph.
func NewStepFactory(p StepFactoryParams) *StepFactory {
	return &StepFactory{
		Config:    p.Config,
		Repo:      p.Repo,
		DB:        p.DB,
		Storage:   p.Storage,
		Recorder:  p.Recorder,
		Tracer:    p.Tracer,
		Listeners: p.Listeners,
	}
}

// Module provides the job catalogue and registers its jobs.
var Module = fx.Options(
	fx.Provide(NewStepFactory),
	fx.Provide(NewCatalogue),
	fx.Invoke(func(c *Catalogue, registry *usecase.JobRegistry) error {
		return c.Register(registry)
	}),
)

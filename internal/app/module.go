// Package app assembles the loader application: configuration, connections, the job
// repository, observability and the job catalogue.
package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/selvaebi/eva-pipeline/internal/job"
	dbconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/config"
	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	"github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage"
	storageconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/usecase"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/config"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
	"github.com/selvaebi/eva-pipeline/pkg/batch/infrastructure/metrics"
	"github.com/selvaebi/eva-pipeline/pkg/batch/infrastructure/repository/inmemory"
	"github.com/selvaebi/eva-pipeline/pkg/batch/infrastructure/repository/sql"
	"github.com/selvaebi/eva-pipeline/pkg/batch/listener/logging"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// NewDBProvider opens the configured databases lazily and closes them on shutdown.
func NewDBProvider(lc fx.Lifecycle, datasources dbconfig.DatasourcesConfig) *gormadapter.DBProvider {
	provider := gormadapter.NewDBProvider(datasources)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Closing all database connections...")
			return provider.CloseAll()
		},
	})
	return provider
}

// NewStorageProvider opens the configured storage connections lazily and closes them on
// shutdown.
func NewStorageProvider(lc fx.Lifecycle, datasources storageconfig.DatasourcesConfig) *storage.StorageProvider {
	provider := storage.NewStorageProvider(datasources)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.CloseAll()
		},
	})
	return provider
}

// NewJobRepository returns the repository selected by infrastructure.job_repository_type.
func NewJobRepository(cfg *config.Config, db *gormadapter.DBProvider) (repository.JobRepository, error) {
	infra := cfg.Eva.Infrastructure
	switch infra.JobRepositoryType {
	case config.JobRepositoryTypeInMemory:
		logger.Warnf("Using the in-memory job repository: executions cannot be restarted after the process exits.")
		return inmemory.NewInMemoryJobRepository(), nil
	case config.JobRepositoryTypeSQL, "":
		conn, err := db.GetConnection(infra.JobRepositoryDBRef)
		if err != nil {
			return nil, exception.NewBatchError("app", "failed to open the job repository database", err, false, false)
		}
		repo, err := sql.NewSQLJobRepository(conn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, exception.NewBatchErrorf("app", "unknown job repository type '%s'", infra.JobRepositoryType)
	}
}

// Module wires everything the job catalogue needs. The caller supplies config.EmbeddedConfig
// and, optionally, the named "envFilePath" and "configFilePath" strings.
var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(
		NewDBProvider,
		NewStorageProvider,
		NewJobRepository,
	),
	metrics.Module,
	logging.Module,
	usecase.Module,
	job.Module,
)

package sql

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/config"
	gormadapter "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm"
	_ "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
)

func newSQLiteRepository(t *testing.T) *SQLJobRepository {
	t.Helper()
	db, err := gormadapter.Open(dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "metadata.db"),
		Pool:     dbconfig.PoolConfig{MaxOpenConns: 1},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	repo, err := NewSQLJobRepository(db)
	require.NoError(t, err)
	return repo
}

func TestSQLJobRepository_InstanceLookup(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)

	params := model.NewJobParameters()
	params.Put("input.vcf", "/data/small.vcf.gz")
	params.Put("config.chunk.size", 5)
	instance := model.NewJobInstance("genotyped-vcf", params)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))

	reordered := model.NewJobParameters()
	reordered.Put("config.chunk.size", 5)
	reordered.Put("input.vcf", "/data/small.vcf.gz")
	found, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "genotyped-vcf", reordered)
	require.NoError(t, err)
	assert.Equal(t, instance.ID, found.ID)
	size, ok := found.Parameters.GetInt("config.chunk.size")
	assert.True(t, ok)
	assert.Equal(t, 5, size)

	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "aggregated-vcf", params)
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)
	_, err = repo.FindJobInstanceByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	names, err := repo.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"genotyped-vcf"}, names)
}

func TestSQLJobRepository_ExecutionsAndLatestStep(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)

	params := model.NewJobParameters()
	instance := model.NewJobInstance("annotate-variants", params)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))

	first := model.NewJobExecution(instance.ID, instance.JobName, params)
	require.NoError(t, repo.SaveJobExecution(ctx, first))
	genes := model.NewStepExecution(model.NewID(), first, "genes-load")
	require.NoError(t, repo.SaveStepExecution(ctx, genes))

	genes.MarkAsStarted()
	genes.ReadCount = 12
	genes.SkipReadCount = 1
	genes.SkipRecords = append(genes.SkipRecords, model.SkipRecord{Phase: model.SkipPhaseRead, Position: 4, Message: "bad line", Classification: "FlatFileParseException"})
	genes.ExecutionContext.Put("gtf.line.count", 10)
	genes.MarkAsFailed(assert.AnError)
	require.NoError(t, repo.UpdateStepExecution(ctx, genes))
	assert.Equal(t, 1, genes.Version)

	first.MarkAsFailed(assert.AnError)
	require.NoError(t, repo.UpdateJobExecution(ctx, first))

	second := model.NewJobExecution(instance.ID, instance.JobName, params)
	second.RestartCount = 1
	require.NoError(t, repo.SaveJobExecution(ctx, second))

	latest, err := repo.FindLatestJobExecution(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 1, latest.RestartCount)

	latestStep, err := repo.FindLatestStepExecution(ctx, instance.ID, "genes-load")
	require.NoError(t, err)
	assert.Equal(t, genes.ID, latestStep.ID)
	assert.Equal(t, model.BatchStatusFailed, latestStep.Status)
	assert.Equal(t, 12, latestStep.ReadCount)
	n, _ := latestStep.ExecutionContext.GetInt("gtf.line.count")
	assert.Equal(t, 10, n)
	require.Len(t, latestStep.SkipRecords, 1)
	assert.Equal(t, 4, latestStep.SkipRecords[0].Position)
	assert.NotEmpty(t, latestStep.Failures)

	_, err = repo.FindLatestStepExecution(ctx, instance.ID, "generate-vep-input")
	assert.ErrorIs(t, err, repository.ErrStepExecutionNotFound)

	all, err := repo.FindJobExecutionsByJobInstance(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, model.BatchStatusFailed, all[0].Status)
	require.Len(t, all[0].StepExecutions, 1)
	assert.Same(t, all[0], all[0].StepExecutions[0].JobExecution)
}

func TestSQLJobRepository_UpdateDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)

	je := model.NewJobExecution("instance", "genotyped-vcf", model.NewJobParameters())
	require.NoError(t, repo.SaveJobExecution(ctx, je))

	stale := *je
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	err := repo.UpdateJobExecution(ctx, &stale)
	assert.ErrorIs(t, err, ErrOptimisticLockingFailure)

	missing := model.NewJobExecution("instance", "genotyped-vcf", model.NewJobParameters())
	err = repo.UpdateJobExecution(ctx, missing)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
}

func TestSQLJobRepository_CheckpointUpsert(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)

	_, err := repo.FindCheckpointData(ctx, "se-1")
	assert.ErrorIs(t, err, repository.ErrCheckpointDataNotFound)

	for _, position := range []int{5, 10} {
		ec := model.NewExecutionContext()
		ec.Put("vcf.line.count", position)
		require.NoError(t, repo.SaveCheckpointData(ctx, &model.CheckpointData{StepExecutionID: "se-1", ExecutionContext: ec}))
	}

	data, err := repo.FindCheckpointData(ctx, "se-1")
	require.NoError(t, err)
	n, _ := data.ExecutionContext.GetInt("vcf.line.count")
	assert.Equal(t, 10, n)
}

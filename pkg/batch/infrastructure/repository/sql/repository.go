// Package sql implements the job repository on a GORM connection. Any dialect registered
// with the database adapter (sqlite, postgres, mysql) can back it.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	repository "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// ErrOptimisticLockingFailure is returned when an execution was updated concurrently.
var ErrOptimisticLockingFailure = errors.New("optimistic locking failure")

func init() {
	exception.RegisterErrorType("ErrOptimisticLockingFailure", ErrOptimisticLockingFailure)
}

// SQLJobRepository implements the repository.JobRepository interface.
type SQLJobRepository struct {
	db *gorm.DB
}

var _ repository.JobRepository = (*SQLJobRepository)(nil)

// NewSQLJobRepository creates the repository and migrates its tables.
func NewSQLJobRepository(db *gorm.DB) (*SQLJobRepository, error) {
	if err := db.AutoMigrate(entities()...); err != nil {
		return nil, exception.NewBatchError("SQLJobRepository", "failed to migrate job repository tables", err, false, false)
	}
	return &SQLJobRepository{db: db}, nil
}

func (r *SQLJobRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func notFoundOr(err, notFound error, op, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return exception.NewBatchError(op, fmt.Sprintf(format, args...), err, false, false)
}

// --- JobInstance implementation ---

func (r *SQLJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	const op = "SQLJobRepository.SaveJobInstance"
	if err := r.conn(ctx).Create(fromDomainJobInstance(instance)).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save JobInstance (ID: %s)", instance.ID), err, false, false)
	}
	return nil
}

func (r *SQLJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindJobInstanceByID"
	var entity JobInstanceEntity
	if err := r.conn(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrJobInstanceNotFound, op, "failed to find JobInstance (ID: %s)", id)
	}
	return toDomainJobInstance(&entity), nil
}

func (r *SQLJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindJobInstanceByJobNameAndParameters"
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError(op, "failed to hash job parameters", err, false, false)
	}
	var entity JobInstanceEntity
	err = r.conn(ctx).
		Where("job_name = ? AND parameters_hash = ?", jobName, hash).
		Order("created_seq DESC").
		First(&entity).Error
	if err != nil {
		return nil, notFoundOr(err, repository.ErrJobInstanceNotFound, op, "failed to find JobInstance of '%s'", jobName)
	}
	return toDomainJobInstance(&entity), nil
}

func (r *SQLJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.conn(ctx).Model(&JobInstanceEntity{}).Distinct("job_name").Order("job_name").Pluck("job_name", &names).Error
	if err != nil {
		return nil, exception.NewBatchError("SQLJobRepository.GetJobNames", "failed to list job names", err, false, false)
	}
	return names, nil
}

// --- JobExecution implementation ---

func (r *SQLJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.SaveJobExecution"
	if err := r.conn(ctx).Create(fromDomainJobExecution(jobExecution)).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save JobExecution (ID: %s)", jobExecution.ID), err, false, false)
	}
	return nil
}

// UpdateJobExecution writes every column guarded by the version the caller read.
// On success the version of jobExecution is incremented.
func (r *SQLJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.UpdateJobExecution"
	originalVersion := jobExecution.Version
	entity := fromDomainJobExecution(jobExecution)
	entity.Version = originalVersion + 1
	entity.LastUpdated = time.Now()

	result := r.conn(ctx).Model(&JobExecutionEntity{}).
		Where("id = ? AND version = ?", jobExecution.ID, originalVersion).
		Select("*").Omit("id", "created_seq").
		Updates(entity)
	if result.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update JobExecution (ID: %s)", jobExecution.ID), result.Error, false, false)
	}
	if result.RowsAffected == 0 {
		return r.updateMiss(ctx, &JobExecutionEntity{}, jobExecution.ID, originalVersion, repository.ErrJobExecutionNotFound, "JobExecution")
	}
	jobExecution.Version = entity.Version
	jobExecution.LastUpdated = entity.LastUpdated
	return nil
}

func (r *SQLJobRepository) updateMiss(ctx context.Context, table interface{}, id string, version int, notFound error, kind string) error {
	var count int64
	if err := r.conn(ctx).Model(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s with ID %s not found for update: %w", kind, id, notFound)
	}
	return fmt.Errorf("%s (ID: %s) with version %d was modified concurrently: %w", kind, id, version, ErrOptimisticLockingFailure)
}

func (r *SQLJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	const op = "SQLJobRepository.FindJobExecutionByID"
	var entity JobExecutionEntity
	if err := r.conn(ctx).Where("id = ?", executionID).First(&entity).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrJobExecutionNotFound, op, "failed to find JobExecution (ID: %s)", executionID)
	}
	return r.withStepExecutions(ctx, &entity)
}

func (r *SQLJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	const op = "SQLJobRepository.FindLatestJobExecution"
	var entity JobExecutionEntity
	err := r.conn(ctx).Where("job_instance_id = ?", jobInstanceID).Order("created_seq DESC").First(&entity).Error
	if err != nil {
		return nil, notFoundOr(err, repository.ErrJobExecutionNotFound, op, "failed to find latest JobExecution of instance %s", jobInstanceID)
	}
	return r.withStepExecutions(ctx, &entity)
}

func (r *SQLJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*model.JobExecution, error) {
	const op = "SQLJobRepository.FindJobExecutionsByJobInstance"
	var entities []JobExecutionEntity
	if err := r.conn(ctx).Where("job_instance_id = ?", jobInstanceID).Order("created_seq ASC").Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to list JobExecutions of instance %s", jobInstanceID), err, false, false)
	}
	result := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		je, err := r.withStepExecutions(ctx, &entities[i])
		if err != nil {
			return nil, err
		}
		result = append(result, je)
	}
	return result, nil
}

func (r *SQLJobRepository) withStepExecutions(ctx context.Context, entity *JobExecutionEntity) (*model.JobExecution, error) {
	je := toDomainJobExecution(entity)
	steps, err := r.FindStepExecutionsByJobExecutionID(ctx, je.ID)
	if err != nil {
		return nil, err
	}
	for _, se := range steps {
		je.AddStepExecution(se)
	}
	return je, nil
}

// --- StepExecution implementation ---

func (r *SQLJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.SaveStepExecution"
	if err := r.conn(ctx).Create(fromDomainStepExecution(stepExecution)).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save StepExecution (ID: %s)", stepExecution.ID), err, false, false)
	}
	return nil
}

// UpdateStepExecution writes every column guarded by the version the caller read.
func (r *SQLJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.UpdateStepExecution"
	originalVersion := stepExecution.Version
	entity := fromDomainStepExecution(stepExecution)
	entity.Version = originalVersion + 1

	result := r.conn(ctx).Model(&StepExecutionEntity{}).
		Where("id = ? AND version = ?", stepExecution.ID, originalVersion).
		Select("*").Omit("id", "created_seq").
		Updates(entity)
	if result.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update StepExecution (ID: %s)", stepExecution.ID), result.Error, false, false)
	}
	if result.RowsAffected == 0 {
		return r.updateMiss(ctx, &StepExecutionEntity{}, stepExecution.ID, originalVersion, repository.ErrStepExecutionNotFound, "StepExecution")
	}
	stepExecution.Version = entity.Version
	return nil
}

func (r *SQLJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionByID"
	var entity StepExecutionEntity
	if err := r.conn(ctx).Where("id = ?", executionID).First(&entity).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrStepExecutionNotFound, op, "failed to find StepExecution (ID: %s)", executionID)
	}
	return toDomainStepExecution(&entity), nil
}

func (r *SQLJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionsByJobExecutionID"
	var entities []StepExecutionEntity
	if err := r.conn(ctx).Where("job_execution_id = ?", jobExecutionID).Order("created_seq ASC").Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to list StepExecutions of JobExecution %s", jobExecutionID), err, false, false)
	}
	result := make([]*model.StepExecution, 0, len(entities))
	for i := range entities {
		result = append(result, toDomainStepExecution(&entities[i]))
	}
	return result, nil
}

// FindLatestStepExecution returns the newest execution of stepName across every execution
// of the job instance.
func (r *SQLJobRepository) FindLatestStepExecution(ctx context.Context, jobInstanceID, stepName string) (*model.StepExecution, error) {
	const op = "SQLJobRepository.FindLatestStepExecution"
	var entity StepExecutionEntity
	err := r.conn(ctx).
		Joins("JOIN batch_job_execution je ON je.id = batch_step_execution.job_execution_id").
		Where("je.job_instance_id = ? AND batch_step_execution.step_name = ?", jobInstanceID, stepName).
		Order("batch_step_execution.created_seq DESC").
		First(&entity).Error
	if err != nil {
		return nil, notFoundOr(err, repository.ErrStepExecutionNotFound, op, "failed to find latest StepExecution '%s'", stepName)
	}
	return toDomainStepExecution(&entity), nil
}

// --- CheckpointData implementation ---

// SaveCheckpointData inserts or replaces the checkpoint of a step execution.
func (r *SQLJobRepository) SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error {
	const op = "SQLJobRepository.SaveCheckpointData"
	entity := fromDomainCheckpointData(data)
	if entity.LastUpdated.IsZero() {
		entity.LastUpdated = time.Now()
	}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "step_execution_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"execution_context", "last_updated"}),
	}).Create(entity).Error
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save checkpoint of StepExecution %s", data.StepExecutionID), err, false, false)
	}
	logger.Debugf("Checkpoint saved for StepExecution %s.", data.StepExecutionID)
	return nil
}

func (r *SQLJobRepository) FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error) {
	const op = "SQLJobRepository.FindCheckpointData"
	var entity CheckpointDataEntity
	if err := r.conn(ctx).Where("step_execution_id = ?", stepExecutionID).First(&entity).Error; err != nil {
		return nil, notFoundOr(err, repository.ErrCheckpointDataNotFound, op, "failed to find checkpoint of StepExecution %s", stepExecutionID)
	}
	return toDomainCheckpointData(&entity), nil
}

// Close is a no-op; the connection belongs to the database provider.
func (r *SQLJobRepository) Close() error {
	return nil
}

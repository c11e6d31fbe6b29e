package usecase

import (
	"context"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

// JobLauncher starts a Job with JobParameters.
type JobLauncher interface {
	// Launch validates the parameters, then runs the job to completion.
	// The returned error concerns the launch itself (unknown job, invalid parameters, metadata
	// failures); the outcome of the run is reported on the returned JobExecution.
	Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)
}

// JobBuilder assembles a Job for one set of parameters.
type JobBuilder func(params model.JobParameters) (port.Job, error)

// JobExplorer queries batch metadata (JobInstance, JobExecution, StepExecution).
type JobExplorer interface {
	// GetJobExecution retrieves a JobExecution by its ID.
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)

	// GetJobExecutions retrieves all JobExecutions associated with the specified JobInstance.
	GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error)

	// GetLastJobExecution retrieves the latest JobExecution for a given JobInstance.
	GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error)

	// FindJobInstance returns the instance of jobName identified by params.
	FindJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)

	// GetJobNames retrieves the names of jobs that have run at least once.
	GetJobNames(ctx context.Context) ([]string, error)
}

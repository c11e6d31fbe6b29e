package usecase

import (
	"context"
	"errors"
	"fmt"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	repository "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
	exception "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	logger "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// SimpleJobLauncher runs jobs synchronously in the calling goroutine.
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository
	registry      *JobRegistry
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher creates a new SimpleJobLauncher.
func NewSimpleJobLauncher(repo repository.JobRepository, registry *JobRegistry) *SimpleJobLauncher {
	return &SimpleJobLauncher{jobRepository: repo, registry: registry}
}

// Launch validates params, finds or creates the JobInstance and runs a new JobExecution of it.
// A previous FAILED or STOPPED execution of the same instance is resumed step by step from its
// checkpoints. No execution is created when validation fails.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, jobParameters model.JobParameters) (*model.JobExecution, error) {
	const op = "SimpleJobLauncher.Launch"
	logger.Infof("Launching Job '%s' using JobLauncher. Parameters: %s", jobName, jobParameters.String())

	job, err := l.registry.Build(jobName, jobParameters)
	if err != nil {
		if exception.IsValidationError(err) {
			return nil, err
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("Failed to create job definition for '%s'", jobName), err, false, false)
	}

	if err := job.ValidateParameters(jobParameters); err != nil {
		logger.Errorf("Job '%s': JobParameters validation failed: %v", jobName, err)
		if exception.IsValidationError(err) {
			return nil, err
		}
		return nil, exception.NewValidationError(jobName, err)
	}

	jobInstance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, jobParameters)
	if err != nil && !errors.Is(err, repository.ErrJobInstanceNotFound) {
		return nil, exception.NewBatchError(op, "Failed to search for existing JobInstance", err, false, false)
	}

	jobExecution := model.NewJobExecution("", jobName, jobParameters)
	if jobInstance != nil {
		latest, err := l.jobRepository.FindLatestJobExecution(ctx, jobInstance.ID)
		if err != nil && !errors.Is(err, repository.ErrJobExecutionNotFound) {
			return nil, exception.NewBatchError(op, "Failed to search for the latest JobExecution", err, false, false)
		}
		if latest != nil {
			if !latest.Status.IsFinished() {
				return nil, exception.NewBatchErrorf(op, "A running JobExecution (ID: %s, Status: %s) already exists for JobInstance (ID: %s). Concurrent execution is not allowed.",
					latest.ID, latest.Status, jobInstance.ID)
			}
			if latest.Status.IsRestartable() {
				jobExecution.RestartCount = latest.RestartCount + 1
				jobExecution.ExecutionContext = latest.ExecutionContext.Copy()
				logger.Infof("Restarting JobInstance (ID: %s) after %s execution %s. Restart Count: %d",
					jobInstance.ID, latest.Status, latest.ID, jobExecution.RestartCount)
			}
		}
	} else {
		jobInstance = model.NewJobInstance(jobName, jobParameters)
		if err := l.jobRepository.SaveJobInstance(ctx, jobInstance); err != nil {
			return nil, exception.NewBatchError(op, fmt.Sprintf("Failed to save new JobInstance for '%s'", jobName), err, false, false)
		}
		logger.Infof("Created and saved new JobInstance (ID: %s, JobName: %s).", jobInstance.ID, jobName)
	}
	jobExecution.JobInstanceID = jobInstance.ID

	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		return nil, exception.NewBatchError(op, "Failed to save JobExecution initially", err, false, false)
	}

	if err := job.Run(ctx, jobExecution); err != nil {
		logger.Debugf("Job '%s' (Execution ID: %s) returned: %v", jobName, jobExecution.ID, err)
	}
	if report, failed := jobExecution.FailureReport(); failed {
		logger.Errorf("%s", report.String())
	}
	return jobExecution, nil
}

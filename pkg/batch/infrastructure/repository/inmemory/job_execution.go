package inmemory

import (
	"context"
	"fmt"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
)

// SaveJobExecution persists a new JobExecution.
func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobExecutions[jobExecution.ID]; exists {
		return fmt.Errorf("JobExecution with ID %s already exists", jobExecution.ID)
	}
	r.jobExecutions[jobExecution.ID] = cloneJobExecution(jobExecution)
	r.jobExecutionOrder = append(r.jobExecutionOrder, jobExecution.ID)
	return nil
}

// UpdateJobExecution updates an existing JobExecution.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobExecutions[jobExecution.ID]; !exists {
		return fmt.Errorf("JobExecution with ID %s not found for update: %w", jobExecution.ID, repository.ErrJobExecutionNotFound)
	}
	r.jobExecutions[jobExecution.ID] = cloneJobExecution(jobExecution)
	return nil
}

// FindJobExecutionByID finds a JobExecution and loads its StepExecutions.
func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	je, ok := r.jobExecutions[id]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withStepExecutions(je), nil
}

// FindLatestJobExecution returns the newest execution of the instance.
func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.jobExecutionOrder) - 1; i >= 0; i-- {
		je := r.jobExecutions[r.jobExecutionOrder[i]]
		if je.JobInstanceID == jobInstanceID {
			return r.withStepExecutions(je), nil
		}
	}
	return nil, repository.ErrJobExecutionNotFound
}

// FindJobExecutionsByJobInstance returns every execution of the instance, oldest first.
func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.JobExecution
	for _, id := range r.jobExecutionOrder {
		je := r.jobExecutions[id]
		if je.JobInstanceID == jobInstanceID {
			result = append(result, r.withStepExecutions(je))
		}
	}
	return result, nil
}

// withStepExecutions must be called with the lock held.
func (r *InMemoryJobRepository) withStepExecutions(je *model.JobExecution) *model.JobExecution {
	c := cloneJobExecution(je)
	for _, id := range r.stepExecutionOrder {
		se := r.stepExecutions[id]
		if se.JobExecutionID == je.ID {
			c.AddStepExecution(cloneStepExecution(se))
		}
	}
	return c
}

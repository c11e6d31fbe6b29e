package inmemory

import (
	"context"
	"fmt"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
)

// SaveStepExecution persists a new StepExecution.
func (r *InMemoryJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stepExecutions[stepExecution.ID]; exists {
		return fmt.Errorf("StepExecution with ID %s already exists", stepExecution.ID)
	}
	r.stepExecutions[stepExecution.ID] = cloneStepExecution(stepExecution)
	r.stepExecutionOrder = append(r.stepExecutionOrder, stepExecution.ID)
	return nil
}

// UpdateStepExecution updates an existing StepExecution.
func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stepExecutions[stepExecution.ID]; !exists {
		return fmt.Errorf("StepExecution with ID %s not found for update: %w", stepExecution.ID, repository.ErrStepExecutionNotFound)
	}
	r.stepExecutions[stepExecution.ID] = cloneStepExecution(stepExecution)
	return nil
}

// FindStepExecutionByID finds a StepExecution by its ID.
func (r *InMemoryJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	se, ok := r.stepExecutions[id]
	if !ok {
		return nil, repository.ErrStepExecutionNotFound
	}
	return cloneStepExecution(se), nil
}

// FindStepExecutionsByJobExecutionID returns the step executions of a job execution in creation order.
func (r *InMemoryJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.StepExecution
	for _, id := range r.stepExecutionOrder {
		se := r.stepExecutions[id]
		if se.JobExecutionID == jobExecutionID {
			result = append(result, cloneStepExecution(se))
		}
	}
	return result, nil
}

// FindLatestStepExecution returns the newest execution of stepName within the job instance.
func (r *InMemoryJobRepository) FindLatestStepExecution(ctx context.Context, jobInstanceID, stepName string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.stepExecutionOrder) - 1; i >= 0; i-- {
		se := r.stepExecutions[r.stepExecutionOrder[i]]
		if se.StepName != stepName {
			continue
		}
		je, ok := r.jobExecutions[se.JobExecutionID]
		if ok && je.JobInstanceID == jobInstanceID {
			return cloneStepExecution(se), nil
		}
	}
	return nil, repository.ErrStepExecutionNotFound
}

package inmemory

import (
	"context"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
)

// SaveCheckpointData stores data, replacing the previous checkpoint of the step execution.
func (r *InMemoryJobRepository) SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *data
	c.ExecutionContext = data.ExecutionContext.Copy()
	r.checkpointData[data.StepExecutionID] = &c
	return nil
}

// FindCheckpointData returns ErrCheckpointDataNotFound when nothing was saved for stepExecutionID.
func (r *InMemoryJobRepository) FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.checkpointData[stepExecutionID]
	if !ok {
		return nil, repository.ErrCheckpointDataNotFound
	}
	c := *data
	c.ExecutionContext = data.ExecutionContext.Copy()
	return &c, nil
}

package repository

import (
	"context"
	"errors"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

// CheckpointDataRepository stores the reader position committed with each chunk.
type CheckpointDataRepository interface {
	SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error
	FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error)
}

var ErrCheckpointDataNotFound = errors.New("checkpoint data not found")

func init() {
	exception.RegisterErrorType("ErrCheckpointDataNotFound", ErrCheckpointDataNotFound)
}

// JobRepository is the persistence boundary for execution metadata.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution
	CheckpointDataRepository

	Close() error
}

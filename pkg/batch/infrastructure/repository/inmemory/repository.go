// Package inmemory provides a JobRepository kept in process memory.
// It is used by tests and by runs that do not need to survive a process restart.
package inmemory

import (
	"sync"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
)

// InMemoryJobRepository stores copies of every saved object, so later mutations by the
// caller are only visible after an explicit update.
type InMemoryJobRepository struct {
	mu             sync.RWMutex
	jobInstances   map[string]*model.JobInstance
	jobExecutions  map[string]*model.JobExecution
	stepExecutions map[string]*model.StepExecution
	checkpointData map[string]*model.CheckpointData
	// order of creation, used to find the latest executions
	jobExecutionOrder  []string
	stepExecutionOrder []string
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)

// NewInMemoryJobRepository creates an empty repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobInstances:   make(map[string]*model.JobInstance),
		jobExecutions:  make(map[string]*model.JobExecution),
		stepExecutions: make(map[string]*model.StepExecution),
		checkpointData: make(map[string]*model.CheckpointData),
	}
}

// Close implements repository.JobRepository.
func (r *InMemoryJobRepository) Close() error {
	return nil
}

func cloneJobExecution(je *model.JobExecution) *model.JobExecution {
	c := *je
	c.StepExecutions = nil
	c.ExecutionContext = je.ExecutionContext.Copy()
	c.Failures = append(model.FailureList{}, je.Failures...)
	c.Parameters = model.JobParameters{Params: make(map[string]interface{}, len(je.Parameters.Params))}
	for k, v := range je.Parameters.Params {
		c.Parameters.Params[k] = v
	}
	return &c
}

func cloneStepExecution(se *model.StepExecution) *model.StepExecution {
	c := *se
	c.JobExecution = nil
	c.ExecutionContext = se.ExecutionContext.Copy()
	c.Failures = append(model.FailureList{}, se.Failures...)
	c.SkipRecords = append([]model.SkipRecord(nil), se.SkipRecords...)
	return &c
}

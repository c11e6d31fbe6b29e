package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
)

// SaveJobInstance persists a new JobInstance.
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobInstances[instance.ID]; exists {
		return fmt.Errorf("JobInstance with ID %s already exists", instance.ID)
	}
	c := *instance
	r.jobInstances[instance.ID] = &c
	return nil
}

// FindJobInstanceByID finds a JobInstance by its ID.
func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.jobInstances[id]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	c := *instance
	return &c, nil
}

// FindJobInstanceByJobNameAndParameters finds the instance of jobName with identical parameters.
func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, instance := range r.jobInstances {
		if instance.JobName == jobName && instance.ParametersHash == hash {
			c := *instance
			return &c, nil
		}
	}
	return nil, repository.ErrJobInstanceNotFound
}

// GetJobNames returns the sorted names of every job with an instance.
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, instance := range r.jobInstances {
		if _, ok := seen[instance.JobName]; !ok {
			seen[instance.JobName] = struct{}{}
			names = append(names, instance.JobName)
		}
	}
	sort.Strings(names)
	return names, nil
}

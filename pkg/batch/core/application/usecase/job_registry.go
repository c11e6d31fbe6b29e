package usecase

import (
	"fmt"
	"sort"
	"sync"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	exception "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
)

// JobRegistry maps job names to the builders that assemble them.
type JobRegistry struct {
	mu       sync.RWMutex
	builders map[string]JobBuilder
}

// NewJobRegistry creates an empty JobRegistry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{builders: make(map[string]JobBuilder)}
}

// Register adds a builder. Registering the same name twice is an error.
func (r *JobRegistry) Register(jobName string, builder JobBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[jobName]; exists {
		return fmt.Errorf("job '%s' is already registered", jobName)
	}
	r.builders[jobName] = builder
	return nil
}

// Build assembles the job named jobName for params.
func (r *JobRegistry) Build(jobName string, params model.JobParameters) (port.Job, error) {
	r.mu.RLock()
	builder, ok := r.builders[jobName]
	r.mu.RUnlock()
	if !ok {
		return nil, exception.NewBatchErrorf("job_registry", "job '%s' is not registered (known jobs: %v)", jobName, r.Names())
	}
	return builder(params)
}

// Names returns the registered job names in sorted order.
func (r *JobRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

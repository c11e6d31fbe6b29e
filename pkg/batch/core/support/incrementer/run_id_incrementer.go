// Package incrementer derives the parameters of a new job instance from the parameters of a
// previous one.
package incrementer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	repository "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
	logger "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// DefaultRunIDKey is the parameter RunIDIncrementer maintains unless told otherwise.
const DefaultRunIDKey = "run.id"

// InstanceFinder looks up the instance identified by a job name and its parameters.
type InstanceFinder interface {
	FindJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)
}

// RunIDIncrementer adds or increments an integer run id in job parameters, so that otherwise
// identical parameters identify a new job instance.
type RunIDIncrementer struct {
	name string
}

// NewRunIDIncrementer creates a RunIDIncrementer maintaining the parameter name.
// An empty name means "run.id".
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = DefaultRunIDKey
	}
	return &RunIDIncrementer{name: name}
}

// GetNext returns a copy of params with the run id set to 1, or incremented when present.
func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := model.NewJobParameters()
	for k, v := range params.Params {
		next.Put(k, v)
	}
	current, ok := runID(params, i.name)
	if !ok {
		next.Put(i.name, 1)
		return next
	}
	next.Put(i.name, current+1)
	logger.Debugf("RunIDIncrementer: incrementing '%s' from %d to %d.", i.name, current, current+1)
	return next
}

// runID also accepts ids given on the command line as strings.
func runID(params model.JobParameters, key string) (int, bool) {
	if s, ok := params.Get(key).(string); ok {
		id, err := strconv.Atoi(s)
		return id, err == nil
	}
	return params.GetInt(key)
}

// NextInstance increments the run id until the parameters no longer match an existing
// instance of jobName.
func (i *RunIDIncrementer) NextInstance(ctx context.Context, finder InstanceFinder, jobName string, params model.JobParameters) (model.JobParameters, error) {
	next := i.GetNext(params)
	for {
		_, err := finder.FindJobInstance(ctx, jobName, next)
		if errors.Is(err, repository.ErrJobInstanceNotFound) {
			return next, nil
		}
		if err != nil {
			return next, fmt.Errorf("looking up instance of %s: %w", jobName, err)
		}
		next = i.GetNext(next)
	}
}

// String returns the string representation of RunIDIncrementer.
func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

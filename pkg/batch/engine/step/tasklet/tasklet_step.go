package tasklet

import (
	"context"
	"time"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	repository "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
	metrics "github.com/selvaebi/eva-pipeline/pkg/batch/core/metrics"
	exception "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	logger "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// TaskletStep runs a single Tasklet as a step.
type TaskletStep struct {
	name                   string
	tasklet                port.Tasklet
	jobRepository          repository.JobRepository
	stepExecutionListeners []port.StepExecutionListener
	metricRecorder         metrics.MetricRecorder
	tracer                 metrics.Tracer
}

var _ port.Step = (*TaskletStep)(nil)

// Option configures a TaskletStep.
type Option func(*TaskletStep)

// WithStepExecutionListeners registers step listeners.
func WithStepExecutionListeners(l ...port.StepExecutionListener) Option {
	return func(s *TaskletStep) {
		s.stepExecutionListeners = append(s.stepExecutionListeners, l...)
	}
}

// WithMetricRecorder sets the metric recorder.
func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(s *TaskletStep) {
		if r != nil {
			s.metricRecorder = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t metrics.Tracer) Option {
	return func(s *TaskletStep) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewTaskletStep creates a new TaskletStep instance.
func NewTaskletStep(name string, tasklet port.Tasklet, jobRepository repository.JobRepository, opts ...Option) *TaskletStep {
	s := &TaskletStep{
		name:           name,
		tasklet:        tasklet,
		jobRepository:  jobRepository,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StepName returns the step name.
func (s *TaskletStep) StepName() string {
	return s.name
}

// Execute runs the Tasklet and persists the outcome.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (err error) {
	logger.Infof("TaskletStep '%s' executing.", s.name)

	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	ctx = port.GetContextWithStepExecution(ctx, stepExecution)

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		stepExecution.MarkAsFailed(err)
		return exception.NewBatchError(s.name, "Failed to update StepExecution status to STARTED", err, false, false)
	}

	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	exitStatus, err := s.tasklet.Execute(ctx, stepExecution)
	if err != nil {
		err = exception.NewBatchError(s.name, "Tasklet failed", err, false, false)
		s.tracer.RecordError(ctx, s.name, err)
		stepExecution.MarkAsFailed(err)
	} else {
		if exitStatus == "" {
			exitStatus = model.ExitStatusCompleted
		}
		stepExecution.MarkAsCompleted()
		stepExecution.ExitStatus = exitStatus
		stepExecution.LastUpdated = time.Now()
	}

	ioCtx := context.WithoutCancel(ctx)
	for _, l := range s.stepExecutionListeners {
		l.AfterStep(ioCtx, stepExecution)
	}
	s.metricRecorder.RecordStepEnd(ioCtx, stepExecution)

	if updateErr := s.jobRepository.UpdateStepExecution(ioCtx, stepExecution); updateErr != nil {
		logger.Errorf("TaskletStep '%s': Failed to update final StepExecution state: %v", s.name, updateErr)
		if err == nil {
			err = updateErr
		}
	}

	logger.Infof("TaskletStep '%s' finished. ExitStatus: %s", s.name, stepExecution.ExitStatus)
	return err
}

// FuncTasklet adapts a function to port.Tasklet.
type FuncTasklet func(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error)

// Execute implements port.Tasklet.
func (f FuncTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	return f(ctx, stepExecution)
}

package runner

import (
	"context"
	"errors"
	"time"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	repository "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
	metrics "github.com/selvaebi/eva-pipeline/pkg/batch/core/metrics"
	exception "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	logger "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// SimpleJob runs its steps in order and stops at the first step that does not complete.
type SimpleJob struct {
	name                 string
	steps                []port.Step
	validator            port.JobParametersValidator
	allowStartIfComplete bool
	jobRepository        repository.JobRepository
	jobListeners         []port.JobExecutionListener
	metricRecorder       metrics.MetricRecorder
	tracer               metrics.Tracer
}

// Verify that SimpleJob implements the port.Job interface.
var _ port.Job = (*SimpleJob)(nil)

// Option configures a SimpleJob.
type Option func(*SimpleJob)

// WithValidator sets the parameter validator run before the job starts.
func WithValidator(v port.JobParametersValidator) Option {
	return func(j *SimpleJob) {
		j.validator = v
	}
}

// WithAllowStartIfComplete bypasses steps whose latest execution in the same job instance completed.
func WithAllowStartIfComplete(allow bool) Option {
	return func(j *SimpleJob) {
		j.allowStartIfComplete = allow
	}
}

// WithJobListeners registers job listeners.
func WithJobListeners(l ...port.JobExecutionListener) Option {
	return func(j *SimpleJob) {
		j.jobListeners = append(j.jobListeners, l...)
	}
}

// WithMetricRecorder sets the metric recorder.
func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(j *SimpleJob) {
		if r != nil {
			j.metricRecorder = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t metrics.Tracer) Option {
	return func(j *SimpleJob) {
		if t != nil {
			j.tracer = t
		}
	}
}

// NewSimpleJob creates a job running steps in the given order.
func NewSimpleJob(name string, steps []port.Step, jobRepository repository.JobRepository, opts ...Option) *SimpleJob {
	j := &SimpleJob{
		name:           name,
		steps:          steps,
		jobRepository:  jobRepository,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// JobName returns the job name.
func (j *SimpleJob) JobName() string {
	return j.name
}

// Steps returns the steps in execution order.
func (j *SimpleJob) Steps() []port.Step {
	return j.steps
}

// ValidateParameters runs the configured validator, if any.
func (j *SimpleJob) ValidateParameters(params model.JobParameters) error {
	logger.Debugf("Job '%s': Executing JobParameters validation. Parameters: %s", j.name, params.String())
	if j.validator == nil {
		return nil
	}
	return j.validator.Validate(params)
}

// Run executes the steps of the job. The job is COMPLETED only when every step is.
func (j *SimpleJob) Run(ctx context.Context, jobExecution *model.JobExecution) (err error) {
	logger.Infof("Starting Job '%s' (Execution ID: %s).", j.name, jobExecution.ID)

	ctx, finishSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer finishSpan()
	ioCtx := context.WithoutCancel(ctx)

	jobExecution.MarkAsStarted()
	j.metricRecorder.RecordJobStart(ctx, jobExecution)
	if err := j.jobRepository.UpdateJobExecution(ioCtx, jobExecution); err != nil {
		jobExecution.MarkAsFailed(err)
		return exception.NewBatchError(j.name, "Failed to update JobExecution status to STARTED", err, false, false)
	}
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}

	defer func() {
		if jobExecution.EndTime == nil {
			now := time.Now()
			jobExecution.EndTime = &now
		}
		for _, l := range j.jobListeners {
			l.AfterJob(ioCtx, jobExecution)
		}
		j.metricRecorder.RecordJobEnd(ioCtx, jobExecution)
		if updateErr := j.jobRepository.UpdateJobExecution(ioCtx, jobExecution); updateErr != nil {
			logger.Errorf("Job '%s': Failed to update final JobExecution state: %v", j.name, updateErr)
		}

		logger.Infof("Job '%s' (Execution ID: %s) finished. Final Status: %s, Exit Status: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
		for _, se := range jobExecution.StepExecutions {
			logger.Debugf("  StepExecution Details (Step: %s): %s", se.StepName, se.DebugString())
		}
	}()

	for _, step := range j.steps {
		if ctx.Err() != nil {
			logger.Warnf("Job '%s' stopped before step '%s': %v", j.name, step.StepName(), ctx.Err())
			jobExecution.MarkAsStopped()
			return ctx.Err()
		}

		jobExecution.CurrentStepName = step.StepName()
		stepExecution, bypass, err := j.prepareStepExecution(ioCtx, jobExecution, step.StepName())
		if err != nil {
			jobExecution.MarkAsFailed(err)
			j.tracer.RecordError(ctx, j.name, err)
			return err
		}
		if bypass {
			continue
		}

		stepErr := step.Execute(ctx, jobExecution, stepExecution)

		switch stepExecution.Status {
		case model.BatchStatusCompleted:
			if stepErr == nil {
				continue
			}
			// The step finished but its final state could not be persisted.
			jobExecution.MarkAsFailed(stepErr)
			return stepErr
		case model.BatchStatusStopped:
			logger.Warnf("Job '%s': step '%s' stopped. The job can be restarted.", j.name, step.StepName())
			jobExecution.MarkAsStopped()
			return stepErr
		default:
			if stepErr == nil {
				stepErr = exception.NewBatchErrorf(j.name, "step '%s' ended with status %s", step.StepName(), stepExecution.Status)
			}
			logger.Errorf("Job '%s': step '%s' failed, remaining steps are not run: %v", j.name, step.StepName(), stepErr)
			jobExecution.MarkAsFailed(stepErr)
			j.tracer.RecordError(ctx, j.name, stepErr)
			return stepErr
		}
	}

	jobExecution.MarkAsCompleted()
	return nil
}

// prepareStepExecution creates and saves the StepExecution of stepName for this run. A step whose
// latest execution in the job instance completed is bypassed when the job allows it; a step that
// failed or stopped resumes from its last checkpoint.
func (j *SimpleJob) prepareStepExecution(ctx context.Context, jobExecution *model.JobExecution, stepName string) (*model.StepExecution, bool, error) {
	prior, err := j.jobRepository.FindLatestStepExecution(ctx, jobExecution.JobInstanceID, stepName)
	if err != nil && !errors.Is(err, repository.ErrStepExecutionNotFound) {
		return nil, false, exception.NewBatchError(j.name, "Failed to look up previous StepExecution of '"+stepName+"'", err, false, false)
	}
	if prior != nil && prior.JobExecutionID == jobExecution.ID {
		prior = nil
	}

	var stepExecution *model.StepExecution
	bypass := false
	switch {
	case prior != nil && prior.Status == model.BatchStatusCompleted && j.allowStartIfComplete:
		stepExecution = model.NewStepExecution(model.NewID(), jobExecution, stepName)
		stepExecution.MarkAsBypassed()
		bypass = true
		logger.Infof("Job '%s': step '%s' already completed (StepExecution ID: %s), bypassing.", j.name, stepName, prior.ID)
	case prior != nil && prior.Status.IsRestartable():
		stepExecution = prior.CopyForRestart(jobExecution.ID)
		jobExecution.AddStepExecution(stepExecution)
		logger.Infof("Job '%s': restarting step '%s' from the checkpoint of StepExecution %s.", j.name, stepName, prior.ID)
	default:
		stepExecution = model.NewStepExecution(model.NewID(), jobExecution, stepName)
	}

	if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
		return nil, false, exception.NewBatchError(j.name, "Failed to save StepExecution of '"+stepName+"'", err, false, false)
	}
	return stepExecution, bypass, nil
}

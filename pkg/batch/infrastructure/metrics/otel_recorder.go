package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	metrics "github.com/selvaebi/eva-pipeline/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/selvaebi/eva-pipeline"

// OtelRecorder records batch metrics through an OpenTelemetry Meter.
type OtelRecorder struct {
	jobRuns       metric.Int64Counter
	jobDuration   metric.Float64Histogram
	stepRuns      metric.Int64Counter
	stepDuration  metric.Float64Histogram
	itemsRead     metric.Int64Counter
	itemsFiltered metric.Int64Counter
	itemsWritten  metric.Int64Counter
	itemsSkipped  metric.Int64Counter
	chunkCommits  metric.Int64Counter
	operations    metric.Float64Histogram
}

// NewOtelRecorder creates the instruments on a Meter of provider.
func NewOtelRecorder(provider metric.MeterProvider) (*OtelRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OtelRecorder{}
	var err error

	if r.jobRuns, err = meter.Int64Counter("batch.job.executions", metric.WithDescription("Job executions by status.")); err != nil {
		return nil, err
	}
	if r.jobDuration, err = meter.Float64Histogram("batch.job.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.stepRuns, err = meter.Int64Counter("batch.step.executions", metric.WithDescription("Step executions by status.")); err != nil {
		return nil, err
	}
	if r.stepDuration, err = meter.Float64Histogram("batch.step.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.itemsRead, err = meter.Int64Counter("batch.items.read"); err != nil {
		return nil, err
	}
	if r.itemsFiltered, err = meter.Int64Counter("batch.items.filtered"); err != nil {
		return nil, err
	}
	if r.itemsWritten, err = meter.Int64Counter("batch.items.written"); err != nil {
		return nil, err
	}
	if r.itemsSkipped, err = meter.Int64Counter("batch.items.skipped"); err != nil {
		return nil, err
	}
	if r.chunkCommits, err = meter.Int64Counter("batch.chunk.commits"); err != nil {
		return nil, err
	}
	if r.operations, err = meter.Float64Histogram("batch.operation.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OtelRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_name", execution.JobName),
		attribute.String("status", execution.Status.String()),
	))
}

func (r *OtelRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	attrs := metric.WithAttributes(
		attribute.String("job_name", execution.JobName),
		attribute.String("status", execution.Status.String()),
	)
	r.jobRuns.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.jobDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

func (r *OtelRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.stepRuns.Add(ctx, 1, metric.WithAttributes(stepAttributes(execution)...))
}

func (r *OtelRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	attrs := metric.WithAttributes(stepAttributes(execution)...)
	r.stepRuns.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.stepDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

func (r *OtelRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.itemsRead.Add(ctx, 1, itemAttributes(ctx, stepName))
}

func (r *OtelRecorder) RecordItemFilter(ctx context.Context, stepName string) {
	r.itemsFiltered.Add(ctx, 1, itemAttributes(ctx, stepName))
}

func (r *OtelRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.itemsWritten.Add(ctx, int64(count), itemAttributes(ctx, stepName))
}

func (r *OtelRecorder) RecordItemSkip(ctx context.Context, stepName string, phase model.SkipPhase, reason string) {
	r.itemsSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_name", jobNameFromContext(ctx)),
		attribute.String("step_name", stepName),
		attribute.String("phase", string(phase)),
		attribute.String("reason", reason),
	))
}

func (r *OtelRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.chunkCommits.Add(ctx, 1, itemAttributes(ctx, stepName))
}

func (r *OtelRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := []attribute.KeyValue{attribute.String("operation", name)}
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operations.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OtelRecorder)(nil)

func stepAttributes(execution *model.StepExecution) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("job_name", jobNameOf(execution)),
		attribute.String("step_name", execution.StepName),
		attribute.String("status", execution.Status.String()),
	}
}

func itemAttributes(ctx context.Context, stepName string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("job_name", jobNameFromContext(ctx)),
		attribute.String("step_name", stepName),
	)
}

package metrics

import (
	"context"
	"time"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

// MetricRecorder collects job, step and item level metrics.
type MetricRecorder interface {
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)
	RecordItemRead(ctx context.Context, stepName string)
	RecordItemFilter(ctx context.Context, stepName string)
	RecordItemWrite(ctx context.Context, stepName string, count int)
	// RecordItemSkip counts a skipped item; reason is the error classification.
	RecordItemSkip(ctx context.Context, stepName string, phase model.SkipPhase, reason string)
	RecordChunkCommit(ctx context.Context, stepName string, count int)
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}

// CompositeMetricRecorder fans every call out to its delegates.
type CompositeMetricRecorder struct {
	recorders []MetricRecorder
}

// NewCompositeMetricRecorder creates a recorder forwarding to every non-nil delegate.
func NewCompositeMetricRecorder(recorders ...MetricRecorder) *CompositeMetricRecorder {
	c := &CompositeMetricRecorder{}
	for _, r := range recorders {
		if r != nil {
			c.recorders = append(c.recorders, r)
		}
	}
	return c
}

func (c *CompositeMetricRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	for _, r := range c.recorders {
		r.RecordJobStart(ctx, execution)
	}
}

func (c *CompositeMetricRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	for _, r := range c.recorders {
		r.RecordJobEnd(ctx, execution)
	}
}

func (c *CompositeMetricRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	for _, r := range c.recorders {
		r.RecordStepStart(ctx, execution)
	}
}

func (c *CompositeMetricRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	for _, r := range c.recorders {
		r.RecordStepEnd(ctx, execution)
	}
}

func (c *CompositeMetricRecorder) RecordItemRead(ctx context.Context, stepName string) {
	for _, r := range c.recorders {
		r.RecordItemRead(ctx, stepName)
	}
}

func (c *CompositeMetricRecorder) RecordItemFilter(ctx context.Context, stepName string) {
	for _, r := range c.recorders {
		r.RecordItemFilter(ctx, stepName)
	}
}

func (c *CompositeMetricRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	for _, r := range c.recorders {
		r.RecordItemWrite(ctx, stepName, count)
	}
}

func (c *CompositeMetricRecorder) RecordItemSkip(ctx context.Context, stepName string, phase model.SkipPhase, reason string) {
	for _, r := range c.recorders {
		r.RecordItemSkip(ctx, stepName, phase, reason)
	}
}

func (c *CompositeMetricRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	for _, r := range c.recorders {
		r.RecordChunkCommit(ctx, stepName, count)
	}
}

func (c *CompositeMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	for _, r := range c.recorders {
		r.RecordDuration(ctx, name, duration, tags)
	}
}

var _ MetricRecorder = (*CompositeMetricRecorder)(nil)

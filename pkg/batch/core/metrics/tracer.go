package metrics

import (
	"context"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

// Tracer creates spans for jobs, steps and chunks.
type Tracer interface {
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())
	StartChunkSpan(ctx context.Context, execution *model.StepExecution, chunkNumber int) (context.Context, func())
	RecordError(ctx context.Context, module string, err error)
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}

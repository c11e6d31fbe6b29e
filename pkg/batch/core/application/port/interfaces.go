// Package port defines the contracts between the batch engine and the components it drives.
package port

import (
	"context"
	"errors"
	"reflect"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
)

// ErrNoMoreItems is returned by ItemReader.Read once the source is exhausted.
var ErrNoMoreItems = errors.New("no more items to read")

// Job is an ordered composition of steps.
type Job interface {
	// Run executes the steps of the job and records their outcome on jobExecution.
	//
	// Parameters:
	//   ctx: The context for the operation. Cancellation is honoured at chunk boundaries.
	//   jobExecution: The current JobExecution instance.
	//
	// Returns:
	//   error: The failure of the first unsuccessful step, if any.
	Run(ctx context.Context, jobExecution *model.JobExecution) error
	// JobName returns the logical name of the job.
	JobName() string
	// ValidateParameters validates job parameters before any step starts.
	ValidateParameters(params model.JobParameters) error
}

// Step is a single unit of work within a job.
type Step interface {
	// Execute runs the step and records counts and status on stepExecution.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The current JobExecution instance.
	//   stepExecution: The StepExecution to update. Its ExecutionContext holds the
	//     checkpoint of a previous attempt when the step is restarted.
	//
	// Returns:
	//   error: An error if the step failed.
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
	// StepName returns the logical name of the step.
	StepName() string
}

// ItemReader produces a lazy, ordered, finite sequence of items.
// O is the type of item to be read.
type ItemReader[O any] interface {
	// Open acquires resources. When ec carries a position saved by GetExecutionContext,
	// the reader resumes so that the next Read returns the item following that position.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   ec: The last committed ExecutionContext, empty on a first run.
	//
	// Returns:
	//   error: An error if opening or repositioning fails.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Read returns the next item, or ErrNoMoreItems when the source is exhausted.
	// Errors for a single malformed record must leave the reader positioned after that record.
	Read(ctx context.Context) (O, error)
	// Close releases resources. It is called on every exit path once Open succeeded.
	Close(ctx context.Context) error
	// GetExecutionContext returns the current position as an opaque checkpoint.
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// ItemProcessor transforms an item. I is the input type, O is the output type.
type ItemProcessor[I, O any] interface {
	// Process returns the transformed item. A nil result (nil pointer, map, slice or interface)
	// filters the item out; an error marks the input as malformed.
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter persists chunks of items.
// I is the type of item to be written.
type ItemWriter[I any] interface {
	// Open acquires resources before the first chunk.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Write persists the whole chunk or fails it as a whole.
	Write(ctx context.Context, items []I) error
	// Close releases resources.
	Close(ctx context.Context) error
}

// CompletionPolicy decides when the chunk being accumulated must be flushed.
type CompletionPolicy interface {
	// ShouldFlush is consulted after every successfully read and processed item.
	//
	// Parameters:
	//   currentChunkSize: Number of items buffered for writing.
	//   readInChunk: Number of items read since the last flush, filtered ones included.
	ShouldFlush(currentChunkSize, readInChunk int) bool
}

// Tasklet is a step body that performs a single operation.
type Tasklet interface {
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error)
}

// JobParametersValidator checks job parameters before a job is launched.
type JobParametersValidator interface {
	Validate(params model.JobParameters) error
}

// SkipListener receives every skip as soon as it is recorded.
type SkipListener interface {
	OnSkip(ctx context.Context, stepExecution *model.StepExecution, record model.SkipRecord)
}

// StepExecutionListener is notified around step execution.
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	// AfterStep is called after the step ends, whatever its status.
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

// ChunkListener is notified around each chunk.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution)
	// AfterChunk is called once the chunk has been written and checkpointed.
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution)
}

// JobExecutionListener is notified around job execution.
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// IsFiltered reports whether a processor result means "drop this item".
func IsFiltered(item any) bool {
	if item == nil {
		return true
	}
	v := reflect.ValueOf(item)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

type contextKey string

// StepExecutionKey is the context key under which the running StepExecution is stored.
const StepExecutionKey contextKey = "stepExecution"

// GetContextWithStepExecution stores a StepExecution in the Context.
func GetContextWithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, StepExecutionKey, se)
}

// GetStepExecutionFromContext returns the StepExecution stored in ctx, or nil.
func GetStepExecutionFromContext(ctx context.Context) *model.StepExecution {
	se, _ := ctx.Value(StepExecutionKey).(*model.StepExecution)
	return se
}

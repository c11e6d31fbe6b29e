package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	citem "github.com/selvaebi/eva-pipeline/pkg/batch/component/item"
	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/engine/step/item"
	"github.com/selvaebi/eva-pipeline/pkg/batch/infrastructure/repository/inmemory"
)

type fakeStep struct {
	name  string
	err   error
	calls *[]string
}

func (s *fakeStep) StepName() string { return s.name }

func (s *fakeStep) Execute(ctx context.Context, je *model.JobExecution, se *model.StepExecution) error {
	*s.calls = append(*s.calls, s.name)
	se.MarkAsStarted()
	if s.err != nil {
		se.MarkAsFailed(s.err)
		return s.err
	}
	se.MarkAsCompleted()
	return nil
}

type countingWriter struct {
	failOn  int
	calls   int
	written []int
}

func (w *countingWriter) Open(ctx context.Context, ec model.ExecutionContext) error { return nil }
func (w *countingWriter) Close(ctx context.Context) error                          { return nil }
func (w *countingWriter) Write(ctx context.Context, items []int) error {
	w.calls++
	if w.calls == w.failOn {
		return errors.New("store unavailable")
	}
	w.written = append(w.written, items...)
	return nil
}

func newExecution(t *testing.T, repo *inmemory.InMemoryJobRepository, instance *model.JobInstance) *model.JobExecution {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.FindJobInstanceByID(ctx, instance.ID); err != nil {
		require.NoError(t, repo.SaveJobInstance(ctx, instance))
	}
	je := model.NewJobExecution(instance.ID, instance.JobName, instance.Parameters)
	require.NoError(t, repo.SaveJobExecution(ctx, je))
	return je
}

func numbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestSimpleJob_RunsStepsInOrder(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	var calls []string
	job := NewSimpleJob("annotate-variants", []port.Step{
		&fakeStep{name: "genes-load", calls: &calls},
		&fakeStep{name: "generate-vep-input", calls: &calls},
	}, repo)

	je := newExecution(t, repo, model.NewJobInstance(job.JobName(), model.NewJobParameters()))
	require.NoError(t, job.Run(context.Background(), je))

	assert.Equal(t, []string{"genes-load", "generate-vep-input"}, calls)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Len(t, je.StepExecutions, 2)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	assert.Len(t, stored.StepExecutions, 2)
}

func TestSimpleJob_StopsAtFirstFailedStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	var calls []string
	job := NewSimpleJob("annotate-variants", []port.Step{
		&fakeStep{name: "genes-load", calls: &calls, err: errors.New("gtf missing")},
		&fakeStep{name: "generate-vep-input", calls: &calls},
	}, repo)

	je := newExecution(t, repo, model.NewJobInstance(job.JobName(), model.NewJobParameters()))
	err := job.Run(context.Background(), je)

	require.Error(t, err)
	assert.Equal(t, []string{"genes-load"}, calls)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	report, ok := je.FailureReport()
	require.True(t, ok)
	assert.Equal(t, "genes-load", report.StepName)
}

func TestSimpleJob_BypassesCompletedStepWhenAllowed(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	writer := &countingWriter{}
	step := item.NewChunkStep[int, int]("load-variants", citem.NewListItemReader(numbers(7)),
		citem.NewPassThroughItemProcessor[int](), writer, repo, item.WithChunkSize(3))
	job := NewSimpleJob("genotyped-vcf", []port.Step{step}, repo, WithAllowStartIfComplete(true))
	instance := model.NewJobInstance(job.JobName(), model.NewJobParameters())

	require.NoError(t, job.Run(context.Background(), newExecution(t, repo, instance)))
	assert.Equal(t, 3, writer.calls)

	second := newExecution(t, repo, instance)
	require.NoError(t, job.Run(context.Background(), second))
	assert.Equal(t, 3, writer.calls)
	assert.Equal(t, model.BatchStatusCompleted, second.Status)
	require.Len(t, second.StepExecutions, 1)
	assert.Equal(t, model.ExitStatusNoOp, second.StepExecutions[0].ExitStatus)
	assert.Equal(t, 0, second.StepExecutions[0].ReadCount)
}

func TestSimpleJob_RerunsCompletedStepWhenNotAllowed(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	writer := &countingWriter{}
	step := item.NewChunkStep[int, int]("load-variants", citem.NewListItemReader(numbers(7)),
		citem.NewPassThroughItemProcessor[int](), writer, repo, item.WithChunkSize(3))
	job := NewSimpleJob("genotyped-vcf", []port.Step{step}, repo)
	instance := model.NewJobInstance(job.JobName(), model.NewJobParameters())

	require.NoError(t, job.Run(context.Background(), newExecution(t, repo, instance)))
	require.NoError(t, job.Run(context.Background(), newExecution(t, repo, instance)))
	assert.Equal(t, 6, writer.calls)
}

func TestSimpleJob_RestartResumesFailedStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	writer := &countingWriter{failOn: 2}
	step := item.NewChunkStep[int, int]("load-variants", citem.NewListItemReader(numbers(12)),
		citem.NewPassThroughItemProcessor[int](), writer, repo, item.WithChunkSize(5))
	job := NewSimpleJob("genotyped-vcf", []port.Step{step}, repo)
	instance := model.NewJobInstance(job.JobName(), model.NewJobParameters())

	first := newExecution(t, repo, instance)
	require.Error(t, job.Run(context.Background(), first))
	assert.Equal(t, model.BatchStatusFailed, first.Status)

	writer.failOn = 0
	second := newExecution(t, repo, instance)
	require.NoError(t, job.Run(context.Background(), second))

	assert.Equal(t, numbers(12), writer.written)
	assert.Equal(t, 12, second.StepExecutions[0].ReadCount)
}

func TestSimpleJob_CancelledBeforeStart(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	var calls []string
	job := NewSimpleJob("export-variants", []port.Step{&fakeStep{name: "export-variants", calls: &calls}}, repo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	je := newExecution(t, repo, model.NewJobInstance(job.JobName(), model.NewJobParameters()))
	err := job.Run(ctx, je)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
	assert.Equal(t, model.BatchStatusStopped, je.Status)
}

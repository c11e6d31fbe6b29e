package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobParametersHash_OrderIndependent(t *testing.T) {
	a := NewJobParameters()
	a.Put("input.vcf", "/data/a.vcf")
	a.Put("config.chunk.size", 100)

	b := NewJobParameters()
	b.Put("config.chunk.size", 100)
	b.Put("input.vcf", "/data/a.vcf")

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.Put("input.vcf", "/data/b.vcf")
	hc, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestJobParametersString_MasksSecrets(t *testing.T) {
	p := NewJobParameters()
	p.Put("db.password", "hunter2")
	p.Put("input.vcf", "/data/a.vcf")
	s := p.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "/data/a.vcf")
}

func TestExecutionContext_ScanRestoresNumbers(t *testing.T) {
	ec := NewExecutionContext()
	ec.Put("reader.line.count", 42)
	v, err := ec.Value()
	require.NoError(t, err)

	var restored ExecutionContext
	require.NoError(t, restored.Scan(v))
	n, ok := restored.GetInt("reader.line.count")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	require.NoError(t, restored.Scan(nil))
	assert.Empty(t, restored)
}

func TestStepExecution_Lifecycle(t *testing.T) {
	je := NewJobExecution("instance", "genotyped-vcf", NewJobParameters())
	se := NewStepExecution(NewID(), je, "load-variants")
	assert.Equal(t, je.ID, se.JobExecutionID)

	se.MarkAsStarted()
	assert.Equal(t, BatchStatusStarted, se.Status)
	se.MarkAsFailed(errors.New("boom"))
	se.MarkAsFailed(errors.New("boom"))
	assert.Equal(t, BatchStatusFailed, se.Status)
	assert.Equal(t, FailureList{"boom"}, se.Failures)
	assert.NotNil(t, se.EndTime)

	assert.Error(t, se.TransitionTo(BatchStatusStarted))
}

func TestCopyForRestart_CarriesCheckpoint(t *testing.T) {
	se := NewStepExecution(NewID(), nil, "load-variants")
	se.ExecutionContext.Put("reader.line.count", 10)
	se.ReadCount = 10
	se.Status = BatchStatusFailed

	restarted := se.CopyForRestart("new-execution")
	assert.NotEqual(t, se.ID, restarted.ID)
	assert.Equal(t, "new-execution", restarted.JobExecutionID)
	assert.Equal(t, BatchStatusStarting, restarted.Status)
	assert.Equal(t, 0, restarted.ReadCount)
	n, _ := restarted.ExecutionContext.GetInt("reader.line.count")
	assert.Equal(t, 10, n)

	restarted.ExecutionContext.Put("reader.line.count", 20)
	n, _ = se.ExecutionContext.GetInt("reader.line.count")
	assert.Equal(t, 10, n)
}

func TestFailureReport(t *testing.T) {
	je := NewJobExecution("instance", "genotyped-vcf", NewJobParameters())
	je.MarkAsStarted()
	ok := NewStepExecution(NewID(), je, "prepare-database")
	ok.MarkAsStarted()
	ok.MarkAsCompleted()

	failed := NewStepExecution(NewID(), je, "load-variants")
	failed.MarkAsStarted()
	failed.ExecutionContext.Put("reader.line.count", 5)
	failed.SkipReadCount = 3
	failed.SkipRecords = []SkipRecord{{Phase: SkipPhaseRead, Message: "bad line 7"}}
	failed.MarkAsFailed(errors.New("skip limit exceeded"))
	je.MarkAsFailed(errors.New("step failed"))

	report, found := je.FailureReport()
	require.True(t, found)
	assert.Equal(t, "load-variants", report.StepName)
	assert.Equal(t, 3, report.SkipCount)
	assert.Equal(t, "bad line 7", report.LastSkipCause)
	assert.Contains(t, report.String(), "reader.line.count=5")

	je2 := NewJobExecution("instance", "genotyped-vcf", NewJobParameters())
	je2.MarkAsStarted()
	je2.MarkAsCompleted()
	_, found = je2.FailureReport()
	assert.False(t, found)
}

package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	logger "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := logger.Zap()
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(previous) })
	return logs
}

func TestLoggingSkipListener_WarnsWithPosition(t *testing.T) {
	logs := observe(t)
	je := model.NewJobExecution("instance", "annotate-variants", model.NewJobParameters())
	se := model.NewStepExecution(model.NewID(), je, "genes-load")

	NewLoggingSkipListener().OnSkip(context.Background(), se, model.SkipRecord{
		Phase:          model.SkipPhaseRead,
		Position:       42,
		Classification: "FlatFileParseException",
		Message:        "bad GTF line",
	})

	entries := logs.FilterLevelExact(zapcore.WarnLevel).All()
	assert.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "Position: 42")
	assert.Contains(t, entries[0].Message, "bad GTF line")
}

func TestLoggingJobListener_LogsFailureReport(t *testing.T) {
	logs := observe(t)
	je := model.NewJobExecution("instance", "genotyped-vcf", model.NewJobParameters())
	se := model.NewStepExecution(model.NewID(), je, "load-variants")
	se.MarkAsStarted()
	se.MarkAsFailed(errors.New("skip limit exceeded"))
	je.MarkAsStarted()
	je.MarkAsFailed(errors.New("step failed"))

	NewLoggingJobListener().AfterJob(context.Background(), je)

	errorsLogged := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	assert.Len(t, errorsLogged, 1)
	assert.Contains(t, errorsLogged[0].Message, "load-variants")
}

func TestSummary(t *testing.T) {
	se := model.NewStepExecution(model.NewID(), nil, "load-variants")
	se.ReadCount, se.WriteCount, se.SkipReadCount = 12, 10, 2
	summary := Summary(se)
	assert.Contains(t, summary, "Read: 12")
	assert.Contains(t, summary, "Skipped: 2 (read 2, process 0)")
}

// Package logging provides listeners that log job, step, chunk and skip events.
package logging

import (
	"context"
	"fmt"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	logger "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, Params: %s", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters.String())
}

// AfterJob logs the outcome; a failed job also logs its failure report.
func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s", jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus)
	if report, failed := jobExecution.FailureReport(); failed {
		logger.Errorf("Job '%s' did not complete: %s", jobExecution.JobName, report.String())
	}
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", stepExecution.StepName, stepExecution.ID)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: AfterStep - %s", Summary(stepExecution))
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// Summary renders the counts of a step execution on one line.
func Summary(se *model.StepExecution) string {
	return fmt.Sprintf("StepName: %s, Status: %s, ExitStatus: %s, Read: %d, Written: %d, Filtered: %d, Skipped: %d (read %d, process %d), Commits: %d",
		se.StepName, se.Status, se.ExitStatus, se.ReadCount, se.WriteCount, se.FilterCount,
		se.SkipCount(), se.SkipReadCount, se.SkipProcessCount, se.CommitCount)
}

// --- Chunk Listener ---

type LoggingChunkListener struct{}

func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("ChunkListener: BeforeChunk - StepName: %s", stepExecution.StepName)
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("ChunkListener: AfterChunk - StepName: %s, Read: %d, Write: %d, Commits: %d", stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.CommitCount)
}

var _ port.ChunkListener = (*LoggingChunkListener)(nil)

// --- Skip Listener ---

type LoggingSkipListener struct{}

func NewLoggingSkipListener() *LoggingSkipListener {
	return &LoggingSkipListener{}
}

func (l *LoggingSkipListener) OnSkip(ctx context.Context, stepExecution *model.StepExecution, record model.SkipRecord) {
	logger.Warnf("SkipListener: OnSkip - StepName: %s, Phase: %s, Position: %d, Classification: %s, Error: %s",
		stepExecution.StepName, record.Phase, record.Position, record.Classification, record.Message)
}

var _ port.SkipListener = (*LoggingSkipListener)(nil)

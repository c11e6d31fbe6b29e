package item

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"

	port "github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	model "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	repository "github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/repository"
	exception "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	logger "github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// Keys under which the step counters are checkpointed next to the reader position.
const (
	readCountKey        = "chunk.read.count"
	writeCountKey       = "chunk.write.count"
	filterCountKey      = "chunk.filter.count"
	commitCountKey      = "chunk.commit.count"
	skipReadCountKey    = "chunk.skip.read.count"
	skipProcessCountKey = "chunk.skip.process.count"
)

// ChunkStep reads, processes and writes items in chunks. After every written chunk the
// reader position is saved as a checkpoint, so a restarted step resumes after the last
// committed chunk. Malformed items are skipped up to the skip limit.
type ChunkStep[I, O any] struct {
	name          string
	reader        port.ItemReader[I]
	processor     port.ItemProcessor[I, O]
	writer        port.ItemWriter[O]
	jobRepository repository.JobRepository
	stepSettings
}

var _ port.Step = (*ChunkStep[any, any])(nil)

// NewChunkStep creates a ChunkStep. Use PassThroughItemProcessor when no transformation is needed.
func NewChunkStep[I, O any](
	name string,
	reader port.ItemReader[I],
	processor port.ItemProcessor[I, O],
	writer port.ItemWriter[O],
	jobRepository repository.JobRepository,
	opts ...Option,
) *ChunkStep[I, O] {
	s := &ChunkStep[I, O]{
		name:          name,
		reader:        reader,
		processor:     processor,
		writer:        writer,
		jobRepository: jobRepository,
		stepSettings:  defaultSettings(),
	}
	for _, opt := range opts {
		opt(&s.stepSettings)
	}
	return s
}

// StepName returns the step name.
func (s *ChunkStep[I, O]) StepName() string {
	return s.name
}

// Execute runs the step until the reader is exhausted, an error fails the step, or ctx is
// cancelled. Cancellation is only observed between chunks; reads and writes of the chunk in
// progress run to completion.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (err error) {
	logger.Infof("ChunkStep '%s' executing.", s.name)

	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	ctx = port.GetContextWithStepExecution(ctx, stepExecution)
	// Chunk I/O is never interrupted; ctx itself is only checked at chunk boundaries.
	ioCtx := context.WithoutCancel(ctx)

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}
	if err := s.jobRepository.UpdateStepExecution(ioCtx, stepExecution); err != nil {
		stepExecution.MarkAsFailed(err)
		return exception.NewBatchError(s.name, "Failed to update StepExecution status to STARTED", err, false, false)
	}

	defer func() {
		for _, l := range s.stepExecutionListeners {
			l.AfterStep(ioCtx, stepExecution)
		}
		s.metricRecorder.RecordStepEnd(ioCtx, stepExecution)
		if updateErr := s.jobRepository.UpdateStepExecution(ioCtx, stepExecution); updateErr != nil {
			logger.Errorf("ChunkStep '%s': Failed to persist final StepExecution state: %v", s.name, updateErr)
			if err == nil {
				err = exception.NewBatchError(s.name, "Failed to persist final StepExecution state", updateErr, false, false)
			}
		}
	}()

	checkpointEC, err := s.loadCheckpoint(ioCtx, stepExecution)
	if err != nil {
		stepExecution.MarkAsFailed(err)
		return err
	}
	restoreCounts(stepExecution, checkpointEC)

	if err := s.reader.Open(ioCtx, checkpointEC); err != nil {
		batchErr := exception.NewBatchError(s.name, "Failed to open ItemReader", err, false, false)
		stepExecution.MarkAsFailed(batchErr)
		s.tracer.RecordError(ctx, s.name, batchErr)
		return batchErr
	}
	if err := s.writer.Open(ioCtx, checkpointEC); err != nil {
		batchErr := exception.NewBatchError(s.name, "Failed to open ItemWriter", err, false, false)
		if closeErr := s.reader.Close(ioCtx); closeErr != nil {
			logger.Warnf("ChunkStep '%s': Failed to close ItemReader: %v", s.name, closeErr)
		}
		stepExecution.MarkAsFailed(batchErr)
		s.tracer.RecordError(ctx, s.name, batchErr)
		return batchErr
	}

	runErr := s.processChunks(ctx, ioCtx, stepExecution)

	var closeErr *multierror.Error
	if cerr := s.reader.Close(ioCtx); cerr != nil {
		closeErr = multierror.Append(closeErr, exception.NewBatchError(s.name, "Failed to close ItemReader", cerr, false, false))
	}
	if cerr := s.writer.Close(ioCtx); cerr != nil {
		closeErr = multierror.Append(closeErr, exception.NewBatchError(s.name, "Failed to close ItemWriter", cerr, false, false))
	}

	switch {
	case errors.Is(runErr, ErrStepStopped):
		logger.Infof("ChunkStep '%s' stopped after %d committed chunks.", s.name, stepExecution.CommitCount)
		stepExecution.MarkAsStopped()
		return runErr
	case runErr != nil:
		if closeErr != nil {
			logger.Warnf("ChunkStep '%s': %v", s.name, closeErr)
		}
		s.tracer.RecordError(ctx, s.name, runErr)
		stepExecution.MarkAsFailed(runErr)
		logger.Errorf("ChunkStep '%s' failed: %v", s.name, runErr)
		return runErr
	case closeErr != nil:
		stepExecution.MarkAsFailed(closeErr.ErrorOrNil())
		return closeErr.ErrorOrNil()
	}

	stepExecution.MarkAsCompleted()
	logger.Infof("ChunkStep '%s' completed. read=%d written=%d filtered=%d skipped=%d commits=%d",
		s.name, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.FilterCount,
		stepExecution.SkipCount(), stepExecution.CommitCount)
	return nil
}

func (s *ChunkStep[I, O]) processChunks(ctx, ioCtx context.Context, stepExecution *model.StepExecution) error {
	for chunkNumber := 1; ; chunkNumber++ {
		if ctx.Err() != nil {
			return ErrStepStopped
		}
		eof, err := s.processChunk(ioCtx, stepExecution, chunkNumber)
		if err != nil {
			return err
		}
		if eof {
			return nil
		}
	}
}

// processChunk reads until the completion policy asks for a flush or the reader is exhausted,
// then writes the chunk and commits the checkpoint. It reports whether the reader is exhausted.
func (s *ChunkStep[I, O]) processChunk(ctx context.Context, stepExecution *model.StepExecution, chunkNumber int) (bool, error) {
	ctx, endSpan := s.tracer.StartChunkSpan(ctx, stepExecution, chunkNumber)
	defer endSpan()

	for _, l := range s.chunkListeners {
		l.BeforeChunk(ctx, stepExecution)
	}

	var chunk []O
	readInChunk := 0
	skippedInChunk := 0
	eof := false

	for {
		item, err := s.reader.Read(ctx)
		if err != nil {
			if errors.Is(err, port.ErrNoMoreItems) || errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if skipErr := s.skip(ctx, stepExecution, model.SkipPhaseRead, nil, err); skipErr != nil {
				return false, skipErr
			}
			skippedInChunk++
			continue
		}
		stepExecution.ReadCount++
		readInChunk++
		s.metricRecorder.RecordItemRead(ctx, s.name)

		out, err := s.processor.Process(ctx, item)
		if err != nil {
			if skipErr := s.skip(ctx, stepExecution, model.SkipPhaseProcess, item, err); skipErr != nil {
				return false, skipErr
			}
			skippedInChunk++
			continue
		}

		if port.IsFiltered(out) {
			stepExecution.FilterCount++
			s.metricRecorder.RecordItemFilter(ctx, s.name)
		} else {
			chunk = append(chunk, out)
		}

		if s.completionPolicy.ShouldFlush(len(chunk), readInChunk) {
			break
		}
	}

	if len(chunk) > 0 {
		start := time.Now()
		if err := s.writer.Write(ctx, chunk); err != nil {
			stepExecution.RollbackCount++
			return false, exception.NewBatchError(s.name, fmt.Sprintf("Failed to write chunk %d of %d items", chunkNumber, len(chunk)), err, false, false)
		}
		stepExecution.WriteCount += len(chunk)
		s.metricRecorder.RecordItemWrite(ctx, s.name, len(chunk))
		s.metricRecorder.RecordDuration(ctx, "chunk_write", time.Since(start), map[string]string{"step_name": s.name})
	}

	if readInChunk > 0 || skippedInChunk > 0 {
		stepExecution.CommitCount++
		if err := s.saveCheckpoint(ctx, stepExecution); err != nil {
			return false, err
		}
		s.metricRecorder.RecordChunkCommit(ctx, s.name, len(chunk))
		logger.Debugf("ChunkStep '%s': chunk %d committed (%d written, %d read).", s.name, chunkNumber, len(chunk), readInChunk)
	}

	for _, l := range s.chunkListeners {
		l.AfterChunk(ctx, stepExecution)
	}
	return eof, nil
}

// skip records a skippable error. It returns the error that fails the step when cause is not
// skippable or when the skip limit is exceeded.
func (s *ChunkStep[I, O]) skip(ctx context.Context, stepExecution *model.StepExecution, phase model.SkipPhase, item any, cause error) error {
	if !s.skipPolicy.IsSkippable(cause) {
		return exception.NewBatchError(s.name, fmt.Sprintf("Item %s failed", phaseVerb(phase)), cause, false, false)
	}

	if phase == model.SkipPhaseRead {
		stepExecution.SkipReadCount++
	} else {
		stepExecution.SkipProcessCount++
	}

	classification := exception.Classify(cause)
	record := model.SkipRecord{
		Item:           item,
		Phase:          phase,
		Classification: classification,
		Position:       stepExecution.ReadCount + stepExecution.SkipReadCount,
		Message:        cause.Error(),
		Err:            cause,
		Timestamp:      time.Now(),
	}
	stepExecution.SkipRecords = append(stepExecution.SkipRecords, record)

	count := stepExecution.SkipCount()
	limit := s.skipPolicy.GetSkipLimit()
	logger.Warnf("ChunkStep '%s': Item %s skipped (Skip Count: %d/%d): %v", s.name, phaseVerb(phase), count, limit, cause)
	s.metricRecorder.RecordItemSkip(ctx, s.name, phase, classification)
	s.tracer.RecordError(ctx, s.name, cause)
	for _, l := range s.skipListeners {
		l.OnSkip(ctx, stepExecution, record)
	}

	if count > limit {
		return &SkipLimitExceededError{Limit: limit, Count: count, Cause: cause}
	}
	return nil
}

func phaseVerb(phase model.SkipPhase) string {
	if phase == model.SkipPhaseRead {
		return "read"
	}
	return "process"
}

// loadCheckpoint returns the checkpoint of this execution if one was saved, otherwise the
// ExecutionContext carried over from a previous attempt.
func (s *ChunkStep[I, O]) loadCheckpoint(ctx context.Context, stepExecution *model.StepExecution) (model.ExecutionContext, error) {
	data, err := s.jobRepository.FindCheckpointData(ctx, stepExecution.ID)
	if err != nil && !errors.Is(err, repository.ErrCheckpointDataNotFound) {
		return nil, exception.NewBatchError(s.name, "Failed to load checkpoint data", err, false, false)
	}
	if data != nil {
		logger.Infof("Checkpoint data loaded for step '%s'. Restoring state.", s.name)
		return data.ExecutionContext.Copy(), nil
	}
	if len(stepExecution.ExecutionContext) > 0 {
		logger.Infof("ChunkStep '%s': resuming from the checkpoint of a previous execution.", s.name)
		return stepExecution.ExecutionContext.Copy(), nil
	}
	return model.NewExecutionContext(), nil
}

func (s *ChunkStep[I, O]) saveCheckpoint(ctx context.Context, stepExecution *model.StepExecution) error {
	readerEC, err := s.reader.GetExecutionContext(ctx)
	if err != nil {
		return exception.NewBatchError(s.name, "Failed to get ItemReader position", err, false, false)
	}

	ec := model.NewExecutionContext()
	ec.Merge(readerEC)
	ec.Put(readCountKey, stepExecution.ReadCount)
	ec.Put(writeCountKey, stepExecution.WriteCount)
	ec.Put(filterCountKey, stepExecution.FilterCount)
	ec.Put(commitCountKey, stepExecution.CommitCount)
	ec.Put(skipReadCountKey, stepExecution.SkipReadCount)
	ec.Put(skipProcessCountKey, stepExecution.SkipProcessCount)
	stepExecution.ExecutionContext = ec

	data := &model.CheckpointData{
		StepExecutionID:  stepExecution.ID,
		ExecutionContext: ec.Copy(),
		LastUpdated:      time.Now(),
	}
	if err := s.jobRepository.SaveCheckpointData(ctx, data); err != nil {
		return exception.NewBatchError(s.name, "Failed to save checkpoint", err, false, false)
	}
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(s.name, "Failed to update StepExecution after commit", err, false, false)
	}
	return nil
}

// restoreCounts continues the counts of the attempt that saved ec. Counts are deliveries, not
// distinct records: when the reader position lags behind the committed items, as with an
// UnwindingItemReader checkpointed inside a group, replayed items are counted again.
func restoreCounts(se *model.StepExecution, ec model.ExecutionContext) {
	restore := func(key string, target *int) {
		if v, ok := ec.GetInt(key); ok {
			*target = v
		}
	}
	restore(readCountKey, &se.ReadCount)
	restore(writeCountKey, &se.WriteCount)
	restore(filterCountKey, &se.FilterCount)
	restore(commitCountKey, &se.CommitCount)
	restore(skipReadCountKey, &se.SkipReadCount)
	restore(skipProcessCountKey, &se.SkipProcessCount)
}

// CommittedChunks returns how many chunks a previous attempt committed according to the
// checkpoint ec handed to ItemReader.Open and ItemWriter.Open. Zero means a fresh start.
func CommittedChunks(ec model.ExecutionContext) int {
	n, _ := ec.GetInt(commitCountKey)
	return n
}

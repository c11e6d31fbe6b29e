package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/engine/step/item"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// LineAggregator renders an item as one output line, without the trailing newline.
type LineAggregator[T any] func(item T) (string, error)

// FlatFileWriter writes one line per item to a local file. A fresh step truncates the file;
// a restarted step appends to it, so lines of a chunk written just before a crash may appear
// twice.
type FlatFileWriter[T any] struct {
	name       string
	path       string
	aggregator LineAggregator[T]
	file       *os.File
	lines      int
}

var _ port.ItemWriter[any] = (*FlatFileWriter[any])(nil)

// NewFlatFileWriter creates a FlatFileWriter for path.
func NewFlatFileWriter[T any](name, path string, aggregator LineAggregator[T]) (*FlatFileWriter[T], error) {
	if path == "" {
		return nil, exception.NewBatchErrorf("writer", "FlatFileWriter '%s' requires an output path", name)
	}
	if aggregator == nil {
		return nil, exception.NewBatchErrorf("writer", "FlatFileWriter '%s' requires a line aggregator", name)
	}
	return &FlatFileWriter[T]{name: name, path: path, aggregator: aggregator}, nil
}

// Open creates the output file, or reopens it for appending when ec is the checkpoint of an
// interrupted run.
func (w *FlatFileWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("FlatFileWriter '%s': Failed to create output directory", w.name), err, false, false)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if item.CommittedChunks(ec) > 0 {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		logger.Infof("FlatFileWriter '%s': Restarted step, appending to %s.", w.name, w.path)
	}
	file, err := os.OpenFile(w.path, flags, 0o644)
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("FlatFileWriter '%s': Failed to open %s", w.name, w.path), err, false, false)
	}
	w.file = file
	w.lines = 0
	return nil
}

// Write appends the chunk and syncs the file before returning.
func (w *FlatFileWriter[T]) Write(ctx context.Context, items []T) error {
	if w.file == nil {
		return exception.NewBatchErrorf("writer", "FlatFileWriter '%s': Writer not opened", w.name)
	}
	var buf bytes.Buffer
	for _, it := range items {
		line, err := w.aggregator(it)
		if err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("FlatFileWriter '%s': Failed to format item", w.name), err, false, false)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if _, err := w.file.Write(buf.Bytes()); err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("FlatFileWriter '%s': Failed to write to %s", w.name, w.path), err, false, false)
	}
	if err := w.file.Sync(); err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("FlatFileWriter '%s': Failed to sync %s", w.name, w.path), err, false, false)
	}
	w.lines += len(items)
	return nil
}

// Close closes the file.
func (w *FlatFileWriter[T]) Close(ctx context.Context) error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("FlatFileWriter '%s': Failed to close %s", w.name, w.path), err, false, false)
	}
	logger.Infof("FlatFileWriter '%s': Wrote %d lines to %s.", w.name, w.lines, w.path)
	return nil
}

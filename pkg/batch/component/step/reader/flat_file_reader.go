// Package reader provides the item readers used by the loader steps.
package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

const maxLineSize = 16 * 1024 * 1024

// Opener opens the raw byte stream of a flat file.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// FileOpener opens a local file.
func FileOpener(path string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// URIOpener opens a local path or a gs:// URI through the storage provider.
func URIOpener(provider *storage.StorageProvider, uri string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		return provider.OpenURI(ctx, uri)
	}
}

// LineMapper maps one data line to an item. lineNumber is 1-based.
type LineMapper[T any] func(line string, lineNumber int) (T, error)

// FlatFileReader reads a line-oriented file, gzip-compressed or not, mapping every data line
// to an item. Its position is the number of lines consumed, so a restart skips exactly the
// lines already read. Mapping errors are reported as exception.ParseError.
type FlatFileReader[T any] struct {
	name          string
	open          Opener
	mapper        LineMapper[T]
	commentPrefix string
	headerHandler func(line string) error

	source     io.ReadCloser
	decompress io.Closer
	scanner    *bufio.Scanner
	lineCount  int
}

// FlatFileReaderOption configures a FlatFileReader.
type FlatFileReaderOption[T any] func(*FlatFileReader[T])

// WithCommentPrefix makes lines starting with prefix bypass the mapper.
func WithCommentPrefix[T any](prefix string) FlatFileReaderOption[T] {
	return func(r *FlatFileReader[T]) {
		r.commentPrefix = prefix
	}
}

// WithHeaderHandler receives every comment line, including the ones skipped on restart.
func WithHeaderHandler[T any](handler func(line string) error) FlatFileReaderOption[T] {
	return func(r *FlatFileReader[T]) {
		r.headerHandler = handler
	}
}

var _ port.ItemReader[any] = (*FlatFileReader[any])(nil)

// NewFlatFileReader creates a FlatFileReader. Blank lines are ignored.
func NewFlatFileReader[T any](name string, open Opener, mapper LineMapper[T], opts ...FlatFileReaderOption[T]) *FlatFileReader[T] {
	r := &FlatFileReader[T]{
		name:   name,
		open:   open,
		mapper: mapper,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *FlatFileReader[T]) lineCountKey() string { return r.name + ".line.count" }

// Open opens the file and skips the lines consumed before the checkpoint in ec.
func (r *FlatFileReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	source, err := r.open(ctx)
	if err != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("FlatFileReader '%s': Failed to open input", r.name), err, false, false)
	}
	r.source = source
	r.lineCount = 0

	buffered := bufio.NewReader(source)
	var stream io.Reader = buffered
	if magic, err := buffered.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			r.closeQuietly()
			return exception.NewBatchError("reader", fmt.Sprintf("FlatFileReader '%s': Failed to open gzip stream", r.name), err, false, false)
		}
		r.decompress = gz
		stream = gz
	}
	r.scanner = bufio.NewScanner(stream)
	r.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	resumeAt, _ := ec.GetInt(r.lineCountKey())
	for r.lineCount < resumeAt {
		line, ok, err := r.nextLine()
		if err != nil {
			r.closeQuietly()
			return err
		}
		if !ok {
			r.closeQuietly()
			return exception.NewBatchErrorf("reader", "FlatFileReader '%s': input ended at line %d before the checkpoint at line %d", r.name, r.lineCount, resumeAt)
		}
		if r.isComment(line) {
			if err := r.handleHeader(line); err != nil {
				r.closeQuietly()
				return err
			}
		}
	}
	if resumeAt > 0 {
		logger.Infof("FlatFileReader '%s': Resumed after line %d.", r.name, resumeAt)
	}
	return nil
}

func (r *FlatFileReader[T]) nextLine() (string, bool, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", false, exception.NewBatchError("reader", fmt.Sprintf("FlatFileReader '%s': Failed to read line %d", r.name, r.lineCount+1), err, false, false)
		}
		return "", false, nil
	}
	r.lineCount++
	return strings.TrimRight(r.scanner.Text(), "\r"), true, nil
}

func (r *FlatFileReader[T]) isComment(line string) bool {
	return r.commentPrefix != "" && strings.HasPrefix(line, r.commentPrefix)
}

func (r *FlatFileReader[T]) handleHeader(line string) error {
	if r.headerHandler == nil {
		return nil
	}
	if err := r.headerHandler(line); err != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("FlatFileReader '%s': Invalid header at line %d", r.name, r.lineCount), err, false, false)
	}
	return nil
}

// Read maps the next data line. A mapping failure consumes the line.
func (r *FlatFileReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.scanner == nil {
		return zero, exception.NewBatchErrorf("reader", "FlatFileReader '%s': Reader not opened", r.name)
	}
	for {
		line, ok, err := r.nextLine()
		if err != nil {
			return zero, err
		}
		if !ok {
			return zero, port.ErrNoMoreItems
		}
		if r.isComment(line) {
			if err := r.handleHeader(line); err != nil {
				return zero, err
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		item, err := r.mapper(line, r.lineCount)
		if err != nil {
			return zero, exception.NewParseError(line, r.lineCount, err)
		}
		return item, nil
	}
}

// Close closes the decompressor and the underlying stream.
func (r *FlatFileReader[T]) Close(ctx context.Context) error {
	var closeErr error
	if r.decompress != nil {
		closeErr = r.decompress.Close()
		r.decompress = nil
	}
	if r.source != nil {
		if err := r.source.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
		r.source = nil
	}
	r.scanner = nil
	if closeErr != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("FlatFileReader '%s': Failed to close input", r.name), closeErr, false, false)
	}
	return nil
}

func (r *FlatFileReader[T]) closeQuietly() {
	if err := r.Close(context.Background()); err != nil {
		logger.Warnf("%v", err)
	}
}

// GetExecutionContext returns the number of lines consumed.
func (r *FlatFileReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	ec.Put(r.lineCountKey(), r.lineCount)
	return ec, nil
}

package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// ParquetWriterConfig holds the properties of a ParquetWriter.
type ParquetWriterConfig struct {
	// StorageRef is the name of the storage connection files are uploaded to.
	StorageRef string `mapstructure:"storageRef"`
	// Bucket overrides the connection's default bucket.
	Bucket string `mapstructure:"bucket"`
	// OutputBaseDir is the object prefix of the export.
	OutputBaseDir string `mapstructure:"outputBaseDir"`
	// FileName is the object name inside each partition directory.
	FileName string `mapstructure:"fileName"`
	// CompressionType is SNAPPY (default), GZIP or NONE.
	CompressionType string `mapstructure:"compressionType"`
}

type partitionFile struct {
	buf  *bytes.Buffer
	pw   *writer.ParquetWriter
	rows int64
}

// ParquetWriter encodes items as Parquet rows, one file per partition key, and uploads the
// files when the step closes the writer. T must carry parquet struct tags.
// Files are always written from scratch: a restarted export regenerates and overwrites them.
type ParquetWriter[T any] struct {
	name             string
	config           ParquetWriterConfig
	storageProvider  *storage.StorageProvider
	itemPrototype    *T
	partitionKeyFunc func(T) (string, error)
	compressionCodec parquet.CompressionCodec

	storageConn storage.StorageConnection
	partitions  map[string]*partitionFile
	totalRows   int64
}

var _ port.ItemWriter[any] = (*ParquetWriter[any])(nil)

// NewParquetWriter creates a ParquetWriter from properties (see ParquetWriterConfig).
// partitionKeyFunc may be nil, in which case every item goes to a single file.
func NewParquetWriter[T any](
	name string,
	properties map[string]interface{},
	storageProvider *storage.StorageProvider,
	itemPrototype *T, // A pointer to a zero-value instance of the item type for schema reflection.
	partitionKeyFunc func(T) (string, error),
) (*ParquetWriter[T], error) {
	var config ParquetWriterConfig
	if err := mapstructure.Decode(properties, &config); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("Failed to decode ParquetWriter properties for %s", name), err, false, false)
	}
	if config.StorageRef == "" {
		return nil, exception.NewBatchErrorf("writer", "ParquetWriter '%s' requires 'storageRef' property.", name)
	}
	if config.OutputBaseDir == "" {
		return nil, exception.NewBatchErrorf("writer", "ParquetWriter '%s' requires 'outputBaseDir' property.", name)
	}
	if config.FileName == "" {
		config.FileName = "data.parquet"
	}
	if config.CompressionType == "" {
		config.CompressionType = "SNAPPY"
	}
	codec, err := getCompressionCodec(config.CompressionType)
	if err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("Invalid compression type for ParquetWriter '%s'", name), err, false, false)
	}
	if partitionKeyFunc == nil {
		partitionKeyFunc = func(T) (string, error) { return "", nil }
	}

	return &ParquetWriter[T]{
		name:             name,
		config:           config,
		storageProvider:  storageProvider,
		itemPrototype:    itemPrototype,
		partitionKeyFunc: partitionKeyFunc,
		compressionCodec: codec,
		partitions:       make(map[string]*partitionFile),
	}, nil
}

// Open resolves the storage connection and discards anything buffered by an earlier run.
func (w *ParquetWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	conn, err := w.storageProvider.GetConnection(ctx, w.config.StorageRef)
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("Failed to resolve storage connection '%s' for ParquetWriter '%s'", w.config.StorageRef, w.name), err, false, false)
	}
	w.storageConn = conn
	w.partitions = make(map[string]*partitionFile)
	w.totalRows = 0

	logger.Infof("ParquetWriter '%s' opened successfully. Target storage: %s, Base directory: %s", w.name, w.config.StorageRef, w.config.OutputBaseDir)
	return nil
}

// Write encodes the chunk into the in-memory file of each item's partition.
func (w *ParquetWriter[T]) Write(ctx context.Context, items []T) error {
	for _, item := range items {
		partitionKey, err := w.partitionKeyFunc(item)
		if err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("Failed to get partition key for item in ParquetWriter '%s'", w.name), err, false, false)
		}
		pf, err := w.partition(partitionKey)
		if err != nil {
			return err
		}
		if err := pf.pw.Write(item); err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("Failed to write item to Parquet for partition '%s' in ParquetWriter '%s'", partitionKey, w.name), err, false, false)
		}
		pf.rows++
		w.totalRows++
	}
	logger.Debugf("ParquetWriter '%s' encoded %d items. Total rows: %d.", w.name, len(items), w.totalRows)
	return nil
}

func (w *ParquetWriter[T]) partition(key string) (*partitionFile, error) {
	if pf, ok := w.partitions[key]; ok {
		return pf, nil
	}
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, w.itemPrototype, 1)
	if err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("Failed to create Parquet writer for partition '%s' in ParquetWriter '%s'", key, w.name), err, false, false)
	}
	pw.CompressionType = w.compressionCodec
	pf := &partitionFile{buf: buf, pw: pw}
	w.partitions[key] = pf
	return pf, nil
}

// Close finalizes every partition file and uploads it to
// OutputBaseDir/<partition>/FileName. Errors of individual partitions are aggregated.
func (w *ParquetWriter[T]) Close(ctx context.Context) error {
	if w.totalRows == 0 {
		logger.Infof("ParquetWriter '%s': No records written, skipping Parquet file generation.", w.name)
		return nil
	}

	keys := make([]string, 0, len(w.partitions))
	for k := range w.partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var multiErr error
	for _, partitionKey := range keys {
		pf := w.partitions[partitionKey]
		if err := stopWriter(pf.pw); err != nil {
			multiErr = multierror.Append(multiErr, exception.NewBatchError("writer", fmt.Sprintf("Failed to stop Parquet writer for partition '%s' in ParquetWriter '%s'", partitionKey, w.name), err, false, false))
			continue
		}

		objectName := path.Join(w.config.OutputBaseDir, partitionKey, w.config.FileName)
		bucket := w.config.Bucket
		if bucket == "" {
			bucket = w.storageConn.DefaultBucket()
		}
		logger.Debugf("ParquetWriter '%s': Uploading %d bytes to %s/%s", w.name, pf.buf.Len(), w.config.StorageRef, objectName)
		if err := w.storageConn.Upload(ctx, bucket, objectName, pf.buf, "application/octet-stream"); err != nil {
			multiErr = multierror.Append(multiErr, exception.NewBatchError("writer", fmt.Sprintf("Failed to upload Parquet file for partition '%s' to '%s' in ParquetWriter '%s'", partitionKey, objectName, w.name), err, false, false))
			continue
		}
		logger.Infof("ParquetWriter '%s': Uploaded %d rows for partition '%s' to %s", w.name, pf.rows, partitionKey, objectName)
	}

	w.partitions = make(map[string]*partitionFile)
	w.totalRows = 0
	return multiErr
}

// stopWriter flushes the footer. parquet-go panics on some schema errors, which are
// reported as errors instead.
func stopWriter(pw *writer.ParquetWriter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	return pw.WriteStop()
}

func getCompressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

// Package storage defines the object storage abstraction used for input files and exports.
// Backends (local file system, GCS) register a ConnectionFactory from their subpackages.
package storage

import (
	"context"
	"io"
)

// StorageExecutor defines generic storage operations.
type StorageExecutor interface {
	// Upload uploads data to the specified bucket and object name.
	// 'data' is the stream of data to upload. 'contentType' is the MIME type of the data.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download downloads data from the specified bucket and object name.
	// It returns a ReadCloser which must be closed by the caller after use.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object name under prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject deletes the specified object from the bucket.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is a named, configured storage backend.
type StorageConnection interface {
	StorageExecutor
	// Close releases the client.
	Close() error
	// Type returns the backend type, e.g. "local" or "gcs".
	Type() string
	// Name returns the connection name from configuration.
	Name() string
	// DefaultBucket returns the configured bucket used when none is given.
	DefaultBucket() string
}

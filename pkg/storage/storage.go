// Package storage defines interfaces for record delivery to storage.
//
// This package provides abstractions for writing batched records to
// storage backends (S3, GCS, Azure Blob, local filesystem).
package storage

import (
	"context"

	"github.com/cninja1/streamalert/pkg/stream"
)

// Writer delivers record batches to storage.
type Writer interface {
	// Write writes records to storage at the specified path.
	// Returns the number of bytes written.
	Write(ctx context.Context, records []stream.Record, path string, format stream.StorageFormat) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage paths for delivered batches.
type Router interface {
	// Route returns the storage path for a log at a given time.
	// timestamp: Unix timestamp (seconds) representing the batch event time.
	Route(logName string, format stream.StorageFormat, timestamp int64) string
}

// RotationPolicy determines when to flush buffered records to storage.
type RotationPolicy interface {
	// ShouldRotate returns true if the buffer should be flushed based on stats.
	ShouldRotate(stats stream.FileStats) bool
}

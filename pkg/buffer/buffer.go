// Package buffer defines interfaces for record buffering operations.
//
// Buffers batch records per delivery stream before writing to storage,
// mirroring Firehose buffering hints (size and interval).
package buffer

import (
	"github.com/cninja1/streamalert/pkg/stream"
)

// Buffer manages buffering of records before delivery.
// All implementations must be thread-safe.
type Buffer interface {
	// Add adds a record to the buffer.
	// Returns an error if the buffer is full or capacity would be exceeded.
	Add(record stream.Record) error

	// Drain removes and returns all records from the buffer.
	// The buffer is reset after draining.
	Drain() []stream.Record

	// Stats returns current buffer statistics without modifying the buffer.
	Stats() stream.FileStats

	// IsEmpty returns true if the buffer contains no records.
	IsEmpty() bool

	// Reset clears the buffer and resets all statistics.
	Reset()
}

// Manager creates and manages buffers for delivery streams.
type Manager interface {
	// GetOrCreate returns a buffer for the given stream,
	// creating one if it doesn't exist.
	GetOrCreate(id stream.StreamID) Buffer
}

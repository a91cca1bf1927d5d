// Package buffer implements record buffering for batched delivery.
package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/cninja1/streamalert/internal/errors"
	"github.com/cninja1/streamalert/pkg/buffer"
	"github.com/cninja1/streamalert/pkg/stream"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Buffer = (*StreamBuffer)(nil)

// StreamBuffer buffers records for a single delivery stream partition.
// It provides thread-safe buffering with size limits and record count limits.
// The buffer tracks first and last write times for rotation decisions.
type StreamBuffer struct {
	id             stream.StreamID
	records        []stream.Record
	maxSizeBytes   int64
	maxRecords     int
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// New creates a new stream buffer.
func New(id stream.StreamID, maxSizeBytes int64, maxRecords int) *StreamBuffer {
	return &StreamBuffer{
		id:           id,
		records:      make([]stream.Record, 0, maxRecords),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// Add adds a record to the buffer.
func (b *StreamBuffer) Add(record stream.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	recordSize := int64(estimateSize(record))

	if len(b.records) >= b.maxRecords {
		return fmt.Errorf("%w: max records (%d) reached", errors.ErrBufferFull, b.maxRecords)
	}

	if b.maxSizeBytes > 0 && b.currentSize+recordSize > b.maxSizeBytes {
		return fmt.Errorf("%w: max size (%d bytes) would be exceeded", errors.ErrBufferFull, b.maxSizeBytes)
	}

	b.records = append(b.records, record)
	b.currentSize += recordSize

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return nil
}

// Drain removes and returns all records from the buffer.
// The returned slice is owned by the caller and will not be modified by the
// buffer. The caller should process the records promptly as the underlying
// array may be reused after subsequent calls to Add.
func (b *StreamBuffer) Drain() []stream.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := b.records
	b.reset()
	return records
}

// Stats returns current buffer statistics.
func (b *StreamBuffer) Stats() stream.FileStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return stream.FileStats{
		RecordCount:    len(b.records),
		SizeBytes:      b.currentSize,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// IsEmpty returns true if the buffer is empty.
func (b *StreamBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records) == 0
}

// Reset clears the buffer and resets all statistics.
func (b *StreamBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *StreamBuffer) reset() {
	b.records = make([]stream.Record, 0, b.maxRecords)
	b.currentSize = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

// estimateSize estimates the size of a record in bytes.
func estimateSize(record stream.Record) int {
	size := 0

	size += len(record.LogName)
	size += len(record.Data)
	size += len(record.Source.Topic)
	size += len(record.Source.Key)

	for k, v := range record.Source.Headers {
		size += len(k) + len(v)
	}

	return size
}

// Manager manages buffers for multiple delivery stream partitions.
// It provides thread-safe access to stream-specific buffers, creating them
// on-demand. Uses double-checked locking for efficient concurrent access.
type Manager struct {
	buffers      map[stream.StreamID]*StreamBuffer
	maxSizeBytes int64
	maxRecords   int
	mu           sync.RWMutex
}

// NewManager creates a new buffer manager.
func NewManager(maxSizeBytes int64, maxRecords int) *Manager {
	return &Manager{
		buffers:      make(map[stream.StreamID]*StreamBuffer),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// GetOrCreate returns a buffer for the stream, creating if needed.
func (m *Manager) GetOrCreate(id stream.StreamID) buffer.Buffer {
	m.mu.RLock()
	buf, exists := m.buffers[id]
	m.mu.RUnlock()

	if exists {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if buf, exists := m.buffers[id]; exists {
		return buf
	}

	buf = New(id, m.maxSizeBytes, m.maxRecords)
	m.buffers[id] = buf
	return buf
}

// IDs returns the stream IDs that currently have buffers.
func (m *Manager) IDs() []stream.StreamID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]stream.StreamID, 0, len(m.buffers))
	for id := range m.buffers {
		ids = append(ids, id)
	}
	return ids
}

// Package encoder implements file format encoders.
package encoder

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/cninja1/streamalert/pkg/encoder"
	"github.com/cninja1/streamalert/pkg/stream"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*JSONEncoder)(nil)

// JSONEncoder implements encoder.Encoder for newline-delimited JSON.
// Record payloads are written verbatim, one per line, optionally gzip
// compressed. Malformed payloads are delivered as-is: the query-side JSON
// SerDe is configured to ignore them.
type JSONEncoder struct {
	compression string
}

// NewJSONEncoder creates a new JSON encoder with the specified compression.
// Supported compressions: GZIP (default for delivery), UNCOMPRESSED.
func NewJSONEncoder(compression string) *JSONEncoder {
	return &JSONEncoder{
		compression: compression,
	}
}

func (e *JSONEncoder) gzipped() bool {
	switch e.compression {
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return false
	default:
		return true
	}
}

// Encode writes records to a newline-JSON file.
func (e *JSONEncoder) Encode(filePath string, records []stream.Record) (*stream.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	var out io.Writer = file
	var gz *gzip.Writer
	if e.gzipped() {
		gz = gzip.NewWriter(file)
		out = gz
	}

	w := bufio.NewWriter(out)
	for i, record := range records {
		if _, err := w.Write(record.Data); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write record %d: %w", i, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to flush: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	first := records[0].GetEventTime()
	last := records[len(records)-1].GetEventTime()

	return &stream.FileStats{
		RecordCount:    len(records),
		SizeBytes:      fileInfo.Size(),
		FirstWriteTime: first,
		LastWriteTime:  last,
	}, nil
}

// Format returns the file format.
func (e *JSONEncoder) Format() stream.StorageFormat {
	return stream.FormatJSON
}

// FileExtension returns the file extension.
func (e *JSONEncoder) FileExtension() string {
	if e.gzipped() {
		return ".json.gz"
	}
	return ".json"
}

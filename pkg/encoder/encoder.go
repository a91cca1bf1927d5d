// Package encoder defines interfaces for encoding records to delivery file formats.
package encoder

import "github.com/cninja1/streamalert/pkg/stream"

// Encoder encodes records to a specific delivery file format.
type Encoder interface {
	// Encode writes records to a file and returns file statistics.
	Encode(filePath string, records []stream.Record) (*stream.FileStats, error)

	// Format returns the storage format this encoder produces.
	Format() stream.StorageFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".json.gz").
	FileExtension() string
}

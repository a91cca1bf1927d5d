// Package encoder implements file format encoders.
package encoder

import (
	"fmt"
	"os"
	"time"

	"github.com/cninja1/streamalert/pkg/encoder"
	"github.com/cninja1/streamalert/pkg/stream"
	"github.com/parquet-go/parquet-go"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// RecordParquet represents the Parquet schema for delivered log records.
// Uses native Parquet types for Athena compatibility, including
// TIMESTAMP_MICROS for time fields.
type RecordParquet struct {
	LogName string `parquet:"log_name,dict"`
	Data    string `parquet:"data"`

	// Source metadata
	SourceTopic     string    `parquet:"source_topic,dict"`
	SourcePartition int32     `parquet:"source_partition"`
	SourceOffset    int64     `parquet:"source_offset"`
	SourceTimestamp time.Time `parquet:"source_timestamp,timestamp(microsecond)"`

	// Delivery metadata
	ReceivedAt time.Time `parquet:"received_at,timestamp(microsecond)"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// Delivery streams write UNCOMPRESSED parquet (the format-conversion contract);
// other codecs are supported for local use.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts a compression name to a parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	default:
		return parquet.Compression(&parquet.Uncompressed)
	}
}

// Encode writes records to a Parquet file.
// Creates files with Hive-compatible metadata for Athena queries.
func (e *ParquetEncoder) Encode(filePath string, records []stream.Record) (*stream.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	parquetRecords := make([]RecordParquet, len(records))
	for i, record := range records {
		parquetRecords[i] = RecordParquet{
			LogName:         record.LogName,
			Data:            string(record.Data),
			SourceTopic:     record.Source.Topic,
			SourcePartition: record.Source.Partition,
			SourceOffset:    record.Source.Offset,
			SourceTimestamp: record.Source.Timestamp,
			ReceivedAt:      record.ReceivedAt,
		}
	}

	schema := parquet.SchemaOf(new(RecordParquet))

	writer := parquet.NewGenericWriter[RecordParquet](
		file,
		schema,
		compressionCodec(e.compressionName),
		parquet.CreatedBy("streamalert", "1.0", "0"),
	)

	if _, err := writer.Write(parquetRecords); err != nil {
		writer.Close()
		file.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	// Close file before getting stats to ensure all data is flushed
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &stream.FileStats{
		RecordCount:    len(records),
		SizeBytes:      fileInfo.Size(),
		FirstWriteTime: time.Now(),
		LastWriteTime:  time.Now(),
	}, nil
}

// Format returns the file format.
func (e *ParquetEncoder) Format() stream.StorageFormat {
	return stream.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}

package encoder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cninja1/streamalert/pkg/stream"
	"github.com/parquet-go/parquet-go"
)

// TestParquetEncoder_AthenaCompatibility verifies that generated Parquet
// files round-trip with the expected schema and values.
func TestParquetEncoder_AthenaCompatibility(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "athena-test.parquet")

	enc := NewParquetEncoder("UNCOMPRESSED")

	now := time.Now()
	records := []stream.Record{
		{
			LogName: "cloudtrail",
			Data:    []byte(`{"eventName":"PutObject"}`),
			Source: stream.SourceMetadata{
				Topic:     "streamalert.data.cloudtrail",
				Partition: 0,
				Offset:    100,
				Timestamp: now,
			},
			ReceivedAt: now,
		},
		{
			LogName: "cloudtrail",
			Data:    []byte(`{"eventName":"DeleteObject"}`),
			Source: stream.SourceMetadata{
				Topic:     "streamalert.data.cloudtrail",
				Partition: 0,
				Offset:    101,
				Timestamp: now,
			},
			ReceivedAt: now,
		},
	}

	stats, err := enc.Encode(testFile, records)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if stats.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", stats.RecordCount)
	}

	readRecords, err := parquet.ReadFile[RecordParquet](testFile)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if len(readRecords) != 2 {
		t.Fatalf("read %d records, want 2", len(readRecords))
	}

	first := readRecords[0]
	if first.LogName != "cloudtrail" {
		t.Errorf("LogName = %s, want cloudtrail", first.LogName)
	}
	if first.Data != `{"eventName":"PutObject"}` {
		t.Errorf("Data = %s", first.Data)
	}
	if first.SourceOffset != 100 {
		t.Errorf("SourceOffset = %d, want 100", first.SourceOffset)
	}
	if first.SourceTopic != "streamalert.data.cloudtrail" {
		t.Errorf("SourceTopic = %s", first.SourceTopic)
	}
}

func TestParquetEncoder_Compressions(t *testing.T) {
	now := time.Now()
	records := []stream.Record{
		{
			LogName:    "osquery",
			Data:       []byte(`{"name":"pack_osquery_info"}`),
			Source:     stream.SourceMetadata{Topic: "t", Partition: 0, Offset: 1, Timestamp: now},
			ReceivedAt: now,
		},
	}

	for _, compression := range []string{"UNCOMPRESSED", "snappy", "gzip", "zstd"} {
		t.Run(compression, func(t *testing.T) {
			testFile := filepath.Join(t.TempDir(), "batch.parquet")
			enc := NewParquetEncoder(compression)

			if _, err := enc.Encode(testFile, records); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			readRecords, err := parquet.ReadFile[RecordParquet](testFile)
			if err != nil {
				t.Fatalf("failed to read file: %v", err)
			}
			if len(readRecords) != 1 {
				t.Errorf("read %d records, want 1", len(readRecords))
			}
		})
	}
}

func TestParquetEncoder_EmptyRecords(t *testing.T) {
	enc := NewParquetEncoder("UNCOMPRESSED")
	if _, err := enc.Encode(filepath.Join(t.TempDir(), "x.parquet"), nil); err == nil {
		t.Error("expected error for empty record batch")
	}
}

func TestParquetEncoder_FormatAndExtension(t *testing.T) {
	enc := NewParquetEncoder("UNCOMPRESSED")
	if enc.Format() != stream.FormatParquet {
		t.Errorf("Format() = %s, want parquet", enc.Format())
	}
	if enc.FileExtension() != ".parquet" {
		t.Errorf("FileExtension() = %s, want .parquet", enc.FileExtension())
	}
}

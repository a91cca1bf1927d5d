package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cninja1/streamalert/pkg/stream"
)

// mockMetricsCollector implements MetricsCollector for testing
type mockMetricsCollector struct {
	filesWritten       int
	fileSizes          []float64
	storageDurations   []float64
	storageErrors      int
	lastFileStatus     string
	lastLogName        string
	lastPartition      int32
	lastFormat         string
	lastErrorBackend   string
	lastErrorOperation string
}

func (m *mockMetricsCollector) IncFilesWritten(logName string, partition int32, format string, status string) {
	m.filesWritten++
	m.lastLogName = logName
	m.lastPartition = partition
	m.lastFormat = format
	m.lastFileStatus = status
}

func (m *mockMetricsCollector) ObserveFileSize(logName string, partition int32, format string, size float64) {
	m.fileSizes = append(m.fileSizes, size)
}

func (m *mockMetricsCollector) ObserveStorageWriteDuration(logName string, partition int32, duration float64) {
	m.storageDurations = append(m.storageDurations, duration)
}

func (m *mockMetricsCollector) IncStorageErrors(backend string, operation string) {
	m.storageErrors++
	m.lastErrorBackend = backend
	m.lastErrorOperation = operation
}

func testRecords(now time.Time) []stream.Record {
	return []stream.Record{
		{
			LogName: "cloudtrail",
			Data:    []byte(`{"eventName": "PutObject"}`),
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
			Data:    []byte(`{"eventName": "GetObject"}`),
			Source: stream.SourceMetadata{
				Topic:     "streamalert.data.cloudtrail",
				Partition: 0,
				Offset:    101,
				Timestamp: now,
			},
			ReceivedAt: now,
		},
	}
}

func TestNewFileWriter(t *testing.T) {
	tests := []struct {
		name        string
		format      stream.StorageFormat
		compression string
		wantErr     bool
	}{
		{
			name:        "valid json config",
			format:      stream.FormatJSON,
			compression: "GZIP",
			wantErr:     false,
		},
		{
			name:        "valid parquet config",
			format:      stream.FormatParquet,
			compression: "UNCOMPRESSED",
			wantErr:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			basePath := t.TempDir()
			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
			metrics := &mockMetricsCollector{}

			writer, err := NewFileWriter(FileConfig{BasePath: basePath}, tt.format, tt.compression, logger, metrics)

			if (err != nil) != tt.wantErr {
				t.Errorf("NewFileWriter() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if writer == nil {
					t.Fatal("expected non-nil writer")
				}
				if writer.basePath != basePath {
					t.Errorf("basePath = %v, want %v", writer.basePath, basePath)
				}
			}
		})
	}
}

func TestFileWriter_Write(t *testing.T) {
	basePath := t.TempDir()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	metrics := &mockMetricsCollector{}

	writer, err := NewFileWriter(
		FileConfig{BasePath: basePath},
		stream.FormatJSON,
		"GZIP",
		logger,
		metrics,
	)
	if err != nil {
		t.Fatalf("NewFileWriter() failed: %v", err)
	}

	records := testRecords(time.Now())

	tests := []struct {
		name    string
		records []stream.Record
		path    string
		format  stream.StorageFormat
		wantErr bool
	}{
		{
			name:    "successful write",
			records: records,
			path:    "cloudtrail/2026/03/14/09/",
			format:  stream.FormatJSON,
			wantErr: false,
		},
		{
			name:    "empty records",
			records: []stream.Record{},
			path:    "cloudtrail/empty",
			format:  stream.FormatJSON,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			size, err := writer.Write(ctx, tt.records, tt.path, tt.format)

			if (err != nil) != tt.wantErr {
				t.Errorf("Write() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if size <= 0 {
					t.Errorf("Write() size = %v, want > 0", size)
				}

				// Verify directory exists (file has timestamped name)
				dirPath := filepath.Join(basePath, tt.path)
				if _, err := os.Stat(dirPath); os.IsNotExist(err) {
					t.Errorf("expected directory at %s", dirPath)
				}

				// Verify at least one file exists in the directory
				entries, err := os.ReadDir(dirPath)
				if err != nil || len(entries) == 0 {
					t.Errorf("expected files in directory %s", dirPath)
				}

				// Verify metrics were updated
				if metrics.filesWritten != 1 {
					t.Errorf("filesWritten = %d, want 1", metrics.filesWritten)
				}
				if metrics.lastFileStatus != "success" {
					t.Errorf("lastFileStatus = %s, want success", metrics.lastFileStatus)
				}
				if metrics.lastLogName != "cloudtrail" {
					t.Errorf("lastLogName = %s, want cloudtrail", metrics.lastLogName)
				}
				if len(metrics.fileSizes) != 1 {
					t.Errorf("len(fileSizes) = %d, want 1", len(metrics.fileSizes))
				}
			}
		})
	}
}

func TestFileWriter_StripsProtocolPrefix(t *testing.T) {
	basePath := t.TempDir()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	writer, err := NewFileWriter(
		FileConfig{BasePath: basePath},
		stream.FormatJSON,
		"GZIP",
		logger,
		&mockMetricsCollector{},
	)
	if err != nil {
		t.Fatalf("NewFileWriter() failed: %v", err)
	}

	_, err = writer.Write(context.Background(), testRecords(time.Now()), "file://osquery/2026/01/02/23/", stream.FormatJSON)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	dirPath := filepath.Join(basePath, "osquery/2026/01/02/23")
	entries, err := os.ReadDir(dirPath)
	if err != nil || len(entries) == 0 {
		t.Errorf("expected files in directory %s", dirPath)
	}
}

func TestFileWriter_SequenceIncrements(t *testing.T) {
	basePath := t.TempDir()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	writer, err := NewFileWriter(
		FileConfig{BasePath: basePath},
		stream.FormatJSON,
		"GZIP",
		logger,
		&mockMetricsCollector{},
	)
	if err != nil {
		t.Fatalf("NewFileWriter() failed: %v", err)
	}

	records := testRecords(time.Now())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := writer.Write(ctx, records, "cloudtrail/seq/", stream.FormatJSON); err != nil {
			t.Fatalf("Write() #%d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(basePath, "cloudtrail/seq"))
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 files, got %d", len(entries))
	}
}

func TestFileWriter_Close(t *testing.T) {
	basePath := t.TempDir()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	writer, err := NewFileWriter(
		FileConfig{BasePath: basePath},
		stream.FormatJSON,
		"GZIP",
		logger,
		&mockMetricsCollector{},
	)
	if err != nil {
		t.Fatalf("NewFileWriter() failed: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

// Package stream defines core types for delivery stream configuration
// and record processing.
//
// A delivery stream buffers classified log records and delivers them to
// object storage as gzipped newline-JSON or as Parquet, depending on the
// stream's storage format.
package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StorageFormat represents the delivery file format of a stream.
type StorageFormat string

const (
	FormatJSON    StorageFormat = "json"
	FormatParquet StorageFormat = "parquet"
)

// maxStreamNameLen is the Firehose delivery stream name limit.
const maxStreamNameLen = 64

// Column describes a single column of a catalog table schema.
type Column struct {
	Name string `mapstructure:"name" json:"name"`
	Type string `mapstructure:"type" json:"type"`
}

// AlarmConfig contains CloudWatch alarm settings for a stream.
type AlarmConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	Threshold         float64 `mapstructure:"threshold"`
	PeriodSeconds     int32   `mapstructure:"period_seconds"`
	EvaluationPeriods int32   `mapstructure:"evaluation_periods"`
}

// StreamConfig describes a single delivery stream.
type StreamConfig struct {
	Prefix                string        `mapstructure:"prefix"`
	LogName               string        `mapstructure:"log_name"`
	Format                StorageFormat `mapstructure:"format"`
	BufferSizeMB          int           `mapstructure:"buffer_size_mb"`
	BufferIntervalSeconds int           `mapstructure:"buffer_interval_seconds"`
	KMSKeyARN             string        `mapstructure:"kms_key_arn"`
	RoleARN               string        `mapstructure:"role_arn"`
	GlueDatabase          string        `mapstructure:"glue_database"`
	Schema                []Column      `mapstructure:"schema"`
	PartitionKeys         []Column      `mapstructure:"partition_keys"`
	LogRetentionDays      int32         `mapstructure:"log_retention_days"`
	Alarm                 AlarmConfig   `mapstructure:"alarm"`
}

// StreamName returns the delivery stream name for this configuration.
// Format: <prefix>_streamalert_data_<log_name> with log name separators
// normalized to underscores.
func (c *StreamConfig) StreamName() string {
	return fmt.Sprintf("%s_streamalert_data_%s", c.Prefix, normalizeName(c.LogName))
}

// TableName returns the catalog table name derived from the log name.
func (c *StreamConfig) TableName() string {
	return normalizeName(c.LogName)
}

// LogGroupName returns the CloudWatch log group for the delivery stream.
func (c *StreamConfig) LogGroupName() string {
	return "/aws/kinesisfirehose/" + c.StreamName()
}

// normalizeName converts log name separators to underscores so the name is
// valid for Firehose streams and Glue tables.
func normalizeName(name string) string {
	return strings.NewReplacer("-", "_", ".", "_", ":", "_").Replace(strings.ToLower(name))
}

// Validate checks the stream configuration against Firehose limits.
func (c *StreamConfig) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("stream prefix is required")
	}
	if c.LogName == "" {
		return fmt.Errorf("stream log name is required")
	}
	if c.Format != FormatJSON && c.Format != FormatParquet {
		return fmt.Errorf("unsupported storage format: %s", c.Format)
	}
	if c.BufferSizeMB < 1 || c.BufferSizeMB > 128 {
		return fmt.Errorf("buffer size must be 1-128 MB, got %d", c.BufferSizeMB)
	}
	if c.BufferIntervalSeconds < 60 || c.BufferIntervalSeconds > 900 {
		return fmt.Errorf("buffer interval must be 60-900 seconds, got %d", c.BufferIntervalSeconds)
	}
	if c.Format == FormatParquet && len(c.Schema) == 0 {
		return fmt.Errorf("parquet stream %s requires schema columns", c.LogName)
	}
	if n := c.StreamName(); len(n) > maxStreamNameLen {
		return fmt.Errorf("stream name %q exceeds %d characters", n, maxStreamNameLen)
	}
	return nil
}

// SourceMetadata contains ingest-side metadata for a record.
type SourceMetadata struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Headers   map[string]string
	Timestamp time.Time
}

// StreamID identifies the buffering unit for delivery: one log type on one
// source partition.
type StreamID struct {
	LogName   string
	Partition int32
}

// String returns a string representation in the format "logname-partition".
func (s StreamID) String() string {
	return fmt.Sprintf("%s-%d", s.LogName, s.Partition)
}

// Record represents a classified log record ready for delivery.
type Record struct {
	LogName string
	Data    json.RawMessage
	Source  SourceMetadata
	// Malformed marks a payload that is not valid JSON. JSON streams still
	// deliver these (the query-side SerDe ignores them); Parquet streams
	// reject them before format conversion.
	Malformed  bool
	ReceivedAt time.Time
}

// GetEventTime returns the record's timestamp, preferring the source
// message timestamp over the local receive time.
func (r *Record) GetEventTime() time.Time {
	if !r.Source.Timestamp.IsZero() {
		return r.Source.Timestamp
	}
	return r.ReceivedAt
}

// GetEventTimeUnix returns the record's timestamp as Unix seconds.
func (r *Record) GetEventTimeUnix() int64 {
	return r.GetEventTime().Unix()
}

// FileStats contains statistics about buffered records.
type FileStats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// ConsumedRecord represents a record consumed from the ingest source.
type ConsumedRecord struct {
	Record     *Record
	CommitFunc func() error
}

// Validator validates records before buffering.
type Validator interface {
	// Validate checks whether a record is deliverable for its stream.
	Validate(record *Record) error
}

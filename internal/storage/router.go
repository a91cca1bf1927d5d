// Package storage implements storage-related functionality.
package storage

import (
	"fmt"
	"path"
	"time"

	"github.com/cninja1/streamalert/pkg/storage"
	"github.com/cninja1/streamalert/pkg/stream"
)

// Ensure implementations satisfy interfaces.
var (
	_ storage.Router         = (*DefaultRouter)(nil)
	_ storage.RotationPolicy = (*CompositePolicy)(nil)
)

// DefaultRouter implements Firehose-compatible partitioning for storage paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
}

// NewRouter creates a new storage router.
func NewRouter(protocol, bucket, basePath string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: basePath,
	}
}

// Route returns the storage path for a log at the given timestamp.
//
// json streams use the Firehose default time prefix:
//
//	protocol://bucket/basePath/logName/YYYY/MM/DD/HH/
//
// parquet streams use the Hive partition scheme the catalog table declares:
//
//	protocol://bucket/basePath/parquet/logName/dt=YYYY-MM-DD-HH/
func (r *DefaultRouter) Route(logName string, format stream.StorageFormat, timestamp int64) string {
	t := time.Unix(timestamp, 0).UTC()

	var key string
	if format == stream.FormatParquet {
		key = path.Join(r.basePath, "parquet", logName, "dt="+t.Format("2006-01-02-15"))
	} else {
		key = path.Join(r.basePath, logName, t.Format("2006/01/02/15"))
	}

	return fmt.Sprintf("%s://%s/%s/", r.protocol, r.bucket, key)
}

// NewPolicy creates a new rotation policy (alias for NewCompositePolicy).
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return NewCompositePolicy(config)
}

// PolicyConfig configures rotation behavior from Firehose buffering hints.
type PolicyConfig struct {
	BufferSizeMB          int
	BufferIntervalSeconds int
	MaxRecords            int
}

// CompositePolicy rotates when any buffering hint is exceeded.
type CompositePolicy struct {
	maxSizeBytes int64
	maxRecords   int
	maxInterval  time.Duration
}

// NewCompositePolicy creates a new composite rotation policy.
func NewCompositePolicy(config PolicyConfig) *CompositePolicy {
	return &CompositePolicy{
		maxSizeBytes: int64(config.BufferSizeMB) * 1024 * 1024,
		maxRecords:   config.MaxRecords,
		maxInterval:  time.Duration(config.BufferIntervalSeconds) * time.Second,
	}
}

// ShouldRotate returns true if any rotation condition is met.
func (p *CompositePolicy) ShouldRotate(stats stream.FileStats) bool {
	// Size-based rotation
	if p.maxSizeBytes > 0 && stats.SizeBytes >= p.maxSizeBytes {
		return true
	}

	// Count-based rotation
	if p.maxRecords > 0 && stats.RecordCount >= p.maxRecords {
		return true
	}

	// Interval-based rotation
	if p.maxInterval > 0 && !stats.FirstWriteTime.IsZero() {
		age := time.Since(stats.FirstWriteTime)
		if age >= p.maxInterval {
			return true
		}
	}

	return false
}

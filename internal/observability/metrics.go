package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Consumer metrics
	RecordsConsumed    *prometheus.CounterVec
	ConsumerLag        *prometheus.GaugeVec
	OffsetCommits      *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	CommitLatency      *prometheus.HistogramVec

	// Delivery metrics
	RecordsDelivered  *prometheus.CounterVec
	RecordsMalformed  *prometheus.CounterVec
	RecordsFailed     *prometheus.CounterVec
	DeliveryDuration  *prometheus.HistogramVec
	BufferSize        *prometheus.GaugeVec
	BufferRecordCount *prometheus.GaugeVec

	// Storage metrics
	FilesWritten         *prometheus.CounterVec
	StorageWriteDuration *prometheus.HistogramVec
	FileSize             *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Consumer metrics
		RecordsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamalert_records_consumed_total",
				Help: "Total number of records consumed from Kafka",
			},
			[]string{"log", "partition"},
		),
		ConsumerLag: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "streamalert_consumer_lag",
				Help: "Current consumer lag",
			},
			[]string{"log", "partition"},
		),
		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamalert_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"log", "partition", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamalert_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamalert_rebalance_duration_seconds",
				Help:    "Duration of consumer group rebalances",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "streamalert_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		CommitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamalert_commit_latency_seconds",
				Help:    "Latency of offset commit operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"log", "partition"},
		),

		// Delivery metrics
		RecordsDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamalert_records_delivered_total",
				Help: "Total number of records delivered to storage",
			},
			[]string{"log", "partition", "format"},
		),
		RecordsMalformed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamalert_records_malformed_total",
				Help: "Total number of records flagged as malformed JSON",
			},
			[]string{"log"},
		),
		RecordsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamalert_records_failed_total",
				Help: "Total number of records that failed validation or delivery",
			},
			[]string{"log", "reason"},
		),
		DeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamalert_delivery_duration_seconds",
				Help:    "Duration of record delivery operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"log", "operation"},
		),
		BufferSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "streamalert_buffer_size_bytes",
				Help: "Current buffer size in bytes",
			},
			[]string{"log", "partition"},
		),
		BufferRecordCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "streamalert_buffer_record_count",
				Help: "Current number of records in buffer",
			},
			[]string{"log", "partition"},
		),

		// Storage metrics
		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamalert_files_written_total",
				Help: "Total number of files written to storage",
			},
			[]string{"log", "partition", "format", "status"},
		),
		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamalert_storage_write_duration_seconds",
				Help:    "Duration of complete storage write operations including encoding",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"log", "partition"},
		),
		FileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamalert_file_size_bytes",
				Help:    "Size of files written to storage",
				Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 10), // 1MB to 1GB
			},
			[]string{"log", "partition", "format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamalert_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),
	}
}

// IncRecordsConsumed increments records consumed counter.
func (m *Metrics) IncRecordsConsumed(logName string, partition int32) {
	m.RecordsConsumed.WithLabelValues(logName, fmt.Sprintf("%d", partition)).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments offset commits counter.
func (m *Metrics) IncOffsetCommits(logName string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(logName, fmt.Sprintf("%d", partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// ObserveCommitLatency observes commit latency.
func (m *Metrics) ObserveCommitLatency(logName string, partition int32, duration float64) {
	m.CommitLatency.WithLabelValues(logName, fmt.Sprintf("%d", partition)).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncRecordsDelivered increments records delivered counter.
func (m *Metrics) IncRecordsDelivered(logName string, partition int32, format string, count float64) {
	m.RecordsDelivered.WithLabelValues(logName, fmt.Sprintf("%d", partition), format).Add(count)
}

// IncRecordsMalformed increments malformed records counter.
func (m *Metrics) IncRecordsMalformed(logName string) {
	m.RecordsMalformed.WithLabelValues(logName).Inc()
}

// IncRecordsFailed increments failed records counter.
func (m *Metrics) IncRecordsFailed(logName string, reason string) {
	m.RecordsFailed.WithLabelValues(logName, reason).Inc()
}

// ObserveDeliveryDuration observes delivery operation duration.
func (m *Metrics) ObserveDeliveryDuration(logName string, operation string, duration float64) {
	m.DeliveryDuration.WithLabelValues(logName, operation).Observe(duration)
}

// SetBufferSize sets the buffer size gauge.
func (m *Metrics) SetBufferSize(logName string, partition int32, size float64) {
	m.BufferSize.WithLabelValues(logName, fmt.Sprintf("%d", partition)).Set(size)
}

// SetBufferRecordCount sets the buffer record count gauge.
func (m *Metrics) SetBufferRecordCount(logName string, partition int32, count float64) {
	m.BufferRecordCount.WithLabelValues(logName, fmt.Sprintf("%d", partition)).Set(count)
}

// IncFilesWritten increments files written counter.
func (m *Metrics) IncFilesWritten(logName string, partition int32, format string, status string) {
	m.FilesWritten.WithLabelValues(logName, fmt.Sprintf("%d", partition), format, status).Inc()
}

// ObserveFileSize observes file size.
func (m *Metrics) ObserveFileSize(logName string, partition int32, format string, size float64) {
	m.FileSize.WithLabelValues(logName, fmt.Sprintf("%d", partition), format).Observe(size)
}

// ObserveStorageWriteDuration observes storage write duration.
func (m *Metrics) ObserveStorageWriteDuration(logName string, partition int32, duration float64) {
	m.StorageWriteDuration.WithLabelValues(logName, fmt.Sprintf("%d", partition)).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

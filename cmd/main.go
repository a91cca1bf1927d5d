package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cninja1/streamalert/internal/buffer"
	"github.com/cninja1/streamalert/internal/config"
	"github.com/cninja1/streamalert/internal/config/dto"
	"github.com/cninja1/streamalert/internal/encoder"
	apperrors "github.com/cninja1/streamalert/internal/errors"
	"github.com/cninja1/streamalert/internal/format"
	"github.com/cninja1/streamalert/internal/kafka"
	"github.com/cninja1/streamalert/internal/observability"
	"github.com/cninja1/streamalert/internal/provision"
	"github.com/cninja1/streamalert/internal/server"
	"github.com/cninja1/streamalert/internal/storage"
	"github.com/cninja1/streamalert/internal/validator"
	storageapi "github.com/cninja1/streamalert/pkg/storage"
	"github.com/cninja1/streamalert/pkg/stream"
)

// flushCheckInterval bounds how stale an interval-based rotation can get
// when no new records arrive for a stream.
const flushCheckInterval = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	provisionOnly := flag.Bool("provision", false, "provision delivery streams and exit")
	flag.Parse()

	// Load configuration
	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize observability
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	logger.Info("starting streamalert delivery",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"streams", len(cfg.Streams),
	)

	// Provision AWS resources before consuming, or exit if that is all
	// that was asked for.
	if *provisionOnly || cfg.Provision.Enabled {
		if err := provisionStreams(context.Background(), cfg, logger); err != nil {
			return fmt.Errorf("provisioning failed: %w", err)
		}
		if *provisionOnly {
			logger.Info("provisioning complete, exiting")
			return nil
		}
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Track cleanup functions
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, fn)
		logger.Debug("registered cleanup", "component", name)
	}
	runCleanups := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			if err := cleanupFuncs[i](); err != nil {
				logger.Error("cleanup error", "error", err)
			}
		}
	}
	defer runCleanups()

	// Resolve each stream's format policy and build per-log validation and
	// rotation state.
	validators := make(map[string]stream.Validator, len(cfg.Streams))
	formats := make(map[string]stream.StorageFormat, len(cfg.Streams))
	policies := make(map[string]*storage.CompositePolicy, len(cfg.Streams))
	topics := make([]string, 0, len(cfg.Streams))
	maxBufferMB := 0
	for i := range cfg.Streams {
		s := &cfg.Streams[i]

		policy, err := format.Resolve(s.Format)
		if err != nil {
			return fmt.Errorf("stream %s: %w", s.LogName, err)
		}

		validators[s.LogName] = validator.New(policy)
		formats[s.LogName] = s.Format
		policies[s.LogName] = storage.NewPolicy(storage.PolicyConfig{
			BufferSizeMB:          s.BufferSizeMB,
			BufferIntervalSeconds: s.BufferIntervalSeconds,
		})
		topics = append(topics, cfg.Kafka.Consumer.TopicPrefix+s.LogName)

		if s.BufferSizeMB > maxBufferMB {
			maxBufferMB = s.BufferSizeMB
		}
	}

	// Initialize storage path router
	protocol := storageProtocol(cfg.Storage.Backend)
	bucket := storageBucket(cfg)
	basePath := storageBasePath(cfg)
	router := storage.NewRouter(protocol, bucket, basePath)

	// Create one writer per storage format in use
	writers := make(map[stream.StorageFormat]storageapi.Writer, 2)
	for _, f := range formats {
		if _, exists := writers[f]; exists {
			continue
		}
		writer, err := newWriter(cfg, f, logger, metrics)
		if err != nil {
			return fmt.Errorf("failed to create %s writer: %w", f, err)
		}
		writers[f] = writer
		addCleanup(fmt.Sprintf("%s-writer", f), writer.Close)
	}

	// Initialize infrastructure
	consumerConfig := kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		TopicPrefix:         cfg.Kafka.Consumer.TopicPrefix,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		AWSRegion:           cfg.Kafka.AWSRegion,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
	}
	consumer, err := kafka.NewSaramaConsumer(consumerConfig, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", consumer.Close)

	dlqConfig := kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
		MaxRetries:  cfg.Kafka.DLQ.MaxRetries,
	}
	dlqPublisher, err := kafka.NewDLQPublisher(cfg.Kafka.BootstrapServers, consumerConfig, dlqConfig, logger, cfg.Application.Name)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlqPublisher.Close)

	// Buffer manager capacity sits above the largest rotation threshold so
	// rotation triggers before the hard limit does.
	bufferMgr := buffer.NewManager(int64(maxBufferMB)*2*1024*1024, 10000)

	// Health and metrics endpoints
	health := server.NewPipelineHealth()
	health.SetStorageReady(true)

	httpServer := server.NewServer(
		cfg.Observability.Health.Port,
		cfg.Observability.Metrics.Port,
		health,
		registry,
		logger,
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	// Subscribe to topics
	if err := consumer.Subscribe(context.Background(), topics); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming
	recordChan, errorChan, err := consumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	health.SetConsumerReady(true)

	logger.Info("application started successfully", "topics", topics)

	p := &pipeline{
		writers:    writers,
		router:     router,
		validators: validators,
		formats:    formats,
		policies:   policies,
		buffers:    bufferMgr,
		commits:    make(map[stream.StreamID]func() error),
		dlq:        dlqPublisher,
		health:     health,
		logger:     logger,
		metrics:    metrics,
	}

	// Start consume loop in background
	consumeErrChan := make(chan error, 1)
	go func() {
		consumeErrChan <- p.processRecords(ctx, recordChan, errorChan)
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("received termination signal")
		cancel()
		// The consume loop owns the buffers until it exits; the final
		// flush must not start before then.
		if err := <-consumeErrChan; err != nil {
			logger.Error("consume error during shutdown", "error", err)
		}
	case err := <-consumeErrChan:
		if err != nil {
			logger.Error("consume error", "error", err)
			return err
		}
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	health.SetConsumerReady(false)

	// Deliver whatever is still buffered before closing the writers.
	flushCtx, flushCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Shutdown.GracePeriodSeconds)*time.Second)
	defer flushCancel()
	p.flushAll(flushCtx)

	logger.Info("application stopped successfully")
	return nil
}

// provisionStreams creates the AWS resources for every configured stream.
func provisionStreams(ctx context.Context, cfg *dto.ApplicationConfig, logger *slog.Logger) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Provision.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	provisioner := provision.NewProvisioner(
		firehose.NewFromConfig(awsCfg),
		glue.NewFromConfig(awsCfg),
		cloudwatch.NewFromConfig(awsCfg),
		cloudwatchlogs.NewFromConfig(awsCfg),
		provision.Config{
			Bucket: cfg.Provision.Bucket,
			Region: cfg.Provision.Region,
		},
		logger,
	)

	for i := range cfg.Streams {
		if err := provisioner.Provision(ctx, &cfg.Streams[i]); err != nil {
			return err
		}
	}
	return nil
}

// pipeline holds the per-log routing state for the consume loop.
type pipeline struct {
	writers    map[stream.StorageFormat]storageapi.Writer
	router     *storage.DefaultRouter
	validators map[string]stream.Validator
	formats    map[string]stream.StorageFormat
	policies   map[string]*storage.CompositePolicy
	buffers    *buffer.Manager
	commitMu   sync.Mutex
	commits    map[stream.StreamID]func() error
	dlq        *kafka.DLQPublisher
	health     *server.PipelineHealth
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// processRecords consumes records until the context is cancelled, buffering
// them per stream partition and flushing when the stream's buffering hints
// are exceeded.
func (p *pipeline) processRecords(
	ctx context.Context,
	recordChan <-chan *stream.ConsumedRecord,
	errorChan <-chan error,
) error {
	ticker := time.NewTicker(flushCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("context cancelled, stopping processing")
			return nil

		case err := <-errorChan:
			if err != nil {
				p.logger.Error("consumer error", "error", err)
			}

		case <-ticker.C:
			// Interval-based rotation for streams with no fresh records.
			for _, id := range p.buffers.IDs() {
				buf := p.buffers.GetOrCreate(id)
				if policy, ok := p.policies[id.LogName]; ok && policy.ShouldRotate(buf.Stats()) {
					p.flush(ctx, id)
				}
			}

		case consumed, ok := <-recordChan:
			if !ok {
				p.logger.Info("record channel closed")
				return nil
			}
			p.handleRecord(ctx, consumed)
		}
	}
}

func (p *pipeline) handleRecord(ctx context.Context, consumed *stream.ConsumedRecord) {
	record := consumed.Record
	id := stream.StreamID{LogName: record.LogName, Partition: record.Source.Partition}
	p.health.RecordConsume()

	// Records from topics no stream is configured for go to the DLQ.
	v, configured := p.validators[record.LogName]
	if !configured {
		p.logger.Warn("record for unconfigured log", "log", record.LogName, "topic", record.Source.Topic)
		p.metrics.IncRecordsFailed(record.LogName, "unconfigured_log")
		_ = p.dlq.Publish(ctx, record, "unconfigured_log")
		p.commitRecord(consumed, id)
		return
	}

	if err := v.Validate(record); err != nil {
		p.logger.Warn("invalid record",
			"log", record.LogName,
			"partition", id.Partition,
			"offset", record.Source.Offset,
			"error", err,
		)
		p.metrics.IncRecordsFailed(record.LogName, "validation_failed")
		_ = p.dlq.Publish(ctx, record, "validation_failed")
		p.commitRecord(consumed, id)
		return
	}
	if record.Malformed {
		p.metrics.IncRecordsMalformed(record.LogName)
	}

	buf := p.buffers.GetOrCreate(id)
	if err := buf.Add(*record); err != nil {
		if errors.Is(err, apperrors.ErrBufferFull) {
			// Flush and retry once; the buffer is empty afterwards.
			p.flush(ctx, id)
			err = buf.Add(*record)
		}
		if err != nil {
			p.logger.Error("failed to buffer record", "log", record.LogName, "error", err)
			p.metrics.IncRecordsFailed(record.LogName, "buffer_failed")
			_ = p.dlq.Publish(ctx, record, "buffer_failed")
			p.commitRecord(consumed, id)
			return
		}
	}

	// The offset is marked only after the batch containing this record has
	// been flushed, keeping delivery at-least-once.
	p.commitMu.Lock()
	p.commits[id] = consumed.CommitFunc
	p.commitMu.Unlock()

	stats := buf.Stats()
	p.metrics.SetBufferSize(id.LogName, id.Partition, float64(stats.SizeBytes))
	p.metrics.SetBufferRecordCount(id.LogName, id.Partition, float64(stats.RecordCount))

	if p.policies[id.LogName].ShouldRotate(stats) {
		p.flush(ctx, id)
	}
}

// flush drains a stream partition's buffer and writes the batch to storage.
// On write failure the batch is published to the DLQ so the offset can still
// advance without losing records.
func (p *pipeline) flush(ctx context.Context, id stream.StreamID) {
	buf := p.buffers.GetOrCreate(id)
	records := buf.Drain()
	if len(records) == 0 {
		return
	}

	streamFormat := p.formats[id.LogName]
	writer := p.writers[streamFormat]
	path := p.router.Route(id.LogName, streamFormat, records[0].GetEventTimeUnix())

	start := time.Now()
	bytesWritten, err := writer.Write(ctx, records, path, streamFormat)
	p.metrics.ObserveDeliveryDuration(id.LogName, "write", time.Since(start).Seconds())

	if err != nil {
		p.logger.Error("failed to write batch to storage",
			"log", id.LogName,
			"partition", id.Partition,
			"records", len(records),
			"error", err,
		)
		p.metrics.IncRecordsFailed(id.LogName, "storage_failed")
		for i := range records {
			_ = p.dlq.Publish(ctx, &records[i], "storage_failed")
		}
	} else {
		p.logger.Info("wrote batch to storage",
			"log", id.LogName,
			"partition", id.Partition,
			"records", len(records),
			"bytes", bytesWritten,
			"path", path,
		)
		p.metrics.IncRecordsDelivered(id.LogName, id.Partition, string(streamFormat), float64(len(records)))
		p.health.RecordDelivery()
	}

	p.metrics.SetBufferSize(id.LogName, id.Partition, 0)
	p.metrics.SetBufferRecordCount(id.LogName, id.Partition, 0)

	p.commitMu.Lock()
	commit, ok := p.commits[id]
	delete(p.commits, id)
	p.commitMu.Unlock()

	if ok {
		if err := commit(); err != nil {
			p.logger.Error("failed to commit offset",
				"log", id.LogName,
				"partition", id.Partition,
				"error", err,
			)
			p.metrics.IncOffsetCommits(id.LogName, id.Partition, "failure")
		} else {
			p.metrics.IncOffsetCommits(id.LogName, id.Partition, "success")
		}
	}
}

// flushAll drains every remaining buffer during shutdown.
func (p *pipeline) flushAll(ctx context.Context) {
	for _, id := range p.buffers.IDs() {
		p.flush(ctx, id)
	}
}

func (p *pipeline) commitRecord(consumed *stream.ConsumedRecord, id stream.StreamID) {
	if consumed.CommitFunc == nil {
		return
	}
	if err := consumed.CommitFunc(); err != nil {
		p.logger.Error("failed to commit offset",
			"log", id.LogName,
			"partition", id.Partition,
			"error", err,
		)
	}
}

// newWriter creates a storage writer for the configured backend and format.
func newWriter(
	cfg *dto.ApplicationConfig,
	streamFormat stream.StorageFormat,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (storageapi.Writer, error) {
	compression := encoder.DefaultCompression(streamFormat)

	switch cfg.Storage.Backend {
	case "file":
		return storage.NewFileWriter(storage.FileConfig{
			BasePath: cfg.Storage.File.BasePath,
		}, streamFormat, compression, logger, metrics)

	case "s3":
		s3Config := storage.S3Config{
			Bucket:       cfg.Storage.S3.Bucket,
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			SSEEnabled:   cfg.Storage.S3.SSEEnabled,
			SSEKMSKeyARN: cfg.Storage.S3.KMSKeyARN,
		}
		return storage.NewS3Writer(s3Config, streamFormat, compression, logger, metrics)

	case "azure":
		accountKey := cfg.Storage.Azure.AccountKey
		if accountKey == "" {
			accountKey = os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")
		}
		azureConfig := storage.AzureConfig{
			AccountName:   cfg.Storage.Azure.AccountName,
			AccountKey:    accountKey,
			ContainerName: cfg.Storage.Azure.Container,
			Endpoint:      cfg.Storage.Azure.Endpoint,
		}
		return storage.NewAzureWriter(azureConfig, streamFormat, compression, logger, metrics)

	case "gcs":
		gcsConfig := storage.GCSConfig{
			Bucket:               cfg.Storage.GCS.Bucket,
			ProjectID:            cfg.Storage.GCS.ProjectID,
			CredentialsFile:      cfg.Storage.GCS.CredentialsFile,
			CredentialsJSON:      cfg.Storage.GCS.CredentialsJSON,
			UseDefaultCredential: cfg.Storage.GCS.UseDefaultCredential,
		}
		return storage.NewGCSWriter(gcsConfig, streamFormat, compression, logger, metrics)

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: file, s3, azure, gcs)", cfg.Storage.Backend)
	}
}

func storageProtocol(backend string) string {
	switch backend {
	case "s3":
		return "s3"
	case "azure":
		return "wasbs"
	case "gcs":
		return "gs"
	default:
		return "file"
	}
}

func storageBucket(cfg *dto.ApplicationConfig) string {
	switch cfg.Storage.Backend {
	case "s3":
		return cfg.Storage.S3.Bucket
	case "azure":
		return cfg.Storage.Azure.Container
	case "gcs":
		return cfg.Storage.GCS.Bucket
	default:
		// File backend roots paths at the writer's base path.
		return ""
	}
}

func storageBasePath(cfg *dto.ApplicationConfig) string {
	switch cfg.Storage.Backend {
	case "s3":
		return cfg.Storage.S3.BasePath
	case "gcs":
		return cfg.Storage.GCS.BasePath
	default:
		return ""
	}
}

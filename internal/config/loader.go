package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/cninja1/streamalert/internal/config/dto"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("STREAMALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	// Set defaults
	l.setDefaults()

	// Load from file if provided
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand environment variables in config values
	// Only expand if the value contains ${...} pattern
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	// Unmarshal configuration
	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply per-stream defaults that viper cannot set on list elements
	l.applyStreamDefaults(&config)

	// Validate configuration
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "streamalert")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.consumer.topic_prefix", "streamalert.data.")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.enable_auto_commit", false)
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.dlq.enabled", true)
	l.v.SetDefault("kafka.dlq.topic_suffix", "-dlq")
	l.v.SetDefault("kafka.dlq.max_retries", 3)

	// Storage defaults
	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)
	l.v.SetDefault("storage.file.base_path", "./data")

	// Provision defaults
	l.v.SetDefault("provision.enabled", false)
	l.v.SetDefault("provision.region", "us-east-1")
	l.v.SetDefault("provision.glue_database", "streamalert")

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
	l.v.SetDefault("shutdown.force_timeout_seconds", 60)
}

// applyStreamDefaults fills zero-valued stream fields from application-level
// settings and Firehose buffering defaults.
func (l *Loader) applyStreamDefaults(config *dto.ApplicationConfig) {
	for i := range config.Streams {
		s := &config.Streams[i]

		if s.Prefix == "" {
			s.Prefix = config.Application.Prefix
		}
		if s.BufferSizeMB == 0 {
			s.BufferSizeMB = 5
		}
		if s.BufferIntervalSeconds == 0 {
			s.BufferIntervalSeconds = 300
		}
		if s.GlueDatabase == "" {
			s.GlueDatabase = config.Provision.GlueDatabase
		}
		if s.RoleARN == "" {
			s.RoleARN = config.Provision.RoleARN
		}
		if s.LogRetentionDays == 0 {
			s.LogRetentionDays = 14
		}
		if s.Alarm.Enabled {
			if s.Alarm.Threshold == 0 {
				s.Alarm.Threshold = 1000
			}
			if s.Alarm.PeriodSeconds == 0 {
				s.Alarm.PeriodSeconds = 86400
			}
			if s.Alarm.EvaluationPeriods == 0 {
				s.Alarm.EvaluationPeriods = 1
			}
		}
	}
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	// Kafka validation
	if len(config.Kafka.BootstrapServers) == 0 {
		return errors.New("kafka.bootstrap_servers is required")
	}
	if config.Kafka.Consumer.GroupID == "" {
		return errors.New("kafka.consumer.group_id is required")
	}

	// Stream validation
	if len(config.Streams) == 0 {
		return errors.New("at least one stream must be configured")
	}
	// Duplicates are detected on normalized names: distinct log names can
	// collapse to the same delivery stream and table after separator
	// normalization.
	seen := make(map[string]string, len(config.Streams))
	for i := range config.Streams {
		s := &config.Streams[i]
		if err := s.Validate(); err != nil {
			return fmt.Errorf("streams[%d] (%s): %w", i, s.LogName, err)
		}
		table := s.TableName()
		if prev, dup := seen[table]; dup {
			return fmt.Errorf("streams %q and %q map to the same delivery stream %q", prev, s.LogName, s.StreamName())
		}
		seen[table] = s.LogName
	}

	// Storage validation
	switch config.Storage.Backend {
	case "s3":
		if config.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for S3 backend")
		}
		if config.Storage.S3.Region == "" {
			return errors.New("storage.s3.region is required for S3 backend")
		}
	case "azure":
		if config.Storage.Azure.AccountName == "" {
			return errors.New("storage.azure.account_name is required for Azure backend")
		}
		if config.Storage.Azure.Container == "" {
			return errors.New("storage.azure.container is required for Azure backend")
		}
	case "gcs":
		if config.Storage.GCS.Bucket == "" {
			return errors.New("storage.gcs.bucket is required for GCS backend")
		}
	case "file":
		if config.Storage.File.BasePath == "" {
			return errors.New("storage.file.base_path is required for file backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", config.Storage.Backend)
	}

	// Provision validation
	if config.Provision.Enabled {
		if config.Provision.Bucket == "" {
			return errors.New("provision.bucket is required when provisioning is enabled")
		}
		if config.Provision.RoleARN == "" {
			return errors.New("provision.role_arn is required when provisioning is enabled")
		}
	}

	// Port validation
	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	return nil
}

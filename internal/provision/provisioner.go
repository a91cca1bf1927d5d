// Package provision materializes the AWS resources behind a delivery stream:
// the Firehose delivery stream itself, its CloudWatch log group, the Glue
// catalog table for parquet streams, and an optional low-volume alarm.
//
// Creation is direct and idempotent only in the sense that already-exists
// responses are tolerated; there is no state tracking or drift detection.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logstypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	fhtypes "github.com/aws/aws-sdk-go-v2/service/firehose/types"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	apperrors "github.com/cninja1/streamalert/internal/errors"
	"github.com/cninja1/streamalert/internal/format"
	"github.com/cninja1/streamalert/pkg/stream"
)

// FirehoseAPI is the subset of the Firehose client the provisioner uses.
type FirehoseAPI interface {
	CreateDeliveryStream(ctx context.Context, params *firehose.CreateDeliveryStreamInput, optFns ...func(*firehose.Options)) (*firehose.CreateDeliveryStreamOutput, error)
}

// GlueAPI is the subset of the Glue client the provisioner uses.
type GlueAPI interface {
	CreateTable(ctx context.Context, params *glue.CreateTableInput, optFns ...func(*glue.Options)) (*glue.CreateTableOutput, error)
}

// CloudWatchAPI is the subset of the CloudWatch client the provisioner uses.
type CloudWatchAPI interface {
	PutMetricAlarm(ctx context.Context, params *cloudwatch.PutMetricAlarmInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error)
}

// LogsAPI is the subset of the CloudWatch Logs client the provisioner uses.
type LogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
}

// Config contains account-level provisioning settings shared by all streams.
type Config struct {
	Bucket string
	Region string
}

// Provisioner creates the AWS resources for delivery streams.
type Provisioner struct {
	firehose   FirehoseAPI
	glue       GlueAPI
	cloudwatch CloudWatchAPI
	logs       LogsAPI
	config     Config
	logger     *slog.Logger
}

// NewProvisioner creates a new provisioner from pre-built service clients.
func NewProvisioner(
	firehoseClient FirehoseAPI,
	glueClient GlueAPI,
	cloudwatchClient CloudWatchAPI,
	logsClient LogsAPI,
	config Config,
	logger *slog.Logger,
) *Provisioner {
	return &Provisioner{
		firehose:   firehoseClient,
		glue:       glueClient,
		cloudwatch: cloudwatchClient,
		logs:       logsClient,
		config:     config,
		logger:     logger,
	}
}

// Provision creates every resource the stream configuration implies.
// Resources that already exist are left in place.
func (p *Provisioner) Provision(ctx context.Context, cfg *stream.StreamConfig) error {
	if err := cfg.Validate(); err != nil {
		return &apperrors.ProvisionError{Resource: "stream_config", Name: cfg.LogName, Err: err}
	}
	if p.config.Bucket == "" {
		return &apperrors.ProvisionError{
			Resource: "stream_config",
			Name:     cfg.LogName,
			Err:      errors.New("delivery bucket is not configured"),
		}
	}
	if cfg.RoleARN == "" {
		return &apperrors.ProvisionError{
			Resource: "stream_config",
			Name:     cfg.LogName,
			Err:      errors.New("firehose role ARN is not configured"),
		}
	}

	policy, err := format.Resolve(cfg.Format)
	if err != nil {
		return &apperrors.ProvisionError{Resource: "format_policy", Name: cfg.LogName, Err: err}
	}

	if err := p.createLogGroup(ctx, cfg); err != nil {
		return err
	}

	if err := p.createDeliveryStream(ctx, cfg, policy); err != nil {
		return err
	}

	if policy.CatalogTable {
		if err := p.createCatalogTable(ctx, cfg, policy); err != nil {
			return err
		}
	}

	if cfg.Alarm.Enabled {
		if err := p.createAlarm(ctx, cfg); err != nil {
			return err
		}
	}

	p.logger.Info("provisioned delivery stream",
		"stream", cfg.StreamName(),
		"format", cfg.Format,
		"destination", policy.Destination,
		"catalog_table", policy.CatalogTable,
	)

	return nil
}

// createLogGroup creates the Firehose error log group with retention.
func (p *Provisioner) createLogGroup(ctx context.Context, cfg *stream.StreamConfig) error {
	logGroup := cfg.LogGroupName()

	input := &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(logGroup),
	}
	if cfg.KMSKeyARN != "" {
		input.KmsKeyId = aws.String(cfg.KMSKeyARN)
	}

	_, err := p.logs.CreateLogGroup(ctx, input)
	if err != nil {
		var exists *logstypes.ResourceAlreadyExistsException
		if !errors.As(err, &exists) {
			return &apperrors.ProvisionError{Resource: "log_group", Name: logGroup, Err: err}
		}
		p.logger.Debug("log group already exists", "log_group", logGroup)
	}

	if cfg.LogRetentionDays > 0 {
		_, err = p.logs.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
			LogGroupName:    aws.String(logGroup),
			RetentionInDays: aws.Int32(cfg.LogRetentionDays),
		})
		if err != nil {
			return &apperrors.ProvisionError{Resource: "log_retention", Name: logGroup, Err: err}
		}
	}

	return nil
}

// createDeliveryStream creates the Firehose delivery stream. json streams use
// a plain S3 destination, parquet streams an extended S3 destination with
// JSON-to-Parquet format conversion against the Glue schema.
func (p *Provisioner) createDeliveryStream(ctx context.Context, cfg *stream.StreamConfig, policy *format.Policy) error {
	streamName := cfg.StreamName()

	input := &firehose.CreateDeliveryStreamInput{
		DeliveryStreamName: aws.String(streamName),
		DeliveryStreamType: fhtypes.DeliveryStreamTypeDirectPut,
	}

	switch policy.Destination {
	case format.DestinationS3:
		input.S3DestinationConfiguration = p.buildS3Destination(cfg)
	case format.DestinationExtendedS3:
		input.ExtendedS3DestinationConfiguration = p.buildExtendedS3Destination(cfg)
	default:
		return &apperrors.ProvisionError{
			Resource: "delivery_stream",
			Name:     streamName,
			Err:      fmt.Errorf("unsupported destination: %s", policy.Destination),
		}
	}

	_, err := p.firehose.CreateDeliveryStream(ctx, input)
	if err != nil {
		var inUse *fhtypes.ResourceInUseException
		if !errors.As(err, &inUse) {
			return &apperrors.ProvisionError{Resource: "delivery_stream", Name: streamName, Err: err}
		}
		p.logger.Debug("delivery stream already exists", "stream", streamName)
	}

	return nil
}

// buildS3Destination builds the plain S3 destination for json streams.
func (p *Provisioner) buildS3Destination(cfg *stream.StreamConfig) *fhtypes.S3DestinationConfiguration {
	dest := &fhtypes.S3DestinationConfiguration{
		BucketARN: aws.String("arn:aws:s3:::" + p.config.Bucket),
		RoleARN:   aws.String(cfg.RoleARN),
		Prefix:    aws.String(cfg.LogName + "/"),
		BufferingHints: &fhtypes.BufferingHints{
			SizeInMBs:         aws.Int32(int32(cfg.BufferSizeMB)),
			IntervalInSeconds: aws.Int32(int32(cfg.BufferIntervalSeconds)),
		},
		CompressionFormat: fhtypes.CompressionFormatGzip,
		CloudWatchLoggingOptions: &fhtypes.CloudWatchLoggingOptions{
			Enabled:       aws.Bool(true),
			LogGroupName:  aws.String(cfg.LogGroupName()),
			LogStreamName: aws.String("S3Delivery"),
		},
	}
	dest.EncryptionConfiguration = encryptionConfig(cfg.KMSKeyARN)
	return dest
}

// buildExtendedS3Destination builds the extended S3 destination for parquet
// streams with Hive-partitioned prefixes and format conversion.
func (p *Provisioner) buildExtendedS3Destination(cfg *stream.StreamConfig) *fhtypes.ExtendedS3DestinationConfiguration {
	table := cfg.TableName()

	dest := &fhtypes.ExtendedS3DestinationConfiguration{
		BucketARN:         aws.String("arn:aws:s3:::" + p.config.Bucket),
		RoleARN:           aws.String(cfg.RoleARN),
		Prefix:            aws.String(fmt.Sprintf("parquet/%s/dt=!{timestamp:yyyy-MM-dd-HH}/", table)),
		ErrorOutputPrefix: aws.String(fmt.Sprintf("parquet/%s/!{firehose:error-output-type}/", table)),
		BufferingHints: &fhtypes.BufferingHints{
			SizeInMBs:         aws.Int32(int32(cfg.BufferSizeMB)),
			IntervalInSeconds: aws.Int32(int32(cfg.BufferIntervalSeconds)),
		},
		// Parquet is compressed internally; Firehose-level compression must
		// be disabled when format conversion is enabled.
		CompressionFormat: fhtypes.CompressionFormatUncompressed,
		DataFormatConversionConfiguration: &fhtypes.DataFormatConversionConfiguration{
			Enabled: aws.Bool(true),
			InputFormatConfiguration: &fhtypes.InputFormatConfiguration{
				Deserializer: &fhtypes.Deserializer{
					OpenXJsonSerDe: &fhtypes.OpenXJsonSerDe{
						ConvertDotsInJsonKeysToUnderscores: aws.Bool(true),
					},
				},
			},
			OutputFormatConfiguration: &fhtypes.OutputFormatConfiguration{
				Serializer: &fhtypes.Serializer{
					ParquetSerDe: &fhtypes.ParquetSerDe{},
				},
			},
			SchemaConfiguration: &fhtypes.SchemaConfiguration{
				DatabaseName: aws.String(cfg.GlueDatabase),
				TableName:    aws.String(table),
				RoleARN:      aws.String(cfg.RoleARN),
				Region:       aws.String(p.config.Region),
			},
		},
		CloudWatchLoggingOptions: &fhtypes.CloudWatchLoggingOptions{
			Enabled:       aws.Bool(true),
			LogGroupName:  aws.String(cfg.LogGroupName()),
			LogStreamName: aws.String("S3Delivery"),
		},
	}
	dest.EncryptionConfiguration = encryptionConfig(cfg.KMSKeyARN)
	return dest
}

// encryptionConfig returns KMS encryption when a key is configured, and no
// Firehose-level encryption otherwise (the bucket default applies).
func encryptionConfig(kmsKeyARN string) *fhtypes.EncryptionConfiguration {
	if kmsKeyARN == "" {
		return &fhtypes.EncryptionConfiguration{
			NoEncryptionConfig: fhtypes.NoEncryptionConfigNoEncryption,
		}
	}
	return &fhtypes.EncryptionConfiguration{
		KMSEncryptionConfig: &fhtypes.KMSEncryptionConfig{
			AWSKMSKeyARN: aws.String(kmsKeyARN),
		},
	}
}

// createCatalogTable creates the Glue table parquet streams are queried
// through.
func (p *Provisioner) createCatalogTable(ctx context.Context, cfg *stream.StreamConfig, policy *format.Policy) error {
	spec, err := format.BuildCatalogTable(cfg, policy, p.config.Bucket)
	if err != nil {
		return &apperrors.ProvisionError{Resource: "catalog_table", Name: cfg.TableName(), Err: err}
	}

	input := &glue.CreateTableInput{
		DatabaseName: aws.String(spec.DatabaseName),
		TableInput: &gluetypes.TableInput{
			Name:          aws.String(spec.TableName),
			TableType:     aws.String(spec.TableType),
			Parameters:    spec.Parameters,
			PartitionKeys: glueColumns(spec.PartitionKeys),
			StorageDescriptor: &gluetypes.StorageDescriptor{
				Location:     aws.String(spec.Location),
				InputFormat:  aws.String(spec.InputFormat),
				OutputFormat: aws.String(spec.OutputFormat),
				Columns:      glueColumns(spec.Columns),
				SerdeInfo: &gluetypes.SerDeInfo{
					SerializationLibrary: aws.String(spec.SerializationLibrary),
					Parameters:           spec.SerDeParameters,
				},
			},
		},
	}

	_, err = p.glue.CreateTable(ctx, input)
	if err != nil {
		var exists *gluetypes.AlreadyExistsException
		if !errors.As(err, &exists) {
			return &apperrors.ProvisionError{Resource: "catalog_table", Name: spec.TableName, Err: err}
		}
		p.logger.Debug("catalog table already exists", "table", spec.TableName)
	}

	return nil
}

// createAlarm creates the low-volume alarm on the stream's incoming records.
// PutMetricAlarm overwrites an existing alarm of the same name, so no
// already-exists handling is needed.
func (p *Provisioner) createAlarm(ctx context.Context, cfg *stream.StreamConfig) error {
	streamName := cfg.StreamName()
	alarmName := streamName + "_record_volume"

	_, err := p.cloudwatch.PutMetricAlarm(ctx, &cloudwatch.PutMetricAlarmInput{
		AlarmName: aws.String(alarmName),
		AlarmDescription: aws.String(fmt.Sprintf(
			"IncomingRecords less than expected threshold: %v", cfg.Alarm.Threshold)),
		Namespace:  aws.String("AWS/Firehose"),
		MetricName: aws.String("IncomingRecords"),
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String("DeliveryStreamName"),
				Value: aws.String(streamName),
			},
		},
		Statistic:          cwtypes.StatisticSum,
		ComparisonOperator: cwtypes.ComparisonOperatorLessThanThreshold,
		Threshold:          aws.Float64(cfg.Alarm.Threshold),
		Period:             aws.Int32(cfg.Alarm.PeriodSeconds),
		EvaluationPeriods:  aws.Int32(cfg.Alarm.EvaluationPeriods),
		TreatMissingData:   aws.String("breaching"),
	})
	if err != nil {
		return &apperrors.ProvisionError{Resource: "alarm", Name: alarmName, Err: err}
	}

	return nil
}

// glueColumns converts schema columns to the Glue type.
func glueColumns(cols []stream.Column) []gluetypes.Column {
	result := make([]gluetypes.Column, 0, len(cols))
	for _, c := range cols {
		result = append(result, gluetypes.Column{
			Name: aws.String(c.Name),
			Type: aws.String(c.Type),
		})
	}
	return result
}

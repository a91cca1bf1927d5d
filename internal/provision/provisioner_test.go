package provision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logstypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	fhtypes "github.com/aws/aws-sdk-go-v2/service/firehose/types"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/cninja1/streamalert/pkg/stream"
)

type fakeFirehose struct {
	input *firehose.CreateDeliveryStreamInput
	err   error
}

func (f *fakeFirehose) CreateDeliveryStream(ctx context.Context, params *firehose.CreateDeliveryStreamInput, optFns ...func(*firehose.Options)) (*firehose.CreateDeliveryStreamOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &firehose.CreateDeliveryStreamOutput{}, nil
}

type fakeGlue struct {
	input *glue.CreateTableInput
	err   error
}

func (f *fakeGlue) CreateTable(ctx context.Context, params *glue.CreateTableInput, optFns ...func(*glue.Options)) (*glue.CreateTableOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &glue.CreateTableOutput{}, nil
}

type fakeCloudWatch struct {
	input *cloudwatch.PutMetricAlarmInput
	err   error
}

func (f *fakeCloudWatch) PutMetricAlarm(ctx context.Context, params *cloudwatch.PutMetricAlarmInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &cloudwatch.PutMetricAlarmOutput{}, nil
}

type fakeLogs struct {
	createInput    *cloudwatchlogs.CreateLogGroupInput
	retentionInput *cloudwatchlogs.PutRetentionPolicyInput
	createErr      error
}

func (f *fakeLogs) CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.createInput = params
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeLogs) PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	f.retentionInput = params
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jsonStream() *stream.StreamConfig {
	return &stream.StreamConfig{
		Prefix:                "acme",
		LogName:               "cloudtrail",
		Format:                stream.FormatJSON,
		BufferSizeMB:          5,
		BufferIntervalSeconds: 300,
		RoleARN:               "arn:aws:iam::123456789012:role/streamalert_firehose",
		LogRetentionDays:      14,
	}
}

func parquetStream() *stream.StreamConfig {
	return &stream.StreamConfig{
		Prefix:                "acme",
		LogName:               "osquery:differential",
		Format:                stream.FormatParquet,
		BufferSizeMB:          128,
		BufferIntervalSeconds: 900,
		RoleARN:               "arn:aws:iam::123456789012:role/streamalert_firehose",
		GlueDatabase:          "streamalert",
		LogRetentionDays:      14,
		Schema: []stream.Column{
			{Name: "name", Type: "string"},
			{Name: "hostIdentifier", Type: "string"},
			{Name: "unixTime", Type: "bigint"},
		},
	}
}

func newTestProvisioner(fh *fakeFirehose, gl *fakeGlue, cw *fakeCloudWatch, lg *fakeLogs) *Provisioner {
	return NewProvisioner(fh, gl, cw, lg, Config{
		Bucket: "acme-streamalert-data",
		Region: "us-east-1",
	}, testLogger())
}

func TestProvision_JSONStream(t *testing.T) {
	fh := &fakeFirehose{}
	gl := &fakeGlue{}
	cw := &fakeCloudWatch{}
	lg := &fakeLogs{}
	p := newTestProvisioner(fh, gl, cw, lg)

	cfg := jsonStream()
	if err := p.Provision(context.Background(), cfg); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if fh.input == nil {
		t.Fatal("delivery stream was not created")
	}
	if got := aws.ToString(fh.input.DeliveryStreamName); got != "acme_streamalert_data_cloudtrail" {
		t.Errorf("stream name = %s", got)
	}

	dest := fh.input.S3DestinationConfiguration
	if dest == nil {
		t.Fatal("json stream should use a plain S3 destination")
	}
	if fh.input.ExtendedS3DestinationConfiguration != nil {
		t.Error("json stream should not use an extended S3 destination")
	}
	if dest.CompressionFormat != fhtypes.CompressionFormatGzip {
		t.Errorf("compression = %s, want GZIP", dest.CompressionFormat)
	}
	if got := aws.ToString(dest.Prefix); got != "cloudtrail/" {
		t.Errorf("prefix = %s, want cloudtrail/", got)
	}
	if got := aws.ToString(dest.BucketARN); got != "arn:aws:s3:::acme-streamalert-data" {
		t.Errorf("bucket ARN = %s", got)
	}
	if got := aws.ToInt32(dest.BufferingHints.SizeInMBs); got != 5 {
		t.Errorf("buffer size = %d, want 5", got)
	}
	if dest.EncryptionConfiguration.NoEncryptionConfig != fhtypes.NoEncryptionConfigNoEncryption {
		t.Error("expected no Firehose-level encryption without a KMS key")
	}

	if gl.input != nil {
		t.Error("json stream should not create a catalog table")
	}
	if cw.input != nil {
		t.Error("alarm should not be created when disabled")
	}

	if lg.createInput == nil {
		t.Fatal("log group was not created")
	}
	if got := aws.ToString(lg.createInput.LogGroupName); got != "/aws/kinesisfirehose/acme_streamalert_data_cloudtrail" {
		t.Errorf("log group = %s", got)
	}
	if lg.retentionInput == nil {
		t.Fatal("retention policy was not set")
	}
	if got := aws.ToInt32(lg.retentionInput.RetentionInDays); got != 14 {
		t.Errorf("retention = %d, want 14", got)
	}
}

func TestProvision_ParquetStream(t *testing.T) {
	fh := &fakeFirehose{}
	gl := &fakeGlue{}
	cw := &fakeCloudWatch{}
	lg := &fakeLogs{}
	p := newTestProvisioner(fh, gl, cw, lg)

	cfg := parquetStream()
	if err := p.Provision(context.Background(), cfg); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if fh.input.S3DestinationConfiguration != nil {
		t.Error("parquet stream should not use a plain S3 destination")
	}
	dest := fh.input.ExtendedS3DestinationConfiguration
	if dest == nil {
		t.Fatal("parquet stream should use an extended S3 destination")
	}
	if dest.CompressionFormat != fhtypes.CompressionFormatUncompressed {
		t.Errorf("compression = %s, want UNCOMPRESSED", dest.CompressionFormat)
	}
	if got := aws.ToString(dest.Prefix); got != "parquet/osquery_differential/dt=!{timestamp:yyyy-MM-dd-HH}/" {
		t.Errorf("prefix = %s", got)
	}
	if got := aws.ToString(dest.ErrorOutputPrefix); got != "parquet/osquery_differential/!{firehose:error-output-type}/" {
		t.Errorf("error prefix = %s", got)
	}

	conv := dest.DataFormatConversionConfiguration
	if conv == nil || !aws.ToBool(conv.Enabled) {
		t.Fatal("format conversion should be enabled")
	}
	if conv.InputFormatConfiguration.Deserializer.OpenXJsonSerDe == nil {
		t.Error("expected OpenX JSON deserializer")
	}
	if conv.OutputFormatConfiguration.Serializer.ParquetSerDe == nil {
		t.Error("expected Parquet serializer")
	}
	if got := aws.ToString(conv.SchemaConfiguration.TableName); got != "osquery_differential" {
		t.Errorf("schema table = %s", got)
	}
	if got := aws.ToString(conv.SchemaConfiguration.DatabaseName); got != "streamalert" {
		t.Errorf("schema database = %s", got)
	}

	if gl.input == nil {
		t.Fatal("catalog table was not created")
	}
	ti := gl.input.TableInput
	if got := aws.ToString(ti.Name); got != "osquery_differential" {
		t.Errorf("table name = %s", got)
	}
	if got := aws.ToString(ti.StorageDescriptor.Location); got != "s3://acme-streamalert-data/parquet/osquery_differential" {
		t.Errorf("table location = %s", got)
	}
	if len(ti.StorageDescriptor.Columns) != 3 {
		t.Errorf("columns = %d, want 3", len(ti.StorageDescriptor.Columns))
	}
	serde := ti.StorageDescriptor.SerdeInfo
	if !strings.Contains(aws.ToString(serde.SerializationLibrary), "parquet") {
		t.Errorf("serde library = %s", aws.ToString(serde.SerializationLibrary))
	}
	if serde.Parameters["serialization.format"] != "1" {
		t.Errorf("serde parameters = %v", serde.Parameters)
	}
}

func TestProvision_Alarm(t *testing.T) {
	fh := &fakeFirehose{}
	gl := &fakeGlue{}
	cw := &fakeCloudWatch{}
	lg := &fakeLogs{}
	p := newTestProvisioner(fh, gl, cw, lg)

	cfg := jsonStream()
	cfg.Alarm = stream.AlarmConfig{
		Enabled:           true,
		Threshold:         1000,
		PeriodSeconds:     86400,
		EvaluationPeriods: 1,
	}

	if err := p.Provision(context.Background(), cfg); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if cw.input == nil {
		t.Fatal("alarm was not created")
	}
	if got := aws.ToString(cw.input.Namespace); got != "AWS/Firehose" {
		t.Errorf("namespace = %s", got)
	}
	if got := aws.ToString(cw.input.MetricName); got != "IncomingRecords" {
		t.Errorf("metric = %s", got)
	}
	if got := aws.ToFloat64(cw.input.Threshold); got != 1000 {
		t.Errorf("threshold = %v", got)
	}
	if len(cw.input.Dimensions) != 1 || aws.ToString(cw.input.Dimensions[0].Value) != "acme_streamalert_data_cloudtrail" {
		t.Errorf("dimensions = %v", cw.input.Dimensions)
	}
	if got := aws.ToString(cw.input.TreatMissingData); got != "breaching" {
		t.Errorf("treat missing data = %s", got)
	}
}

func TestProvision_KMSEncryption(t *testing.T) {
	fh := &fakeFirehose{}
	lg := &fakeLogs{}
	p := newTestProvisioner(fh, &fakeGlue{}, &fakeCloudWatch{}, lg)

	cfg := jsonStream()
	cfg.KMSKeyARN = "arn:aws:kms:us-east-1:123456789012:key/abc"

	if err := p.Provision(context.Background(), cfg); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	enc := fh.input.S3DestinationConfiguration.EncryptionConfiguration
	if enc.KMSEncryptionConfig == nil {
		t.Fatal("expected KMS encryption config")
	}
	if got := aws.ToString(enc.KMSEncryptionConfig.AWSKMSKeyARN); got != cfg.KMSKeyARN {
		t.Errorf("KMS key = %s", got)
	}
	if got := aws.ToString(lg.createInput.KmsKeyId); got != cfg.KMSKeyARN {
		t.Errorf("log group KMS key = %s", got)
	}
}

func TestProvision_ToleratesExistingResources(t *testing.T) {
	fh := &fakeFirehose{err: &fhtypes.ResourceInUseException{Message: aws.String("exists")}}
	gl := &fakeGlue{err: &gluetypes.AlreadyExistsException{Message: aws.String("exists")}}
	lg := &fakeLogs{createErr: &logstypes.ResourceAlreadyExistsException{Message: aws.String("exists")}}
	p := newTestProvisioner(fh, gl, &fakeCloudWatch{}, lg)

	if err := p.Provision(context.Background(), parquetStream()); err != nil {
		t.Fatalf("Provision() should tolerate existing resources, got %v", err)
	}
	if lg.retentionInput == nil {
		t.Error("retention should still be applied to an existing log group")
	}
}

func TestProvision_PropagatesCreateErrors(t *testing.T) {
	fh := &fakeFirehose{err: errors.New("access denied")}
	p := newTestProvisioner(fh, &fakeGlue{}, &fakeCloudWatch{}, &fakeLogs{})

	err := p.Provision(context.Background(), jsonStream())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("error = %v", err)
	}
}

func TestProvision_InvalidConfig(t *testing.T) {
	p := newTestProvisioner(&fakeFirehose{}, &fakeGlue{}, &fakeCloudWatch{}, &fakeLogs{})

	cfg := parquetStream()
	cfg.Schema = nil

	if err := p.Provision(context.Background(), cfg); err == nil {
		t.Fatal("expected validation error for parquet stream without schema")
	}
}

func TestProvision_MissingBucketAndRole(t *testing.T) {
	tests := []struct {
		name   string
		bucket string
		role   string
	}{
		{name: "missing bucket", bucket: "", role: "arn:aws:iam::123456789012:role/streamalert_firehose"},
		{name: "missing role", bucket: "acme-streamalert-data", role: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := &fakeFirehose{}
			lg := &fakeLogs{}
			p := NewProvisioner(fh, &fakeGlue{}, &fakeCloudWatch{}, lg, Config{
				Bucket: tt.bucket,
				Region: "us-east-1",
			}, testLogger())

			cfg := jsonStream()
			cfg.RoleARN = tt.role

			if err := p.Provision(context.Background(), cfg); err == nil {
				t.Fatal("expected error for incomplete provisioning settings")
			}
			if fh.input != nil || lg.createInput != nil {
				t.Error("no AWS calls should be made when settings are incomplete")
			}
		})
	}
}

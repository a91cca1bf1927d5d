// Package format resolves storage-format policies for delivery streams.
//
// A policy captures everything the delivery and provisioning layers derive
// from a stream's storage format: destination kind, compression codec,
// SerDe identifiers and the Hive IO format classes of the catalog table.
package format

import (
	"fmt"

	"github.com/cninja1/streamalert/internal/errors"
	"github.com/cninja1/streamalert/pkg/stream"
)

// Destination kinds for the delivery stream.
const (
	DestinationS3         = "s3"
	DestinationExtendedS3 = "extended_s3"
)

// Compression codecs applied by the delivery stream.
const (
	CompressionGZIP         = "GZIP"
	CompressionUncompressed = "UNCOMPRESSED"
)

// Hive SerDe and IO format class names used by query engines reading the
// delivered data.
const (
	jsonSerDe    = "org.openx.data.jsonserde.JsonSerDe"
	parquetSerDe = "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe"

	textInputFormat     = "org.apache.hadoop.mapred.TextInputFormat"
	textOutputFormat    = "org.apache.hadoop.hive.ql.io.HiveIgnoreKeyTextOutputFormat"
	parquetInputFormat  = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat"
	parquetOutputFormat = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat"
)

// Policy contains the settings derived from a stream's storage format.
type Policy struct {
	Format               stream.StorageFormat
	Destination          string
	Compression          string
	SerDeParamKey        string
	SerDeParamValue      string
	SerializationLibrary string
	InputFormat          string
	OutputFormat         string
	CatalogTable         bool
	FileExtension        string
}

// Resolve returns the policy for a storage format.
//
// The mapping is pure: json streams deliver gzipped newline-JSON to a plain
// S3 destination with no catalog table; parquet streams deliver uncompressed
// Parquet through an extended S3 destination with format conversion and an
// associated catalog table. Any other format fails with ErrInvalidFormat.
func Resolve(format stream.StorageFormat) (*Policy, error) {
	switch format {
	case stream.FormatJSON:
		return &Policy{
			Format:               stream.FormatJSON,
			Destination:          DestinationS3,
			Compression:          CompressionGZIP,
			SerDeParamKey:        "ignore.malformed.json",
			SerDeParamValue:      "true",
			SerializationLibrary: jsonSerDe,
			InputFormat:          textInputFormat,
			OutputFormat:         textOutputFormat,
			CatalogTable:         false,
			FileExtension:        ".json.gz",
		}, nil
	case stream.FormatParquet:
		return &Policy{
			Format:               stream.FormatParquet,
			Destination:          DestinationExtendedS3,
			Compression:          CompressionUncompressed,
			SerDeParamKey:        "serialization.format",
			SerDeParamValue:      "1",
			SerializationLibrary: parquetSerDe,
			InputFormat:          parquetInputFormat,
			OutputFormat:         parquetOutputFormat,
			CatalogTable:         true,
			FileExtension:        ".parquet",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidFormat, format)
	}
}

// SupportedFormats returns the storage formats the resolver accepts.
func SupportedFormats() []stream.StorageFormat {
	return []stream.StorageFormat{
		stream.FormatJSON,
		stream.FormatParquet,
	}
}

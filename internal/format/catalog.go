package format

import (
	"fmt"

	"github.com/cninja1/streamalert/pkg/stream"
)

// CatalogTableSpec describes the Glue catalog table associated with a
// parquet delivery stream.
type CatalogTableSpec struct {
	DatabaseName         string
	TableName            string
	Location             string
	InputFormat          string
	OutputFormat         string
	SerializationLibrary string
	SerDeParameters      map[string]string
	PartitionKeys        []stream.Column
	Columns              []stream.Column
	TableType            string
	Parameters           map[string]string
}

// defaultPartitionKeys is the Hive partition scheme of delivered data.
var defaultPartitionKeys = []stream.Column{
	{Name: "dt", Type: "string"},
}

// BuildCatalogTable returns the catalog table spec for a stream, or nil for
// formats that do not produce one (json streams are queried through the
// JSON SerDe directly and carry no table).
func BuildCatalogTable(cfg *stream.StreamConfig, policy *Policy, bucket string) (*CatalogTableSpec, error) {
	if !policy.CatalogTable {
		return nil, nil
	}
	if len(cfg.Schema) == 0 {
		return nil, fmt.Errorf("catalog table for %s requires schema columns", cfg.LogName)
	}

	partitionKeys := cfg.PartitionKeys
	if len(partitionKeys) == 0 {
		partitionKeys = defaultPartitionKeys
	}

	return &CatalogTableSpec{
		DatabaseName:         cfg.GlueDatabase,
		TableName:            cfg.TableName(),
		Location:             fmt.Sprintf("s3://%s/parquet/%s", bucket, cfg.TableName()),
		InputFormat:          policy.InputFormat,
		OutputFormat:         policy.OutputFormat,
		SerializationLibrary: policy.SerializationLibrary,
		SerDeParameters: map[string]string{
			policy.SerDeParamKey: policy.SerDeParamValue,
		},
		PartitionKeys: partitionKeys,
		Columns:       cfg.Schema,
		TableType:     "EXTERNAL_TABLE",
		Parameters: map[string]string{
			"EXTERNAL":       "TRUE",
			"classification": string(policy.Format),
		},
	}, nil
}

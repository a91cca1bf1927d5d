package format

import (
	"testing"

	"github.com/cninja1/streamalert/pkg/stream"
)

func parquetStreamConfig() *stream.StreamConfig {
	return &stream.StreamConfig{
		Prefix:                "acme",
		LogName:               "cloudtrail",
		Format:                stream.FormatParquet,
		BufferSizeMB:          128,
		BufferIntervalSeconds: 900,
		GlueDatabase:          "acme_streamalert",
		Schema: []stream.Column{
			{Name: "eventname", Type: "string"},
			{Name: "eventtime", Type: "timestamp"},
			{Name: "requestparameters", Type: "string"},
		},
	}
}

func TestBuildCatalogTable_Parquet(t *testing.T) {
	cfg := parquetStreamConfig()
	policy, err := Resolve(cfg.Format)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	spec, err := BuildCatalogTable(cfg, policy, "acme-streamalert-data")
	if err != nil {
		t.Fatalf("BuildCatalogTable() error = %v", err)
	}
	if spec == nil {
		t.Fatal("expected catalog table spec for parquet stream")
	}

	if spec.DatabaseName != "acme_streamalert" {
		t.Errorf("DatabaseName = %s", spec.DatabaseName)
	}
	if spec.TableName != "cloudtrail" {
		t.Errorf("TableName = %s", spec.TableName)
	}
	if spec.Location != "s3://acme-streamalert-data/parquet/cloudtrail" {
		t.Errorf("Location = %s", spec.Location)
	}
	if spec.SerializationLibrary != policy.SerializationLibrary {
		t.Errorf("SerializationLibrary = %s, want %s",
			spec.SerializationLibrary, policy.SerializationLibrary)
	}
	if got := spec.SerDeParameters["serialization.format"]; got != "1" {
		t.Errorf("SerDeParameters[serialization.format] = %s, want 1", got)
	}
	if len(spec.Columns) != 3 {
		t.Errorf("Columns = %d, want 3", len(spec.Columns))
	}
	if len(spec.PartitionKeys) != 1 || spec.PartitionKeys[0].Name != "dt" {
		t.Errorf("PartitionKeys = %v, want default dt partition", spec.PartitionKeys)
	}
	if spec.TableType != "EXTERNAL_TABLE" {
		t.Errorf("TableType = %s", spec.TableType)
	}
	if spec.Parameters["classification"] != "parquet" {
		t.Errorf("classification = %s, want parquet", spec.Parameters["classification"])
	}
}

func TestBuildCatalogTable_JSONProducesNoTable(t *testing.T) {
	cfg := parquetStreamConfig()
	cfg.Format = stream.FormatJSON

	policy, err := Resolve(cfg.Format)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	spec, err := BuildCatalogTable(cfg, policy, "acme-streamalert-data")
	if err != nil {
		t.Fatalf("BuildCatalogTable() error = %v", err)
	}
	if spec != nil {
		t.Errorf("expected no catalog table for json stream, got %+v", spec)
	}
}

func TestBuildCatalogTable_MissingSchema(t *testing.T) {
	cfg := parquetStreamConfig()
	cfg.Schema = nil

	policy, err := Resolve(cfg.Format)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if _, err := BuildCatalogTable(cfg, policy, "acme-streamalert-data"); err == nil {
		t.Error("expected error for parquet stream without schema")
	}
}

func TestBuildCatalogTable_CustomPartitionKeys(t *testing.T) {
	cfg := parquetStreamConfig()
	cfg.PartitionKeys = []stream.Column{
		{Name: "region", Type: "string"},
		{Name: "dt", Type: "string"},
	}

	policy, err := Resolve(cfg.Format)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	spec, err := BuildCatalogTable(cfg, policy, "acme-streamalert-data")
	if err != nil {
		t.Fatalf("BuildCatalogTable() error = %v", err)
	}
	if len(spec.PartitionKeys) != 2 || spec.PartitionKeys[0].Name != "region" {
		t.Errorf("PartitionKeys = %v, want configured keys", spec.PartitionKeys)
	}
}

// Package stream defines core types for delivery streams and log records.
//
// This package provides the public API for describing delivery streams
// (storage format, buffering hints, catalog schema) and for the records
// that flow through them.
//
// # Stream Configuration
//
// StreamConfig describes a single delivery stream and derives the AWS
// resource names from the prefix and log name:
//
//	cfg := stream.StreamConfig{
//	    Prefix:                "acme",
//	    LogName:               "cloudtrail",
//	    Format:                stream.FormatParquet,
//	    BufferSizeMB:          128,
//	    BufferIntervalSeconds: 900,
//	}
//	name := cfg.StreamName() // "acme_streamalert_data_cloudtrail"
//
// # Storage Formats
//
// Exactly two formats are supported:
//
//	stream.FormatJSON     // gzipped newline-JSON, plain S3 destination
//	stream.FormatParquet  // Parquet via format conversion, extended S3 destination
//
// # Records
//
// Record carries the classified payload together with its ingest metadata:
//
//	record := stream.Record{
//	    LogName: "cloudtrail",
//	    Data:    []byte(`{"eventName":"PutObject"}`),
//	    Source: stream.SourceMetadata{
//	        Topic:     "streamalert.data.cloudtrail",
//	        Partition: 0,
//	        Offset:    12345,
//	    },
//	}
//
// # Stream Identification
//
// StreamID identifies the buffering unit (one log type on one source
// partition):
//
//	id := stream.StreamID{LogName: "cloudtrail", Partition: 5}
//	key := id.String() // "cloudtrail-5"
//
// # Time Utilities
//
// Records expose their effective event time, falling back from the source
// message timestamp to the local receive time:
//
//	eventTime := record.GetEventTime()
//	unixTime := record.GetEventTimeUnix()
package stream

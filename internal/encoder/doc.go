// Package encoder implements the delivery file format encoders.
//
// # Formats
//
// Two encoders are provided, matching the two storage formats a delivery
// stream can resolve to:
//
//   - JSONEncoder: newline-delimited JSON, gzip compressed. Record payloads
//     are written verbatim, including malformed ones, since the query-side
//     SerDe is configured with ignore.malformed.json=true.
//   - ParquetEncoder: Apache Parquet with an Athena-compatible schema,
//     uncompressed by default to match the format-conversion contract.
//
// # Factory
//
// Factory selects the encoder for a stream's resolved policy:
//
//	factory := encoder.NewFactory(stream.FormatParquet, "UNCOMPRESSED")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    // unsupported format
//	}
//	stats, err := enc.Encode("/tmp/batch.parquet", records)
//
// Any format other than json or parquet fails with ErrInvalidFormat.
package encoder

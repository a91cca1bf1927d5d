// Package buffer implements per-stream record buffering for batched delivery.
//
// # Overview
//
// Records are buffered per (log name, source partition) before being flushed
// to storage. Buffers enforce both a byte-size cap and a record-count cap,
// mirroring Firehose buffering hints, and track first/last write times so a
// rotation policy can flush on age.
//
// # Usage
//
// Create a buffer for a stream and add records:
//
//	buf := buffer.New(stream.StreamID{LogName: "cloudtrail", Partition: 0}, 128<<20, 100000)
//	if err := buf.Add(record); err != nil {
//	    // buffer full: flush and retry
//	}
//
// Drain returns all buffered records and resets the buffer:
//
//	records := buf.Drain()
//
// # Buffer Manager
//
// Manager creates buffers on demand and hands out the same buffer for the
// same stream ID across goroutines:
//
//	mgr := buffer.NewManager(128<<20, 100000)
//	buf := mgr.GetOrCreate(id)
//
// All types in this package are safe for concurrent use.
package buffer

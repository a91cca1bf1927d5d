// Package consumer defines interfaces for record ingestion.
//
// This package provides abstractions for consuming log records from Kafka
// and managing consumer lifecycle.
package consumer

import (
	"context"

	"github.com/cninja1/streamalert/pkg/stream"
)

// Consumer reads log records from Kafka topics.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming records from subscribed topics.
	// Returns channels for records and errors.
	Consume(ctx context.Context) (<-chan *stream.ConsumedRecord, <-chan error, error)

	// Commit commits the offset for a stream partition.
	Commit(ctx context.Context, id stream.StreamID, offset int64) error

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes undeliverable records to a dead letter queue.
type DLQPublisher interface {
	// Publish sends a record to the DLQ with failure information.
	Publish(ctx context.Context, record *stream.Record, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}

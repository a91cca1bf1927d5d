// Package encoder implements encoder factory for creating file format encoders.
package encoder

import (
	"fmt"

	"github.com/cninja1/streamalert/internal/errors"
	"github.com/cninja1/streamalert/pkg/encoder"
	"github.com/cninja1/streamalert/pkg/stream"
)

// Factory creates encoders based on format and compression.
type Factory struct {
	format      stream.StorageFormat
	compression string
}

// NewFactory creates a new encoder factory.
func NewFactory(format stream.StorageFormat, compression string) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
	}
}

// CreateEncoder creates an encoder based on the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	switch f.format {
	case stream.FormatJSON:
		return NewJSONEncoder(f.compression), nil
	case stream.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidFormat, f.format)
	}
}

// DefaultCompression returns the delivery compression for a format.
func DefaultCompression(format stream.StorageFormat) string {
	switch format {
	case stream.FormatJSON:
		return "GZIP"
	case stream.FormatParquet:
		return "UNCOMPRESSED"
	default:
		return "UNCOMPRESSED"
	}
}

// Package validator provides record validation for delivery streams.
package validator

import (
	"encoding/json"

	"github.com/cninja1/streamalert/internal/errors"
	"github.com/cninja1/streamalert/internal/format"
	"github.com/cninja1/streamalert/pkg/stream"
)

// Ensure implementation satisfies interface at compile time.
var _ stream.Validator = (*RecordValidator)(nil)

// RecordValidator validates records against their stream's format policy.
//
// Parquet streams require valid JSON payloads: format conversion fails on
// anything else, so such records are rejected up front. JSON streams
// tolerate malformed payloads (delivered verbatim, the query-side SerDe
// ignores them) but the record is flagged.
type RecordValidator struct {
	requireValidJSON bool
}

// New creates a validator for the given format policy.
func New(policy *format.Policy) *RecordValidator {
	return &RecordValidator{
		requireValidJSON: policy.Format == stream.FormatParquet,
	}
}

// Validate checks whether a record is deliverable for its stream.
func (v *RecordValidator) Validate(r *stream.Record) error {
	if r.LogName == "" {
		return &errors.ValidationError{
			LogName: r.LogName,
			Field:   "log_name",
			Reason:  "required field is missing",
		}
	}

	if len(r.Data) == 0 {
		return &errors.ValidationError{
			LogName: r.LogName,
			Field:   "data",
			Reason:  "empty payload",
		}
	}

	if !json.Valid(r.Data) {
		if v.requireValidJSON {
			return &errors.ValidationError{
				LogName: r.LogName,
				Field:   "data",
				Reason:  "payload is not valid JSON",
			}
		}
		r.Malformed = true
	}

	return nil
}

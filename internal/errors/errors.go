// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/cninja1/streamalert/pkg/stream"
)

// Sentinel errors for common conditions.
var (
	ErrInvalidFormat  = errors.New("invalid storage format")
	ErrBufferFull     = errors.New("buffer is full")
	ErrConsumerClosed = errors.New("consumer is closed")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrWriterClosed   = errors.New("storage writer is closed")
	ErrConnectionLost = errors.New("connection lost")
)

// DeliveryError represents an error while delivering records for a stream.
type DeliveryError struct {
	StreamID stream.StreamID
	Offset   int64
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error: stream=%s offset=%d: %v",
		e.StreamID, e.Offset, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ValidationError represents a record validation failure.
type ValidationError struct {
	LogName string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: log=%s field=%s: %s",
		e.LogName, e.Field, e.Reason)
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ProvisionError represents a failure creating an AWS resource for a stream.
type ProvisionError struct {
	Resource string
	Name     string
	Err      error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision error: resource=%s name=%s: %v",
		e.Resource, e.Name, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	// Write and upload operations are generally retryable
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if a DeliveryError is retryable.
func (e *DeliveryError) IsRetryable() bool {
	return IsRetryable(e.Err)
}

package platform

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// TransportError signals that the upstream Bot API could not be reached or
// returned a response that does not decode into the expected shape. It is
// deliberately distinct from a negative validation verdict.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("platform: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Code labels the error for handler summary logs.
func (e *TransportError) Code() string { return "TRANSPORT_FAULT" }

// BatchError aggregates per-token failures of a batch status fetch. The batch
// is all-or-nothing: a single BatchError means no partial results were kept.
type BatchError struct {
	Errs *multierror.Error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("platform: batch fetch failed: %v", e.Errs)
}

func (e *BatchError) Unwrap() error { return e.Errs }

// Code labels the error for handler summary logs.
func (e *BatchError) Code() string { return "BATCH_FAULT" }

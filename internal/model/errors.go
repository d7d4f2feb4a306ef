package model

import (
	"errors"
	"fmt"
)

// ErrEmptyResult signals that a query selected no records. It is a "no data"
// answer, not a failure.
var ErrEmptyResult = errors.New("no data for this selection")

// ErrNoDataset is returned by queries issued before any successful load.
var ErrNoDataset = errors.New("no dataset loaded")

// UnsupportedFormatError is returned when the declared document kind is not
// one the ingester understands.
type UnsupportedFormatError struct {
	Kind string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document kind %q (expected html or csv)", e.Kind)
}

// NoRecordsFoundError is returned when a document parses but contains no
// recognizable match blocks.
type NoRecordsFoundError struct {
	Kind string
}

func (e *NoRecordsFoundError) Error() string {
	return fmt.Sprintf("no match records found in %s document", e.Kind)
}

// TimestampParseError is a per-record failure to read one of the timestamps.
type TimestampParseError struct {
	Field string
	Value string
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("parse %s: unrecognized timestamp %q", e.Field, e.Value)
}

// ValidationError is a per-record failure: a missing required field, an
// unreadable number or a broken invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NoAcceptedRecordsError is returned when blocks were found but every one was
// excluded or rejected.
type NoAcceptedRecordsError struct {
	Dispositions Dispositions
}

func (e *NoAcceptedRecordsError) Error() string {
	d := e.Dispositions
	return fmt.Sprintf("no usable match records: %d excluded, %d rejected, %d unparsable timestamps",
		d.Excluded, d.Rejected, d.ParseFailed)
}

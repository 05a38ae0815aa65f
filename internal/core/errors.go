package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by unique lookups that match nothing.
	ErrNotFound = errors.New("not found")

	// ErrMultipleResults is returned by unique lookups that match more than one row.
	ErrMultipleResults = errors.New("multiple results")

	// ErrUnknownFormat is returned for an unregistered CSV format key.
	ErrUnknownFormat = errors.New("unknown import format")
)

// IsUnresolved reports whether err means a lookup could not pin down a
// single entity. Both ErrNotFound and ErrMultipleResults qualify.
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMultipleResults)
}

// MissingFieldError is raised on first access to a mandatory field that the
// input header does not provide.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Mandatory field '%s' not found", e.Field)
}

// LookupError is returned when a cell value has no entry in a vocabulary
// table such as flight types or modes.
type LookupError struct {
	Table string
	Value string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown %s '%s'", e.Table, e.Value)
}

// RecordError means a critical participant of a record could not be resolved.
// The record cannot be imported.
type RecordError struct {
	Param string
	Value string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("Unknown %s: '%s'", e.Param, e.Value)
}

// stubName returns the natural key of a possibly nil participant.
func stubName[T fmt.Stringer](p *T) string {
	if p == nil {
		return ""
	}
	return (*p).String()
}

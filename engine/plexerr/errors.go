// Package plexerr defines the fatal error taxonomy shared across the engine.
// Non-fatal conditions (edge rejection, adapter failure, enrichment failure)
// are modeled as data returned alongside results, not as errors — see
// engine/sink and engine/ingest.
package plexerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fatal taxonomy of section 7.
var (
	ErrNoAdapter       = errors.New("plexus: no adapter registered for input_kind")
	ErrInvalidInput    = errors.New("plexus: invalid input payload")
	ErrContextNotFound = errors.New("plexus: context not found")
	ErrStorageError    = errors.New("plexus: storage error")
	ErrCancelled       = errors.New("plexus: ingest cancelled")
)

// Fault wraps a sentinel with the field/value context that triggered it.
type Fault struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *Fault) Error() string {
	return fmt.Sprintf("plexus: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *Fault) Unwrap() error { return e.Wrapped }

// New creates a Fault wrapping one of the sentinels above.
func New(field, value string, wrapped error) *Fault {
	return &Fault{Field: field, Value: value, Wrapped: wrapped}
}

// StorageError wraps a persistence-layer failure so callers can distinguish
// it from the in-memory fatal conditions above while still matching
// ErrStorageError via errors.Is.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("plexus: storage error during %s: %w: %w", op, ErrStorageError, err)
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrLayerNotFound       = fmt.Errorf("layer: %w", ErrNotFound)
	ErrObjectNotFound      = fmt.Errorf("object: %w", ErrNotFound)
	ErrInvalidCoordinate   = fmt.Errorf("coordinate: %w", ErrInvalidInput)
	ErrInvalidGeometry     = fmt.Errorf("geometry: %w", ErrInvalidInput)
	ErrInvalidBBox         = fmt.Errorf("bbox: %w", ErrInvalidInput)
	ErrMixedLayer          = fmt.Errorf("layer features of different kinds: %w", ErrInvalidInput)
	ErrUnsupportedGeometry = fmt.Errorf("geometry kind: %w", ErrUnsupported)
	ErrUnsupportedFormat   = fmt.Errorf("source format: %w", ErrUnsupported)
	ErrStoreDisabled       = fmt.Errorf("spatial store disabled: %w", ErrUnavailable)
	ErrStorageUnavailable  = fmt.Errorf("storage: %w", ErrUnavailable)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidCoordinate
}

// DecodeReason classifies a geometry decoding failure.
type DecodeReason string

// Decode failure reasons.
const (
	DecodeUnsupportedKind DecodeReason = "unsupported kind"
	DecodeMalformed       DecodeReason = "malformed"
	DecodeOutOfRange      DecodeReason = "out of range"
)

// DecodeError is returned by the geometry codec.
type DecodeError struct {
	Reason DecodeReason
	Kind   string // geometry tag as found in the input, if any
	Detail string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decode geometry")
	if e.Kind != "" {
		b.WriteString(" ")
		b.WriteString(e.Kind)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Reason))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the sentinel matching the failure reason.
func (e *DecodeError) Unwrap() error {
	if e.Reason == DecodeUnsupportedKind {
		return ErrUnsupportedGeometry
	}
	return ErrInvalidGeometry
}

// ClassifyError is returned when a geometry tag has no layer kind.
type ClassifyError struct {
	Tag string
}

// Error implements the error interface.
func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classify: unsupported geometry type %q", e.Tag)
}

// Unwrap returns the underlying error type.
func (e *ClassifyError) Unwrap() error {
	return ErrUnsupportedGeometry
}

// NormalizeReason classifies a tabular normalization failure.
type NormalizeReason string

// Normalization failure reasons.
const (
	NoCoordinateColumns NormalizeReason = "no coordinate columns"
	NoValidRows         NormalizeReason = "no valid rows"
)

// NormalizeError is returned by the coordinate normalizer.
type NormalizeError struct {
	Reason  NormalizeReason
	Columns []string // header of the offending table
}

// Error implements the error interface.
func (e *NormalizeError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("normalize: %s (columns: %s)", e.Reason, strings.Join(e.Columns, ", "))
	}
	return fmt.Sprintf("normalize: %s", e.Reason)
}

// Unwrap returns the underlying error type.
func (e *NormalizeError) Unwrap() error {
	return ErrInvalidInput
}

// ImportReason classifies a whole-source import failure.
type ImportReason string

// Import failure reasons.
const (
	ImportUnreadable           ImportReason = "unreadable"
	ImportNotFeatureCollection ImportReason = "not a feature collection"
	ImportEmpty                ImportReason = "no features"
	ImportUnsupportedFormat    ImportReason = "unsupported format"
	ImportNoCoordinates        ImportReason = "no coordinates"
)

// ImportError represents a failure of a whole import operation.
// Per-feature failures never produce an ImportError.
type ImportError struct {
	Source string
	Reason ImportReason
	Err    error // Underlying error, optional
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("import %s: %s", e.Source, e.Reason)
}

// Unwrap returns the reason's sentinel and the underlying error, if any.
func (e *ImportError) Unwrap() []error {
	sentinel := ErrInvalidInput
	if e.Reason == ImportUnsupportedFormat {
		sentinel = ErrUnsupportedFormat
	}
	if e.Err != nil {
		return []error{sentinel, e.Err}
	}
	return []error{sentinel}
}

// StoreError represents an error talking to the spatial relational store.
type StoreError struct {
	Operation string // select, insert, count, ping
	Table     string
	Err       error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("store error during %s on %s: %v", e.Operation, e.Table, e.Err)
	}
	return fmt.Sprintf("store error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// StorageError represents an error during object storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}

package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrDatasetExists   = errors.New("dataset already exists")
	ErrRootExists      = errors.New("dataset already has a root version")
	ErrNoDerivation    = errors.New("no derivation record")
	ErrTableNotFound   = errors.New("table not found")
)

// ConnectionError means the backing store could not be reached. It is fatal
// to the current command and never retried by the engine.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "connection error: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// StatementError wraps a failed statement.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement failed: %v (%s)", e.Err, abbreviate(e.Statement))
}
func (e *StatementError) Unwrap() error { return e.Err }

// SchemaMismatchError reports attributes missing from, or typed differently
// in, one side of a comparison.
type SchemaMismatchError struct {
	Missing    []string
	Mismatched []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing attributes "+strings.Join(e.Missing, ", "))
	}
	if len(e.Mismatched) > 0 {
		parts = append(parts, "incompatible attributes "+strings.Join(e.Mismatched, ", "))
	}
	if len(parts) == 0 {
		return "schema mismatch"
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

type UnknownParentError struct {
	Dataset string
	Parent  int64
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("unknown parent version %d in dataset %s", e.Parent, e.Dataset)
}

type UnknownVersionError struct {
	Dataset string
	Version int64
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("unknown version %d in dataset %s", e.Version, e.Dataset)
}

type IndexConflictError struct {
	Dataset string
	Version int64
}

func (e *IndexConflictError) Error() string {
	return fmt.Sprintf("index entry for version %d in dataset %s already recorded with a different row set", e.Version, e.Dataset)
}

// ConcurrentModificationError is returned to the loser of two racing writers
// on the same dataset. The operation can be retried.
type ConcurrentModificationError struct {
	Dataset  string
	Expected int64
	Actual   int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("dataset %s was modified concurrently (expected latest version %d, found %d)", e.Dataset, e.Expected, e.Actual)
}

// Temporary marks the error as retryable.
func (e *ConcurrentModificationError) Temporary() bool { return true }

type BadParametersError struct {
	Reason string
}

func (e *BadParametersError) Error() string { return "bad parameters: " + e.Reason }

type NotImplementedError struct {
	Feature string
}

func (e *NotImplementedError) Error() string { return "not implemented: " + e.Feature }

func abbreviate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}

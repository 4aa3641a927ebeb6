// Package apperr defines the typed failures raised by the core packages.
// The core never presents errors itself; the CLI and HTTP layers decide how to
// report each kind.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a referenced project, item or document that is absent.
type NotFoundError struct {
	Entity string // "project", "checklist item", ...
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound creates a NotFoundError.
func NotFound(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// PersistenceError wraps a store I/O failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError. A nil err yields nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// FileCopyError reports one file that could not be placed under a project
// directory. Batches collect these and keep going.
type FileCopyError struct {
	Source string
	Dest   string
	Err    error
}

func (e *FileCopyError) Error() string {
	return fmt.Sprintf("copy %s -> %s: %v", e.Source, e.Dest, e.Err)
}

func (e *FileCopyError) Unwrap() error { return e.Err }

// ExternalSourceError reports an unreadable workbook or a missing sheet.
type ExternalSourceError struct {
	Source string
	Sheet  string
	Err    error
}

func (e *ExternalSourceError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("external source %s (sheet %q): %v", e.Source, e.Sheet, e.Err)
	}
	return fmt.Sprintf("external source %s: %v", e.Source, e.Err)
}

func (e *ExternalSourceError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

package terminal

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError
	ErrValidation = errors.New("validation failed")
	// ErrRequest matches every *RequestError
	ErrRequest = errors.New("request failed")
	// ErrSessionNotFound is returned when a session id is not tracked
	ErrSessionNotFound = errors.New("session not found")
	// ErrManagerClosed is returned by operations after Close
	ErrManagerClosed = errors.New("terminal manager is closed")
)

// ValidationError reports an invalid caller argument
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RequestError wraps a failed collaborator call
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequest
}

// AnomalyKind classifies a protocol anomaly
type AnomalyKind string

const (
	// AnomalyProjectMismatch: a payload names a different project for a
	// session already tracked under another one. The tracked project wins.
	AnomalyProjectMismatch AnomalyKind = "project_mismatch"
	// AnomalyHintMismatch: a new session's payload project differs from the
	// project the caller asked about. The payload wins.
	AnomalyHintMismatch AnomalyKind = "hint_mismatch"
	// AnomalyUnknownProject: a new session has no project at all and is
	// skipped.
	AnomalyUnknownProject AnomalyKind = "unknown_project"
)

// Anomaly is an inconsistency between server payloads and local state. It
// is corrected locally and reported, never returned as an error.
type Anomaly struct {
	Kind           AnomalyKind
	SessionID      string
	PayloadProject string
	TrackedProject string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s: session %s payload project %q tracked project %q",
		a.Kind, a.SessionID, a.PayloadProject, a.TrackedProject)
}

// AnomalyHandler observes anomalies
type AnomalyHandler func(Anomaly)

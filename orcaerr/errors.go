// Package orcaerr defines the typed error kinds raised by the rest of
// orcapod: schema validation failures at operator/pod construction,
// execution failures attributed to a DAG node, and store-layer conflicts.
package orcaerr

import (
	"fmt"
	"maps"
	"sync"
)

// Kind identifies one of the user-visible error categories from the design.
type Kind string

const (
	KindSchemaMismatch      Kind = "schema_mismatch"
	KindNameCollision       Kind = "name_collision"
	KindMissingField        Kind = "missing_field"
	KindUnsupportedType     Kind = "unsupported_type"
	KindFingerprintCollision Kind = "fingerprint_collision"
	KindPodRuntimeError     Kind = "pod_runtime_error"
	KindPipelineStateError  Kind = "pipeline_state_error"
)

// Error is the single error type used across orcapod. Callers distinguish
// cases with errors.As and Error.Is(kind), not with distinct Go types per
// kind.
type Error struct {
	Kind      Kind
	Operation string
	Message   string
	Cause     error

	mu     sync.RWMutex
	fields map[string]any
}

func New(kind Kind, operation, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		fields:    make(map[string]any),
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s failed: %s (caused by: %v)", e.Kind, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Kind, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, SomeKind) work when SomeKind is compared as a Kind
// wrapped via Error.Is. orcapod callers are expected to use IsKind instead,
// which is unambiguous about what's being compared.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Fields returns a copy of the error's structured context.
func (e *Error) Fields() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.fields)
}

// WithField returns a copy of e with key=value recorded as structured
// context, leaving e itself untouched (Error values are shared across
// goroutines once returned from a constructor).
func (e *Error) WithField(key string, value any) *Error {
	e.mu.RLock()
	cloned := maps.Clone(e.fields)
	e.mu.RUnlock()
	if cloned == nil {
		cloned = make(map[string]any)
	}
	cloned[key] = value
	return &Error{
		Kind:      e.Kind,
		Operation: e.Operation,
		Message:   e.Message,
		Cause:     e.Cause,
		fields:    cloned,
	}
}

func SchemaMismatch(operation, message string, cause error) *Error {
	return New(KindSchemaMismatch, operation, message, cause)
}

func NameCollision(operation, message string, cause error) *Error {
	return New(KindNameCollision, operation, message, cause)
}

func MissingField(operation, message string, cause error) *Error {
	return New(KindMissingField, operation, message, cause)
}

func UnsupportedType(operation, message string, cause error) *Error {
	return New(KindUnsupportedType, operation, message, cause)
}

func FingerprintCollision(operation, message string, cause error) *Error {
	return New(KindFingerprintCollision, operation, message, cause)
}

// PodRuntimeError wraps an exception from user pod code, carrying the node
// label and the input tag it was processing when it failed.
func PodRuntimeError(nodeLabel string, tag map[string]any, cause error) *Error {
	return New(KindPodRuntimeError, nodeLabel, "pod function returned an error", cause).
		WithField("node_label", nodeLabel).
		WithField("input_tag", tag)
}

func PipelineStateError(operation, message string) *Error {
	return New(KindPipelineStateError, operation, message, nil)
}

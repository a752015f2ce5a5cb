// Package errkind defines the closed error taxonomy carried on response
// events. Every in-process failure that crosses a component boundary is
// classified into one of these kinds; transport handlers translate anything
// unclassified into KindInternal at the top of the task.
package errkind

import (
	"errors"
	"fmt"
)

// Kind identifies a failure class. The set is closed: consumers switch on
// these values and unknown strings would silently fall through, so new kinds
// require a coordinated consumer update.
type Kind string

const (
	KindInvalidInput           Kind = "InvalidInput"
	KindInvalidProject         Kind = "InvalidProject"
	KindStampingUnavailable    Kind = "StampingUnavailable"
	KindExtractionUnavailable  Kind = "ExtractionUnavailable"
	KindExtractionTimeout      Kind = "ExtractionTimeout"
	KindExtractionRejected     Kind = "ExtractionRejected"
	KindEmbeddingUnavailable   Kind = "EmbeddingUnavailable"
	KindEmbeddingTimeout       Kind = "EmbeddingTimeout"
	KindEmbeddingMalformed     Kind = "EmbeddingMalformed"
	KindVectorStoreUnavailable Kind = "VectorStoreUnavailable"
	KindGraphStoreUnavailable  Kind = "GraphStoreUnavailable"
	KindAllSourcesFailed       Kind = "AllSourcesFailed"
	KindInternal               Kind = "InternalError"
)

// Retryable reports whether an upstream retry of the originating envelope
// can reasonably succeed for this kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindInvalidInput, KindInvalidProject, KindExtractionRejected:
		return false
	default:
		return true
	}
}

// Error is a classified failure. Component is the service or backend that
// failed, when known.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithComponent returns a copy of e annotated with the failing component.
func (e *Error) WithComponent(name string) *Error {
	c := *e
	c.Component = name
	return &c
}

// KindOf extracts the Kind from err, walking the wrap chain. Unclassified
// errors report KindInternal; nil reports the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ComponentOf extracts the failing component name, if the error carries one.
func ComponentOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Component
	}
	return ""
}

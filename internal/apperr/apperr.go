// Package apperr defines the error kinds shared by the ingestion and
// question-answering paths. Callers use the kind to tell a fatal
// misconfiguration apart from a "retry later" condition.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	// KindConfiguration is fatal at startup: bad chunk sizing, unknown
	// providers, missing credentials.
	KindConfiguration Kind = "configuration"
	// KindNotReady means the index or compressor is not loaded yet.
	KindNotReady Kind = "not_ready"
	// KindProvider covers embedding and completion provider failures.
	KindProvider Kind = "provider"
	// KindIngestion is a per-document failure while building the index.
	KindIngestion Kind = "ingestion"
	// KindInvalidInput is a malformed request, e.g. an empty question.
	KindInvalidInput Kind = "invalid_input"
	// KindInternal is anything else.
	KindInternal Kind = "internal"
)

// Error is a classified error. Op names the operation that failed and Err
// carries the detail.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reason returns the kind as a short machine-readable string.
func (e *Error) Reason() string { return string(e.Kind) }

// Detail returns the wrapped error text without the kind prefix.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

// New wraps err with the given kind and operation. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configuration returns a configuration error built from a format string.
func Configuration(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Err: fmt.Errorf(format, args...)}
}

// NotReady returns a not-ready error for op.
func NotReady(op string, err error) error {
	return &Error{Kind: KindNotReady, Op: op, Err: err}
}

// Provider wraps a provider failure for op.
func Provider(op string, err error) error {
	return New(KindProvider, op, err)
}

// Ingestion wraps a per-document ingestion failure.
func Ingestion(source string, err error) error {
	return New(KindIngestion, source, err)
}

// InvalidInput returns an invalid input error.
func InvalidInput(op, msg string) error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: errors.New(msg)}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return err != nil && KindOf(err) == KindConfiguration }

// IsNotReady reports whether err is a not-ready error.
func IsNotReady(err error) bool { return err != nil && KindOf(err) == KindNotReady }

// IsProvider reports whether err is a provider error.
func IsProvider(err error) bool { return err != nil && KindOf(err) == KindProvider }

// IsIngestion reports whether err is an ingestion error.
func IsIngestion(err error) bool { return err != nil && KindOf(err) == KindIngestion }

// IsInvalidInput reports whether err is an invalid input error.
func IsInvalidInput(err error) bool { return err != nil && KindOf(err) == KindInvalidInput }

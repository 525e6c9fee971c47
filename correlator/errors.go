package correlator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies conditions that abort a run
type ErrorKind int

const (
	KindInvalidConfig   ErrorKind = iota // Configuration failed validation
	KindMissingResource                  // A required input (trace file, mobility file) is absent
	KindSinkFailure                      // Output destination could not be opened or written
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid config"
	case KindMissingResource:
		return "missing resource"
	case KindSinkFailure:
		return "sink failure"
	default:
		return "unknown"
	}
}

// SimError is the error type for fatal run conditions.
// Recoverable conditions (unknown entity, untracked pre-handover cell) never
// produce a SimError; they are handled in place and logged.
type SimError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e SimError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("correlator error: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("correlator error: %s: %s", e.Kind, e.Message)
}

func (e SimError) Unwrap() error { return e.Err }

// ErrInvalidConfig creates an error for invalid configuration
func ErrInvalidConfig(msg string) error {
	return SimError{Kind: KindInvalidConfig, Message: msg}
}

// ErrMissingResource reports a required input that cannot be located.
// The resource name is always part of the message.
func ErrMissingResource(resource string, err error) error {
	return SimError{Kind: KindMissingResource, Message: fmt.Sprintf("cannot open %q", resource), Err: err}
}

// ErrSinkFailure wraps an output failure
func ErrSinkFailure(msg string, err error) error {
	return SimError{Kind: KindSinkFailure, Message: msg, Err: err}
}

// IsKind reports whether err is a SimError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var se SimError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

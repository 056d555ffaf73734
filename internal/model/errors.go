package model

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrorKind categorizes classifier failures for retry decisions and for
// batch slot reporting.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimit   ErrorKind = "rate_limit"
	KindMalformed   ErrorKind = "malformed"
	KindUnavailable ErrorKind = "unavailable"
)

type ClassificationError struct {
	Kind ErrorKind
	Err  error
}

func NewClassificationError(kind ErrorKind, err error) *ClassificationError {
	return &ClassificationError{Kind: kind, Err: err}
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed (%s): %v", e.Kind, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether another attempt against the classifier could
// succeed. Every classifier failure is retryable within the attempt budget,
// a garbled completion included; validation errors never reach the
// classifier at all.
func IsRetryable(err error) bool {
	var ce *ClassificationError
	return errors.As(err, &ce)
}

func ClassificationKind(err error) ErrorKind {
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnavailable
}

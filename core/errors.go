package core

import (
	"context"
	"errors"
	"fmt"
)

// EvalErrorKind classifies evaluator call failures for user-facing messages.
type EvalErrorKind string

const (
	// EvalErrorUnknown is an uncategorized failure.
	EvalErrorUnknown EvalErrorKind = "unknown"
	// EvalErrorUnavailable indicates the evaluator is unreachable.
	EvalErrorUnavailable EvalErrorKind = "unavailable"
	// EvalErrorTimeout indicates the call exceeded its deadline.
	EvalErrorTimeout EvalErrorKind = "timeout"
	// EvalErrorCanceled indicates the call was canceled.
	EvalErrorCanceled EvalErrorKind = "canceled"
	// EvalErrorMalformed indicates the request or response could not be interpreted.
	EvalErrorMalformed EvalErrorKind = "malformed"
	// EvalErrorResetLoop indicates the evaluator kept asking for a restart.
	EvalErrorResetLoop EvalErrorKind = "reset_loop"
	// EvalErrorInternal indicates the evaluator panicked.
	EvalErrorInternal EvalErrorKind = "internal"
)

// EvalError wraps evaluator call failures with a stable classification.
type EvalError struct {
	Kind    EvalErrorKind
	Op      string
	Message string
	Err     error
}

// NewEvalError constructs a classified evaluator error.
func NewEvalError(kind EvalErrorKind, op string, err error) *EvalError {
	return &EvalError{Kind: kind, Op: op, Err: err}
}

func (e *EvalError) Error() string {
	if e == nil {
		return "evaluator error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("evaluator %s failed", e.Op)
	}
	return "evaluator error"
}

func (e *EvalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ClassifyEvalError wraps err as an EvalError unless it already is one.
func ClassifyEvalError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvalError
	if errors.As(err, &existing) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return NewEvalError(EvalErrorCanceled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewEvalError(EvalErrorTimeout, op, err)
	}
	return NewEvalError(EvalErrorUnknown, op, err)
}

// EvalErrorKindOf returns the classification of err, or EvalErrorUnknown.
func EvalErrorKindOf(err error) EvalErrorKind {
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Kind
	}
	return EvalErrorUnknown
}

// ErrorHint returns a short user-facing message for an evaluator failure.
func ErrorHint(err error) string {
	if err == nil {
		return ""
	}
	switch EvalErrorKindOf(err) {
	case EvalErrorUnavailable:
		return "evaluator unavailable: " + err.Error()
	case EvalErrorTimeout:
		return "evaluation timed out"
	case EvalErrorCanceled:
		return "evaluation canceled"
	case EvalErrorMalformed:
		return "malformed evaluator reply: " + err.Error()
	case EvalErrorResetLoop:
		return "evaluator keeps restarting; input dropped"
	case EvalErrorInternal:
		return "evaluator crashed: " + err.Error()
	default:
		return "evaluator error: " + err.Error()
	}
}

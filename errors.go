package fncall

import (
	"errors"
	"fmt"
)

// Sentinel errors for fncall. Use errors.Is to check.
var (
	ErrFunctionNotFound  = errors.New("function not found")
	ErrDuplicateFunction = errors.New("duplicate function name")
	ErrUnsupportedModel  = errors.New("model does not support tool calls")
	ErrValidation        = errors.New("validation failed")
)

// ContractError reports a capability type that cannot be described: missing
// name or description metadata, or a request type that is not a flat struct.
// It is fatal and surfaces to the caller of Derive, New or NewRegistry.
type ContractError struct {
	Type   string
	Reason string
}

func (e *ContractError) Error() string {
	if e.Type == "" {
		return "function contract violation: " + e.Reason
	}
	return fmt.Sprintf("function contract violation in %s: %s", e.Type, e.Reason)
}

// FunctionError is returned by a capability that rejects its own input
// (a required argument missing or blank, a bad enum value, a failed
// Validatable check). The Dispatcher turns it into a rejected Outcome.
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type FunctionError struct {
	Reason string
	Err    error
}

func (e *FunctionError) Error() string {
	return "invalid function input: " + e.Reason
}

// Unwrap supports errors.Is/errors.As on wrapped chains.
func (e *FunctionError) Unwrap() error { return e.Err }

// Reject is shorthand for returning a *FunctionError from FromArguments or Apply.
func Reject(format string, args ...any) error {
	return &FunctionError{Reason: fmt.Sprintf(format, args...)}
}

// SystemError represents an unexpected failure while invoking a capability
// (network error, panic, result the model must not see verbatim).
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal error during function invocation"
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsFunctionError returns true if err is or wraps a FunctionError.
func IsFunctionError(err error) bool {
	var fe *FunctionError
	return errors.As(err, &fe)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// IsContractError returns true if err is or wraps a ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// wrapHandlerError passes through FunctionError; wraps other errors as SystemError.
func wrapHandlerError(err error) error {
	if err == nil {
		return nil
	}
	if IsFunctionError(err) || IsSystemError(err) {
		return err
	}
	return &SystemError{Err: err}
}

// wrapDecodeError returns a FunctionError for argument decoding failures.
func wrapDecodeError(err error) error {
	return &FunctionError{Reason: "argument decode error: " + err.Error(), Err: err}
}

// panicError wraps a recovered panic value for SystemError; used by the
// Dispatcher and the WithRecovery middleware.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}

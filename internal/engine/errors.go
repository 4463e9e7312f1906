package engine

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrStopped is returned when an action or module change is submitted to a
// store whose action channel has been closed.
var ErrStopped = &ConfigError{Op: "dispatch", Message: "store has been stopped"}

// InvalidActionError is returned by Dispatch when the value is neither a
// tagged action nor a thunk. Store state is never touched.
type InvalidActionError struct {
	// Kind names the received value's kind ("int", "string", "nil", ...).
	Kind string

	// Reason is set when the value had the right shape but failed validation.
	Reason string
}

// Error implements the error interface.
func (e *InvalidActionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid action: %s", e.Reason)
	}
	return fmt.Sprintf("expected an action with a non-empty type or a thunk, received: '%s'", e.Kind)
}

// IsInvalidAction returns true if the error is an InvalidActionError.
// Uses errors.As to handle wrapped errors.
func IsInvalidAction(err error) bool {
	var ie *InvalidActionError
	return errors.As(err, &ie)
}

// kindOf describes a dispatched value for error messages.
func kindOf(v any) string {
	if v == nil {
		return "nil"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "nil " + rv.Type().String()
	}
	return rv.Kind().String()
}

// ConfigError reports a disabled or out-of-order lifecycle call.
// Store configuration is one-shot: once New returns, the main module is fixed.
type ConfigError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// RuntimeError represents a failure inside one processing cycle.
//
// The cycle is aborted; the store keeps the state it had before the failing
// fold (or the folded state, if only an effect failed). Processing continues
// with the next queued action.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Seq is the logical clock value of the failing cycle.
	Seq int64

	// Correlation identifies the dispatch chain.
	Correlation string

	// ActionType is the type of the action being processed.
	ActionType string

	// Slice names the owning module for effect failures ("" for the main module).
	Slice string

	// Err is the underlying failure.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMiddlewareFailed indicates the middleware chain returned an error.
	ErrCodeMiddlewareFailed RuntimeErrorCode = "MIDDLEWARE_FAILED"

	// ErrCodeReducerFailed indicates the composed reducer could not fold the action.
	ErrCodeReducerFailed RuntimeErrorCode = "REDUCER_FAILED"

	// ErrCodeEffectFailed indicates an effect returned an error.
	ErrCodeEffectFailed RuntimeErrorCode = "EFFECT_FAILED"

	// ErrCodeQuotaExceeded indicates an effect chain exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Slice != "" {
		return fmt.Sprintf("%s: %s (seq=%d, correlation=%s, slice=%s): %v",
			e.Code, e.ActionType, e.Seq, e.Correlation, e.Slice, e.Err)
	}
	return fmt.Sprintf("%s: %s (seq=%d, correlation=%s): %v",
		e.Code, e.ActionType, e.Seq, e.Correlation, e.Err)
}

// Unwrap returns the underlying failure.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsReducerError returns true if the error is a reducer failure.
func IsReducerError(err error) bool {
	return hasCode(err, ErrCodeReducerFailed)
}

// IsEffectError returns true if the error is an effect failure.
func IsEffectError(err error) bool {
	return hasCode(err, ErrCodeEffectFailed)
}

// IsMiddlewareError returns true if the error is a middleware failure.
func IsMiddlewareError(err error) bool {
	return hasCode(err, ErrCodeMiddlewareFailed)
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default maximum number of effect follow-ups per
// correlation. It stops runaway effect chains (PING → PING → ...).
const DefaultMaxSteps = 1000

// QuotaEnforcer counts the follow-up actions produced by effects within one
// correlation and enforces a maximum.
//
// Each correlation has its own enforcer. It is created when the first cycle
// of the correlation starts and dropped when the last queued action of the
// correlation completes. Owned by the Run goroutine; not safe for concurrent use.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(correlation string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Correlation: correlation,
			Steps:       q.current,
			Limit:       q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when an effect chain exceeds the max steps quota.
// The follow-up action that would exceed the quota is dropped.
type StepsExceededError struct {
	Correlation string
	Steps       int
	Limit       int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("correlation %s exceeded max steps quota: %d steps > %d limit",
		e.Correlation, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

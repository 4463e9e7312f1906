package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/supervisor/internal/ir"
)

// Recorder receives a record of every completed cycle and pipeline
// reconfiguration. Implemented by journal.Journal.
type Recorder interface {
	RecordCycle(ctx context.Context, rec ir.CycleRecord) error
	RecordPipelineEvent(ctx context.Context, ev ir.PipelineEvent) error
}

// ErrorHandler is called from the Run goroutine for every failed cycle.
type ErrorHandler func(env ir.Envelope, err error)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxSteps sets the maximum number of effect follow-ups per correlation.
//
// Default: 1000 (DefaultMaxSteps)
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(maxSteps int) Option {
	return func(s *Store) {
		if maxSteps > 0 {
			s.maxSteps = maxSteps
		}
	}
}

// WithCorrelationGenerator overrides the correlation token generator.
// Default: UUIDv7Generator.
func WithCorrelationGenerator(gen CorrelationGenerator) Option {
	return func(s *Store) {
		if gen != nil {
			s.corrGen = gen
		}
	}
}

// WithRecorder journals every completed cycle and pipeline event.
func WithRecorder(rec Recorder) Option {
	return func(s *Store) {
		s.recorder = rec
	}
}

// WithErrorHandler registers a callback for failed cycles.
// Failures are logged either way.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(s *Store) {
		s.onError = fn
	}
}

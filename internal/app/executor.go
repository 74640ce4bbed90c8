package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/synaptik/internal/platform/logging"
	"github.com/jsamuelsen/synaptik/internal/platform/telemetry"
)

// Task writes run as staged operations: Validate → Perform → Verify → Archive → Respond.
//
//   1. VALIDATE  - reject malformed requests before reading anything
//   2. PERFORM   - load current state and compute the next task state
//   3. VERIFY    - check rules that span tasks (dependency existence, cycles)
//   4. ARCHIVE   - store the verified state against the version that was read
//   5. RESPOND   - shape the stored result for the caller
//
// Nothing is written before Archive, so a failure in the first three steps
// leaves the store untouched.

// ExecutionStep names a stage of an operation.
type ExecutionStep string

// Operation stages.
const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError records the stage an operation failed in.
type ExecutionError struct {
	Operation string
	Step      ExecutionStep
	Cause     error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Cause)
	}

	return fmt.Sprintf("%s %s: %v", e.Operation, e.Step, e.Cause)
}

// Unwrap returns the underlying cause so domain error checks still apply.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Executor runs operations with per-step logging and failure metrics.
type Executor struct {
	logger  *slog.Logger
	metrics *telemetry.DomainMetrics
}

// NewExecutor creates an executor. Both arguments may be nil.
func NewExecutor(logger *slog.Logger, metrics *telemetry.DomainMetrics) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger, metrics: metrics}
}

// Operation is the set of stage functions for one use case. Nil stages are
// skipped; a nil Verify passes the performed value through unchanged.
type Operation[I, P, O any] struct {
	// Name identifies the operation in logs and metrics.
	Name string

	Validate func(ctx context.Context, input I) error
	Perform  func(ctx context.Context, input I) (P, error)
	Verify   func(ctx context.Context, input I, performed P) (P, error)
	Archive  func(ctx context.Context, input I, verified P) error
	Respond  func(ctx context.Context, input I, verified P) (O, error)
}

// run executes one stage and converts its error.
func (exec *Executor) run(ctx context.Context, logger *slog.Logger, op string, step ExecutionStep, fn func() error) error {
	logger.DebugContext(ctx, "step started", slog.String("step", string(step)))

	if err := fn(); err != nil {
		level := slog.LevelWarn
		if step == StepArchive {
			level = slog.LevelError
		}

		logger.Log(ctx, level, "step failed", slog.String("step", string(step)), slog.Any("error", err))
		exec.metrics.OperationFailed(op, string(step))

		return &ExecutionError{Operation: op, Step: step, Cause: err}
	}

	return nil
}

// Execute runs op over input through every stage in order and stops at the
// first failure.
func Execute[I, P, O any](ctx context.Context, exec *Executor, op Operation[I, P, O], input I) (O, error) {
	var (
		zero      O
		performed P
		result    O
	)

	logger := logging.FromContextOr(ctx, exec.logger).With(slog.String("operation", op.Name))
	start := time.Now()

	steps := []struct {
		step ExecutionStep
		fn   func() error
	}{
		{StepValidate, func() error {
			if op.Validate == nil {
				return nil
			}

			return op.Validate(ctx, input)
		}},
		{StepPerform, func() (err error) {
			if op.Perform == nil {
				return nil
			}

			performed, err = op.Perform(ctx, input)

			return err
		}},
		{StepVerify, func() (err error) {
			if op.Verify == nil {
				return nil
			}

			performed, err = op.Verify(ctx, input, performed)

			return err
		}},
		{StepArchive, func() error {
			if op.Archive == nil {
				return nil
			}

			return op.Archive(ctx, input, performed)
		}},
		{StepRespond, func() (err error) {
			if op.Respond == nil {
				return nil
			}

			result, err = op.Respond(ctx, input, performed)

			return err
		}},
	}

	for _, s := range steps {
		if err := exec.run(ctx, logger, op.Name, s.step, s.fn); err != nil {
			return zero, err
		}
	}

	logger.DebugContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return result, nil
}

// IsExecutionError reports whether err came out of Execute.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError

	return errors.As(err, &execErr)
}

// GetExecutionStep returns the stage err failed in.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}

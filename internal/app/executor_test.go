package app

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/telemetry"
)

func TestExecute_RunsStepsInOrder(t *testing.T) {
	var calls []ExecutionStep

	op := Operation[int, int, string]{
		Name: "double",
		Validate: func(_ context.Context, in int) error {
			calls = append(calls, StepValidate)
			return nil
		},
		Perform: func(_ context.Context, in int) (int, error) {
			calls = append(calls, StepPerform)
			return in * 2, nil
		},
		Verify: func(_ context.Context, _ int, performed int) (int, error) {
			calls = append(calls, StepVerify)
			return performed + 1, nil
		},
		Archive: func(_ context.Context, _ int, verified int) error {
			calls = append(calls, StepArchive)
			assert.Equal(t, 7, verified)
			return nil
		},
		Respond: func(_ context.Context, _ int, verified int) (string, error) {
			calls = append(calls, StepRespond)
			return "ok", nil
		},
	}

	out, err := Execute(context.Background(), NewExecutor(discardLogger(), nil), op, 3)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []ExecutionStep{StepValidate, StepPerform, StepVerify, StepArchive, StepRespond}, calls)
}

func TestExecute_NilStagesAreSkipped(t *testing.T) {
	out, err := Execute(context.Background(), NewExecutor(nil, nil), Operation[int, int, int]{Name: "noop"}, 1)
	require.NoError(t, err)
	assert.Zero(t, out)
}

func TestExecute_StopsAtFailedStep(t *testing.T) {
	cause := domain.NewValidationError("title", "cannot be empty")

	tests := []struct {
		name string
		op   Operation[int, int, int]
		step ExecutionStep
	}{
		{
			name: "validate",
			op: Operation[int, int, int]{
				Validate: func(context.Context, int) error { return cause },
				Archive:  func(context.Context, int, int) error { t.Fatal("archive ran"); return nil },
			},
			step: StepValidate,
		},
		{
			name: "verify",
			op: Operation[int, int, int]{
				Verify:  func(context.Context, int, int) (int, error) { return 0, cause },
				Archive: func(context.Context, int, int) error { t.Fatal("archive ran"); return nil },
			},
			step: StepVerify,
		},
		{
			name: "archive",
			op: Operation[int, int, int]{
				Archive: func(context.Context, int, int) error { return cause },
			},
			step: StepArchive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.op.Name = "task.test"
			metrics := telemetry.NewDomainMetrics(prometheus.NewRegistry())

			_, err := Execute(context.Background(), NewExecutor(discardLogger(), metrics), tt.op, 1)
			require.Error(t, err)

			assert.True(t, IsExecutionError(err))
			assert.True(t, domain.IsValidation(err), "domain error survives wrapping")
			assert.Contains(t, err.Error(), "task.test")

			step, ok := GetExecutionStep(err)
			require.True(t, ok)
			assert.Equal(t, tt.step, step)
		})
	}
}

func TestGetExecutionStep_PlainError(t *testing.T) {
	_, ok := GetExecutionStep(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsExecutionError(errors.New("plain")))
}

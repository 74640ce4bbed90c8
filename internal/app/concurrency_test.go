package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallel2(t *testing.T) {
	n, s, err := Parallel2(context.Background(),
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (string, error) { return "two", nil },
	)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "two", s)

	boom := errors.New("boom")
	n, _, err = Parallel2(context.Background(),
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (string, error) { return "", boom },
	)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, n, "results are zeroed on failure")
}

func TestParallel3_CancelsSiblings(t *testing.T) {
	boom := errors.New("boom")

	_, _, _, err := Parallel3(context.Background(),
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
		func(context.Context) (int, error) { return 0, boom },
		func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(5 * time.Second):
				return 3, nil
			}
		},
	)
	require.ErrorIs(t, err, boom)
}

func TestParallelMap(t *testing.T) {
	var inFlight, peak atomic.Int32

	out, err := ParallelMap(context.Background(), 2, []int{1, 2, 3, 4, 5},
		func(_ context.Context, n int) (int, error) {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)

			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)

			return n * n, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25}, out)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestParallelMap_Error(t *testing.T) {
	boom := errors.New("boom")

	out, err := ParallelMap(context.Background(), 0, []string{"a", "b"},
		func(_ context.Context, s string) (string, error) {
			if s == "b" {
				return "", boom
			}

			return s, nil
		})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, out)
}

func TestParallelMap_Empty(t *testing.T) {
	out, err := ParallelMap(context.Background(), 4, nil,
		func(context.Context, int) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.Empty(t, out)
}

//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/synaptik/internal/adapters/clients/acl"
	"github.com/jsamuelsen/synaptik/internal/domain"
)

// TestConcurrent_Creates verifies that parallel creates all land and get
// distinct IDs.
func TestConcurrent_Creates(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	c := s.client(t)

	const numGoroutines = 30

	var (
		mu  sync.Mutex
		ids = make(map[string]bool, numGoroutines)
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range numGoroutines {
		g.Go(func() error {
			task, err := c.CreateTask(gctx, &domain.TaskInput{Title: fmt.Sprintf("task %02d", i)})
			if err != nil {
				return err
			}

			mu.Lock()
			ids[task.ID] = true
			mu.Unlock()

			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Len(t, ids, numGoroutines, "every create gets its own ID")

	page, err := c.ListTasks(ctx, acl.ListOptions{Limit: numGoroutines})
	require.NoError(t, err)
	assert.Equal(t, numGoroutines, page.Total)
}

// TestConcurrent_OptimisticVersion races writers holding the same version:
// exactly one wins and the rest are told their copy is stale.
func TestConcurrent_OptimisticVersion(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	c := s.client(t)

	task, err := c.CreateTask(ctx, &domain.TaskInput{Title: "Contended"})
	require.NoError(t, err)

	targets := []domain.Status{domain.StatusInProgress, domain.StatusBlocked, domain.StatusCompleted}

	const numGoroutines = 12

	var (
		wg                  sync.WaitGroup
		wins, conflicts     int32
		unexpected          int32
		firstUnexpectedOnce sync.Once
		firstUnexpected     error
	)

	for i := range numGoroutines {
		wg.Add(1)

		go func(status domain.Status) {
			defer wg.Done()

			_, err := c.SetStatus(ctx, task.ID, status, task.Version)

			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case domain.IsConflict(err):
				atomic.AddInt32(&conflicts, 1)
			default:
				atomic.AddInt32(&unexpected, 1)
				firstUnexpectedOnce.Do(func() { firstUnexpected = err })
			}
		}(targets[i%len(targets)])
	}

	wg.Wait()

	require.Zero(t, unexpected, "unexpected error: %v", firstUnexpected)
	assert.Equal(t, int32(1), wins, "exactly one writer wins")
	assert.Equal(t, int32(numGoroutines-1), conflicts)

	got, err := c.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Version+1, got.Version)
}

// TestConcurrent_ReadsDuringWrites keeps the dashboard endpoints busy while
// tasks change underneath them; every read must succeed and stay coherent.
func TestConcurrent_ReadsDuringWrites(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	c := s.client(t)

	seed := make([]*domain.Task, 10)
	for i := range seed {
		task, err := c.CreateTask(ctx, &domain.TaskInput{Title: fmt.Sprintf("seed %d", i), Project: "Load"})
		require.NoError(t, err)

		seed[i] = task
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, task := range seed {
			if _, err := c.SetStatus(gctx, task.ID, domain.StatusCompleted, 0); err != nil {
				return err
			}
		}

		return nil
	})

	for range 4 {
		g.Go(func() error {
			for range 10 {
				summary, err := c.Summary(gctx)
				if err != nil {
					return err
				}

				open := summary.Total - summary.ByStatus[domain.StatusCompleted]
				if summary.Total != len(seed) || open < 0 {
					return fmt.Errorf("incoherent summary: %+v", summary)
				}

				if _, err := c.Projects(gctx, false); err != nil {
					return err
				}
			}

			return nil
		})
	}

	require.NoError(t, g.Wait())

	summary, err := c.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seed), summary.ByStatus[domain.StatusCompleted])
	assert.InDelta(t, 1.0, summary.CompletionRate, 1e-9)
}

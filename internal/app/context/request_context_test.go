package context

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoped(t *testing.T) {
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck // nil ctx is handled
	assert.Nil(t, FromContext(context.Background()))

	ctx := Scoped(context.Background())
	rc := FromContext(ctx)
	require.NotNil(t, rc)

	assert.Same(t, rc, FromContext(Scoped(ctx)), "an existing scope is reused")
}

func TestMemo(t *testing.T) {
	t.Run("fetches once per scope", func(t *testing.T) {
		var calls atomic.Int32
		fetch := func(context.Context) ([]string, error) {
			calls.Add(1)
			return []string{"t-1", "t-2"}, nil
		}

		ctx := Scoped(context.Background())
		for range 3 {
			ids, err := Memo(ctx, "tasks", fetch)
			require.NoError(t, err)
			assert.Equal(t, []string{"t-1", "t-2"}, ids)
		}

		assert.Equal(t, int32(1), calls.Load())

		_, err := Memo(Scoped(context.Background()), "tasks", fetch)
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load(), "a new scope fetches again")
	})

	t.Run("unscoped context always fetches", func(t *testing.T) {
		var calls int
		fetch := func(context.Context) (int, error) { calls++; return calls, nil }

		first, _ := Memo(context.Background(), "n", fetch)
		second, _ := Memo(context.Background(), "n", fetch)

		assert.Equal(t, 1, first)
		assert.Equal(t, 2, second)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		ctx := Scoped(context.Background())
		boom := errors.New("store offline")

		_, err := Memo(ctx, "tasks", func(context.Context) (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)

		n, err := Memo(ctx, "tasks", func(context.Context) (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	})

	t.Run("type mismatch is an error", func(t *testing.T) {
		ctx := Scoped(context.Background())
		_, err := Memo(ctx, "tasks", func(context.Context) (int, error) { return 1, nil })
		require.NoError(t, err)

		_, err = Memo(ctx, "tasks", func(context.Context) (string, error) { return "x", nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), `key "tasks" holds int`)
	})

	t.Run("concurrent callers share one fetch", func(t *testing.T) {
		ctx := Scoped(context.Background())
		release := make(chan struct{})
		var calls atomic.Int32

		fetch := func(context.Context) (int, error) {
			calls.Add(1)
			<-release
			return 42, nil
		}

		var wg sync.WaitGroup
		results := make([]int, 8)

		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = Memo(ctx, "summary", fetch)
			}()
		}

		close(release)
		wg.Wait()

		assert.LessOrEqual(t, calls.Load(), int32(8))
		for _, r := range results {
			assert.Equal(t, 42, r)
		}

		calls.Store(0)
		_, _ = Memo(ctx, "summary", fetch)
		assert.Zero(t, calls.Load(), "later callers hit the cache")
	})

	t.Run("forget", func(t *testing.T) {
		ctx := Scoped(context.Background())
		var calls int
		fetch := func(context.Context) (int, error) { calls++; return calls, nil }

		_, _ = Memo(ctx, "tasks", fetch)
		FromContext(ctx).Forget("tasks")
		n, _ := Memo(ctx, "tasks", fetch)

		assert.Equal(t, 2, n)
	})
}

// recorder is an Action that logs what happened to it.
type recorder struct {
	name     string
	failDo   error
	failUndo error
	log      *[]string
}

func (r *recorder) Execute(context.Context) error {
	*r.log = append(*r.log, "do "+r.name)
	return r.failDo
}

func (r *recorder) Rollback(context.Context) error {
	*r.log = append(*r.log, "undo "+r.name)
	return r.failUndo
}

func (r *recorder) Description() string { return r.name }

func TestCommit(t *testing.T) {
	t.Run("runs actions in order", func(t *testing.T) {
		var log []string
		rc := New()

		for _, id := range []string{"t-1", "t-2", "t-3"} {
			require.NoError(t, rc.AddAction(&recorder{name: id, log: &log}))
		}

		require.NoError(t, rc.Commit(context.Background()))
		assert.Equal(t, []string{"do t-1", "do t-2", "do t-3"}, log)
	})

	t.Run("failure unwinds in reverse", func(t *testing.T) {
		var log []string
		boom := errors.New("version conflict")
		rc := New()

		_ = rc.AddAction(&recorder{name: "t-1", log: &log})
		_ = rc.AddAction(&recorder{name: "t-2", log: &log})
		_ = rc.AddAction(&recorder{name: "t-3", failDo: boom, log: &log})

		err := rc.Commit(context.Background())

		var ce *CommitError
		require.ErrorAs(t, err, &ce)
		require.ErrorIs(t, err, boom)
		assert.Equal(t, "t-3", ce.Action)
		assert.Equal(t, []string{"t-2", "t-1"}, ce.RolledBack)
		assert.NoError(t, ce.RollbackErr)
		assert.Equal(t, []string{"do t-1", "do t-2", "do t-3", "undo t-2", "undo t-1"}, log)
	})

	t.Run("rollback continues past failed undo", func(t *testing.T) {
		var log []string
		undoErr := errors.New("store offline")
		rc := New()

		_ = rc.AddAction(&recorder{name: "t-1", log: &log})
		_ = rc.AddAction(&recorder{name: "t-2", failUndo: undoErr, log: &log})
		_ = rc.AddAction(&recorder{name: "t-3", failDo: errors.New("boom"), log: &log})

		err := rc.Commit(context.Background())

		var ce *CommitError
		require.ErrorAs(t, err, &ce)
		require.ErrorIs(t, ce.RollbackErr, undoErr)
		assert.Equal(t, []string{"t-1"}, ce.RolledBack)
		assert.Contains(t, err.Error(), "rollback incomplete")
	})

	t.Run("cancellation stops and unwinds", func(t *testing.T) {
		var log []string
		ctx, cancel := context.WithCancel(context.Background())
		rc := New()

		_ = rc.AddAction(&FuncAction{Name: "cancel", Do: func(context.Context) error { cancel(); return nil }})
		_ = rc.AddAction(&recorder{name: "t-1", log: &log})

		require.ErrorIs(t, rc.Commit(ctx), context.Canceled)
		assert.Empty(t, log)
	})

	t.Run("committed context is sealed", func(t *testing.T) {
		var log []string
		rc := New()

		require.NoError(t, rc.Commit(context.Background()))
		require.ErrorIs(t, rc.AddAction(&recorder{name: "late", log: &log}), ErrAlreadyCommitted)
		require.ErrorIs(t, rc.Commit(context.Background()), ErrAlreadyCommitted)
	})
}

func TestActions_ReturnsCopy(t *testing.T) {
	var log []string
	rc := New()
	_ = rc.AddAction(&recorder{name: "t-1", log: &log})

	actions := rc.Actions()
	actions[0] = nil

	assert.NotNil(t, rc.Actions()[0])
}

func TestFuncAction(t *testing.T) {
	var did, undid bool

	a := &FuncAction{
		Name: "rename project",
		Do:   func(context.Context) error { did = true; return nil },
		Undo: func(context.Context) error { undid = true; return nil },
	}

	require.NoError(t, a.Execute(context.Background()))
	require.NoError(t, a.Rollback(context.Background()))
	assert.True(t, did)
	assert.True(t, undid)
	assert.Equal(t, "rename project", a.Description())

	noUndo := &FuncAction{Name: "x", Do: func(context.Context) error { return nil }}
	assert.NoError(t, noUndo.Rollback(context.Background()))
}

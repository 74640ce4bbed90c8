package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/synaptik/internal/adapters/storage/memstore"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() ports.Clock {
	return ports.ClockFunc(func() time.Time { return testNow })
}

// sequentialIDs returns t-1, t-2, ...
func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)

	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++

		return fmt.Sprintf("t-%d", n)
	}
}

func days(n int) *time.Time {
	d := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return &d
}

// seedTask builds a stored-shape task without going through a service.
func seedTask(t *testing.T, id string, mutate ...func(*domain.TaskInput)) *domain.Task {
	t.Helper()

	in := domain.TaskInput{Title: "Task " + id}
	for _, m := range mutate {
		m(&in)
	}

	task, err := domain.NewTask(id, in, testNow)
	require.NoError(t, err)

	return task
}

func withDeps(ids ...string) func(*domain.TaskInput) {
	return func(in *domain.TaskInput) { in.Dependencies = ids }
}

func withStatus(s domain.Status) func(*domain.TaskInput) {
	return func(in *domain.TaskInput) { in.Status = s }
}

func withPriority(p domain.Priority) func(*domain.TaskInput) {
	return func(in *domain.TaskInput) { in.Priority = p }
}

func withProject(p string) func(*domain.TaskInput) {
	return func(in *domain.TaskInput) { in.Project = p }
}

func withDue(d *time.Time) func(*domain.TaskInput) {
	return func(in *domain.TaskInput) { in.DueDate = d }
}

func testConfig(repo ports.TaskRepository) ServiceConfig {
	return ServiceConfig{
		Repo:   repo,
		Clock:  fixedClock(),
		NewID:  sequentialIDs(),
		Logger: discardLogger(),
	}
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.TaskEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev ports.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, ev.(ports.TaskEvent))

	return nil
}

func (p *recordingPublisher) types() []ports.TaskEventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]ports.TaskEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}

	return out
}

// flakyRepo fails writes for chosen task IDs.
type flakyRepo struct {
	*memstore.Store
	failUpdate map[string]error
	failDelete error
}

func (r *flakyRepo) Update(ctx context.Context, task *domain.Task, expectedVersion int) (*domain.Task, error) {
	if err, ok := r.failUpdate[task.ID]; ok {
		return nil, err
	}

	return r.Store.Update(ctx, task, expectedVersion)
}

func (r *flakyRepo) Delete(ctx context.Context, id string) error {
	if r.failDelete != nil {
		return r.failDelete
	}

	return r.Store.Delete(ctx, id)
}

// frozenCache serves List from the tasks present when it was built, like a
// cache entry cut before later writes. Writes reach the live store.
type frozenCache struct {
	*memstore.Store
	frozen []*domain.Task
}

var _ ports.CachedRepository = (*frozenCache)(nil)

func newFrozenCache(t *testing.T, store *memstore.Store) *frozenCache {
	t.Helper()

	tasks, err := store.List(context.Background())
	require.NoError(t, err)

	return &frozenCache{Store: store, frozen: tasks}
}

func (f *frozenCache) List(context.Context) ([]*domain.Task, error) { return f.frozen, nil }

func (f *frozenCache) Source() ports.TaskRepository { return f.Store }

func ids(tasks []*domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}

	return out
}

// Package memstore provides an in-memory TaskRepository.
// It is the default store for local development and tests; data is lost on restart.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// Store is a mutex-guarded map of tasks. It is safe for concurrent use.
// Tasks are cloned on the way in and out so callers never share state with the store.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
	order []string
}

// Compile-time interface checks.
var (
	_ ports.TaskRepository = (*Store)(nil)
	_ ports.HealthChecker  = (*Store)(nil)
)

// New creates an empty store, optionally seeded with tasks.
func New(seed ...*domain.Task) *Store {
	s := &Store{tasks: make(map[string]*domain.Task, len(seed))}

	for _, t := range seed {
		c := t.Clone()
		if c.Version == 0 {
			c.Version = 1
		}

		s.tasks[c.ID] = c
		s.order = append(s.order, c.ID)
	}

	return s
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memstore" }

// Check implements ports.HealthChecker. The in-memory store is always healthy.
func (s *Store) Check(ctx context.Context) error { return ctx.Err() }

// Create implements ports.TaskRepository.
func (s *Store) Create(ctx context.Context, task *domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return domain.NewConflictErrorWithDetails("task", "already exists", task.ID)
	}

	c := task.Clone()
	c.Version = 1
	s.tasks[c.ID] = c
	s.order = append(s.order, c.ID)

	return nil
}

// Get implements ports.TaskRepository.
func (s *Store) Get(ctx context.Context, id string) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.NewNotFoundError("task", id)
	}

	return t.Clone(), nil
}

// List implements ports.TaskRepository.
func (s *Store) List(ctx context.Context) ([]*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].Clone())
	}

	return out, nil
}

// Update implements ports.TaskRepository.
func (s *Store) Update(ctx context.Context, task *domain.Task, expectedVersion int) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[task.ID]
	if !ok {
		return nil, domain.NewNotFoundError("task", task.ID)
	}

	if current.Version != expectedVersion {
		return nil, domain.NewVersionConflictError("task", task.ID, expectedVersion, current.Version)
	}

	next := task.Clone()
	next.Version = current.Version + 1
	next.CreatedAt = current.CreatedAt
	s.tasks[next.ID] = next

	return next.Clone(), nil
}

// Delete implements ports.TaskRepository.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return domain.NewNotFoundError("task", id)
	}

	delete(s.tasks, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })

	return nil
}

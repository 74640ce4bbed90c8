package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	appctx "github.com/jsamuelsen/synaptik/internal/app/context"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// MaxBulkTasks caps the number of tasks a single bulk request may touch.
const MaxBulkTasks = 100

// bulkLoadConcurrency bounds concurrent reads while preloading a bulk request.
const bulkLoadConcurrency = 8

// TaskService orchestrates task use cases.
// It is safe for concurrent use; conflicting writes are detected through
// task versions rather than locks.
type TaskService struct {
	base
}

// NewTaskService creates a task service. It panics if cfg.Repo is nil.
func NewTaskService(cfg ServiceConfig) *TaskService {
	return &TaskService{base: newBase(cfg, "app.TaskService")}
}

// Create validates and stores a new task.
// Dependencies must name existing tasks.
func (s *TaskService) Create(ctx context.Context, in domain.TaskInput) (*domain.Task, error) {
	task, err := domain.NewTask(s.newID(), in, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("validating task: %w", err)
	}

	if len(task.Dependencies) > 0 {
		tasks, err := s.list(ctx)
		if err != nil {
			return nil, err
		}

		if err := checkDependencies(tasks, task.ID, task.Dependencies); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	s.metrics.TaskWrite("create")
	s.log(ctx).InfoContext(ctx, "task created", slog.String("task_id", task.ID))
	s.publish(ctx, ports.TaskCreated, task, task.ID)

	return task, nil
}

// Get retrieves a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}

	return task, nil
}

// List filters and sorts every task. Facet counts cover the unfiltered set.
func (s *TaskService) List(ctx context.Context, filter domain.TaskFilter, sort domain.TaskSort) (*domain.FilterResult, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := domain.FilterTasks(tasks, &filter, s.clock.Now())
	domain.SortTasks(result.Tasks, sort)

	return result, nil
}

// Search is List with a required free-text query.
func (s *TaskService) Search(ctx context.Context, query string, filter domain.TaskFilter, sort domain.TaskSort) (*domain.FilterResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewValidationError("q", "cannot be empty")
	}

	filter.Query = query

	return s.List(ctx, filter, sort)
}

// updateRequest carries an update through the executor steps.
type updateRequest struct {
	id              string
	patch           *domain.TaskPatch
	expectedVersion int

	current *domain.Task
	stored  *domain.Task
}

// updateOperation applies a patch: Validate checks the request, Perform
// computes the next state, Verify checks cross-task rules, Archive stores it
// against the expected version.
func (s *TaskService) updateOperation() Operation[*updateRequest, *domain.Task, *domain.Task] {
	return Operation[*updateRequest, *domain.Task, *domain.Task]{
		Name: "task.update",
		Validate: func(_ context.Context, req *updateRequest) error {
			if req.patch == nil || req.patch.Empty() {
				return domain.NewValidationError("body", "no fields to update")
			}

			if req.expectedVersion < 0 {
				return domain.NewValidationErrorWithValue("version", "must be positive", req.expectedVersion)
			}

			return nil
		},
		Perform: func(ctx context.Context, req *updateRequest) (*domain.Task, error) {
			current, err := s.repo.Get(ctx, req.id)
			if err != nil {
				return nil, err
			}

			if req.expectedVersion > 0 && current.Version != req.expectedVersion {
				return nil, domain.NewVersionConflictError("task", req.id, req.expectedVersion, current.Version)
			}

			req.current = current

			return current.Apply(req.patch, s.clock.Now())
		},
		Verify: func(ctx context.Context, req *updateRequest, next *domain.Task) (*domain.Task, error) {
			if req.patch.Dependencies == nil || slices.Equal(next.Dependencies, req.current.Dependencies) {
				return next, nil
			}

			tasks, err := s.list(ctx)
			if err != nil {
				return nil, err
			}

			if err := checkDependencies(tasks, next.ID, next.Dependencies); err != nil {
				return nil, err
			}

			return next, nil
		},
		Archive: func(ctx context.Context, req *updateRequest, next *domain.Task) error {
			stored, err := s.repo.Update(ctx, next, req.current.Version)
			if err != nil {
				return err
			}

			req.stored = stored

			return nil
		},
		Respond: func(_ context.Context, req *updateRequest, _ *domain.Task) (*domain.Task, error) {
			return req.stored, nil
		},
	}
}

// Update applies patch to a task. When expectedVersion is positive the write
// fails with a conflict unless it matches the stored version; zero means
// last write wins.
func (s *TaskService) Update(ctx context.Context, id string, patch *domain.TaskPatch, expectedVersion int) (*domain.Task, error) {
	req := &updateRequest{id: id, patch: patch, expectedVersion: expectedVersion}

	stored, err := Execute(ctx, s.exec, s.updateOperation(), req)
	if err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}

	s.afterUpdate(ctx, req.current, stored)

	return stored, nil
}

// SetStatus moves a task to status.
func (s *TaskService) SetStatus(ctx context.Context, id string, status domain.Status, expectedVersion int) (*domain.Task, error) {
	return s.Update(ctx, id, &domain.TaskPatch{Status: &status}, expectedVersion)
}

// AddDependency makes id depend on depID.
func (s *TaskService) AddDependency(ctx context.Context, id, depID string, expectedVersion int) (*domain.Task, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.DependsOn(depID) {
		return current, nil
	}

	deps := append(slices.Clone(current.Dependencies), depID)

	return s.Update(ctx, id, &domain.TaskPatch{Dependencies: &deps}, expectedVersion)
}

// RemoveDependency drops depID from id's dependencies.
func (s *TaskService) RemoveDependency(ctx context.Context, id, depID string, expectedVersion int) (*domain.Task, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.DependsOn(depID) {
		return nil, domain.NewNotFoundError("dependency", depID)
	}

	deps := slices.DeleteFunc(slices.Clone(current.Dependencies), func(d string) bool { return d == depID })

	return s.Update(ctx, id, &domain.TaskPatch{Dependencies: &deps}, expectedVersion)
}

// Delete removes a task. A task other tasks depend on is only removed with
// force, which also strips it from their dependency lists; the whole change
// is rolled back if any write fails.
func (s *TaskService) Delete(ctx context.Context, id string, force bool) error {
	tasks, err := s.list(ctx)
	if err != nil {
		return err
	}

	target := findTask(tasks, id)
	if target == nil {
		return domain.NewNotFoundError("task", id)
	}

	var dependents []*domain.Task
	for _, t := range tasks {
		if t.DependsOn(id) {
			dependents = append(dependents, t)
		}
	}

	if len(dependents) > 0 && !force {
		return domain.NewConflictErrorWithDetails("task", "other tasks depend on it", strings.Join(taskIDs(dependents), ", "))
	}

	rc := appctx.New()
	updated := make([]*domain.Task, len(dependents))
	now := s.clock.Now()

	for i, dep := range dependents {
		next := dep.Clone()
		next.Dependencies = slices.DeleteFunc(next.Dependencies, func(d string) bool { return d == id })
		next.UpdatedAt = now

		if err := rc.AddAction(s.replaceAction("unlink "+dep.ID, dep, next, &updated[i])); err != nil {
			return fmt.Errorf("staging unlink of %s: %w", dep.ID, err)
		}
	}

	// The delete runs last, so nothing after it can fail and it needs no undo.
	del := &appctx.FuncAction{
		Name: "delete " + id,
		Do:   func(ctx context.Context) error { return s.repo.Delete(ctx, id) },
	}
	if err := rc.AddAction(del); err != nil {
		return fmt.Errorf("staging delete of %s: %w", id, err)
	}

	if err := rc.Commit(ctx); err != nil {
		s.metrics.Rollback()
		s.log(ctx).WarnContext(ctx, "task delete rolled back", slog.String("task_id", id), slog.Any("error", err))

		return fmt.Errorf("deleting task %s: %w", id, err)
	}

	s.metrics.TaskWrite("delete")
	s.log(ctx).InfoContext(ctx, "task deleted", slog.String("task_id", id), slog.Int("unlinked", len(dependents)))

	for _, t := range updated {
		s.publish(ctx, ports.TaskUpdated, t, t.ID)
	}

	s.publish(ctx, ports.TaskDeleted, nil, id)

	return nil
}

// BulkUpdateStatus moves every listed task to status. Either every task is
// updated or, on the first failed write, every applied write is rolled back.
func (s *TaskService) BulkUpdateStatus(ctx context.Context, ids []string, status domain.Status) ([]*domain.Task, error) {
	ids = dedupe(ids)

	switch {
	case len(ids) == 0:
		return nil, domain.NewValidationError("ids", "cannot be empty")
	case len(ids) > MaxBulkTasks:
		return nil, domain.NewValidationError("ids", fmt.Sprintf("at most %d tasks per request", MaxBulkTasks))
	case !status.Valid():
		return nil, domain.NewValidationErrorWithValue("status", "unknown status", string(status))
	}

	current, err := ParallelMap(ctx, bulkLoadConcurrency, ids, func(ctx context.Context, id string) (*domain.Task, error) {
		t, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading task %s: %w", id, err)
		}

		return t, nil
	})
	if err != nil {
		return nil, err
	}

	rc := appctx.New()
	results := make([]*domain.Task, len(ids))
	now := s.clock.Now()

	for i, cur := range current {
		if cur.Status == status {
			results[i] = cur
			continue
		}

		next, err := cur.WithStatus(status, now)
		if err != nil {
			return nil, err
		}

		s.log(ctx).Log(ctx, logging.LevelTrace, "queued status change",
			slog.String("task_id", cur.ID),
			slog.String("from", string(cur.Status)),
			slog.String("to", string(status)),
		)

		if err := rc.AddAction(s.replaceAction("set status "+cur.ID, cur, next, &results[i])); err != nil {
			return nil, fmt.Errorf("staging status change of %s: %w", cur.ID, err)
		}
	}

	if err := rc.Commit(ctx); err != nil {
		s.metrics.Rollback()
		s.log(ctx).WarnContext(ctx, "bulk status update rolled back",
			slog.Int("tasks", len(ids)),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)

		return nil, fmt.Errorf("bulk status update: %w", err)
	}

	for i, t := range results {
		if t != current[i] {
			s.afterUpdate(ctx, current[i], t)
		}
	}

	return results, nil
}

// replaceAction stores next in place of cur and, on rollback, restores cur
// over whatever version the forward write produced.
func (b *base) replaceAction(name string, cur, next *domain.Task, out **domain.Task) appctx.Action {
	return &appctx.FuncAction{
		Name: name,
		Do: func(ctx context.Context) error {
			stored, err := b.repo.Update(ctx, next, cur.Version)
			if err != nil {
				return err
			}

			*out = stored

			return nil
		},
		Undo: func(ctx context.Context) error {
			if *out == nil {
				return nil
			}

			_, err := b.repo.Update(ctx, cur, (*out).Version)

			return err
		},
	}
}

// afterUpdate runs the side effects of a stored update.
func (s *TaskService) afterUpdate(ctx context.Context, before, after *domain.Task) {
	if before == nil || after == nil {
		return
	}

	if before.Status != after.Status {
		s.metrics.TaskWrite("status")
		s.publish(ctx, ports.TaskStatusChanged, after, after.ID)

		if after.Status == domain.StatusCompleted && s.flags.IsEnabled(ctx, ports.FlagAutoUnblock, true) {
			s.unblockDependents(ctx, after.ID)
		}

		return
	}

	s.metrics.TaskWrite("update")
	s.publish(ctx, ports.TaskUpdated, after, after.ID)
}

// unblockDependents moves blocked tasks that depended on closedID back to
// pending once none of their dependencies are open. Best effort: failures
// are logged and the remaining tasks are still tried.
func (s *TaskService) unblockDependents(ctx context.Context, closedID string) {
	tasks, err := s.list(ctx)
	if err != nil {
		s.log(ctx).WarnContext(ctx, "auto-unblock skipped", slog.Any("error", err))
		return
	}

	now := s.clock.Now()

	for _, t := range tasks {
		if t.Status != domain.StatusBlocked || !t.DependsOn(closedID) || domain.BlockedByDependencies(tasks, t) {
			continue
		}

		next, err := t.WithStatus(domain.StatusPending, now)
		if err != nil {
			continue
		}

		stored, err := s.repo.Update(ctx, next, t.Version)
		if err != nil {
			s.log(ctx).WarnContext(ctx, "auto-unblock failed", slog.String("task_id", t.ID), slog.Any("error", err))
			continue
		}

		s.log(ctx).InfoContext(ctx, "task unblocked", slog.String("task_id", t.ID), slog.String("by", closedID))
		s.metrics.TaskWrite("status")
		s.publish(ctx, ports.TaskStatusChanged, stored, stored.ID)
	}
}

// checkDependencies rejects unknown dependencies and dependency cycles.
func checkDependencies(tasks []*domain.Task, id string, deps []string) error {
	for _, d := range deps {
		if findTask(tasks, d) == nil {
			return domain.NewValidationErrorWithValue("dependencies", "unknown task", d)
		}
	}

	if cycle := domain.WouldCreateCycle(tasks, id, deps); cycle != nil {
		return domain.NewDependencyCycleError(cycle)
	}

	return nil
}

func findTask(tasks []*domain.Task, id string) *domain.Task {
	for _, t := range tasks {
		if t.ID == id {
			return t
		}
	}

	return nil
}

func taskIDs(tasks []*domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}

	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}

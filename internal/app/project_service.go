package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	appctx "github.com/jsamuelsen/synaptik/internal/app/context"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// MaxProjectNameLength bounds project names.
const MaxProjectNameLength = 128

// ProjectService exposes projects, which are derived from task project names.
type ProjectService struct {
	base
}

// NewProjectService creates a project service. It panics if cfg.Repo is nil.
func NewProjectService(cfg ServiceConfig) *ProjectService {
	return &ProjectService{base: newBase(cfg, "app.ProjectService")}
}

// List aggregates every project. Tasks without a project are grouped under
// domain.UnassignedProject when includeUnassigned is set.
func (s *ProjectService) List(ctx context.Context, includeUnassigned bool) ([]*domain.Project, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return domain.GroupByProject(tasks, s.clock.Now(), includeUnassigned), nil
}

// Get aggregates one project, matched case-insensitively.
func (s *ProjectService) Get(ctx context.Context, name string) (*domain.Project, error) {
	tasks, err := s.Tasks(ctx, name, domain.DefaultSort)
	if err != nil {
		return nil, err
	}

	display := tasks[0].Project
	if display == "" {
		display = domain.UnassignedProject
	}

	return domain.NewProject(display, tasks, s.clock.Now()), nil
}

// Tasks lists the tasks of one project in the given order.
func (s *ProjectService) Tasks(ctx context.Context, name string, sort domain.TaskSort) ([]*domain.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "cannot be empty")
	}

	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	tasks := projectTasks(all, name)
	if len(tasks) == 0 {
		return nil, domain.NewNotFoundError("project", name)
	}

	domain.SortTasks(tasks, sort)

	return tasks, nil
}

// Rename moves every task of project oldName to newName. Renaming onto another
// existing project is a conflict. Either every task is moved or none is.
func (s *ProjectService) Rename(ctx context.Context, oldName, newName string) (*domain.Project, error) {
	newName = strings.TrimSpace(newName)

	switch {
	case newName == "":
		return nil, domain.NewValidationError("name", "cannot be empty")
	case len([]rune(newName)) > MaxProjectNameLength:
		return nil, domain.NewValidationError("name", fmt.Sprintf("must be at most %d characters", MaxProjectNameLength))
	case strings.EqualFold(newName, domain.UnassignedProject):
		return nil, domain.NewValidationErrorWithValue("name", "is reserved", newName)
	case strings.EqualFold(oldName, domain.UnassignedProject):
		return nil, domain.NewValidationErrorWithValue("name", "unassigned tasks cannot be renamed as a project", oldName)
	}

	all, err := s.list(ctx)
	if err != nil {
		return nil, err
	}

	tasks := projectTasks(all, oldName)
	if len(tasks) == 0 {
		return nil, domain.NewNotFoundError("project", oldName)
	}

	if !strings.EqualFold(oldName, newName) && len(projectTasks(all, newName)) > 0 {
		return nil, domain.NewConflictErrorWithDetails("project", "already exists", newName)
	}

	rc := appctx.New()
	renamed := make([]*domain.Task, len(tasks))
	now := s.clock.Now()

	for i, t := range tasks {
		next := t.Clone()
		next.Project = newName
		next.UpdatedAt = now

		if err := rc.AddAction(s.replaceAction("rename "+t.ID, t, next, &renamed[i])); err != nil {
			return nil, fmt.Errorf("staging rename of %s: %w", t.ID, err)
		}
	}

	if err := rc.Commit(ctx); err != nil {
		s.metrics.Rollback()
		s.log(ctx).WarnContext(ctx, "project rename rolled back",
			slog.String("from", oldName),
			slog.String("to", newName),
			slog.Any("error", err),
		)

		return nil, fmt.Errorf("renaming project %s: %w", oldName, err)
	}

	s.log(ctx).InfoContext(ctx, "project renamed",
		slog.String("from", oldName),
		slog.String("to", newName),
		slog.Int("tasks", len(renamed)),
	)

	for _, t := range renamed {
		s.metrics.TaskWrite("update")
		s.publish(ctx, ports.TaskUpdated, t, t.ID)
	}

	return domain.NewProject(newName, renamed, now), nil
}

// projectTasks returns the tasks of project name. domain.UnassignedProject
// selects tasks without a project.
func projectTasks(tasks []*domain.Task, name string) []*domain.Task {
	var out []*domain.Task

	for _, t := range tasks {
		project := t.Project
		if project == "" {
			project = domain.UnassignedProject
		}

		if strings.EqualFold(project, strings.TrimSpace(name)) {
			out = append(out, t)
		}
	}

	return out
}

package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// UnassignedProject is the display name for tasks without a project.
const UnassignedProject = "Unassigned"

// ProjectHealth is the derived state of a project.
type ProjectHealth string

// Project health values.
const (
	HealthNotStarted ProjectHealth = "not-started"
	HealthOnTrack    ProjectHealth = "on-track"
	HealthAtRisk     ProjectHealth = "at-risk"
	HealthCompleted  ProjectHealth = "completed"
)

// Project aggregates the tasks sharing a project name. It is derived, never stored.
type Project struct {
	Name         string
	TaskCount    int
	StatusCounts StatusCounts
	Progress     int
	Overdue      int
	Assignees    []string
	NextDue      *time.Time
	Health       ProjectHealth
}

// NewProject aggregates tasks that all belong to name.
func NewProject(name string, tasks []*Task, now time.Time) *Project {
	p := &Project{
		Name:         name,
		TaskCount:    len(tasks),
		StatusCounts: CountByStatus(tasks),
		Assignees:    []string{},
	}

	for _, t := range tasks {
		if t.Assignee != "" && !slices.Contains(p.Assignees, t.Assignee) {
			p.Assignees = append(p.Assignees, t.Assignee)
		}

		if t.IsOverdue(now) {
			p.Overdue++
		}

		if t.IsOpen() && t.DueDate != nil && (p.NextDue == nil || t.DueDate.Before(*p.NextDue)) {
			due := *t.DueDate
			p.NextDue = &due
		}
	}

	slices.Sort(p.Assignees)
	p.Progress = int(completionRate(p.StatusCounts)*100 + 0.5)
	p.Health = projectHealth(p)

	return p
}

func projectHealth(p *Project) ProjectHealth {
	c := p.StatusCounts
	active := p.TaskCount - c[StatusCancelled]

	switch {
	case active > 0 && c[StatusCompleted] == active:
		return HealthCompleted
	case p.Overdue > 0 || c[StatusBlocked] > 0:
		return HealthAtRisk
	case c[StatusInProgress] == 0 && c[StatusCompleted] == 0:
		return HealthNotStarted
	default:
		return HealthOnTrack
	}
}

// GroupByProject aggregates tasks per project, sorted by name (case-insensitive).
// Tasks without a project are grouped under UnassignedProject only when
// includeUnassigned is set.
func GroupByProject(tasks []*Task, now time.Time, includeUnassigned bool) []*Project {
	groups := make(map[string][]*Task)
	names := make(map[string]string)

	for _, t := range tasks {
		name := t.Project
		if name == "" {
			if !includeUnassigned {
				continue
			}

			name = UnassignedProject
		}

		key := strings.ToLower(name)
		if _, ok := names[key]; !ok {
			names[key] = name
		}

		groups[key] = append(groups[key], t)
	}

	projects := make([]*Project, 0, len(groups))
	for key, ts := range groups {
		projects = append(projects, NewProject(names[key], ts, now))
	}

	slices.SortFunc(projects, func(a, b *Project) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	return projects
}

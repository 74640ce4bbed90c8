package domain

import (
	"slices"
	"strings"
	"time"
)

// TaskFilter selects tasks. Values within one field are OR'ed, fields are AND'ed.
// The zero value matches every task.
type TaskFilter struct {
	Statuses   []Status
	Priorities []Priority
	Assignee   string
	Project    string
	Tag        string
	DueFrom    *time.Time
	DueTo      *time.Time
	// DueBefore is an exclusive upper bound, set for whole-day due_to values.
	DueBefore   *time.Time
	Query       string
	OverdueOnly bool
}

// IsEmpty reports whether the filter matches everything.
func (f *TaskFilter) IsEmpty() bool {
	return len(f.Statuses) == 0 && len(f.Priorities) == 0 && f.Assignee == "" &&
		f.Project == "" && f.Tag == "" && f.DueFrom == nil && f.DueTo == nil &&
		f.DueBefore == nil && strings.TrimSpace(f.Query) == "" && !f.OverdueOnly
}

// Matches reports whether t satisfies every set field.
func (f *TaskFilter) Matches(t *Task, now time.Time) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}

	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, t.Priority) {
		return false
	}

	if f.Assignee != "" && !strings.EqualFold(f.Assignee, t.Assignee) {
		return false
	}

	if f.Project != "" && !strings.EqualFold(f.Project, t.Project) {
		return false
	}

	if f.Tag != "" && !slices.Contains(t.Tags, strings.ToLower(strings.TrimSpace(f.Tag))) {
		return false
	}

	if f.DueFrom != nil && (t.DueDate == nil || t.DueDate.Before(*f.DueFrom)) {
		return false
	}

	if f.DueTo != nil && (t.DueDate == nil || t.DueDate.After(*f.DueTo)) {
		return false
	}

	if f.DueBefore != nil && (t.DueDate == nil || !t.DueDate.Before(*f.DueBefore)) {
		return false
	}

	if f.OverdueOnly && !t.IsOverdue(now) {
		return false
	}

	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" && !matchesQuery(t, q) {
		return false
	}

	return true
}

// Apply returns the matching tasks in their original order.
func (f *TaskFilter) Apply(tasks []*Task, now time.Time) []*Task {
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t, now) {
			out = append(out, t)
		}
	}

	return out
}

func matchesQuery(t *Task, q string) bool {
	for _, term := range strings.Fields(q) {
		if !strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) &&
			!slices.ContainsFunc(t.Tags, func(tag string) bool { return strings.Contains(tag, term) }) {
			return false
		}
	}

	return true
}

// StatusCounts maps each status to the number of tasks in it.
// Every known status is present, possibly with zero.
type StatusCounts map[Status]int

// PriorityCounts maps each priority to the number of tasks with it.
type PriorityCounts map[Priority]int

// CountByStatus counts tasks per status in one pass.
func CountByStatus(tasks []*Task) StatusCounts {
	counts := make(StatusCounts, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}

	for _, t := range tasks {
		counts[t.Status]++
	}

	return counts
}

// CountByPriority counts tasks per priority in one pass.
func CountByPriority(tasks []*Task) PriorityCounts {
	counts := make(PriorityCounts, len(Priorities))
	for _, p := range Priorities {
		counts[p] = 0
	}

	for _, t := range tasks {
		counts[t.Priority]++
	}

	return counts
}

// Total sums all counts.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}

	return n
}

// FilterResult is a filtered task list plus facet counts over the unfiltered set.
type FilterResult struct {
	Tasks      []*Task
	Total      int
	Matched    int
	ByStatus   StatusCounts
	ByPriority PriorityCounts
}

// FilterTasks applies f and computes facet counts over all of tasks, so the
// counts stay stable while the filter is being edited.
func FilterTasks(tasks []*Task, f *TaskFilter, now time.Time) *FilterResult {
	matched := f.Apply(tasks, now)

	return &FilterResult{
		Tasks:      matched,
		Total:      len(tasks),
		Matched:    len(matched),
		ByStatus:   CountByStatus(tasks),
		ByPriority: CountByPriority(tasks),
	}
}

// Package domain contains core business entities and rules.
package domain

import (
	"slices"
	"strings"
	"time"
)

// Field limits for task text.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxTags              = 32
	MaxDependencies      = 64
)

// Status is the lifecycle state of a task.
type Status string

// Task statuses.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusBlocked,
	StatusCompleted,
	StatusCancelled,
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", NewValidationErrorWithValue("status", "unknown status", s)
	}

	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Terminal reports whether no further work is expected for the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Priority ranks how important a task is.
type Priority string

// Task priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from most to least important.
var Priorities = []Priority{
	PriorityUrgent,
	PriorityHigh,
	PriorityMedium,
	PriorityLow,
}

// ParsePriority converts a string to a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", NewValidationErrorWithValue("priority", "unknown priority", s)
	}

	return p, nil
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return slices.Contains(Priorities, p)
}

// Rank orders priorities; urgent is 0.
func (p Priority) Rank() int {
	if i := slices.Index(Priorities, p); i >= 0 {
		return i
	}

	return len(Priorities)
}

// Important reports whether the priority counts as important in the
// Eisenhower matrix.
func (p Priority) Important() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// Task is a single unit of work.
type Task struct {
	ID           string
	Title        string
	Description  string
	Status       Status
	Priority     Priority
	StartDate    *time.Time
	DueDate      *time.Time
	CompletedAt  *time.Time
	Assignee     string
	Project      string
	Tags         []string
	Dependencies []string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TaskInput carries the fields accepted when creating a task.
type TaskInput struct {
	Title        string
	Description  string
	Status       Status
	Priority     Priority
	StartDate    *time.Time
	DueDate      *time.Time
	Assignee     string
	Project      string
	Tags         []string
	Dependencies []string
}

// TaskPatch is a partial update. Nil fields are left untouched.
// ClearStartDate and ClearDueDate remove the respective dates.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *Status
	Priority       *Priority
	StartDate      *time.Time
	DueDate        *time.Time
	ClearStartDate bool
	ClearDueDate   bool
	Assignee       *string
	Project        *string
	Tags           *[]string
	Dependencies   *[]string
}

// Empty reports whether the patch changes nothing.
func (p *TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.StartDate == nil && p.DueDate == nil &&
		!p.ClearStartDate && !p.ClearDueDate && p.Assignee == nil &&
		p.Project == nil && p.Tags == nil && p.Dependencies == nil
}

// NewTask builds a validated task from input. The caller assigns the ID.
func NewTask(id string, in TaskInput, now time.Time) (*Task, error) {
	t := &Task{
		ID:           id,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Status:       in.Status,
		Priority:     in.Priority,
		StartDate:    in.StartDate,
		DueDate:      in.DueDate,
		Assignee:     strings.TrimSpace(in.Assignee),
		Project:      strings.TrimSpace(in.Project),
		Tags:         NormalizeTags(in.Tags),
		Dependencies: normalizeIDs(in.Dependencies),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if t.Status == "" {
		t.Status = StatusPending
	}

	if t.Priority == "" {
		t.Priority = PriorityMedium
	}

	if t.Status == StatusCompleted {
		t.CompletedAt = &now
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks the task invariants.
func (t *Task) Validate() error {
	if t.Title == "" {
		return NewValidationError("title", "cannot be empty")
	}

	if len([]rune(t.Title)) > MaxTitleLength {
		return NewValidationError("title", "must be at most 200 characters")
	}

	if len([]rune(t.Description)) > MaxDescriptionLength {
		return NewValidationError("description", "must be at most 5000 characters")
	}

	if !t.Status.Valid() {
		return NewValidationErrorWithValue("status", "unknown status", string(t.Status))
	}

	if !t.Priority.Valid() {
		return NewValidationErrorWithValue("priority", "unknown priority", string(t.Priority))
	}

	if strings.EqualFold(t.Project, UnassignedProject) {
		return NewValidationErrorWithValue("project", "is reserved for tasks without a project", t.Project)
	}

	if t.StartDate != nil && t.DueDate != nil && t.DueDate.Before(*t.StartDate) {
		return NewValidationError("dueDate", "must not be before startDate")
	}

	if len(t.Tags) > MaxTags {
		return NewValidationError("tags", "too many tags")
	}

	if len(t.Dependencies) > MaxDependencies {
		return NewValidationError("dependencies", "too many dependencies")
	}

	if t.ID != "" && slices.Contains(t.Dependencies, t.ID) {
		return NewValidationError("dependencies", "task cannot depend on itself")
	}

	return nil
}

// Apply returns a copy of the task with the patch applied and validated.
// The version is not bumped; repositories own versioning.
func (t *Task) Apply(p *TaskPatch, now time.Time) (*Task, error) {
	next := t.Clone()

	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}

	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}

	if p.Priority != nil {
		next.Priority = *p.Priority
	}

	if p.ClearStartDate {
		next.StartDate = nil
	} else if p.StartDate != nil {
		next.StartDate = p.StartDate
	}

	if p.ClearDueDate {
		next.DueDate = nil
	} else if p.DueDate != nil {
		next.DueDate = p.DueDate
	}

	if p.Assignee != nil {
		next.Assignee = strings.TrimSpace(*p.Assignee)
	}

	if p.Project != nil {
		next.Project = strings.TrimSpace(*p.Project)
	}

	if p.Tags != nil {
		next.Tags = NormalizeTags(*p.Tags)
	}

	if p.Dependencies != nil {
		next.Dependencies = normalizeIDs(*p.Dependencies)
	}

	if p.Status != nil {
		next.setStatus(*p.Status, now)
	}

	next.UpdatedAt = now

	if err := next.Validate(); err != nil {
		return nil, err
	}

	return next, nil
}

// WithStatus returns a copy of the task moved to status.
func (t *Task) WithStatus(s Status, now time.Time) (*Task, error) {
	return t.Apply(&TaskPatch{Status: &s}, now)
}

func (t *Task) setStatus(s Status, now time.Time) {
	if s == t.Status {
		return
	}

	t.Status = s
	if s == StatusCompleted {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
}

// IsOpen reports whether the task still needs work.
func (t *Task) IsOpen() bool {
	return !t.Status.Terminal()
}

// IsOverdue reports whether an open task's due date is before today.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || !t.IsOpen() {
		return false
	}

	return t.DueDate.Before(StartOfDay(now))
}

// DependsOn reports whether the task lists id as a dependency.
func (t *Task) DependsOn(id string) bool {
	return slices.Contains(t.Dependencies, id)
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = slices.Clone(t.Tags)
	c.Dependencies = slices.Clone(t.Dependencies)
	c.StartDate = cloneTime(t.StartDate)
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)

	return &c
}

// NormalizeTags trims, lower-cases and deduplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || slices.Contains(out, tag) {
			continue
		}

		out = append(out, tag)
	}

	return out
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}

		out = append(out, id)
	}

	return out
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := *t

	return &c
}

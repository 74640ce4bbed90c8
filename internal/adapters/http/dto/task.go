package dto

import (
	"strconv"
	"strings"
	"time"

	"github.com/jsamuelsen/synaptik/internal/domain"
)

// dateLayout is accepted for date-only values alongside RFC 3339.
const dateLayout = "2006-01-02"

// TaskResponse is the wire form of a task.
type TaskResponse struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	StartDate    *time.Time `json:"startDate,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Assignee     string     `json:"assignee,omitempty"`
	Project      string     `json:"project,omitempty"`
	Tags         []string   `json:"tags"`
	Dependencies []string   `json:"dependencies"`
	Overdue      bool       `json:"overdue"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NewTaskResponse converts a domain task. now decides the overdue flag.
func NewTaskResponse(t *domain.Task, now time.Time) TaskResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}

	deps := t.Dependencies
	if deps == nil {
		deps = []string{}
	}

	return TaskResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		StartDate:    t.StartDate,
		DueDate:      t.DueDate,
		CompletedAt:  t.CompletedAt,
		Assignee:     t.Assignee,
		Project:      t.Project,
		Tags:         tags,
		Dependencies: deps,
		Overdue:      t.IsOverdue(now),
		Version:      t.Version,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// NewTaskResponses converts a slice of tasks.
func NewTaskResponses(tasks []*domain.Task, now time.Time) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, NewTaskResponse(t, now))
	}

	return out
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title        string   `json:"title" validate:"notempty,max=200"`
	Description  string   `json:"description" validate:"max=5000"`
	Status       string   `json:"status" validate:"omitempty,status"`
	Priority     string   `json:"priority" validate:"omitempty,priority"`
	StartDate    string   `json:"startDate"`
	DueDate      string   `json:"dueDate"`
	Assignee     string   `json:"assignee" validate:"max=128"`
	Project      string   `json:"project" validate:"max=128"`
	Tags         []string `json:"tags" validate:"max=32"`
	Dependencies []string `json:"dependencies" validate:"max=64"`
}

// ToInput converts the request into a domain input.
func (r *CreateTaskRequest) ToInput() (domain.TaskInput, error) {
	start, err := ParseDate("startDate", r.StartDate)
	if err != nil {
		return domain.TaskInput{}, err
	}

	due, err := ParseDate("dueDate", r.DueDate)
	if err != nil {
		return domain.TaskInput{}, err
	}

	return domain.TaskInput{
		Title:        r.Title,
		Description:  r.Description,
		Status:       domain.Status(r.Status),
		Priority:     domain.Priority(r.Priority),
		StartDate:    start,
		DueDate:      due,
		Assignee:     r.Assignee,
		Project:      r.Project,
		Tags:         r.Tags,
		Dependencies: r.Dependencies,
	}, nil
}

// UpdateTaskRequest is the body of PATCH /api/tasks/:id. Absent fields are
// left untouched; an empty startDate or dueDate clears the date. Version, when
// set, must match the stored version.
type UpdateTaskRequest struct {
	Title        *string   `json:"title" validate:"omitempty,notempty,max=200"`
	Description  *string   `json:"description" validate:"omitempty,max=5000"`
	Status       *string   `json:"status" validate:"omitempty,status"`
	Priority     *string   `json:"priority" validate:"omitempty,priority"`
	StartDate    *string   `json:"startDate"`
	DueDate      *string   `json:"dueDate"`
	Assignee     *string   `json:"assignee" validate:"omitempty,max=128"`
	Project      *string   `json:"project" validate:"omitempty,max=128"`
	Tags         *[]string `json:"tags"`
	Dependencies *[]string `json:"dependencies"`
	Version      int       `json:"version" validate:"gte=0"`
}

// ToPatch converts the request into a domain patch.
func (r *UpdateTaskRequest) ToPatch() (*domain.TaskPatch, error) {
	p := &domain.TaskPatch{
		Title:        r.Title,
		Description:  r.Description,
		Assignee:     r.Assignee,
		Project:      r.Project,
		Tags:         r.Tags,
		Dependencies: r.Dependencies,
	}

	if r.Status != nil {
		s := domain.Status(*r.Status)
		p.Status = &s
	}

	if r.Priority != nil {
		pr := domain.Priority(*r.Priority)
		p.Priority = &pr
	}

	if r.StartDate != nil {
		if strings.TrimSpace(*r.StartDate) == "" {
			p.ClearStartDate = true
		} else {
			d, err := ParseDate("startDate", *r.StartDate)
			if err != nil {
				return nil, err
			}

			p.StartDate = d
		}
	}

	if r.DueDate != nil {
		if strings.TrimSpace(*r.DueDate) == "" {
			p.ClearDueDate = true
		} else {
			d, err := ParseDate("dueDate", *r.DueDate)
			if err != nil {
				return nil, err
			}

			p.DueDate = d
		}
	}

	return p, nil
}

// ReplaceTaskRequest is the body of PUT /api/tasks/:id. Every field is
// written; omitted optional fields are cleared.
type ReplaceTaskRequest struct {
	CreateTaskRequest

	Version int `json:"version" validate:"gte=0"`
}

// ToPatch converts a full replacement into a patch that sets every field.
func (r *ReplaceTaskRequest) ToPatch() (*domain.TaskPatch, error) {
	in, err := r.ToInput()
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = domain.StatusPending
	}

	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	deps := in.Dependencies
	if deps == nil {
		deps = []string{}
	}

	return &domain.TaskPatch{
		Title:          &in.Title,
		Description:    &in.Description,
		Status:         &status,
		Priority:       &priority,
		StartDate:      in.StartDate,
		DueDate:        in.DueDate,
		ClearStartDate: in.StartDate == nil,
		ClearDueDate:   in.DueDate == nil,
		Assignee:       &in.Assignee,
		Project:        &in.Project,
		Tags:           &tags,
		Dependencies:   &deps,
	}, nil
}

// StatusRequest is the body of PATCH /api/tasks/:id/status.
type StatusRequest struct {
	Status  string `json:"status" validate:"required,status"`
	Version int    `json:"version" validate:"gte=0"`
}

// BulkStatusRequest is the body of POST /api/tasks/bulk/status.
type BulkStatusRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=100,dive,notempty"`
	Status string   `json:"status" validate:"required,status"`
}

// BulkStatusResponse lists the tasks after a bulk update.
type BulkStatusResponse struct {
	Tasks   []TaskResponse `json:"tasks"`
	Updated int            `json:"updated"`
}

// DependencyRequest is the body of POST /api/tasks/:id/dependencies.
type DependencyRequest struct {
	DependsOn string `json:"dependsOn" validate:"notempty"`
	Version   int    `json:"version" validate:"gte=0"`
}

// TaskListQuery holds the filter, sort and paging query parameters shared by
// the list and search endpoints.
type TaskListQuery struct {
	PageQuery

	Status   []string `form:"status"`
	Priority []string `form:"priority"`
	Assignee string   `form:"assignee"`
	Project  string   `form:"project"`
	Tag      string   `form:"tag"`
	DueFrom  string   `form:"due_from"`
	DueTo    string   `form:"due_to"`
	Overdue  bool     `form:"overdue"`
	Query    string   `form:"q"`
	Sort     string   `form:"sort"`
	Order    string   `form:"order"`
}

// Filter builds the domain filter. Multi-valued parameters may repeat or be
// comma separated.
func (q *TaskListQuery) Filter() (domain.TaskFilter, error) {
	f := domain.TaskFilter{
		Assignee:    strings.TrimSpace(q.Assignee),
		Project:     strings.TrimSpace(q.Project),
		Tag:         strings.TrimSpace(q.Tag),
		Query:       strings.TrimSpace(q.Query),
		OverdueOnly: q.Overdue,
	}

	for _, raw := range splitValues(q.Status) {
		s, err := domain.ParseStatus(raw)
		if err != nil {
			return domain.TaskFilter{}, err
		}

		f.Statuses = append(f.Statuses, s)
	}

	for _, raw := range splitValues(q.Priority) {
		p, err := domain.ParsePriority(raw)
		if err != nil {
			return domain.TaskFilter{}, err
		}

		f.Priorities = append(f.Priorities, p)
	}

	var err error

	if f.DueFrom, err = ParseDate("due_from", q.DueFrom); err != nil {
		return domain.TaskFilter{}, err
	}

	if f.DueTo, err = ParseDate("due_to", q.DueTo); err != nil {
		return domain.TaskFilter{}, err
	}

	// A date-only due_to covers the whole day.
	if f.DueTo != nil && isDateOnly(q.DueTo) {
		end := f.DueTo.AddDate(0, 0, 1)
		f.DueTo, f.DueBefore = nil, &end
	}

	return f, nil
}

// TaskSort builds the domain ordering.
func (q *TaskListQuery) TaskSort() (domain.TaskSort, error) {
	return domain.ParseSort(q.Sort, q.Order)
}

// TaskListResponse is a page of tasks plus facet counts over every task.
type TaskListResponse struct {
	Page[TaskResponse]

	Total      int            `json:"total"`
	Matched    int            `json:"matched"`
	ByStatus   map[string]int `json:"byStatus"`
	ByPriority map[string]int `json:"byPriority"`
}

// NewTaskListResponse pages result, which must be in s order.
func NewTaskListResponse(result *domain.FilterResult, q *PageQuery, s domain.TaskSort, now time.Time) (*TaskListResponse, error) {
	tasks, next, err := PageTasks(result.Tasks, q, s)
	if err != nil {
		return nil, err
	}

	return &TaskListResponse{
		Page: Page[TaskResponse]{
			Items:      NewTaskResponses(tasks, now),
			NextCursor: next,
			HasMore:    next != "",
		},
		Total:      result.Total,
		Matched:    result.Matched,
		ByStatus:   statusCounts(result.ByStatus),
		ByPriority: priorityCounts(result.ByPriority),
	}, nil
}

// ParseDate accepts RFC 3339 timestamps or YYYY-MM-DD dates (midnight UTC).
// An empty value yields nil.
func ParseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}

	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, domain.NewValidationErrorWithValue(field, "must be an RFC 3339 timestamp or YYYY-MM-DD date", raw)
	}

	return &t, nil
}

func isDateOnly(raw string) bool {
	_, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	return err == nil
}

// ParseVersion reads an If-Match header value such as `"3"` or `W/"3"`.
// An empty header yields 0.
func ParseVersion(header string) (int, error) {
	v := strings.TrimSpace(header)
	if v == "" || v == "*" {
		return 0, nil
	}

	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.NewValidationErrorWithValue("If-Match", "must be a task version", header)
	}

	return n, nil
}

// ETag formats a task version for the ETag header.
func ETag(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}

func splitValues(values []string) []string {
	var out []string

	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

func statusCounts(c domain.StatusCounts) map[string]int {
	out := make(map[string]int, len(c))
	for k, v := range c {
		out[string(k)] = v
	}

	return out
}

func priorityCounts(c domain.PriorityCounts) map[string]int {
	out := make(map[string]int, len(c))
	for k, v := range c {
		out[string(k)] = v
	}

	return out
}

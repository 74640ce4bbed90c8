package acl

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jsamuelsen/synaptik/internal/adapters/clients"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
)

// TaskClientConfig contains configuration for the task API client.
type TaskClientConfig struct {
	// Client is the instrumented HTTP client pointed at the API base URL.
	Client *clients.Client

	// ServiceName overrides the name used in errors. Defaults to "synaptik".
	ServiceName string

	Logger *slog.Logger
}

// TaskClient talks to a remote Synaptik API and hands back domain types.
// The wire format stays inside this file.
type TaskClient struct {
	remote
	logger *slog.Logger
}

// NewTaskClient creates a task API client.
// It panics if cfg.Client is nil.
func NewTaskClient(cfg TaskClientConfig) *TaskClient {
	if cfg.Client == nil {
		panic("TaskClient: Client is required")
	}

	name := cfg.ServiceName
	if name == "" {
		name = "synaptik"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskClient{
		remote: remote{client: cfg.Client, service: name},
		logger: logger.With(slog.String("component", "acl.TaskClient")),
	}
}

// wireTask is a task as the API serializes it.
type wireTask struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	StartDate    *time.Time `json:"startDate"`
	DueDate      *time.Time `json:"dueDate"`
	CompletedAt  *time.Time `json:"completedAt"`
	Assignee     string     `json:"assignee"`
	Project      string     `json:"project"`
	Tags         []string   `json:"tags"`
	Dependencies []string   `json:"dependencies"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type wireTaskList struct {
	Items      []wireTask     `json:"items"`
	NextCursor string         `json:"nextCursor"`
	HasMore    bool           `json:"hasMore"`
	Total      int            `json:"total"`
	Matched    int            `json:"matched"`
	ByStatus   map[string]int `json:"byStatus"`
}

type wireTasks struct {
	Tasks []wireTask `json:"tasks"`
}

type wireSummary struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"byStatus"`
	ByPriority     map[string]int `json:"byPriority"`
	Overdue        int            `json:"overdue"`
	DueToday       int            `json:"dueToday"`
	DueThisWeek    int            `json:"dueThisWeek"`
	CompletionRate float64        `json:"completionRate"`
}

type wireProject struct {
	Name         string         `json:"name"`
	TaskCount    int            `json:"taskCount"`
	StatusCounts map[string]int `json:"statusCounts"`
	Progress     int            `json:"progress"`
	Overdue      int            `json:"overdue"`
	Assignees    []string       `json:"assignees"`
	NextDue      *time.Time     `json:"nextDue"`
	Health       string         `json:"health"`
}

type wireProjects struct {
	Projects []wireProject `json:"projects"`
}

type wireCycle struct {
	HasCycle bool     `json:"hasCycle"`
	Path     []string `json:"path"`
}

type wireMatrix struct {
	Quadrants map[string][]wireTask `json:"quadrants"`
}

type wireGraph struct {
	Nodes []struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Status   string  `json:"status"`
		Priority string  `json:"priority"`
		Project  string  `json:"project"`
		Level    int     `json:"level"`
		Blocked  bool    `json:"blocked"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
	} `json:"nodes"`
	Links []struct {
		Source string `json:"source"`
		Target string `json:"target"`
	} `json:"links"`
	Missing []string `json:"missing"`
}

type wireCreate struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status,omitempty"`
	Priority     string   `json:"priority,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	DueDate      string   `json:"dueDate,omitempty"`
	Assignee     string   `json:"assignee,omitempty"`
	Project      string   `json:"project,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

type wireStatus struct {
	Status  string `json:"status"`
	Version int    `json:"version,omitempty"`
}

type wireBulkStatus struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

type wireDependency struct {
	DependsOn string `json:"dependsOn"`
	Version   int    `json:"version,omitempty"`
}

// ListOptions narrows a task listing. Zero values are omitted.
type ListOptions struct {
	Status   []domain.Status
	Priority []domain.Priority
	Project  string
	Assignee string
	Tag      string
	Query    string
	Overdue  bool
	Sort     string
	Order    string
	Limit    int
	Cursor   string
}

func (o *ListOptions) values() url.Values {
	v := url.Values{}

	for _, s := range o.Status {
		v.Add("status", string(s))
	}

	for _, p := range o.Priority {
		v.Add("priority", string(p))
	}

	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}

	set("project", o.Project)
	set("assignee", o.Assignee)
	set("tag", o.Tag)
	set("q", o.Query)
	set("sort", o.Sort)
	set("order", o.Order)
	set("cursor", o.Cursor)

	if o.Overdue {
		v.Set("overdue", "true")
	}

	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}

	return v
}

// TaskPage is one page of a listing.
type TaskPage struct {
	Tasks      []*domain.Task
	NextCursor string
	Total      int
	Matched    int
	ByStatus   domain.StatusCounts
}

// ListTasks fetches one page of tasks.
func (c *TaskClient) ListTasks(ctx context.Context, opts ListOptions) (*TaskPage, error) {
	path := "/api/tasks"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}

	ext, err := fetch[wireTaskList](ctx, &c.remote, http.MethodGet, path, nil, c.call("list tasks", "task", ""))
	if err != nil {
		return nil, err
	}

	tasks, err := translateAll(ext.Items, translateTask)
	if err != nil {
		return nil, err
	}

	logging.FromContextOr(ctx, c.logger).Log(ctx, logging.LevelTrace, "listed tasks",
		slog.Int("page", len(tasks)),
		slog.Int("matched", ext.Matched),
	)

	return &TaskPage{
		Tasks:      tasks,
		NextCursor: ext.NextCursor,
		Total:      ext.Total,
		Matched:    ext.Matched,
		ByStatus:   statusCounts(ext.ByStatus),
	}, nil
}

// GetTask fetches a task by ID.
func (c *TaskClient) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	if err := required(id, "id"); err != nil {
		return nil, err
	}

	return c.task(ctx, http.MethodGet, taskPath(id), nil, c.call("get task", "task", id))
}

// CreateTask creates a task from in.
func (c *TaskClient) CreateTask(ctx context.Context, in *domain.TaskInput) (*domain.Task, error) {
	if in == nil {
		return nil, domain.NewValidationError("body", "is required")
	}

	if err := required(in.Title, "title"); err != nil {
		return nil, err
	}

	req := wireCreate{
		Title:        in.Title,
		Description:  in.Description,
		Status:       string(in.Status),
		Priority:     string(in.Priority),
		StartDate:    formatDate(in.StartDate),
		DueDate:      formatDate(in.DueDate),
		Assignee:     in.Assignee,
		Project:      in.Project,
		Tags:         in.Tags,
		Dependencies: in.Dependencies,
	}

	return c.task(ctx, http.MethodPost, "/api/tasks", req, c.call("create task", "task", ""))
}

// SetStatus moves a task to status. version zero skips the conflict check.
func (c *TaskClient) SetStatus(ctx context.Context, id string, status domain.Status, version int) (*domain.Task, error) {
	if !status.Valid() {
		return nil, domain.NewValidationErrorWithValue("status", "unknown status", string(status))
	}

	return c.task(ctx, http.MethodPatch, taskPath(id, "status"),
		wireStatus{Status: string(status), Version: version}, c.call("set status", "task", id))
}

// BulkSetStatus moves every listed task to status in one request.
func (c *TaskClient) BulkSetStatus(ctx context.Context, ids []string, status domain.Status) ([]*domain.Task, error) {
	if len(ids) == 0 {
		return nil, domain.NewValidationError("ids", "cannot be empty")
	}

	return c.tasks(ctx, http.MethodPost, "/api/tasks/bulk/status",
		wireBulkStatus{IDs: ids, Status: string(status)}, c.call("bulk set status", "task", ""))
}

// AddDependency makes id depend on dependsOn.
func (c *TaskClient) AddDependency(ctx context.Context, id, dependsOn string, version int) (*domain.Task, error) {
	return c.task(ctx, http.MethodPost, taskPath(id, "dependencies"),
		wireDependency{DependsOn: dependsOn, Version: version}, c.call("add dependency", "task", id))
}

// RemoveDependency drops dependsOn from id.
func (c *TaskClient) RemoveDependency(ctx context.Context, id, dependsOn string) (*domain.Task, error) {
	return c.task(ctx, http.MethodDelete, taskPath(id, "dependencies", dependsOn), nil,
		c.call("remove dependency", "dependency", dependsOn))
}

// DeleteTask removes a task. force also strips it from its dependents.
func (c *TaskClient) DeleteTask(ctx context.Context, id string, force bool) error {
	path := taskPath(id)
	if force {
		path += "?force=true"
	}

	body, err := c.send(ctx, http.MethodDelete, path, nil, c.call("delete task", "task", id))
	if err != nil {
		return err
	}

	discard(body)

	return nil
}

// Summary fetches the dashboard headline numbers.
func (c *TaskClient) Summary(ctx context.Context) (*domain.Summary, error) {
	ext, err := fetch[wireSummary](ctx, &c.remote, http.MethodGet, "/api/dashboard/summary", nil,
		c.call("get summary", "summary", ""))
	if err != nil {
		return nil, err
	}

	return &domain.Summary{
		Total:          ext.Total,
		ByStatus:       statusCounts(ext.ByStatus),
		ByPriority:     priorityCounts(ext.ByPriority),
		Overdue:        ext.Overdue,
		DueToday:       ext.DueToday,
		DueThisWeek:    ext.DueThisWeek,
		CompletionRate: ext.CompletionRate,
	}, nil
}

// Projects lists the projects, including "Unassigned" when asked.
func (c *TaskClient) Projects(ctx context.Context, unassigned bool) ([]*domain.Project, error) {
	ext, err := fetch[wireProjects](ctx, &c.remote, http.MethodGet,
		"/api/projects?unassigned="+strconv.FormatBool(unassigned), nil, c.call("list projects", "project", ""))
	if err != nil {
		return nil, err
	}

	return translateAll(ext.Projects, translateProject)
}

// CriticalPath fetches the longest chain of open dependent tasks.
func (c *TaskClient) CriticalPath(ctx context.Context) ([]*domain.Task, error) {
	return c.tasks(ctx, http.MethodGet, "/api/graph/critical-path", nil, c.call("get critical path", "graph", ""))
}

// Cycle returns a dependency cycle, or nil when the graph is acyclic.
func (c *TaskClient) Cycle(ctx context.Context) ([]string, error) {
	ext, err := fetch[wireCycle](ctx, &c.remote, http.MethodGet, "/api/graph/cycles", nil, c.call("find cycles", "graph", ""))
	if err != nil || !ext.HasCycle {
		return nil, err
	}

	return ext.Path, nil
}

// Matrix fetches the Eisenhower matrix. Quadrants the API does not know
// are dropped.
func (c *TaskClient) Matrix(ctx context.Context) (domain.Matrix, error) {
	ext, err := fetch[wireMatrix](ctx, &c.remote, http.MethodGet, "/api/dashboard/matrix", nil, c.call("get matrix", "matrix", ""))
	if err != nil {
		return nil, err
	}

	m := make(domain.Matrix, len(domain.Quadrants))

	for _, q := range domain.Quadrants {
		tasks, err := translateAll(ext.Quadrants[string(q)], translateTask)
		if err != nil {
			return nil, fmt.Errorf("quadrant %s: %w", q, err)
		}

		m[q] = tasks
	}

	return m, nil
}

// Graph fetches the laid-out dependency graph of every task.
func (c *TaskClient) Graph(ctx context.Context, layout domain.Layout) (*domain.Graph, error) {
	path := "/api/graph"
	if layout != "" {
		path += "?layout=" + url.QueryEscape(string(layout))
	}

	ext, err := fetch[wireGraph](ctx, &c.remote, http.MethodGet, path, nil, c.call("get graph", "graph", ""))
	if err != nil {
		return nil, err
	}

	g := &domain.Graph{
		Nodes:   make([]*domain.GraphNode, 0, len(ext.Nodes)),
		Links:   make([]domain.GraphLink, 0, len(ext.Links)),
		Missing: ext.Missing,
	}

	for _, n := range ext.Nodes {
		if err := required(n.ID, "id"); err != nil {
			return nil, err
		}

		g.Nodes = append(g.Nodes, &domain.GraphNode{
			ID:       n.ID,
			Title:    n.Title,
			Status:   domain.Status(n.Status),
			Priority: domain.Priority(n.Priority),
			Project:  n.Project,
			Level:    n.Level,
			Blocked:  n.Blocked,
			X:        n.X,
			Y:        n.Y,
		})
	}

	for _, l := range ext.Links {
		g.Links = append(g.Links, domain.GraphLink{Source: l.Source, Target: l.Target})
	}

	return g, nil
}

// Name identifies the API for health reporting.
func (c *TaskClient) Name() string {
	return c.service
}

// Check probes the API readiness endpoint.
func (c *TaskClient) Check(ctx context.Context) error {
	body, err := c.send(ctx, http.MethodGet, "/-/ready", nil, c.call("readiness check", "health", ""))
	if err != nil {
		return err
	}

	discard(body)

	return nil
}

func (c *TaskClient) task(ctx context.Context, method, path string, payload any, cl call) (*domain.Task, error) {
	ext, err := fetch[wireTask](ctx, &c.remote, method, path, payload, cl)
	if err != nil {
		return nil, err
	}

	return translateTask(ext)
}

// tasks reads any answer carrying a "tasks" array.
func (c *TaskClient) tasks(ctx context.Context, method, path string, payload any, cl call) ([]*domain.Task, error) {
	ext, err := fetch[wireTasks](ctx, &c.remote, method, path, payload, cl)
	if err != nil {
		return nil, err
	}

	return translateAll(ext.Tasks, translateTask)
}

// taskPath joins escaped segments under /api/tasks/.
func taskPath(id string, rest ...string) string {
	parts := append([]string{"/api/tasks", url.PathEscape(id)}, rest...)
	for i := 2; i < len(parts); i++ {
		parts[i] = url.PathEscape(parts[i])
	}

	return strings.Join(parts, "/")
}

// translateTask validates a wire task and converts it.
func translateTask(ext *wireTask) (*domain.Task, error) {
	if err := required(ext.ID, "id"); err != nil {
		return nil, err
	}

	status, err := domain.ParseStatus(ext.Status)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", ext.ID, err)
	}

	priority, err := domain.ParsePriority(ext.Priority)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", ext.ID, err)
	}

	return &domain.Task{
		ID:           ext.ID,
		Title:        ext.Title,
		Description:  ext.Description,
		Status:       status,
		Priority:     priority,
		StartDate:    ext.StartDate,
		DueDate:      ext.DueDate,
		CompletedAt:  ext.CompletedAt,
		Assignee:     ext.Assignee,
		Project:      ext.Project,
		Tags:         ext.Tags,
		Dependencies: ext.Dependencies,
		Version:      ext.Version,
		CreatedAt:    ext.CreatedAt,
		UpdatedAt:    ext.UpdatedAt,
	}, nil
}

func translateProject(ext *wireProject) (*domain.Project, error) {
	if err := required(ext.Name, "name"); err != nil {
		return nil, err
	}

	return &domain.Project{
		Name:         ext.Name,
		TaskCount:    ext.TaskCount,
		StatusCounts: statusCounts(ext.StatusCounts),
		Progress:     ext.Progress,
		Overdue:      ext.Overdue,
		Assignees:    ext.Assignees,
		NextDue:      ext.NextDue,
		Health:       domain.ProjectHealth(ext.Health),
	}, nil
}

// statusCounts keeps only statuses this build knows about.
func statusCounts(in map[string]int) domain.StatusCounts {
	out := make(domain.StatusCounts, len(in))

	for k, n := range in {
		if s := domain.Status(k); s.Valid() {
			out[s] = n
		}
	}

	return out
}

func priorityCounts(in map[string]int) domain.PriorityCounts {
	out := make(domain.PriorityCounts, len(in))

	for k, n := range in {
		if p := domain.Priority(k); p.Valid() {
			out[p] = n
		}
	}

	return out
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

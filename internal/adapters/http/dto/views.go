package dto

import (
	"time"

	"github.com/jsamuelsen/synaptik/internal/app"
	"github.com/jsamuelsen/synaptik/internal/domain"
)

// ProjectResponse is the wire form of a derived project.
type ProjectResponse struct {
	Name         string         `json:"name"`
	TaskCount    int            `json:"taskCount"`
	StatusCounts map[string]int `json:"statusCounts"`
	Progress     int            `json:"progress"`
	Overdue      int            `json:"overdue"`
	Assignees    []string       `json:"assignees"`
	NextDue      *time.Time     `json:"nextDue,omitempty"`
	Health       string         `json:"health"`
}

// NewProjectResponse converts a domain project.
func NewProjectResponse(p *domain.Project) ProjectResponse {
	assignees := p.Assignees
	if assignees == nil {
		assignees = []string{}
	}

	return ProjectResponse{
		Name:         p.Name,
		TaskCount:    p.TaskCount,
		StatusCounts: statusCounts(p.StatusCounts),
		Progress:     p.Progress,
		Overdue:      p.Overdue,
		Assignees:    assignees,
		NextDue:      p.NextDue,
		Health:       string(p.Health),
	}
}

// NewProjectResponses converts a slice of projects.
func NewProjectResponses(projects []*domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, NewProjectResponse(p))
	}

	return out
}

// RenameProjectRequest is the body of PUT /api/projects/:name.
type RenameProjectRequest struct {
	Name string `json:"name" validate:"notempty,max=128"`
}

// SummaryResponse carries the headline dashboard numbers.
type SummaryResponse struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"byStatus"`
	ByPriority     map[string]int `json:"byPriority"`
	Overdue        int            `json:"overdue"`
	DueToday       int            `json:"dueToday"`
	DueThisWeek    int            `json:"dueThisWeek"`
	CompletionRate float64        `json:"completionRate"`
}

// NewSummaryResponse converts a domain summary.
func NewSummaryResponse(s *domain.Summary) SummaryResponse {
	return SummaryResponse{
		Total:          s.Total,
		ByStatus:       statusCounts(s.ByStatus),
		ByPriority:     priorityCounts(s.ByPriority),
		Overdue:        s.Overdue,
		DueToday:       s.DueToday,
		DueThisWeek:    s.DueThisWeek,
		CompletionRate: s.CompletionRate,
	}
}

// MatrixResponse maps each Eisenhower quadrant to its tasks.
type MatrixResponse struct {
	Quadrants     map[string][]TaskResponse `json:"quadrants"`
	UrgencyWindow string                    `json:"urgencyWindow"`
}

// NewMatrixResponse converts a domain matrix. Every quadrant is present.
func NewMatrixResponse(m domain.Matrix, window time.Duration, now time.Time) MatrixResponse {
	q := make(map[string][]TaskResponse, len(domain.Quadrants))
	for _, quadrant := range domain.Quadrants {
		q[string(quadrant)] = NewTaskResponses(m[quadrant], now)
	}

	return MatrixResponse{Quadrants: q, UrgencyWindow: window.String()}
}

// BucketResponse is one urgency bucket.
type BucketResponse struct {
	Bucket string         `json:"bucket"`
	Count  int            `json:"count"`
	Tasks  []TaskResponse `json:"tasks"`
}

// NewBucketResponses converts urgency buckets, keeping their order.
func NewBucketResponses(groups []domain.BucketGroup, now time.Time) []BucketResponse {
	out := make([]BucketResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, BucketResponse{
			Bucket: string(g.Bucket),
			Count:  len(g.Tasks),
			Tasks:  NewTaskResponses(g.Tasks, now),
		})
	}

	return out
}

// OverviewResponse bundles every dashboard view computed from one snapshot.
type OverviewResponse struct {
	Summary     SummaryResponse   `json:"summary"`
	Matrix      MatrixResponse    `json:"matrix"`
	Buckets     []BucketResponse  `json:"buckets"`
	Projects    []ProjectResponse `json:"projects"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// NewOverviewResponse converts an overview.
func NewOverviewResponse(ov *app.Overview, window time.Duration) OverviewResponse {
	return OverviewResponse{
		Summary:     NewSummaryResponse(ov.Summary),
		Matrix:      NewMatrixResponse(ov.Matrix, window, ov.GeneratedAt),
		Buckets:     NewBucketResponses(ov.Buckets, ov.GeneratedAt),
		Projects:    NewProjectResponses(ov.Projects),
		GeneratedAt: ov.GeneratedAt,
	}
}

// GraphNodeResponse is a positioned graph node.
type GraphNodeResponse struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	Priority string  `json:"priority"`
	Project  string  `json:"project,omitempty"`
	Level    int     `json:"level"`
	Blocked  bool    `json:"blocked"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// GraphLinkResponse points from a prerequisite to its dependent.
type GraphLinkResponse struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphResponse is a laid-out dependency graph.
type GraphResponse struct {
	Layout  string              `json:"layout"`
	Nodes   []GraphNodeResponse `json:"nodes"`
	Links   []GraphLinkResponse `json:"links"`
	Missing []string            `json:"missing"`
}

// NewGraphResponse converts a domain graph.
func NewGraphResponse(g *domain.Graph, layout domain.Layout) GraphResponse {
	resp := GraphResponse{
		Layout:  string(layout),
		Nodes:   make([]GraphNodeResponse, 0, len(g.Nodes)),
		Links:   make([]GraphLinkResponse, 0, len(g.Links)),
		Missing: g.Missing,
	}

	if resp.Missing == nil {
		resp.Missing = []string{}
	}

	for _, n := range g.Nodes {
		resp.Nodes = append(resp.Nodes, GraphNodeResponse{
			ID:       n.ID,
			Title:    n.Title,
			Status:   string(n.Status),
			Priority: string(n.Priority),
			Project:  n.Project,
			Level:    n.Level,
			Blocked:  n.Blocked,
			X:        n.X,
			Y:        n.Y,
		})
	}

	for _, l := range g.Links {
		resp.Links = append(resp.Links, GraphLinkResponse(l))
	}

	return resp
}

// CriticalPathResponse lists the longest chain of open tasks, first
// prerequisite first.
type CriticalPathResponse struct {
	Length int            `json:"length"`
	Tasks  []TaskResponse `json:"tasks"`
}

// CycleResponse reports a dependency cycle, if any.
type CycleResponse struct {
	HasCycle bool     `json:"hasCycle"`
	Path     []string `json:"path"`
}

// GraphQuery holds the graph endpoint parameters on top of the task filters.
type GraphQuery struct {
	TaskListQuery

	Layout    string `form:"layout" validate:"layout"`
	Direction string `form:"direction" validate:"direction"`
	Depth     int    `form:"depth" validate:"gte=0,lte=50"`
}

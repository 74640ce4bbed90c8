package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"

	"github.com/jsamuelsen/synaptik/internal/domain"
)

const dateLayout = "2006-01-02"

type taskView struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority"`
	Project      string   `json:"project,omitempty"`
	Assignee     string   `json:"assignee,omitempty"`
	DueDate      string   `json:"dueDate,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Version      int      `json:"version"`
}

func newTaskView(t *domain.Task) taskView {
	return taskView{
		ID:           t.ID,
		Title:        t.Title,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		Project:      t.Project,
		Assignee:     t.Assignee,
		DueDate:      date(t.DueDate),
		Tags:         t.Tags,
		Dependencies: t.Dependencies,
		Version:      t.Version,
	}
}

type projectView struct {
	Name      string `json:"name"`
	TaskCount int    `json:"taskCount"`
	Progress  int    `json:"progress"`
	Overdue   int    `json:"overdue"`
	NextDue   string `json:"nextDue,omitempty"`
	Health    string `json:"health"`
}

func newProjectView(p *domain.Project) projectView {
	return projectView{
		Name:      p.Name,
		TaskCount: p.TaskCount,
		Progress:  p.Progress,
		Overdue:   p.Overdue,
		NextDue:   date(p.NextDue),
		Health:    string(p.Health),
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

func writeTasks(w io.Writer, asJSON bool, tasks []*domain.Task) error {
	views := make([]taskView, len(tasks))
	for i, t := range tasks {
		views[i] = newTaskView(t)
	}

	if asJSON {
		return writeJSON(w, views)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPRIORITY\tPROJECT\tDUE\tDEPENDS ON")

	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.Title, v.Status, v.Priority, dash(v.Project), dash(v.DueDate), dash(strings.Join(v.Dependencies, ",")))
	}

	return tw.Flush()
}

func writeTask(w io.Writer, asJSON bool, t *domain.Task) error {
	v := newTaskView(t)
	if asJSON {
		return writeJSON(w, v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", v.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", v.Title)
	fmt.Fprintf(tw, "Status:\t%s\n", v.Status)
	fmt.Fprintf(tw, "Priority:\t%s\n", v.Priority)
	fmt.Fprintf(tw, "Project:\t%s\n", dash(v.Project))
	fmt.Fprintf(tw, "Assignee:\t%s\n", dash(v.Assignee))
	fmt.Fprintf(tw, "Due:\t%s\n", dash(v.DueDate))
	fmt.Fprintf(tw, "Tags:\t%s\n", dash(strings.Join(v.Tags, ",")))
	fmt.Fprintf(tw, "Depends on:\t%s\n", dash(strings.Join(v.Dependencies, ",")))
	fmt.Fprintf(tw, "Version:\t%d\n", v.Version)

	return tw.Flush()
}

func writeSummary(w io.Writer, asJSON bool, s *domain.Summary) error {
	if asJSON {
		byStatus := make(map[string]int, len(s.ByStatus))
		for k, n := range s.ByStatus {
			byStatus[string(k)] = n
		}

		byPriority := make(map[string]int, len(s.ByPriority))
		for k, n := range s.ByPriority {
			byPriority[string(k)] = n
		}

		return writeJSON(w, map[string]any{
			"total":          s.Total,
			"byStatus":       byStatus,
			"byPriority":     byPriority,
			"overdue":        s.Overdue,
			"dueToday":       s.DueToday,
			"dueThisWeek":    s.DueThisWeek,
			"completionRate": s.CompletionRate,
		})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total:\t%d\n", s.Total)

	for _, st := range domain.Statuses {
		fmt.Fprintf(tw, "  %s:\t%d\n", st, s.ByStatus[st])
	}

	fmt.Fprintf(tw, "Overdue:\t%d\n", s.Overdue)
	fmt.Fprintf(tw, "Due today:\t%d\n", s.DueToday)
	fmt.Fprintf(tw, "Due this week:\t%d\n", s.DueThisWeek)
	fmt.Fprintf(tw, "Completion:\t%.0f%%\n", s.CompletionRate*100)

	return tw.Flush()
}

func writeProjects(w io.Writer, asJSON bool, projects []*domain.Project) error {
	views := make([]projectView, len(projects))
	for i, p := range projects {
		views[i] = newProjectView(p)
	}

	if asJSON {
		return writeJSON(w, views)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tTASKS\tPROGRESS\tOVERDUE\tNEXT DUE\tHEALTH")

	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%d\t%d%%\t%d\t%s\t%s\n",
			v.Name, v.TaskCount, v.Progress, v.Overdue, dash(v.NextDue), v.Health)
	}

	return tw.Flush()
}

func writeMatrix(w io.Writer, asJSON bool, m domain.Matrix) error {
	if asJSON {
		out := make(map[string][]taskView, len(domain.Quadrants))
		for _, q := range domain.Quadrants {
			views := make([]taskView, 0, len(m[q]))
			for _, t := range m[q] {
				views = append(views, newTaskView(t))
			}

			out[string(q)] = views
		}

		return writeJSON(w, out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUADRANT\tID\tTITLE\tPRIORITY\tDUE")

	for _, q := range domain.Quadrants {
		if len(m[q]) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\n", q)
			continue
		}

		for _, t := range m[q] {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", q, t.ID, t.Title, t.Priority, dash(date(t.DueDate)))
		}
	}

	return tw.Flush()
}

type graphView struct {
	Nodes   []graphNodeView `json:"nodes"`
	Links   []graphLinkView `json:"links"`
	Missing []string        `json:"missing,omitempty"`
}

type graphNodeView struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Status  string  `json:"status"`
	Level   int     `json:"level"`
	Blocked bool    `json:"blocked"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type graphLinkView struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// writeGraph prints nodes by level; the table form leaves out coordinates.
func writeGraph(w io.Writer, asJSON bool, g *domain.Graph) error {
	v := graphView{
		Nodes:   make([]graphNodeView, 0, len(g.Nodes)),
		Links:   make([]graphLinkView, 0, len(g.Links)),
		Missing: g.Missing,
	}

	for _, n := range g.Nodes {
		v.Nodes = append(v.Nodes, graphNodeView{
			ID: n.ID, Title: n.Title, Status: string(n.Status), Level: n.Level, Blocked: n.Blocked, X: n.X, Y: n.Y,
		})
	}

	for _, l := range g.Links {
		v.Links = append(v.Links, graphLinkView(l))
	}

	if asJSON {
		return writeJSON(w, v)
	}

	sort.SliceStable(v.Nodes, func(i, j int) bool {
		if v.Nodes[i].Level != v.Nodes[j].Level {
			return v.Nodes[i].Level < v.Nodes[j].Level
		}

		return v.Nodes[i].ID < v.Nodes[j].ID
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tID\tTITLE\tSTATUS\tBLOCKED")

	for _, n := range v.Nodes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", n.Level, n.ID, n.Title, n.Status, n.Blocked)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%d links", len(v.Links))

	if len(v.Missing) > 0 {
		fmt.Fprintf(w, ", missing dependencies: %s", strings.Join(v.Missing, ","))
	}

	fmt.Fprintln(w)

	return nil
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.UTC().Format(dateLayout)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

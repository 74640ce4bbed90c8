package domain

import (
	"cmp"
	"slices"
	"strings"
)

// GraphNode is a task as drawn in the dependency graph.
type GraphNode struct {
	ID       string
	Title    string
	Status   Status
	Priority Priority
	Project  string
	Level    int
	Blocked  bool
	X        float64
	Y        float64
}

// GraphLink points from a prerequisite (Source) to the task that depends on it (Target).
type GraphLink struct {
	Source string
	Target string
}

// Graph is the dependency graph of a set of tasks.
type Graph struct {
	Nodes []*GraphNode
	Links []GraphLink
	// Missing lists dependency IDs that reference tasks outside the set.
	Missing []string
}

// Node returns the node with id, or nil.
func (g *Graph) Node(id string) *GraphNode {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// Direction selects which way to walk dependencies.
type Direction string

// Walk directions.
const (
	// Upstream follows dependencies (what this task waits on).
	Upstream Direction = "upstream"
	// Downstream follows dependents (what waits on this task).
	Downstream Direction = "downstream"
)

// ParseDirection validates a direction string; empty means Upstream.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", Upstream:
		return Upstream, nil
	case Downstream:
		return Downstream, nil
	default:
		return "", NewValidationErrorWithValue("direction", "must be upstream or downstream", s)
	}
}

// index maps task IDs to tasks.
type index map[string]*Task

func indexTasks(tasks []*Task) index {
	idx := make(index, len(tasks))
	for _, t := range tasks {
		idx[t.ID] = t
	}

	return idx
}

func (idx index) sortedIDs() []string {
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// deps returns the in-set dependencies of id, sorted.
func (idx index) deps(id string) []string {
	t := idx[id]
	out := make([]string, 0, len(t.Dependencies))

	for _, d := range t.Dependencies {
		if _, ok := idx[d]; ok {
			out = append(out, d)
		}
	}

	slices.Sort(out)

	return out
}

// dependents builds the reverse adjacency list.
func (idx index) dependents() map[string][]string {
	rev := make(map[string][]string, len(idx))
	for _, id := range idx.sortedIDs() {
		for _, d := range idx.deps(id) {
			rev[d] = append(rev[d], id)
		}
	}

	return rev
}

// BuildGraph converts tasks into nodes and links. Nodes are ordered by ID and
// carry their hierarchical level.
func BuildGraph(tasks []*Task) *Graph {
	idx := indexTasks(tasks)
	levels := computeLevels(idx)

	g := &Graph{
		Nodes:   make([]*GraphNode, 0, len(idx)),
		Links:   []GraphLink{},
		Missing: []string{},
	}

	for _, id := range idx.sortedIDs() {
		t := idx[id]
		g.Nodes = append(g.Nodes, &GraphNode{
			ID:       t.ID,
			Title:    t.Title,
			Status:   t.Status,
			Priority: t.Priority,
			Project:  t.Project,
			Level:    levels[id],
			Blocked:  blockedByDependencies(idx, t),
		})

		for _, d := range t.Dependencies {
			if _, ok := idx[d]; !ok {
				if !slices.Contains(g.Missing, d) {
					g.Missing = append(g.Missing, d)
				}

				continue
			}

			g.Links = append(g.Links, GraphLink{Source: d, Target: id})
		}
	}

	slices.Sort(g.Missing)
	slices.SortFunc(g.Links, func(a, b GraphLink) int {
		if c := cmp.Compare(a.Target, b.Target); c != 0 {
			return c
		}

		return cmp.Compare(a.Source, b.Source)
	})

	return g
}

// BlockedByDependencies reports whether any of t's dependencies in tasks is still open.
func BlockedByDependencies(tasks []*Task, t *Task) bool {
	return blockedByDependencies(indexTasks(tasks), t)
}

func blockedByDependencies(idx index, t *Task) bool {
	for _, d := range t.Dependencies {
		if dep, ok := idx[d]; ok && dep.IsOpen() {
			return true
		}
	}

	return false
}

// computeLevels assigns each task the length of its longest dependency chain
// (Kahn's algorithm). Tasks on a cycle get one level past the deepest acyclic task.
func computeLevels(idx index) map[string]int {
	levels := make(map[string]int, len(idx))
	indegree := make(map[string]int, len(idx))
	rev := idx.dependents()

	queue := make([]string, 0, len(idx))
	for _, id := range idx.sortedIDs() {
		indegree[id] = len(idx.deps(id))
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	maxLevel := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, next := range rev[id] {
			levels[next] = max(levels[next], levels[id]+1)
			maxLevel = max(maxLevel, levels[next])

			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	for id, deg := range indegree {
		if deg > 0 {
			levels[id] = maxLevel + 1
		}
	}

	return levels
}

// DetectCycle returns one dependency cycle as a path that starts and ends on the
// same ID, or nil when the tasks form a DAG. The search order is deterministic.
func DetectCycle(tasks []*Task) []string {
	return findCycle(indexTasks(tasks))
}

func findCycle(idx index) []string {
	const (
		white = iota
		grey
		black
	)

	color := make(map[string]int, len(idx))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = grey
		stack = append(stack, id)

		for _, d := range idx.deps(id) {
			switch color[d] {
			case grey:
				start := slices.Index(stack, d)
				cycle := slices.Clone(stack[start:])

				return append(cycle, d)
			case white:
				if c := visit(d); c != nil {
					return c
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black

		return nil
	}

	for _, id := range idx.sortedIDs() {
		if color[id] == white {
			if c := visit(id); c != nil {
				return c
			}
		}
	}

	return nil
}

// WouldCreateCycle reports the cycle that would form if taskID's dependencies
// were replaced with deps, or nil if the change is safe.
func WouldCreateCycle(tasks []*Task, taskID string, deps []string) []string {
	idx := make(index, len(tasks)+1)
	for _, t := range tasks {
		idx[t.ID] = t
	}

	candidate := &Task{ID: taskID, Dependencies: deps}
	if existing, ok := idx[taskID]; ok {
		c := existing.Clone()
		c.Dependencies = deps
		candidate = c
	}

	idx[taskID] = candidate

	return findCycle(idx)
}

// Subgraph walks from rootID in direction up to depth hops (depth <= 0 is
// unlimited). Node levels are the hop distance from the root.
func Subgraph(tasks []*Task, rootID string, dir Direction, depth int) (*Graph, error) {
	idx := indexTasks(tasks)
	if _, ok := idx[rootID]; !ok {
		return nil, NewNotFoundError("task", rootID)
	}

	var next func(id string) []string
	if dir == Downstream {
		rev := idx.dependents()
		next = func(id string) []string { return rev[id] }
	} else {
		next = idx.deps
	}

	dist := map[string]int{rootID: 0}
	queue := []string{rootID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if depth > 0 && dist[id] >= depth {
			continue
		}

		for _, n := range next(id) {
			if _, seen := dist[n]; seen {
				continue
			}

			dist[n] = dist[id] + 1
			queue = append(queue, n)
		}
	}

	selected := make([]*Task, 0, len(dist))
	for id := range dist {
		selected = append(selected, idx[id])
	}

	g := BuildGraph(selected)
	for _, n := range g.Nodes {
		n.Level = dist[n.ID]
		n.Blocked = blockedByDependencies(idx, idx[n.ID])
	}

	// Dependencies outside the walk are not missing, just out of view.
	g.Missing = []string{}

	return g, nil
}

// CriticalPath returns the longest chain of open tasks linked by dependencies,
// ordered from the first prerequisite to the final dependent. Ties prefer the
// lexically smaller ID. A cycle among open tasks is a conflict.
func CriticalPath(tasks []*Task) ([]*Task, error) {
	open := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsOpen() {
			open = append(open, t)
		}
	}

	idx := indexTasks(open)
	if cycle := findCycle(idx); cycle != nil {
		return nil, NewConflictErrorWithDetails("task", "dependency cycle", joinPath(cycle))
	}

	order := topoOrder(idx)
	length := make(map[string]int, len(order))
	prev := make(map[string]string, len(order))

	for _, id := range order {
		length[id] = 1
		for _, d := range idx.deps(id) {
			if length[d]+1 > length[id] || (length[d]+1 == length[id] && d < prev[id]) {
				length[id] = length[d] + 1
				prev[id] = d
			}
		}
	}

	end := ""
	for _, id := range order {
		if end == "" || length[id] > length[end] || (length[id] == length[end] && id < end) {
			end = id
		}
	}

	if end == "" {
		return []*Task{}, nil
	}

	path := []*Task{}
	for id := end; id != ""; id = prev[id] {
		path = append(path, idx[id])
	}

	slices.Reverse(path)

	return path, nil
}

// topoOrder returns IDs with dependencies before dependents. idx must be acyclic.
func topoOrder(idx index) []string {
	indegree := make(map[string]int, len(idx))
	rev := idx.dependents()
	queue := []string{}

	for _, id := range idx.sortedIDs() {
		indegree[id] = len(idx.deps(id))
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(idx))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, n := range rev[id] {
			indegree[n]--
			if indegree[n] == 0 {
				queue = append(queue, n)
			}
		}
	}

	return order
}

func joinPath(ids []string) string {
	return strings.Join(ids, " -> ")
}

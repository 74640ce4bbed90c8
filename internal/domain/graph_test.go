package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphFixture is a diamond a <- {b, c} <- d, plus e depending on a missing task x.
func graphFixture() []*Task {
	return []*Task{
		newTestTask("d", withDeps("c", "b")),
		newTestTask("b", withDeps("a")),
		newTestTask("a"),
		newTestTask("c", withDeps("a")),
		newTestTask("e", withDeps("x")),
	}
}

func TestBuildGraph(t *testing.T) {
	g := BuildGraph(graphFixture())

	require.Len(t, g.Nodes, 5)

	nodeIDs := make([]string, 0, len(g.Nodes))
	levels := map[string]int{}
	blocked := map[string]bool{}

	for _, n := range g.Nodes {
		nodeIDs = append(nodeIDs, n.ID)
		levels[n.ID] = n.Level
		blocked[n.ID] = n.Blocked
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, nodeIDs)
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 1, "d": 2, "e": 0}, levels)
	assert.Equal(t, map[string]bool{"a": false, "b": true, "c": true, "d": true, "e": false}, blocked)
	assert.Equal(t, []GraphLink{
		{Source: "a", Target: "b"},
		{Source: "a", Target: "c"},
		{Source: "b", Target: "d"},
		{Source: "c", Target: "d"},
	}, g.Links)
	assert.Equal(t, []string{"x"}, g.Missing)
}

func TestBuildGraph_CompletedDependencyUnblocks(t *testing.T) {
	tasks := graphFixture()
	tasks[2].Status = StatusCompleted // a

	g := BuildGraph(tasks)

	assert.False(t, g.Node("b").Blocked)
	assert.False(t, g.Node("c").Blocked)
	assert.True(t, g.Node("d").Blocked)
	assert.Nil(t, g.Node("zzz"))
}

func TestBuildGraph_Empty(t *testing.T) {
	g := BuildGraph(nil)

	assert.Empty(t, g.Nodes)
	assert.NotNil(t, g.Links)
	assert.NotNil(t, g.Missing)
}

func TestDetectCycle(t *testing.T) {
	assert.Nil(t, DetectCycle(graphFixture()))

	cyclic := []*Task{
		newTestTask("a", withDeps("b")),
		newTestTask("b", withDeps("c")),
		newTestTask("c", withDeps("a")),
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, DetectCycle(cyclic))
}

func TestBuildGraph_CycleLevels(t *testing.T) {
	tasks := []*Task{
		newTestTask("root"),
		newTestTask("a", withDeps("b", "root")),
		newTestTask("b", withDeps("a")),
	}

	g := BuildGraph(tasks)

	assert.Equal(t, 0, g.Node("root").Level)
	assert.Equal(t, 2, g.Node("a").Level, "cycle members go below the deepest acyclic level")
	assert.Equal(t, 2, g.Node("b").Level)
}

func TestWouldCreateCycle(t *testing.T) {
	tasks := graphFixture()

	assert.Equal(t, []string{"a", "d", "b", "a"}, WouldCreateCycle(tasks, "a", []string{"d"}))
	assert.Nil(t, WouldCreateCycle(tasks, "e", []string{"d"}))
	assert.Nil(t, WouldCreateCycle(tasks, "new", []string{"a", "d"}), "new task cannot close a cycle")
}

func TestSubgraph(t *testing.T) {
	tasks := graphFixture()

	up, err := Subgraph(tasks, "d", Upstream, 0)
	require.NoError(t, err)

	levels := map[string]int{}
	for _, n := range up.Nodes {
		levels[n.ID] = n.Level
	}

	assert.Equal(t, map[string]int{"d": 0, "b": 1, "c": 1, "a": 2}, levels)
	assert.Len(t, up.Links, 4)

	down, err := Subgraph(tasks, "a", Downstream, 1)
	require.NoError(t, err)

	levels = map[string]int{}
	for _, n := range down.Nodes {
		levels[n.ID] = n.Level
	}

	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 1}, levels)
	assert.True(t, down.Node("b").Blocked)
	assert.Empty(t, down.Missing)
}

func TestSubgraph_UnknownRoot(t *testing.T) {
	_, err := Subgraph(graphFixture(), "nope", Upstream, 0)
	assert.True(t, IsNotFound(err))
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Upstream, d)

	d, err = ParseDirection("downstream")
	require.NoError(t, err)
	assert.Equal(t, Downstream, d)

	_, err = ParseDirection("sideways")
	assert.True(t, IsValidation(err))
}

func TestCriticalPath(t *testing.T) {
	path, err := CriticalPath(graphFixture())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, ids(path))
}

func TestCriticalPath_IgnoresClosedTasks(t *testing.T) {
	tasks := graphFixture()
	tasks[2].Status = StatusCompleted // a

	path, err := CriticalPath(tasks)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, ids(path))
}

func TestCriticalPath_Empty(t *testing.T) {
	path, err := CriticalPath(nil)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestCriticalPath_Cycle(t *testing.T) {
	_, err := CriticalPath([]*Task{
		newTestTask("a", withDeps("b")),
		newTestTask("b", withDeps("a")),
	})
	assert.True(t, IsConflict(err))
}

package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/synaptik/internal/adapters/storage/memstore"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/telemetry"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// chain is a -> b -> c with d standing alone.
func graphFixture(t *testing.T) []*domain.Task {
	t.Helper()

	return []*domain.Task{
		seedTask(t, "a", withProject("Apollo")),
		seedTask(t, "b", withDeps("a"), withProject("Apollo")),
		seedTask(t, "c", withDeps("b")),
		seedTask(t, "d"),
	}
}

func TestGraphService_Graph(t *testing.T) {
	cfg := testConfig(memstore.New(graphFixture(t)...))
	cfg.Metrics = telemetry.NewDomainMetrics(prometheus.NewRegistry())
	svc := NewGraphService(cfg, domain.LayoutOptions{})

	g, err := svc.Graph(context.Background(), domain.TaskFilter{}, domain.LayoutHierarchical)
	require.NoError(t, err)

	assert.Len(t, g.Nodes, 4)
	assert.ElementsMatch(t, []domain.GraphLink{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}}, g.Links)
	assert.Empty(t, g.Missing)

	assert.Equal(t, 0, g.Node("a").Level)
	assert.Equal(t, 2, g.Node("c").Level)
	assert.True(t, g.Node("b").Blocked)
	assert.Less(t, g.Node("a").Y, g.Node("c").Y)
}

func TestGraphService_Graph_FilterReportsMissing(t *testing.T) {
	svc := NewGraphService(testConfig(memstore.New(graphFixture(t)...)), domain.LayoutOptions{})

	g, err := svc.Graph(context.Background(), domain.TaskFilter{Project: "Apollo"}, domain.LayoutHierarchical)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Empty(t, g.Missing)

	g, err = svc.Graph(context.Background(), domain.TaskFilter{Query: "task c"}, domain.LayoutHierarchical)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, g.Missing)
}

func TestGraphService_ForceLayoutFlag(t *testing.T) {
	store := memstore.New(graphFixture(t)...)

	enabled := NewGraphService(testConfig(store), domain.LayoutOptions{Iterations: 20})
	g, err := enabled.Graph(context.Background(), domain.TaskFilter{}, domain.LayoutForce)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)

	cfg := testConfig(store)
	cfg.Flags = ports.StaticFlags{ports.FlagForceLayout: false}
	disabled := NewGraphService(cfg, domain.LayoutOptions{})

	_, err = disabled.Graph(context.Background(), domain.TaskFilter{}, domain.LayoutForce)
	assert.True(t, domain.IsForbidden(err))

	_, err = disabled.Subgraph(context.Background(), "a", domain.Downstream, 0, domain.LayoutForce)
	assert.True(t, domain.IsForbidden(err))

	_, err = disabled.Graph(context.Background(), domain.TaskFilter{}, domain.LayoutHierarchical)
	assert.NoError(t, err)
}

func TestGraphService_Subgraph(t *testing.T) {
	svc := NewGraphService(testConfig(memstore.New(graphFixture(t)...)), domain.LayoutOptions{})
	ctx := context.Background()

	down, err := svc.Subgraph(ctx, "a", domain.Downstream, 1, domain.LayoutHierarchical)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, nodeIDs(down))

	up, err := svc.Subgraph(ctx, "c", domain.Upstream, 0, domain.LayoutHierarchical)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, nodeIDs(up))
	assert.Equal(t, 2, up.Node("a").Level)

	_, err = svc.Subgraph(ctx, "ghost", domain.Upstream, 0, domain.LayoutHierarchical)
	assert.True(t, domain.IsNotFound(err))
}

func TestGraphService_CriticalPath(t *testing.T) {
	svc := NewGraphService(testConfig(memstore.New(graphFixture(t)...)), domain.LayoutOptions{})

	path, err := svc.CriticalPath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(path))
}

func TestGraphService_Cycle(t *testing.T) {
	svc := NewGraphService(testConfig(memstore.New(graphFixture(t)...)), domain.LayoutOptions{})

	cycle, err := svc.Cycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cycle)

	// Stores never hold cycles written through the services; seed one directly.
	cyclic := memstore.New(
		seedTask(t, "x", withDeps("y")),
		seedTask(t, "y", withDeps("x")),
	)
	svc = NewGraphService(testConfig(cyclic), domain.LayoutOptions{})

	cycle, err = svc.Cycle(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cycle)
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])

	_, err = svc.CriticalPath(context.Background())
	assert.True(t, domain.IsConflict(err))
}

func nodeIDs(g *domain.Graph) []string {
	out := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n.ID)
	}

	return out
}

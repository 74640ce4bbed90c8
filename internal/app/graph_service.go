package app

import (
	"context"

	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// GraphService builds dependency graphs and analyses over them.
type GraphService struct {
	base
	opts domain.LayoutOptions
}

// NewGraphService creates a graph service. Zero layout options take the
// domain defaults. It panics if cfg.Repo is nil.
func NewGraphService(cfg ServiceConfig, opts domain.LayoutOptions) *GraphService {
	return &GraphService{base: newBase(cfg, "app.GraphService"), opts: opts}
}

// Graph builds the dependency graph of the tasks matching filter and lays it
// out. Dependencies outside the filtered set are reported in Graph.Missing.
func (s *GraphService) Graph(ctx context.Context, filter domain.TaskFilter, layout domain.Layout) (*domain.Graph, error) {
	if err := s.checkLayout(ctx, layout); err != nil {
		return nil, err
	}

	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	g := domain.BuildGraph(filter.Apply(tasks, s.clock.Now()))
	domain.ApplyLayout(g, layout, s.opts)
	s.metrics.GraphBuild(string(layout))

	return g, nil
}

// Subgraph returns the neighbourhood of one task up to depth hops
// (depth <= 0 is unlimited).
func (s *GraphService) Subgraph(ctx context.Context, id string, dir domain.Direction, depth int, layout domain.Layout) (*domain.Graph, error) {
	if err := s.checkLayout(ctx, layout); err != nil {
		return nil, err
	}

	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	g, err := domain.Subgraph(tasks, id, dir, depth)
	if err != nil {
		return nil, err
	}

	domain.ApplyLayout(g, layout, s.opts)
	s.metrics.GraphBuild(string(layout))

	return g, nil
}

// CriticalPath returns the longest chain of open dependent tasks.
func (s *GraphService) CriticalPath(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return domain.CriticalPath(tasks)
}

// Cycle returns one dependency cycle as a closed path, or nil when the graph
// is acyclic.
func (s *GraphService) Cycle(ctx context.Context) ([]string, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return domain.DetectCycle(tasks), nil
}

func (s *GraphService) checkLayout(ctx context.Context, layout domain.Layout) error {
	if layout == domain.LayoutForce && !s.flags.IsEnabled(ctx, ports.FlagForceLayout, true) {
		return domain.NewForbiddenError("force layout", "disabled by feature flag")
	}

	return nil
}

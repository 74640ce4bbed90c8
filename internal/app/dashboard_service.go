package app

import (
	"context"
	"time"

	appctx "github.com/jsamuelsen/synaptik/internal/app/context"
	"github.com/jsamuelsen/synaptik/internal/domain"
)

// DashboardConfig tunes dashboard aggregation.
type DashboardConfig struct {
	// UrgencyWindow is how far ahead a due date makes a task urgent.
	// Zero means domain.DefaultUrgencyWindow.
	UrgencyWindow time.Duration
}

// Overview is every dashboard aggregate computed from one task snapshot.
type Overview struct {
	Summary     *domain.Summary
	Matrix      domain.Matrix
	Buckets     []domain.BucketGroup
	Projects    []*domain.Project
	GeneratedAt time.Time
}

// DashboardService computes the read models behind the dashboard views.
type DashboardService struct {
	base
	window time.Duration
}

// NewDashboardService creates a dashboard service. It panics if cfg.Repo is nil.
func NewDashboardService(cfg ServiceConfig, dcfg DashboardConfig) *DashboardService {
	window := dcfg.UrgencyWindow
	if window <= 0 {
		window = domain.DefaultUrgencyWindow
	}

	return &DashboardService{base: newBase(cfg, "app.DashboardService"), window: window}
}

// UrgencyWindow returns the configured urgency window.
func (s *DashboardService) UrgencyWindow() time.Duration { return s.window }

// Summary returns status and priority counts plus due-date tallies.
func (s *DashboardService) Summary(ctx context.Context) (*domain.Summary, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return domain.Summarize(tasks, s.clock.Now()), nil
}

// Matrix sorts open tasks into Eisenhower quadrants.
func (s *DashboardService) Matrix(ctx context.Context, filter domain.TaskFilter) (domain.Matrix, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	return domain.BuildMatrix(filter.Apply(tasks, now), now, s.window), nil
}

// Buckets groups open tasks by how soon they are due.
func (s *DashboardService) Buckets(ctx context.Context, filter domain.TaskFilter) ([]domain.BucketGroup, error) {
	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	return domain.BucketByUrgency(filter.Apply(tasks, now), now), nil
}

// Overview computes every aggregate concurrently over a single snapshot,
// so the parts are consistent with each other.
func (s *DashboardService) Overview(ctx context.Context) (*Overview, error) {
	ctx = appctx.Scoped(ctx)

	now := s.clock.Now()

	tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	type views struct {
		summary *domain.Summary
		matrix  domain.Matrix
		buckets []domain.BucketGroup
	}

	v, projects, err := Parallel2(ctx,
		func(ctx context.Context) (views, error) {
			summary, matrix, buckets, err := Parallel3(ctx,
				func(context.Context) (*domain.Summary, error) { return domain.Summarize(tasks, now), nil },
				func(context.Context) (domain.Matrix, error) { return domain.BuildMatrix(tasks, now, s.window), nil },
				func(context.Context) ([]domain.BucketGroup, error) { return domain.BucketByUrgency(tasks, now), nil },
			)

			return views{summary: summary, matrix: matrix, buckets: buckets}, err
		},
		func(context.Context) ([]*domain.Project, error) {
			return domain.GroupByProject(tasks, now, true), nil
		},
	)
	if err != nil {
		return nil, err
	}

	return &Overview{
		Summary:     v.summary,
		Matrix:      v.matrix,
		Buckets:     v.buckets,
		Projects:    projects,
		GeneratedAt: now,
	}, nil
}

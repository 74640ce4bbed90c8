// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// Application Layer Responsibilities:
//   - Orchestrate use cases (business workflows)
//   - Coordinate between domain and infrastructure
//   - Handle cross-cutting concerns (logging, metrics, events)
//   - Enforce business rules that span multiple tasks (dependencies, renames)
//
// What does NOT belong here:
//   - HTTP specifics (that's adapters)
//   - Database queries (that's repository adapters)
//   - Core domain logic (that's the domain layer)
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	appctx "github.com/jsamuelsen/synaptik/internal/app/context"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
	"github.com/jsamuelsen/synaptik/internal/platform/telemetry"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// snapshotKey memoizes the task list within one request.
const snapshotKey = "tasks:all"

// ServiceConfig holds the dependencies shared by every application service.
//
// Example usage:
//
//	// In main.go
//	repo := cache.NewRepository(store, redisCache, ttl, metrics)
//	cfg := app.ServiceConfig{Repo: repo, Events: publisher, Flags: flags, Logger: logger}
//	tasks := app.NewTaskService(cfg)
//
//	// In HTTP handler
//	task, err := tasks.Get(ctx, id)
type ServiceConfig struct {
	// Repo is required.
	Repo ports.TaskRepository

	// Events defaults to a publisher that drops events.
	Events ports.EventPublisher

	// Flags defaults to an empty flag set, so every flag takes its default.
	Flags ports.FeatureFlags

	// Clock defaults to the UTC wall clock.
	Clock ports.Clock

	// NewID defaults to random UUIDs.
	NewID func() string

	Metrics *telemetry.DomainMetrics
	Logger  *slog.Logger
}

// base carries the shared dependencies with defaults applied.
type base struct {
	repo    ports.TaskRepository
	source  ports.TaskRepository
	events  ports.EventPublisher
	flags   ports.FeatureFlags
	clock   ports.Clock
	newID   func() string
	metrics *telemetry.DomainMetrics
	logger  *slog.Logger
	exec    *Executor
}

func newBase(cfg ServiceConfig, component string) base {
	if cfg.Repo == nil {
		panic("app: ServiceConfig.Repo is required")
	}

	b := base{
		repo:    cfg.Repo,
		source:  ports.Uncached(cfg.Repo),
		events:  cfg.Events,
		flags:   cfg.Flags,
		clock:   cfg.Clock,
		newID:   cfg.NewID,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}

	if b.events == nil {
		b.events = discardPublisher{}
	}

	if b.flags == nil {
		b.flags = ports.StaticFlags{}
	}

	if b.clock == nil {
		b.clock = ports.SystemClock
	}

	if b.newID == nil {
		b.newID = uuid.NewString
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	b.logger = b.logger.With(slog.String("component", component))
	b.exec = NewExecutor(b.logger, b.metrics)

	return b
}

// log returns the request logger when one is present.
func (b *base) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, b.logger)
}

// snapshot lists every task for a read, at most once per request when a
// RequestContext is attached to ctx. It may be served from the cache.
func (b *base) snapshot(ctx context.Context) ([]*domain.Task, error) {
	return appctx.Memo(ctx, snapshotKey, func(ctx context.Context) ([]*domain.Task, error) {
		return listFrom(ctx, b.repo)
	})
}

// list reads every task straight from storage. Checks that guard a write
// (cycles, dependents, name clashes) use it, never the cache.
func (b *base) list(ctx context.Context) ([]*domain.Task, error) {
	return listFrom(ctx, b.source)
}

func listFrom(ctx context.Context, repo ports.TaskRepository) ([]*domain.Task, error) {
	tasks, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	return tasks, nil
}

// publish sends a task event. Failures are logged, never returned: the write
// has already been stored.
func (b *base) publish(ctx context.Context, typ ports.TaskEventType, task *domain.Task, id string) {
	ev := ports.TaskEvent{Type: typ, TaskID: id, Task: task, At: b.clock.Now()}

	if err := b.events.Publish(ctx, ev); err != nil {
		b.log(ctx).WarnContext(ctx, "publishing task event failed",
			slog.String("event_type", string(typ)),
			slog.String("task_id", id),
			slog.Any("error", err),
		)
	}
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, ports.Event) error { return nil }

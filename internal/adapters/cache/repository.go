package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
	"github.com/jsamuelsen/synaptik/internal/platform/telemetry"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// Cache keys. The task list snapshot lives under TaskListKey plus the
// generation that was current when its read began; every write bumps the
// generation. A snapshot read before a write can then only land under a
// generation no later List looks up.
const (
	TaskListKey   = "tasks:all"
	GenerationKey = "tasks:gen"
)

// SnapshotKey returns the key of the snapshot cut at generation gen.
func SnapshotKey(gen int64) string {
	return TaskListKey + ":" + strconv.FormatInt(gen, 10)
}

// Repository decorates a TaskRepository with a read-through cache of List.
// Every write moves the cache to a new generation. Cache failures never fail
// the call; the backing repository stays the source of truth.
type Repository struct {
	base    ports.TaskRepository
	cache   ports.Cache
	ttl     time.Duration
	metrics *telemetry.DomainMetrics
}

var _ ports.CachedRepository = (*Repository)(nil)

// NewRepository wraps base. A ttl of zero disables storing snapshots.
func NewRepository(base ports.TaskRepository, c ports.Cache, ttl time.Duration, metrics *telemetry.DomainMetrics) *Repository {
	if base == nil {
		panic("cache.NewRepository: base repository is nil")
	}

	if ttl < 0 {
		ttl = 0
	}

	return &Repository{base: base, cache: c, ttl: ttl, metrics: metrics}
}

// Source implements ports.CachedRepository.
func (r *Repository) Source() ports.TaskRepository {
	return r.base
}

// Create implements ports.TaskRepository.
func (r *Repository) Create(ctx context.Context, task *domain.Task) error {
	if err := r.base.Create(ctx, task); err != nil {
		return err
	}

	r.evict(ctx)

	return nil
}

// Get implements ports.TaskRepository. Single lookups are not cached.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Task, error) {
	return r.base.Get(ctx, id)
}

// List implements ports.TaskRepository.
func (r *Repository) List(ctx context.Context) ([]*domain.Task, error) {
	gen, ok := r.generation(ctx)
	if ok {
		if tasks, hit := r.load(ctx, gen); hit {
			r.metrics.CacheLookup(true)
			return tasks, nil
		}
	}

	r.metrics.CacheLookup(false)

	tasks, err := r.base.List(ctx)
	if err != nil {
		return nil, err
	}

	if ok {
		r.store(ctx, gen, tasks)
	}

	return tasks, nil
}

// Update implements ports.TaskRepository.
func (r *Repository) Update(ctx context.Context, task *domain.Task, expectedVersion int) (*domain.Task, error) {
	updated, err := r.base.Update(ctx, task, expectedVersion)
	if err != nil {
		return nil, err
	}

	r.evict(ctx)

	return updated, nil
}

// Delete implements ports.TaskRepository.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.base.Delete(ctx, id); err != nil {
		return err
	}

	r.evict(ctx)

	return nil
}

// generation reads the current cache generation. A missing counter is
// generation zero. ok is false when the cache cannot be trusted this call.
func (r *Repository) generation(ctx context.Context) (gen int64, ok bool) {
	data, err := r.cache.Get(ctx, GenerationKey)
	if domain.IsNotFound(err) {
		return 0, true
	}

	if err != nil {
		logging.FromContext(ctx).Warn("task cache generation read failed", slog.Any("error", err))
		return 0, false
	}

	gen, err = strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		logging.FromContext(ctx).Warn("task cache generation is not a number", slog.String("value", string(data)))
		return 0, false
	}

	return gen, true
}

func (r *Repository) load(ctx context.Context, gen int64) ([]*domain.Task, bool) {
	key := SnapshotKey(gen)

	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if !domain.IsNotFound(err) {
			logging.FromContext(ctx).Warn("task cache read failed", slog.Any("error", err))
		}

		return nil, false
	}

	var records []taskSnapshot
	if err := sonic.Unmarshal(data, &records); err != nil {
		logging.FromContext(ctx).Warn("discarding corrupt task cache entry", slog.Any("error", err))
		_ = r.cache.Delete(ctx, key)

		return nil, false
	}

	tasks := make([]*domain.Task, 0, len(records))
	for i := range records {
		tasks = append(tasks, records[i].toDomain())
	}

	return tasks, true
}

func (r *Repository) store(ctx context.Context, gen int64, tasks []*domain.Task) {
	if r.ttl == 0 {
		return
	}

	records := make([]taskSnapshot, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, snapshotOf(t))
	}

	data, err := sonic.Marshal(records)
	if err != nil {
		return
	}

	if err := r.cache.Set(ctx, SnapshotKey(gen), data, r.ttl); err != nil {
		logging.FromContext(ctx).Warn("task cache write failed", slog.Any("error", err))
	}
}

// evict starts a new generation and drops the snapshot of the previous one.
// A snapshot still being cut for an older generation may land afterwards; it
// is never read and expires with its TTL.
func (r *Repository) evict(ctx context.Context) {
	gen, err := r.cache.Incr(ctx, GenerationKey)
	if err != nil {
		logging.FromContext(ctx).Warn("task cache eviction failed", slog.Any("error", err))
		return
	}

	if err := r.cache.Delete(ctx, SnapshotKey(gen-1)); err != nil {
		logging.FromContext(ctx).Warn("dropping stale task snapshot failed", slog.Any("error", err))
	}
}

// taskSnapshot is the cached wire shape of a task.
type taskSnapshot struct {
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
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func snapshotOf(t *domain.Task) taskSnapshot {
	return taskSnapshot{
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
		Tags:         t.Tags,
		Dependencies: t.Dependencies,
		Version:      t.Version,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (s *taskSnapshot) toDomain() *domain.Task {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}

	deps := s.Dependencies
	if deps == nil {
		deps = []string{}
	}

	return &domain.Task{
		ID:           s.ID,
		Title:        s.Title,
		Description:  s.Description,
		Status:       domain.Status(s.Status),
		Priority:     domain.Priority(s.Priority),
		StartDate:    s.StartDate,
		DueDate:      s.DueDate,
		CompletedAt:  s.CompletedAt,
		Assignee:     s.Assignee,
		Project:      s.Project,
		Tags:         tags,
		Dependencies: deps,
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

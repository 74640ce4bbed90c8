// Package ports declares what the application needs from the outside world:
// task storage, a cache, an event sink, health checks, feature flags and a
// clock. Every method takes a context and speaks domain types and domain
// errors only.
package ports

import (
	"context"
	"time"

	"github.com/jsamuelsen/synaptik/internal/domain"
)

// TaskRepository persists tasks.
//
// Implementations own versioning: Create stores version 1 and Update writes
// only when the stored version equals expectedVersion, then increments it.
type TaskRepository interface {
	// Create stores a new task.
	// Returns domain.ErrConflict if the ID is already taken.
	Create(ctx context.Context, task *domain.Task) error

	// Get retrieves a task by ID.
	// Returns domain.ErrNotFound if the task does not exist.
	Get(ctx context.Context, id string) (*domain.Task, error)

	// List returns every task ordered by creation time.
	List(ctx context.Context) ([]*domain.Task, error)

	// Update replaces a task if its stored version equals expectedVersion.
	// Returns the stored task with its new version.
	// Returns domain.ErrNotFound or a version ConflictError.
	Update(ctx context.Context, task *domain.Task, expectedVersion int) (*domain.Task, error)

	// Delete removes a task by ID.
	// Returns domain.ErrNotFound if the task does not exist.
	Delete(ctx context.Context, id string) error
}

// TaskEventType names a change to a task.
type TaskEventType string

// Task event types.
const (
	TaskCreated       TaskEventType = "task.created"
	TaskUpdated       TaskEventType = "task.updated"
	TaskDeleted       TaskEventType = "task.deleted"
	TaskStatusChanged TaskEventType = "task.status_changed"
)

// TaskEvent is published after a task write has been stored.
type TaskEvent struct {
	Type   TaskEventType
	TaskID string
	Task   *domain.Task
	At     time.Time
}

// EventType returns the type identifier for routing.
func (e TaskEvent) EventType() string { return string(e.Type) }

// Payload returns the event data for serialization.
func (e TaskEvent) Payload() any { return e }

// EventPublisher defines the contract for publishing domain events.
// Implementations may use message queues, event buses, or other mechanisms.
type EventPublisher interface {
	// Publish sends an event to the configured destination.
	// Returns domain.ErrUnavailable if the messaging system is unreachable.
	Publish(ctx context.Context, event Event) error
}

// Event represents a domain event that can be published.
type Event interface {
	// EventType returns the type identifier for routing.
	EventType() string

	// Payload returns the event data for serialization.
	Payload() any
}

// Cache defines the contract for caching operations.
// Implementations may use Redis, Memcached, or in-memory caches.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with optional TTL.
	// A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	// Does not return an error if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Incr atomically increments the integer counter at key, creating it at
	// zero first, and returns the new value. Get returns the decimal value.
	Incr(ctx context.Context, key string) (int64, error)
}

// CachedRepository is a TaskRepository that may serve List from a cache.
// Source returns the repository behind the cache.
type CachedRepository interface {
	TaskRepository
	Source() TaskRepository
}

// Uncached returns the repository behind repo's cache, or repo itself. Reads
// that validate a write go through it so they see every stored write.
func Uncached(repo TaskRepository) TaskRepository {
	for {
		cached, ok := repo.(CachedRepository)
		if !ok {
			return repo
		}

		repo = cached.Source()
	}
}

// Clock supplies the current time so services stay deterministic under test.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

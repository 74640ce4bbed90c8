// Package events publishes task events.
//
// The Redis publisher fans events out over pub/sub so dashboards and other
// services can refresh; the log publisher is used when no broker is configured.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
	"github.com/jsamuelsen/synaptik/internal/platform/telemetry"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// Message is the JSON envelope written to the channel.
type Message struct {
	Type   string       `json:"type"`
	TaskID string       `json:"taskId"`
	At     time.Time    `json:"at"`
	Task   *TaskPayload `json:"task,omitempty"`
}

// TaskPayload is the task state carried by an event.
type TaskPayload struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Status   string     `json:"status"`
	Priority string     `json:"priority"`
	Project  string     `json:"project,omitempty"`
	Assignee string     `json:"assignee,omitempty"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
	Version  int        `json:"version"`
}

// Encode builds the wire form of an event.
func Encode(event ports.Event) ([]byte, error) {
	msg := Message{Type: event.EventType()}

	if te, ok := event.(ports.TaskEvent); ok {
		msg.TaskID = te.TaskID
		msg.At = te.At
		msg.Task = payloadOf(te.Task)
	}

	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", msg.Type, err)
	}

	return data, nil
}

func payloadOf(t *domain.Task) *TaskPayload {
	if t == nil {
		return nil
	}

	return &TaskPayload{
		ID:       t.ID,
		Title:    t.Title,
		Status:   string(t.Status),
		Priority: string(t.Priority),
		Project:  t.Project,
		Assignee: t.Assignee,
		DueDate:  t.DueDate,
		Version:  t.Version,
	}
}

// RedisPublisher publishes events to a Redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	metrics *telemetry.DomainMetrics
}

// Compile-time interface checks.
var (
	_ ports.EventPublisher = (*RedisPublisher)(nil)
	_ ports.HealthChecker  = (*RedisPublisher)(nil)
)

// NewRedisPublisher creates a publisher writing to channel.
func NewRedisPublisher(client redis.UniversalClient, channel string, metrics *telemetry.DomainMetrics) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, metrics: metrics}
}

// Publish implements ports.EventPublisher.
func (p *RedisPublisher) Publish(ctx context.Context, event ports.Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}

	err = p.client.Publish(ctx, p.channel, data).Err()
	p.metrics.EventPublished(event.EventType(), err)

	if err != nil {
		return fmt.Errorf("publishing to %s: %w", p.channel, domain.NewUnavailableError("redis", err.Error()))
	}

	return nil
}

// Name implements ports.HealthChecker.
func (p *RedisPublisher) Name() string { return "events" }

// Check implements ports.HealthChecker.
func (p *RedisPublisher) Check(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// LogPublisher writes events to the request logger at debug level.
type LogPublisher struct {
	metrics *telemetry.DomainMetrics
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a publisher that only logs.
func NewLogPublisher(metrics *telemetry.DomainMetrics) *LogPublisher {
	return &LogPublisher{metrics: metrics}
}

// Publish implements ports.EventPublisher.
func (p *LogPublisher) Publish(ctx context.Context, event ports.Event) error {
	attrs := []any{slog.String("event_type", event.EventType())}
	if te, ok := event.(ports.TaskEvent); ok {
		attrs = append(attrs, slog.String("task_id", te.TaskID))
	}

	logging.FromContext(ctx).DebugContext(ctx, "task event", attrs...)
	p.metrics.EventPublished(event.EventType(), nil)

	return nil
}

package events

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func taskEvent(t *testing.T) ports.TaskEvent {
	t.Helper()

	task, err := domain.NewTask("t-1", domain.TaskInput{Title: "Ship it", Project: "Apollo"}, testNow)
	require.NoError(t, err)

	return ports.TaskEvent{Type: ports.TaskCreated, TaskID: task.ID, Task: task, At: testNow}
}

func TestEncode(t *testing.T) {
	data, err := Encode(taskEvent(t))
	require.NoError(t, err)

	var msg Message
	require.NoError(t, sonic.Unmarshal(data, &msg))

	assert.Equal(t, "task.created", msg.Type)
	assert.Equal(t, "t-1", msg.TaskID)
	assert.True(t, msg.At.Equal(testNow))
	require.NotNil(t, msg.Task)
	assert.Equal(t, "Ship it", msg.Task.Title)
	assert.Equal(t, "pending", msg.Task.Status)
	assert.Equal(t, "Apollo", msg.Task.Project)
	assert.Equal(t, 1, msg.Task.Version)
}

func TestEncode_DeletedEventHasNoTask(t *testing.T) {
	data, err := Encode(ports.TaskEvent{Type: ports.TaskDeleted, TaskID: "t-9", At: testNow})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"task"`)
}

func TestRedisPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "synaptik.tasks")
	t.Cleanup(func() { _ = sub.Close() })

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "synaptik.tasks", nil)
	require.NoError(t, pub.Publish(ctx, taskEvent(t)))

	select {
	case m := <-sub.Channel():
		assert.Contains(t, m.Payload, `"type":"task.created"`)
		assert.Contains(t, m.Payload, `"taskId":"t-1"`)
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}

	assert.Equal(t, "events", pub.Name())
	assert.NoError(t, pub.Check(ctx))
}

func TestRedisPublisher_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisPublisher(client, "c", nil).Publish(context.Background(), taskEvent(t))
	assert.True(t, domain.IsUnavailable(err))
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := logging.WithContext(context.Background(), logger)

	require.NoError(t, NewLogPublisher(nil).Publish(ctx, taskEvent(t)))
	assert.Contains(t, buf.String(), `"event_type":"task.created"`)
	assert.Contains(t, buf.String(), `"task_id":"t-1"`)
}

//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/synaptik/internal/adapters/cache"
	"github.com/jsamuelsen/synaptik/internal/adapters/clients"
	"github.com/jsamuelsen/synaptik/internal/adapters/clients/acl"
	"github.com/jsamuelsen/synaptik/internal/adapters/events"
	apihttp "github.com/jsamuelsen/synaptik/internal/adapters/http"
	"github.com/jsamuelsen/synaptik/internal/adapters/http/handlers"
	"github.com/jsamuelsen/synaptik/internal/adapters/storage/sqlstore"
	"github.com/jsamuelsen/synaptik/internal/app"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/config"
	"github.com/jsamuelsen/synaptik/internal/platform/telemetry"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

const eventsChannel = "synaptik:tasks"

// stack is a running API wired the way cmd/service wires it in production:
// SQLite storage behind the Redis cache, with events on Redis pub/sub.
type stack struct {
	url      string
	redis    *redis.Client
	mr       *miniredis.Miniredis
	registry *prometheus.Registry
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := sqlstore.Open(ctx, filepath.Join(t.TempDir(), "tasks.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewDomainMetrics(reg)

	redisCache := cache.NewRedis(rdb, "synaptik:")
	publisher := events.NewRedisPublisher(rdb, eventsChannel, metrics)

	health := ports.NewHealthRegistry()
	require.NoError(t, health.Register(store))
	require.NoError(t, health.Register(redisCache))
	require.NoError(t, health.Register(publisher))

	svc := app.ServiceConfig{
		Repo:    cache.NewRepository(store, redisCache, time.Minute, metrics),
		Events:  publisher,
		Metrics: metrics,
		Logger:  logger,
	}

	cfg := apihttp.NewDefaultRouterConfig(logger, &config.AppConfig{Name: "synaptik"}, &config.AuthConfig{},
		handlers.NewHealthHandler(health, handlers.NewBuildInfo("synaptik", "test", "none", "now")))
	cfg.Tasks = handlers.NewTaskHandler(app.NewTaskService(svc), nil)
	cfg.Projects = handlers.NewProjectHandler(app.NewProjectService(svc), nil)
	cfg.Dashboard = handlers.NewDashboardHandler(app.NewDashboardService(svc, app.DashboardConfig{}), nil)
	cfg.Graph = handlers.NewGraphHandler(app.NewGraphService(svc, domain.DefaultLayoutOptions), nil)

	engine := gin.New()
	apihttp.SetupRouter(engine, cfg)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	return &stack{url: server.URL, redis: rdb, mr: mr, registry: reg}
}

// client returns a TaskClient for the stack.
func (s *stack) client(t *testing.T) *acl.TaskClient {
	t.Helper()

	c, err := clients.New(&clients.Config{
		ServiceName: "synaptik",
		BaseURL:     s.url,
		Timeout:     5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     2,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   10,
			Timeout:       time.Second,
			HalfOpenLimit: 2,
		},
	})
	require.NoError(t, err)

	return acl.NewTaskClient(acl.TaskClientConfig{Client: c})
}

// TestStack_TaskLifecycle drives every write through the client and checks
// that reads stay consistent while the list cache is in front of SQLite.
func TestStack_TaskLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	c := s.client(t)

	due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	schema, err := c.CreateTask(ctx, &domain.TaskInput{Title: "Schema", Project: "Apollo", Priority: domain.PriorityUrgent})
	require.NoError(t, err)

	api, err := c.CreateTask(ctx, &domain.TaskInput{
		Title:        "API",
		Project:      "Apollo",
		DueDate:      &due,
		Dependencies: []string{schema.ID},
	})
	require.NoError(t, err)

	// Warm the cache, then write and make sure the next read sees the write.
	page, err := c.ListTasks(ctx, acl.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	_, err = c.SetStatus(ctx, schema.ID, domain.StatusCompleted, schema.Version)
	require.NoError(t, err)

	page, err = c.ListTasks(ctx, acl.ListOptions{Status: []domain.Status{domain.StatusCompleted}})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, schema.ID, page.Tasks[0].ID)

	summary, err := c.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.ByStatus[domain.StatusCompleted])
	assert.Equal(t, 1, summary.DueThisWeek)

	projects, err := c.Projects(ctx, false)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, 50, projects[0].Progress)

	path, err := c.CriticalPath(ctx)
	require.NoError(t, err)
	require.Len(t, path, 1, "completed tasks drop off the critical path")
	assert.Equal(t, api.ID, path[0].ID)

	require.NoError(t, c.DeleteTask(ctx, schema.ID, true))

	got, err := c.GetTask(ctx, api.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Dependencies, "force delete strips the dependency")

	writes, err := testutil.GatherAndCount(s.registry, "synaptik_task_writes_total")
	require.NoError(t, err)
	assert.Positive(t, writes)
}

// TestStack_PublishesEvents subscribes to the events channel and checks that
// writes arrive as JSON messages.
func TestStack_PublishesEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := newStack(t)
	c := s.client(t)

	sub := s.redis.Subscribe(ctx, eventsChannel)
	defer sub.Close()

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	task, err := c.CreateTask(ctx, &domain.TaskInput{Title: "Announce"})
	require.NoError(t, err)

	_, err = c.SetStatus(ctx, task.ID, domain.StatusInProgress, task.Version)
	require.NoError(t, err)

	want := []string{string(ports.TaskCreated), string(ports.TaskStatusChanged)}
	msgs := sub.Channel()

	for _, typ := range want {
		select {
		case raw := <-msgs:
			var msg events.Message
			require.NoError(t, sonic.UnmarshalString(raw.Payload, &msg))
			assert.Equal(t, typ, msg.Type)
			assert.Equal(t, task.ID, msg.TaskID)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

// TestStack_Readiness reports every dependency and turns unhealthy when
// Redis goes away.
func TestStack_Readiness(t *testing.T) {
	s := newStack(t)
	c := s.client(t)

	require.NoError(t, c.Check(context.Background()))

	resp, err := http.Get(s.url + "/-/ready")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"events"`)

	s.mr.Close()

	err = c.Check(context.Background())
	assert.True(t, domain.IsUnavailable(err), "got %v", err)
}

// TestStack_RedisOutage keeps serving from SQLite when Redis is down; cache
// and event failures are logged, never returned.
func TestStack_RedisOutage(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	c := s.client(t)

	_, err := c.ListTasks(ctx, acl.ListOptions{})
	require.NoError(t, err)

	s.mr.Close()

	task, err := c.CreateTask(ctx, &domain.TaskInput{Title: "Still works"})
	require.NoError(t, err)

	page, err := c.ListTasks(ctx, acl.ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, task.ID, page.Tasks[0].ID)
}

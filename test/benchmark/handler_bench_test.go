package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apihttp "github.com/jsamuelsen/synaptik/internal/adapters/http"
	"github.com/jsamuelsen/synaptik/internal/adapters/http/handlers"
	"github.com/jsamuelsen/synaptik/internal/adapters/storage/memstore"
	"github.com/jsamuelsen/synaptik/internal/app"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/config"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

func init() {
	// Set Gin to release mode for accurate benchmarks
	gin.SetMode(gin.ReleaseMode)
}

var benchNow = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

// seedTasks builds n tasks spread over five projects. Every task after the
// first depends on the one ten places before it, giving chains of depth n/10.
func seedTasks(n int) []*domain.Task {
	tasks := make([]*domain.Task, n)

	for i := range tasks {
		due := benchNow.AddDate(0, 0, i%30-10)
		t := &domain.Task{
			ID:        fmt.Sprintf("t-%05d", i),
			Title:     fmt.Sprintf("Task %d", i),
			Status:    domain.Statuses[i%len(domain.Statuses)],
			Priority:  domain.Priorities[i%len(domain.Priorities)],
			DueDate:   &due,
			Project:   fmt.Sprintf("project-%d", i%5),
			Tags:      []string{fmt.Sprintf("tag-%d", i%7)},
			Version:   1,
			CreatedAt: benchNow.Add(time.Duration(i) * time.Minute),
			UpdatedAt: benchNow.Add(time.Duration(i) * time.Minute),
		}

		if i >= 10 {
			t.Dependencies = []string{fmt.Sprintf("t-%05d", i-10)}
		}

		tasks[i] = t
	}

	return tasks
}

// setupRouter serves the full API over a memstore seeded with n tasks.
func setupRouter(n int) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := app.ServiceConfig{Repo: memstore.New(seedTasks(n)...), Logger: logger}

	cfg := apihttp.NewDefaultRouterConfig(logger, &config.AppConfig{Name: "synaptik"}, &config.AuthConfig{},
		handlers.NewHealthHandler(ports.NewHealthRegistry(), handlers.NewBuildInfo("synaptik", "1.0.0", "abc123", "2024-01-01T00:00:00Z")))
	cfg.Tasks = handlers.NewTaskHandler(app.NewTaskService(svc), nil)
	cfg.Projects = handlers.NewProjectHandler(app.NewProjectService(svc), nil)
	cfg.Dashboard = handlers.NewDashboardHandler(app.NewDashboardService(svc, app.DashboardConfig{}), nil)
	cfg.Graph = handlers.NewGraphHandler(app.NewGraphService(svc, domain.DefaultLayoutOptions), nil)

	engine := gin.New()
	apihttp.SetupRouter(engine, cfg)

	return engine
}

func benchmarkGET(b *testing.B, n int, path string) {
	b.Helper()

	router := setupRouter(n)
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		b.Fatalf("GET %s: status %d: %s", path, w.Code, w.Body.String())
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkLiveness measures the cheapest route through the full middleware chain.
func BenchmarkLiveness(b *testing.B) {
	benchmarkGET(b, 0, "/-/live")
}

func BenchmarkListTasks(b *testing.B) {
	for _, n := range []int{100, 1000} {
		b.Run(fmt.Sprintf("tasks=%d", n), func(b *testing.B) {
			benchmarkGET(b, n, "/api/tasks?limit=50")
		})
	}
}

func BenchmarkListTasks_Filtered(b *testing.B) {
	benchmarkGET(b, 1000, "/api/tasks?status=pending&priority=high&project=project-2&sort=due_date&order=desc")
}

func BenchmarkSearch(b *testing.B) {
	benchmarkGET(b, 1000, "/api/tasks/search?q=task+12")
}

func BenchmarkDashboardSummary(b *testing.B) {
	benchmarkGET(b, 1000, "/api/dashboard/summary")
}

func BenchmarkDashboardOverview(b *testing.B) {
	benchmarkGET(b, 1000, "/api/dashboard/overview")
}

func BenchmarkProjects(b *testing.B) {
	benchmarkGET(b, 1000, "/api/projects")
}

// BenchmarkGraphLayouts compares the layered layout with the quadratic
// force-directed one.
func BenchmarkGraphLayouts(b *testing.B) {
	for _, layout := range []string{"hierarchical", "force"} {
		b.Run(layout, func(b *testing.B) {
			benchmarkGET(b, 200, "/api/graph?layout="+layout)
		})
	}
}

func BenchmarkCriticalPath(b *testing.B) {
	benchmarkGET(b, 1000, "/api/graph/critical-path")
}

// BenchmarkSummarize isolates the single-pass aggregation from HTTP overhead.
func BenchmarkSummarize(b *testing.B) {
	tasks := seedTasks(10000)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = domain.Summarize(tasks, benchNow)
	}
}

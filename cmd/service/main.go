// Package main is the entry point for the Synaptik API server.
package main

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/synaptik/internal/adapters/cache"
	"github.com/jsamuelsen/synaptik/internal/adapters/events"
	"github.com/jsamuelsen/synaptik/internal/adapters/http"
	"github.com/jsamuelsen/synaptik/internal/adapters/http/handlers"
	"github.com/jsamuelsen/synaptik/internal/adapters/http/middleware"
	"github.com/jsamuelsen/synaptik/internal/adapters/storage/memstore"
	"github.com/jsamuelsen/synaptik/internal/adapters/storage/sqlstore"
	"github.com/jsamuelsen/synaptik/internal/app"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/platform/config"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
	"github.com/jsamuelsen/synaptik/internal/platform/telemetry"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// Set with -ldflags "-X main.Version=... -X main.Commit=... -X main.BuildTime=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "synaptik: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cmp.Or(os.Getenv("APP_ENVIRONMENT"), "local"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	logging.SetDefault(logger)

	logger.Info("starting synaptik",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage", cfg.Storage.Driver),
	)

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		Insecure:     cfg.Telemetry.Insecure,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("starting telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("flushing telemetry", slog.Any("error", err))
		}
	}()

	metrics := telemetry.NewDomainMetrics(prometheus.DefaultRegisterer)
	checks := ports.NewHealthRegistry()

	repo, closeRepo, err := newRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	if checker, ok := repo.(ports.HealthChecker); ok {
		if err := checks.Register(checker); err != nil {
			return err
		}
	}

	var rdb redis.UniversalClient
	if cfg.Cache.Enabled || cfg.Events.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
	}

	if cfg.Cache.Enabled {
		rc := cache.NewRedis(rdb, cfg.Cache.Prefix)
		if err := checks.Register(rc); err != nil {
			return err
		}

		repo = cache.NewRepository(repo, rc, cfg.Cache.TTL, metrics)
	}

	var publisher ports.EventPublisher = events.NewLogPublisher(metrics)
	if cfg.Events.Enabled {
		rp := events.NewRedisPublisher(rdb, cfg.Events.Channel, metrics)
		if err := checks.Register(rp); err != nil {
			return err
		}

		publisher = rp
	}

	authenticator, closeAuth, err := newAuthenticator(ctx, &cfg.Auth)
	if err != nil {
		return err
	}
	defer closeAuth()

	server := http.New(&cfg.Server, logger)

	routes := http.NewDefaultRouterConfig(logger, &cfg.App, &cfg.Auth,
		handlers.NewHealthHandler(checks, handlers.NewBuildInfo(cfg.App.Name, Version, Commit, BuildTime)))
	routes.Authenticator = authenticator
	mountServices(&routes, cfg, app.ServiceConfig{
		Repo:    repo,
		Events:  publisher,
		Flags:   ports.StaticFlags(cfg.Features),
		Metrics: metrics,
		Logger:  logger,
	})
	http.SetupRouter(server.Engine(), routes)

	if err := server.Run(ctx); err != nil {
		return err
	}

	logger.Info("stopped")

	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	file := cfg.Log.File

	return logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    file.Enabled,
			Path:       file.Path,
			MaxSizeMB:  file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAgeDays: file.MaxAgeDays,
			Compress:   file.Compress,
		},
	})
}

// mountServices builds the application services over svc and hangs their
// handlers on routes.
func mountServices(routes *http.RouterConfig, cfg *config.Config, svc app.ServiceConfig) {
	layout := domain.DefaultLayoutOptions
	layout.Width = cfg.Dashboard.Graph.Width
	layout.Height = cfg.Dashboard.Graph.Height
	layout.Iterations = cfg.Dashboard.Graph.Iterations

	dashboard := app.DashboardConfig{UrgencyWindow: cfg.Dashboard.UrgencyWindow}

	routes.Tasks = handlers.NewTaskHandler(app.NewTaskService(svc), nil)
	routes.Projects = handlers.NewProjectHandler(app.NewProjectService(svc), nil)
	routes.Dashboard = handlers.NewDashboardHandler(app.NewDashboardService(svc, dashboard), nil)
	routes.Graph = handlers.NewGraphHandler(app.NewGraphService(svc, layout), nil)
}

// newRepository opens the configured task store. The returned func releases it.
func newRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.TaskRepository, func(), error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := sqlstore.Open(ctx, cfg.Storage.DSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening task store: %w", err)
		}

		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("closing task store", slog.Any("error", err))
			}
		}, nil
	default:
		logger.Warn("using in-memory task store; tasks are lost on restart")

		return memstore.New(), func() {}, nil
	}
}

// newAuthenticator builds the credential check for auth.mode. A nil
// authenticator lets the router fall back to gateway headers.
func newAuthenticator(ctx context.Context, cfg *config.AuthConfig) (middleware.Authenticator, func(), error) {
	if !cfg.Enabled || cfg.Mode != "jwt" {
		return nil, func() {}, nil
	}

	jwtAuth, err := middleware.NewJWTAuthenticator(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing jwt authentication: %w", err)
	}

	return jwtAuth, jwtAuth.Close, nil
}

package http

import (
	"cmp"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/handlers"
	"github.com/jsamuelsen/synaptik/internal/adapters/http/middleware"
	"github.com/jsamuelsen/synaptik/internal/platform/config"
	"github.com/jsamuelsen/synaptik/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds /api requests unless RouterConfig says otherwise.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig collects what SetupRouter mounts. Nil handlers are skipped.
type RouterConfig struct {
	Logger    *slog.Logger
	AppConfig *config.AppConfig

	// AuthConfig decides whether /api needs credentials and which scope
	// guards writes.
	AuthConfig *config.AuthConfig

	// Authenticator defaults to header authentication built from AuthConfig.
	Authenticator middleware.Authenticator

	HealthHandler *handlers.HealthHandler
	Tasks         *handlers.TaskHandler
	Projects      *handlers.ProjectHandler
	Dashboard     *handlers.DashboardHandler
	Graph         *handlers.GraphHandler

	// Timeout is the /api request deadline. Zero disables it.
	Timeout time.Duration
}

// SetupRouter installs the middleware chain and every route on engine.
//
// All routes run recovery, request and correlation IDs, tracing and request
// logging, in that order. The /-/ operational routes stop there. Routes under
// /api add the request deadline, the per-request read snapshot and, when
// enabled, authentication.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(noRoute)
	engine.NoMethod(noMethod)

	name := "synaptik"
	if cfg.AppConfig != nil {
		name = cmp.Or(cfg.AppConfig.Name, name)
	}

	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(name)...)
	engine.Use(middleware.Logging(cfg.Logger))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.Register(engine)
	}

	api := engine.Group("/api")
	if cfg.Timeout > 0 {
		api.Use(middleware.Timeout(cfg.Timeout))
	}

	api.Use(middleware.RequestScope())

	setupAPIRoutes(api, cfg)
}

// setupAPIRoutes registers the dashboard API. With auth disabled every route
// is open; otherwise every route needs credentials and writes also need the
// configured write scope.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	var write []gin.HandlerFunc

	if cfg.AuthConfig != nil && cfg.AuthConfig.Enabled {
		auth := cfg.Authenticator
		if auth == nil {
			auth = middleware.NewHeaderAuthenticator(cfg.AuthConfig)
		}

		rg.Use(middleware.Authenticate(auth))

		if cfg.AuthConfig.WriteScope != "" {
			write = append(write, middleware.RequireScopes(cfg.AuthConfig.WriteScope))
		}
	}

	if cfg.Tasks != nil {
		cfg.Tasks.RegisterRoutes(rg, write...)
	}

	if cfg.Projects != nil {
		cfg.Projects.RegisterRoutes(rg, write...)
	}

	if cfg.Dashboard != nil {
		cfg.Dashboard.RegisterRoutes(rg)
	}

	if cfg.Graph != nil {
		cfg.Graph.RegisterRoutes(rg)
	}
}

// NewDefaultRouterConfig returns a RouterConfig with the default timeout and
// no API handlers.
func NewDefaultRouterConfig(logger *slog.Logger, appCfg *config.AppConfig, authCfg *config.AuthConfig, health *handlers.HealthHandler) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AppConfig:     appCfg,
		AuthConfig:    authCfg,
		HealthHandler: health,
		Timeout:       DefaultRequestTimeout,
	}
}

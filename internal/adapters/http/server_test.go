package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/dto"
	"github.com/jsamuelsen/synaptik/internal/adapters/http/handlers"
	"github.com/jsamuelsen/synaptik/internal/adapters/storage/memstore"
	"github.com/jsamuelsen/synaptik/internal/app"
	"github.com/jsamuelsen/synaptik/internal/platform/config"
)

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     30 * time.Second,
		ShutdownTimeout: 2 * time.Second,
		MaxRequestSize:  1 << 20,
	}
}

func TestServer_Addr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 8080, "localhost:8080"},
		{"0.0.0.0", 3000, "0.0.0.0:3000"},
		{"::1", 8080, "[::1]:8080"},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cfg := testServerConfig()
			cfg.Host, cfg.Port = tt.host, tt.port

			assert.Equal(t, tt.want, New(cfg, logger).Addr())
		})
	}
}

// TestServer_ServeUntilCancelled verifies that cancelling the context drains
// the server and Serve reports a clean stop.
func TestServer_ServeUntilCancelled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(testServerConfig(), logger)

	handlers.NewHealthHandler(nil, handlers.BuildInfo{}).Register(srv.Engine())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- srv.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/-/live", ln.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test probe
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = http.Get(url) //nolint:noctx // test probe
	assert.Error(t, err, "listener closed after shutdown")
}

func TestServer_RunReportsListenFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testServerConfig()
	cfg.Port = taken.Addr().(*net.TCPAddr).Port

	err = New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

// TestServer_BodyLimit drives an oversized create through the real router.
func TestServer_BodyLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testServerConfig()
	cfg.MaxRequestSize = 64

	srv := New(cfg, logger)

	svc := app.ServiceConfig{Repo: memstore.New(), Logger: logger}
	routerCfg := NewDefaultRouterConfig(logger, &config.AppConfig{Name: "synaptik"}, nil, nil)
	routerCfg.Tasks = handlers.NewTaskHandler(app.NewTaskService(svc), nil)
	SetupRouter(srv.Engine(), routerCfg)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, req)

		return w
	}

	w := post(`{"title":"fits"}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post(`{"title":"` + strings.Repeat("x", 100) + `"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())

	var resp dto.ErrorResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeTooLarge, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "64 bytes")
}

func TestNewDefaultRouterConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authCfg := &config.AuthConfig{}

	cfg := NewDefaultRouterConfig(logger, &config.AppConfig{Name: "synaptik"}, authCfg, nil)

	assert.Equal(t, DefaultRequestTimeout, cfg.Timeout)
	assert.Same(t, authCfg, cfg.AuthConfig)
	assert.Nil(t, cfg.Tasks, "handlers are attached by the caller")
	assert.Nil(t, cfg.Authenticator)
}

package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brattlof/usersdb/internal/app/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Host: "127.0.0.1", Port: 0},
		Store:   config.StoreConfig{Driver: "memory"},
		API:     config.APIConfig{Prefix: "/api", Serialize: true, TimeoutSec: 5},
		Events:  config.EventsConfig{Driver: "none"},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_ServesUsersAPI(t *testing.T) {
	cfg := memoryConfig()
	cfg.Plugins = config.PluginsConfig{
		Enabled: []string{"headers"},
		Config: map[string]map[string]interface{}{
			"headers": {"add": map[string]interface{}{"X-Service": "usersd"}},
		},
	}

	svc, err := New(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer svc.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/users", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	svc.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usersd", rec.Header().Get("X-Service"))

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/users/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"Ada","email":"ada@example.com"}`, rec.Body.String())
}

func TestService_UnknownDrivers(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Driver = "cassandra"
	_, err := New(context.Background(), cfg, discard())
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Events.Driver = "carrier-pigeon"
	_, err = New(context.Background(), cfg, discard())
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Plugins.Enabled = []string{"missing"}
	_, err = New(context.Background(), cfg, discard())
	assert.Error(t, err)
}

func TestService_RunFailsBeforeServing(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store = config.StoreConfig{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "absent", "db.json"),
		Watch:  true,
	}

	svc, err := New(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "watch")
	case <-time.After(2 * time.Second):
		t.Fatal("Run should fail without starting the server")
	}
}

func TestService_ReportDocument(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	svc, err := New(context.Background(), memoryConfig(), logger)
	require.NoError(t, err)
	defer svc.Close()

	svc.ReportDocument(context.Background(), "db.json")
	assert.Contains(t, buf.String(), "User document changed")
	assert.Contains(t, buf.String(), "users=0")
}

func TestRoutes(t *testing.T) {
	routes, err := Routes(memoryConfig(), discard())
	require.NoError(t, err)

	names := make([]string, 0, len(routes))
	for _, r := range routes {
		names = append(names, r.Method+" "+r.Pattern)
	}
	assert.ElementsMatch(t, []string{
		"GET /users",
		"POST /users",
		"GET /users/{id}",
		"PUT /users/{id}",
		"DELETE /users/{id}",
	}, names)
}

func TestSetupLogger(t *testing.T) {
	cfg := memoryConfig()
	cfg.Logging.Level = "warn"
	logger := SetupLogger(cfg)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

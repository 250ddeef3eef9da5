package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brattlof/usersdb/internal/app/config"
	"github.com/brattlof/usersdb/pkg/plugin"
)

func newPlugin(t *testing.T, config map[string]interface{}) (*Plugin, *time.Time) {
	t.Helper()
	p := New()
	if err := p.Init(plugin.NewPluginContext(nil, config, nil)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	return p, &now
}

func do(h http.Handler, method, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/users", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_Window(t *testing.T) {
	p, now := newPlugin(t, map[string]interface{}{"limit": 2, "windowSeconds": 10})
	h := p.OnMiddleware()(okHandler())

	for i, wantRemaining := range []string{"1", "0"} {
		rec := do(h, "GET", "10.0.0.1:5000")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Errorf("request %d remaining = %s, want %s", i, got, wantRemaining)
		}
	}

	rec := do(h, "GET", "10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want 10", got)
	}

	if rec := do(h, "GET", "10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}

	*now = now.Add(10 * time.Second)
	if rec := do(h, "GET", "10.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Errorf("status after window = %d, want 200", rec.Code)
	}
}

func TestRateLimit_Methods(t *testing.T) {
	p, _ := newPlugin(t, map[string]interface{}{
		"limit":   1,
		"methods": []interface{}{"post", "PUT"},
	})
	h := p.OnMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		if rec := do(h, "GET", "10.0.0.1:1"); rec.Code != http.StatusOK {
			t.Fatalf("GET %d status = %d, want 200", i, rec.Code)
		}
	}
	if rec := do(h, "POST", "10.0.0.1:1"); rec.Code != http.StatusOK {
		t.Errorf("first POST status = %d, want 200", rec.Code)
	}
	if rec := do(h, "PUT", "10.0.0.1:1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("PUT status = %d, want 429", rec.Code)
	}
}

func TestRateLimit_Sweep(t *testing.T) {
	p, now := newPlugin(t, map[string]interface{}{"windowSeconds": 1})
	p.allow("a")
	*now = now.Add(2 * time.Second)
	p.allow("b")

	p.sweep()
	if _, ok := p.clients["a"]; ok {
		t.Error("expired client should be swept")
	}
	if _, ok := p.clients["b"]; !ok {
		t.Error("active client should be kept")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.168.1.4:8080", "192.168.1.4"},
		{"[::1]:3001", "::1"},
		{"10.1.1.1", "10.1.1.1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.remote
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestInit_FromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usersd.yaml")
	yaml := `plugins:
  enabled: [ratelimit]
  config:
    ratelimit:
      limit: 5
      windowSeconds: 7
      cleanupSeconds: 9
      methods: [post]
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p := New()
	if err := p.Init(plugin.NewPluginContext(nil, cfg.Plugins.Config["ratelimit"], nil)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer p.Close()

	if p.limit != 5 {
		t.Errorf("limit = %d, want 5", p.limit)
	}
	if p.window != 7*time.Second {
		t.Errorf("window = %v, want 7s", p.window)
	}
	if p.cleanup != 9*time.Second {
		t.Errorf("cleanup = %v, want 9s", p.cleanup)
	}
	if !p.methods["POST"] {
		t.Errorf("methods = %v, want POST", p.methods)
	}
}

func TestRateLimit_HideHeaders(t *testing.T) {
	p, _ := newPlugin(t, map[string]interface{}{"limit": 1, "hideHeaders": true})
	h := p.OnMiddleware()(okHandler())

	rec := do(h, "GET", "10.0.0.9:5000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "" {
		t.Errorf("X-RateLimit-Remaining = %q, want none", got)
	}

	rec = do(h, "GET", "10.0.0.9:5000")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "" {
		t.Errorf("X-RateLimit-Limit = %q, want none", got)
	}
}

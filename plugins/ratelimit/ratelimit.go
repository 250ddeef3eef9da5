package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brattlof/usersdb/pkg/plugin"
)

// Plugin applies a fixed-window request budget per client address. Options:
//
//	limit:          requests allowed per window (default 100)
//	windowSeconds:  window length (default 60)
//	cleanupSeconds: how often expired clients are forgotten (default 300)
//	methods:        only count these methods; empty counts every request
//	hideHeaders:    omit the X-RateLimit-* headers
type Plugin struct {
	mu       sync.Mutex
	clients  map[string]*window
	limit    int
	window   time.Duration
	cleanup  time.Duration
	methods  map[string]bool
	quiet    bool
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	count   int
	resetAt time.Time
}

func New() *Plugin {
	return &Plugin{
		clients: make(map[string]*window),
		limit:   100,
		window:  time.Minute,
		cleanup: 5 * time.Minute,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

func (p *Plugin) Name() string        { return "ratelimit" }
func (p *Plugin) Version() string     { return "1.1.0" }
func (p *Plugin) Description() string { return "Per-client fixed-window rate limiting" }

func (p *Plugin) Init(ctx *plugin.PluginContext) error {
	if limit := ctx.ConfigInt("limit"); limit > 0 {
		p.limit = limit
	}
	if sec := ctx.ConfigInt("windowSeconds"); sec > 0 {
		p.window = time.Duration(sec) * time.Second
	}
	if sec := ctx.ConfigInt("cleanupSeconds"); sec > 0 {
		p.cleanup = time.Duration(sec) * time.Second
	}
	if methods := ctx.ConfigStringSlice("methods"); len(methods) > 0 {
		p.methods = make(map[string]bool, len(methods))
		for _, m := range methods {
			p.methods[strings.ToUpper(m)] = true
		}
	}

	p.quiet = ctx.ConfigBool("hideHeaders")

	go p.cleanupLoop()
	return nil
}

func (p *Plugin) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return nil
}

func (p *Plugin) Priority() int { return 50 }

func (p *Plugin) OnMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p.methods != nil && !p.methods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			remaining, retryAfter, ok := p.allow(clientIP(r))
			if !p.quiet {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(p.limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+0.5)))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (p *Plugin) allow(client string) (remaining int, retryAfter time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	w, exists := p.clients[client]
	if !exists || !now.Before(w.resetAt) {
		p.clients[client] = &window{count: 1, resetAt: now.Add(p.window)}
		return p.limit - 1, 0, true
	}

	if w.count >= p.limit {
		return 0, w.resetAt.Sub(now), false
	}

	w.count++
	return p.limit - w.count, 0, true
}

func (p *Plugin) sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for client, w := range p.clients {
		if !now.Before(w.resetAt) {
			delete(p.clients, client)
		}
	}
}

func (p *Plugin) cleanupLoop() {
	ticker := time.NewTicker(p.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.stop:
			return
		}
	}
}

// clientIP keys on RemoteAddr; the server's RealIP middleware has already
// folded X-Forwarded-For and X-Real-IP into it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

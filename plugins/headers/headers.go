package headers

import (
	"net/http"

	"github.com/brattlof/usersdb/pkg/plugin"
)

// Plugin stamps configured headers on every response. Options:
//
//	add:      headers set only when the handler leaves them empty
//	override: headers forced to a value
//	remove:   headers stripped from the response
type Plugin struct {
	add      map[string]string
	override map[string]string
	remove   []string
}

func New() *Plugin {
	return &Plugin{
		add:      make(map[string]string),
		override: make(map[string]string),
	}
}

func (p *Plugin) Name() string        { return "headers" }
func (p *Plugin) Version() string     { return "1.1.0" }
func (p *Plugin) Description() string { return "Add, override and remove response headers" }

func (p *Plugin) Init(ctx *plugin.PluginContext) error {
	for k, v := range ctx.ConfigStringMap("add") {
		p.add[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range ctx.ConfigStringMap("override") {
		p.override[http.CanonicalHeaderKey(k)] = v
	}
	p.remove = ctx.ConfigStringSlice("remove")
	return nil
}

func (p *Plugin) Close() error { return nil }

func (p *Plugin) Priority() int { return 200 }

func (p *Plugin) OnMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&headerWriter{ResponseWriter: w, plugin: p}, r)
		})
	}
}

func (p *Plugin) apply(h http.Header) {
	for key, value := range p.add {
		if h.Get(key) == "" {
			h.Set(key, value)
		}
	}
	for key, value := range p.override {
		h.Set(key, value)
	}
	for _, key := range p.remove {
		h.Del(key)
	}
}

// headerWriter applies the plugin just before the status line goes out so
// headers written by the handler can still be overridden or removed.
type headerWriter struct {
	http.ResponseWriter
	plugin  *Plugin
	written bool
}

func (w *headerWriter) WriteHeader(status int) {
	if !w.written {
		w.written = true
		w.plugin.apply(w.Header())
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

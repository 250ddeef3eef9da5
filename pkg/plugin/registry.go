package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	configs map[string]map[string]interface{}
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		configs: make(map[string]map[string]interface{}),
		logger:  logger,
	}
}

func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin has empty name")
	}

	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}

	r.plugins[name] = p
	r.logger.Debug("plugin registered", "name", name, "version", p.Version())
	return nil
}

func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.plugins[name]
	if !exists {
		return fmt.Errorf("plugin %s not found", name)
	}

	if err := p.Close(); err != nil {
		r.logger.Warn("plugin close error", "name", name, "error", err)
	}

	delete(r.plugins, name)
	delete(r.configs, name)
	r.logger.Debug("plugin unregistered", "name", name)
	return nil
}

func (r *Registry) SetConfig(name string, config map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = config
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Info(name string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[name]
	if !ok {
		return nil, false
	}

	return r.info(name, p), true
}

func (r *Registry) AllInfo() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*Info, 0, len(r.plugins))
	for name, p := range r.plugins {
		infos = append(infos, r.info(name, p))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

func (r *Registry) info(name string, p Plugin) *Info {
	return &Info{
		Name:        p.Name(),
		Version:     p.Version(),
		Description: p.Description(),
		Enabled:     true,
		Config:      r.configs[name],
		Hooks:       r.detectHooks(p),
	}
}

func (r *Registry) detectHooks(p Plugin) []HookType {
	hooks := []HookType{}
	if _, ok := p.(MiddlewareHook); ok {
		hooks = append(hooks, HookMiddleware)
	}
	return hooks
}

// MiddlewareHooks returns the middleware plugins ordered by priority, then
// name.
func (r *Registry) MiddlewareHooks() []MiddlewareHook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hooks []MiddlewareHook
	for _, p := range r.plugins {
		if h, ok := p.(MiddlewareHook); ok {
			hooks = append(hooks, h)
		}
	}

	sort.Slice(hooks, func(i, j int) bool {
		pi, pj := hooks[i].Priority(), hooks[j].Priority()
		if pi != pj {
			return pi < pj
		}
		return hooks[i].(Plugin).Name() < hooks[j].(Plugin).Name()
	})
	return hooks
}

func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, p := range r.plugins {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close plugin %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

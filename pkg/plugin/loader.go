package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

type PluginOptions map[string]interface{}

// Loader instantiates compiled-in plugins by name and registers them.
type Loader struct {
	registry  *Registry
	logger    *slog.Logger
	mu        sync.RWMutex
	factories map[string]Factory
	loaded    map[string]bool
}

func NewLoader(registry *Registry, factories map[string]Factory, logger *slog.Logger) *Loader {
	l := &Loader{
		registry:  registry,
		logger:    logger,
		factories: make(map[string]Factory, len(factories)),
		loaded:    make(map[string]bool),
	}
	for name, f := range factories {
		l.factories[name] = f
	}
	return l
}

// LoadFromConfig loads every enabled plugin in order. If one fails, the
// plugins loaded by this call are unloaded again.
func (l *Loader) LoadFromConfig(ctx context.Context, enabled []string, configs map[string]PluginOptions) error {
	var done []string
	for _, name := range enabled {
		config := configs[name]
		if config == nil {
			config = make(PluginOptions)
		}

		if err := l.LoadPlugin(ctx, name, config); err != nil {
			for i := len(done) - 1; i >= 0; i-- {
				if uerr := l.UnloadPlugin(done[i]); uerr != nil {
					l.logger.Warn("plugin rollback failed", "name", done[i], "error", uerr)
				}
			}
			return fmt.Errorf("load plugin %s: %w", name, err)
		}
		done = append(done, name)
	}
	return nil
}

func (l *Loader) LoadPlugin(ctx context.Context, name string, config PluginOptions) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded[name] {
		return fmt.Errorf("plugin %s already loaded", name)
	}

	factory, ok := l.factories[name]
	if !ok {
		return fmt.Errorf("unknown plugin %q (available: %v)", name, l.available())
	}

	p := factory()
	if err := p.Init(NewPluginContext(ctx, config, l.logger)); err != nil {
		return fmt.Errorf("init plugin: %w", err)
	}

	if err := l.registry.Register(p); err != nil {
		p.Close()
		return fmt.Errorf("register plugin: %w", err)
	}

	l.registry.SetConfig(name, config)
	l.loaded[name] = true

	l.logger.Info("plugin loaded", "name", name, "version", p.Version())
	return nil
}

func (l *Loader) UnloadPlugin(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded[name] {
		return fmt.Errorf("plugin %s not loaded", name)
	}

	if err := l.registry.Unregister(name); err != nil {
		return err
	}

	delete(l.loaded, name)
	l.logger.Info("plugin unloaded", "name", name)
	return nil
}

func (l *Loader) LoadedPlugins() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.loaded))
	for name := range l.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Loader) Available() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.available()
}

func (l *Loader) available() []string {
	names := make([]string, 0, len(l.factories))
	for name := range l.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Loader) Close() error {
	return l.registry.CloseAll()
}

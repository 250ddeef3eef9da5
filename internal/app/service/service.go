// Package service assembles the usersd process from configuration: store,
// event publisher, plugins, HTTP server and the optional document watcher.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brattlof/usersdb/internal/app/config"
	"github.com/brattlof/usersdb/internal/app/router"
	"github.com/brattlof/usersdb/internal/app/server"
	"github.com/brattlof/usersdb/internal/events"
	"github.com/brattlof/usersdb/internal/store"
	"github.com/brattlof/usersdb/internal/users"
	"github.com/brattlof/usersdb/internal/watch"
	"github.com/brattlof/usersdb/pkg/plugin"
	"github.com/brattlof/usersdb/plugins"
)

const shutdownTimeout = 10 * time.Second

func SetupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	switch cfg.Logging.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func StoreOptions(cfg *config.Config) store.Options {
	return store.Options{
		Driver:      store.Driver(cfg.Store.Driver),
		Path:        cfg.Store.Path,
		AtomicWrite: cfg.Store.AtomicWrite,
		RedisAddr:   cfg.Store.Redis.Addr,
		RedisKey:    cfg.Store.Redis.Key,
		PostgresDSN: cfg.Store.Postgres.DSN,
		DocName:     cfg.Store.Postgres.Name,
	}
}

func EventOptions(cfg *config.Config) events.Options {
	return events.Options{
		Driver:  events.Driver(cfg.Events.Driver),
		Brokers: cfg.Events.Kafka.Brokers,
		Topic:   cfg.Events.Kafka.Topic,
	}
}

// LoadPlugins instantiates the enabled compiled-in plugins.
func LoadPlugins(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*plugin.Registry, *plugin.Loader, error) {
	registry := plugin.NewRegistry(logger)
	loader := plugin.NewLoader(registry, plugins.Factories(), logger)

	if len(cfg.Plugins.Enabled) == 0 {
		return registry, loader, nil
	}

	pluginConfigs := make(map[string]plugin.PluginOptions)
	for name, opts := range cfg.Plugins.Config {
		pluginConfigs[name] = plugin.PluginOptions(opts)
	}
	if err := loader.LoadFromConfig(ctx, cfg.Plugins.Enabled, pluginConfigs); err != nil {
		return nil, nil, err
	}
	logger.Info("Plugins loaded", "count", registry.Count(), "names", loader.LoadedPlugins())
	return registry, loader, nil
}

// Routes returns the API route table without opening any backend.
func Routes(cfg *config.Config, logger *slog.Logger) ([]*router.Route, error) {
	rt := router.New(cfg.API.Prefix)
	h := users.NewHandler(nil, nil, logger, users.Options{})
	if err := h.Register(rt); err != nil {
		return nil, err
	}
	return rt.Routes(), nil
}

type Service struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     store.Store
	publisher events.Publisher
	loader    *plugin.Loader
	server    *server.Server
}

// New opens every dependency named by cfg. On error, whatever was already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (svc *Service, err error) {
	svc = &Service{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			svc.Close()
			svc = nil
		}
	}()

	st, err := store.Open(ctx, StoreOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc.store = st

	pub, err := events.New(EventOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("create event publisher: %w", err)
	}
	svc.publisher = pub

	var registry *plugin.Registry
	registry, svc.loader, err = LoadPlugins(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("load plugins: %w", err)
	}

	h := users.NewHandler(svc.store, svc.publisher, logger, users.Options{
		Serialize:    cfg.API.Serialize,
		StrictUpdate: cfg.API.StrictUpdate,
	})

	rt := router.New(cfg.API.Prefix)
	if err := h.Register(rt); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}
	for _, route := range rt.Routes() {
		logger.Debug("Route", "method", route.Method, "pattern", rt.Prefix()+route.Pattern, "name", route.Name)
	}

	svc.server = server.New(cfg, rt, registry)
	svc.server.SetupMiddlewares()
	svc.server.SetupRoutes(h.Page)

	return svc, nil
}

func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (s *Service) Run(ctx context.Context) error {
	var w *watch.Watcher
	if s.cfg.Store.Watch {
		var err error
		if w, err = s.newWatcher(); err != nil {
			return err
		}
		if w != nil {
			defer w.Close()
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})

	if w != nil {
		g.Go(func() error { return w.Run(ctx) })
	}

	return g.Wait()
}

func (s *Service) newWatcher() (*watch.Watcher, error) {
	fs, ok := s.store.(*store.FileStore)
	if !ok {
		s.logger.Warn("store.watch only applies to the file driver", "driver", s.cfg.Store.Driver)
		return nil, nil
	}
	return watch.New(fs.Path(), watch.DefaultDebounce, func(path string) {
		s.ReportDocument(context.Background(), path)
	}, s.logger)
}

// ReportDocument re-reads the store after an external edit and logs what it
// now holds.
func (s *Service) ReportDocument(ctx context.Context, path string) {
	doc, err := s.store.Read(ctx)
	if err != nil {
		s.logger.Warn("User document changed but cannot be read", "path", path, "error", err)
		return
	}
	s.logger.Info("User document changed", "path", path, "users", len(doc.Users))
}

func (s *Service) Close() error {
	var errs []error
	if s.loader != nil {
		errs = append(errs, s.loader.Close())
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

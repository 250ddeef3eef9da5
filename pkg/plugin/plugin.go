package plugin

import (
	"net/http"
)

type Plugin interface {
	Name() string
	Version() string
	Description() string
	Init(ctx *PluginContext) error
	Close() error
}

type Hook interface {
	Priority() int
}

// MiddlewareHook plugins wrap every request. Lower priorities run first.
type MiddlewareHook interface {
	Hook
	OnMiddleware() func(http.Handler) http.Handler
}

// Factory builds a fresh, uninitialized plugin.
type Factory func() Plugin

type HookType string

const (
	HookMiddleware HookType = "middleware"
)

type Info struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description"`
	Enabled     bool                   `json:"enabled"`
	Config      map[string]interface{} `json:"config,omitempty"`
	Hooks       []HookType             `json:"hooks"`
}

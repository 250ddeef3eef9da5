// Package plugins lists the middleware plugins compiled into usersd.
package plugins

import (
	"github.com/brattlof/usersdb/pkg/plugin"
	"github.com/brattlof/usersdb/plugins/headers"
	"github.com/brattlof/usersdb/plugins/ratelimit"
)

func Factories() map[string]plugin.Factory {
	return map[string]plugin.Factory{
		"headers":   func() plugin.Plugin { return headers.New() },
		"ratelimit": func() plugin.Plugin { return ratelimit.New() },
	}
}

package plugin

import (
	"context"
	"log/slog"
	"strings"
)

// PluginContext carries a plugin's options from the plugins.config section.
// Option values arrive as decoded YAML or env values, so accessors accept
// the loose types viper produces.
type PluginContext struct {
	Config  map[string]interface{}
	Logger  *slog.Logger
	Context context.Context
}

func NewPluginContext(ctx context.Context, config map[string]interface{}, logger *slog.Logger) *PluginContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginContext{
		Config:  config,
		Logger:  logger,
		Context: ctx,
	}
}

// lookup matches keys case-insensitively: viper lowercases every key it
// loads from a config file.
func (p *PluginContext) lookup(key string) (interface{}, bool) {
	if val, ok := p.Config[key]; ok {
		return val, true
	}
	for k, val := range p.Config {
		if strings.EqualFold(k, key) {
			return val, true
		}
	}
	return nil, false
}

func (p *PluginContext) ConfigString(key string) string {
	val, _ := p.lookup(key)
	s, _ := val.(string)
	return s
}

func (p *PluginContext) ConfigInt(key string) int {
	val, _ := p.lookup(key)
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p *PluginContext) ConfigBool(key string) bool {
	val, _ := p.lookup(key)
	b, _ := val.(bool)
	return b
}

func (p *PluginContext) ConfigStringSlice(key string) []string {
	val, _ := p.lookup(key)
	switch v := val.(type) {
	case []string:
		return v
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}

// ConfigStringMap returns the string values of a nested mapping, dropping
// entries of other types.
func (p *PluginContext) ConfigStringMap(key string) map[string]string {
	val, _ := p.lookup(key)
	result := make(map[string]string)
	switch m := val.(type) {
	case map[string]string:
		for k, v := range m {
			result[k] = v
		}
	case map[string]interface{}:
		for k, v := range m {
			if s, ok := v.(string); ok {
				result[k] = s
			}
		}
	}
	return result
}

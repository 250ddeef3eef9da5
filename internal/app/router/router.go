package router

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type Route struct {
	Name    string
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Router is the table of API routes. It does no matching itself; Mount
// hands every route to a chi router.
type Router struct {
	prefix string
	routes []*Route
	index  map[string]*Route
}

func New(prefix string) *Router {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	return &Router{
		prefix: prefix,
		routes: make([]*Route, 0),
		index:  make(map[string]*Route),
	}
}

func (r *Router) Prefix() string {
	return r.prefix
}

func (r *Router) Add(method, pattern, name string, h http.HandlerFunc) error {
	method = strings.ToUpper(method)
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("pattern %q must start with /", pattern)
	}

	key := method + " " + pattern
	if _, exists := r.index[key]; exists {
		return fmt.Errorf("route %s already registered", key)
	}

	route := &Route{
		Name:    name,
		Method:  method,
		Pattern: pattern,
		Handler: h,
	}
	r.routes = append(r.routes, route)
	r.index[key] = route
	return nil
}

func (r *Router) Get(pattern, name string, h http.HandlerFunc) error {
	return r.Add(http.MethodGet, pattern, name, h)
}

func (r *Router) Post(pattern, name string, h http.HandlerFunc) error {
	return r.Add(http.MethodPost, pattern, name, h)
}

func (r *Router) Put(pattern, name string, h http.HandlerFunc) error {
	return r.Add(http.MethodPut, pattern, name, h)
}

func (r *Router) Delete(pattern, name string, h http.HandlerFunc) error {
	return r.Add(http.MethodDelete, pattern, name, h)
}

// Routes returns the table ordered by pattern, then method.
func (r *Router) Routes() []*Route {
	out := make([]*Route, len(r.routes))
	copy(out, r.routes)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (r *Router) Mount(chiRouter interface {
	Method(method, pattern string, handler http.Handler)
}) {
	for _, route := range r.routes {
		chiRouter.Method(route.Method, route.Pattern, r.createHandler(route))
	}
}

func (r *Router) createHandler(route *Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := context.WithValue(req.Context(), routeKey{}, route)
		route.Handler(w, req.WithContext(ctx))
	})
}

type routeKey struct{}

func GetRoute(ctx context.Context) *Route {
	if route, ok := ctx.Value(routeKey{}).(*Route); ok {
		return route
	}
	return nil
}

// RouteName returns the name of the matched route or "unknown".
func RouteName(ctx context.Context) string {
	if route := GetRoute(ctx); route != nil {
		return route.Name
	}
	return "unknown"
}

// Package routes holds the shell's history-mode route table. The table is
// built once at startup and is immutable afterwards; callers pass it to the
// server explicitly.
package routes

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoRoute is returned by Resolve when no route matches the path.
var ErrNoRoute = errors.New("no route matches path")

// Route associates a navigable path with the view mounted for it.
type Route struct {
	Path      string
	Name      string
	Component Component
}

// Lazy reports whether the route's view is fetched on first navigation.
func (r Route) Lazy() bool {
	return r.Component != nil && r.Component.IsLazy()
}

// FetchHook is called after every lazy fetch attempt with its outcome.
type FetchHook func(route string, err error)

// Option configures a Table.
type Option func(*Table)

// WithFetchHook registers a hook observing lazy fetches.
func WithFetchHook(h FetchHook) Option {
	return func(t *Table) { t.onFetch = h }
}

// Table is an ordered, validated set of routes served under a base URL.
type Table struct {
	base    string
	routes  []Route
	byPath  map[string]int
	byName  map[string]int
	onFetch FetchHook
}

// New validates rs and returns a table serving them under base. Paths and
// names must each be unique; paths are compared case-insensitively and
// without a trailing slash.
func New(base string, rs []Route, opts ...Option) (*Table, error) {
	nb, err := normalizeBase(base)
	if err != nil {
		return nil, err
	}

	t := &Table{
		base:   nb,
		routes: make([]Route, 0, len(rs)),
		byPath: make(map[string]int, len(rs)),
		byName: make(map[string]int, len(rs)),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, r := range rs {
		if err := validateRoute(r); err != nil {
			return nil, err
		}
		key := pathKey(r.Path)
		if prev, ok := t.byPath[key]; ok {
			return nil, &ValidationError{
				Route:   r.Name,
				Message: fmt.Sprintf("path %q already used by route %q", r.Path, t.routes[prev].Name),
			}
		}
		if _, ok := t.byName[r.Name]; ok {
			return nil, &ValidationError{Route: r.Name, Message: "duplicate route name"}
		}
		t.byPath[key] = len(t.routes)
		t.byName[r.Name] = len(t.routes)
		t.routes = append(t.routes, r)
	}
	return t, nil
}

// Base returns the normalized base URL; it always begins and ends with "/".
func (t *Table) Base() string {
	return t.base
}

// Routes returns a copy of the routes in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Match returns the route for a request path. The base URL is stripped
// first; paths outside it never match.
func (t *Table) Match(path string) (*Route, bool) {
	rel, ok := t.strip(path)
	if !ok {
		return nil, false
	}
	i, ok := t.byPath[pathKey(rel)]
	if !ok {
		return nil, false
	}
	r := t.routes[i]
	return &r, true
}

// Resolve matches path and resolves the route's view, fetching it first if
// the route is lazy and has not been loaded yet.
func (t *Table) Resolve(ctx context.Context, path string) (*Route, View, error) {
	r, ok := t.Match(path)
	if !ok {
		return nil, nil, ErrNoRoute
	}

	v, fetched, err := r.Component.resolve(ctx)
	if fetched && t.onFetch != nil {
		t.onFetch(r.Name, err)
	}
	if err != nil {
		return r, nil, &LoadError{Route: r.Name, Err: err}
	}
	return r, v, nil
}

// Href returns the base-prefixed path of the named route.
func (t *Table) Href(name string) (string, bool) {
	i, ok := t.byName[name]
	if !ok {
		return "", false
	}
	return t.base + strings.TrimPrefix(t.routes[i].Path, "/"), true
}

// strip removes the base URL from path. The base is compared
// case-insensitively, the same as route paths.
func (t *Table) strip(path string) (string, bool) {
	if t.base == "/" {
		return path, strings.HasPrefix(path, "/")
	}
	if strings.EqualFold(path+"/", t.base) {
		return "/", true
	}
	n := len(t.base)
	if len(path) < n || !strings.EqualFold(path[:n], t.base) {
		return "", false
	}
	return "/" + path[n:], true
}

func validateRoute(r Route) error {
	if r.Name == "" {
		return &ValidationError{Route: r.Path, Message: "name is required"}
	}
	if !strings.HasPrefix(r.Path, "/") {
		return &ValidationError{Route: r.Name, Message: fmt.Sprintf("path %q must start with /", r.Path)}
	}
	if r.Component == nil {
		return &ValidationError{Route: r.Name, Message: "component is required"}
	}
	return nil
}

func normalizeBase(base string) (string, error) {
	if base == "" {
		return "/", nil
	}
	if !strings.HasPrefix(base, "/") {
		return "", &ValidationError{Message: fmt.Sprintf("base URL %q must start with /", base)}
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base, nil
}

// pathKey folds case and drops one trailing slash.
func pathKey(p string) string {
	p = strings.ToLower(p)
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

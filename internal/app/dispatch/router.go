// Package dispatch routes change events to the maintainers that react to
// them and runs those maintainers.
package dispatch

import (
	"context"
	"strings"

	"github.com/dalemusser/lessonsync/internal/app/changes"
)

// Event is a change matched against one route pattern.
type Event struct {
	changes.Change
	Pattern string
	Params  map[string]string
}

// Param returns the value of a {name} wildcard.
func (e Event) Param(name string) string {
	return e.Params[name]
}

// Maintainer reacts to change events. Handle must be idempotent: the same
// event may be delivered more than once and in any order relative to events
// for other documents.
type Maintainer interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

type funcMaintainer struct {
	name string
	fn   func(ctx context.Context, ev Event) error
}

func (f funcMaintainer) Name() string                               { return f.name }
func (f funcMaintainer) Handle(ctx context.Context, ev Event) error { return f.fn(ctx, ev) }

// Func adapts a function into a named Maintainer.
func Func(name string, fn func(ctx context.Context, ev Event) error) Maintainer {
	return funcMaintainer{name: name, fn: fn}
}

// Route binds one maintainer to a path pattern.
type Route struct {
	Pattern    string
	Maintainer Maintainer

	segments []string
}

// Match is a route that matched a path, with its wildcard values.
type Match struct {
	Route
	Params map[string]string
}

// Router maps document paths to maintainers. It has no side effects.
type Router struct {
	routes []Route
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Register binds maintainers to a pattern such as
// "languages/{lang}/resources/{resourceId}". Wildcards match exactly one
// segment. Matches are returned in registration order.
func (r *Router) Register(pattern string, ms ...Maintainer) {
	segs := strings.Split(pattern, "/")
	for _, m := range ms {
		r.routes = append(r.routes, Route{Pattern: pattern, Maintainer: m, segments: segs})
	}
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Match returns every route whose pattern matches path.
func (r *Router) Match(path string) []Match {
	segs := strings.Split(path, "/")
	var out []Match
	for _, rt := range r.routes {
		if params, ok := matchSegments(rt.segments, segs); ok {
			out = append(out, Match{Route: rt, Params: params})
		}
	}
	return out
}

func matchSegments(pattern, path []string) (map[string]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	params := map[string]string{}
	for i, p := range pattern {
		if name, ok := wildcard(p); ok {
			if path[i] == "" {
				return nil, false
			}
			params[name] = path[i]
			continue
		}
		if p != path[i] {
			return nil, false
		}
	}
	return params, true
}

func wildcard(seg string) (string, bool) {
	if len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}' {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}

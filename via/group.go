package via

import (
	"strings"
)

// Group represents a route group with a common prefix and middleware.
type Group struct {
	v           *V
	prefix      string
	middlewares []Middleware
}

// Group creates a new route group with the given prefix.
// The callback receives the Group for registering routes.
func (v *V) Group(prefix string, fn func(*Group)) {
	g := &Group{
		v:           v,
		prefix:      prefix,
		middlewares: []Middleware{},
	}
	fn(g)
}

// Use adds middleware to this group only.
func (g *Group) Use(middleware ...Middleware) {
	g.middlewares = append(g.middlewares, middleware...)
}

// Group creates a nested route group within this group.
func (g *Group) Group(prefix string, fn func(*Group)) {
	child := &Group{
		v:           g.v,
		prefix:      g.prefix + prefix,
		middlewares: append([]Middleware{}, g.middlewares...),
	}
	fn(child)
}

// Page registers a page route within the group.
func (g *Group) Page(route string, fn func(*Composition)) {
	fullRoute := g.prefix + route
	c := newComposition(fullRoute)
	fn(c)
	if c.viewFn == nil {
		panic("page " + fullRoute + " has no view")
	}

	// global middleware outermost, group middleware closest to the handler
	handler := chain(g.v.newPageHTTPHandler(c), g.middlewares)
	handler = chain(handler, g.v.middlewares)

	pattern := fullRoute
	if strings.HasSuffix(pattern, "/") {
		pattern += "{$}"
	}
	g.v.mux.Handle("GET "+pattern, handler)
	g.v.logDebug(nil, "page registered: %s", fullRoute)
}

package via

import (
	"github.com/go-via/testbench/via/h"
)

// Composition describes one page or component: its state and signal
// declarations, its actions and its view. It is built once per route and
// shared by every tab that opens the route.
type Composition struct {
	id           string
	route        string
	viewFn       func(*Context) h.H
	actions      map[string]func(*Context)
	actionOwners map[string]compOwner
	signals      []signalRegistration
	states       []stateRegistration
	isComponent  bool
}

// ComposeFn is the compose function for a page or a component.
type ComposeFn func(c *Composition)

type compOwner struct {
	id     string
	viewFn func(*Context) h.H
}

type signalRegistration struct {
	id      string
	initial any
}

type stateRegistration struct {
	id      string
	initial any
}

func newComposition(route string) *Composition {
	return &Composition{
		id:           genRandID(),
		route:        route,
		actions:      make(map[string]func(*Context)),
		actionOwners: make(map[string]compOwner),
	}
}

func (c *Composition) ID() string {
	return c.id
}

// View sets the render function. Pages are wrapped in a <main> carrying the
// composition id so that full syncs replace the whole page body.
func (c *Composition) View(viewFn func(ctx *Context) h.H) {
	if viewFn == nil {
		panic("page composition contains no view")
	}
	if c.isComponent {
		c.viewFn = viewFn
		return
	}
	c.viewFn = func(ctx *Context) h.H {
		return h.Main(h.ID(c.id), viewFn(ctx))
	}
}

func (c *Composition) mustBeBeforeView(what string) {
	if c.viewFn != nil {
		panic(what + "() must be declared before View()")
	}
}

// initialSignals returns the declared signals with their initial values.
func (c *Composition) initialSignals() map[string]any {
	sigs := make(map[string]any, len(c.signals))
	for _, s := range c.signals {
		sigs[s.id] = s.initial
	}
	return sigs
}

package via

import (
	"maps"

	"github.com/go-via/testbench/via/h"
)

// CompHandle is a handle to a composed component.
type CompHandle struct {
	id     string
	viewFn func(*Context) h.H
}

// ID returns the id of the element the component renders into.
func (ch *CompHandle) ID() string {
	return ch.id
}

// Mount renders the component into the parent view, wrapped in a div with its ID.
func (ch *CompHandle) Mount(ctx *Context) h.H {
	if ch.viewFn == nil {
		return h.Div(h.ID(ch.id))
	}
	return h.Div(h.ID(ch.id), ch.viewFn(ctx))
}

// Component creates a child component from a compose function. Its state,
// signals and actions join the parent; actions it owns re-render only the
// component fragment when they sync.
func (parent *Composition) Component(composeFn ComposeFn) *CompHandle {
	child := newComposition("")
	child.isComponent = true

	composeFn(child)

	if parent.actions == nil {
		parent.actions = make(map[string]func(*Context))
	}
	if parent.actionOwners == nil {
		parent.actionOwners = make(map[string]compOwner)
	}
	owner := compOwner{id: child.id, viewFn: child.viewFn}
	for id, fn := range child.actions {
		parent.actions[id] = fn
		parent.actionOwners[id] = owner
	}
	// nested components keep their innermost owner
	maps.Copy(parent.actionOwners, child.actionOwners)

	parent.signals = append(parent.signals, child.signals...)
	parent.states = append(parent.states, child.states...)

	return &CompHandle{
		id:     child.id,
		viewFn: child.viewFn,
	}
}

package via

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/go-via/testbench/via/h"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type patchType int

const (
	patchTypeElements patchType = iota
	patchTypeSignals
	patchTypeScript
)

func (t patchType) String() string {
	switch t {
	case patchTypeElements:
		return "elements"
	case patchTypeSignals:
		return "signals"
	case patchTypeScript:
		return "script"
	}
	return "unknown"
}

type patch struct {
	typ     patchType
	content string
}

// Context is the per-call handle onto a browser tab. Views and actions
// receive one; it reads and writes the tab's state and signals and pushes
// updates to the browser.
type Context struct {
	s          *store
	ss         *session
	mode       sessionMode
	warn       func(string, ...any)
	compID     string
	compViewFn func(*Context) h.H
}

// NewContext returns a detached Context backed by a fresh store. It has no
// browser tab: Sync is a no-op and Go runs synchronously. Useful to render
// views and exercise actions in tests.
func NewContext(v *V) *Context {
	warn := func(string, ...any) {}
	if v != nil {
		warn = func(format string, a ...any) { v.logWarn(nil, format, a...) }
	}
	return &Context{
		s:    newStore(),
		mode: sessionModeAction,
		warn: warn,
	}
}

// ID returns the tab id, or "" for a detached Context.
func (c *Context) ID() string {
	if c.ss == nil {
		return ""
	}
	return c.ss.id
}

// Logger returns a logger tagged with the tab id.
func (c *Context) Logger() *zerolog.Logger {
	if c.ss == nil {
		l := zerolog.Nop()
		return &l
	}
	return &c.ss.log
}

// Done is closed once the tab is disposed. It is nil for a detached Context.
func (c *Context) Done() <-chan struct{} {
	if c.ss == nil {
		return nil
	}
	return c.ss.ctx.Done()
}

func (c *Context) viewContext() *Context {
	rc := *c
	rc.mode = sessionModeView
	return &rc
}

func (c *Context) render(n h.H) (string, bool) {
	var buf bytes.Buffer
	if err := n.Render(&buf); err != nil {
		c.warn("render failed: %v", err)
		return "", false
	}
	return buf.String(), true
}

// Sync re-renders the view and pushes it, plus any changed signals, to the
// browser. Inside a component action only the component fragment is sent.
func (c *Context) Sync() {
	if c.mode == sessionModeView {
		c.warn("Sync() called during view render; no-op")
		return
	}
	if c.ss == nil || c.ss.c == nil || c.ss.c.viewFn == nil {
		return
	}
	rc := c.viewContext()
	var view h.H
	if c.compID != "" && c.compViewFn != nil {
		view = h.Div(h.ID(c.compID), c.compViewFn(rc))
	} else {
		view = c.ss.c.viewFn(rc)
	}
	html, ok := c.render(view)
	if !ok {
		return
	}
	c.ss.send(patch{patchTypeElements, html})
	c.SyncSignals()
}

// SyncFragment pushes an arbitrary element. It is merged into the page by the
// id of its top level element.
func (c *Context) SyncFragment(elem h.H) {
	if c.mode == sessionModeView {
		c.warn("SyncFragment() called during view render; no-op")
		return
	}
	if c.ss == nil || elem == nil {
		return
	}
	if html, ok := c.render(elem); ok {
		c.ss.send(patch{patchTypeElements, html})
	}
}

// SyncSignals pushes signals changed since the last sync.
func (c *Context) SyncSignals() {
	if c.ss == nil || c.s == nil || len(c.s.changedSignals) == 0 {
		return
	}
	b, err := json.Marshal(c.s.changedSignals)
	if err != nil {
		c.warn("encode signals failed: %v", err)
		return
	}
	c.s.changedSignals = make(map[string]any)
	c.ss.send(patch{patchTypeSignals, string(b)})
}

// ExecScript runs s in the browser.
func (c *Context) ExecScript(s string) {
	if s == "" || c.ss == nil {
		return
	}
	c.ss.send(patch{patchTypeScript, s})
}

// After runs fn on the tab's loop once d has elapsed, unless the tab is
// disposed first. The returned func cancels the pending call.
func (c *Context) After(d time.Duration, fn func(*Context)) (cancel func()) {
	noop := func() {}
	if c.ss == nil || c.ss.loop == nil {
		c.warn("After() on a detached context; ignored")
		return noop
	}
	ac := *c
	ac.mode = sessionModeAction
	cancel, err := c.ss.loop.after(d, func() {
		if c.ss.disposed.Load() {
			return
		}
		c.ss.guard("timer", func() { fn(&ac) })
	})
	if err != nil {
		c.warn("schedule failed: %v", err)
		return noop
	}
	return cancel
}

// Dispatch runs fn on the tab's loop and waits for it to return. It fails
// once the tab has been disposed.
func (c *Context) Dispatch(fn func(*Context)) error {
	if c.ss == nil {
		fn(c)
		return nil
	}
	ac := *c
	ac.mode = sessionModeAction
	return c.ss.dispatch(func() { fn(&ac) })
}

// Dispose tears the tab down: pending timers are dropped, in-flight Go work
// sees its context cancelled and its continuation is discarded.
func (c *Context) Dispose() {
	if c.ss == nil {
		return
	}
	if c.ss.v != nil {
		c.ss.v.sessions.remove(c.ss.id)
	}
	c.ss.dispose()
}

// Go runs work on its own goroutine, then delivers the result to then on the
// tab's loop. The work context is cancelled when the tab is disposed, and
// then is never called for a disposed tab.
func Go[T any](c *Context, work func(context.Context) (T, error), then func(*Context, T, error)) {
	if c.ss == nil {
		v, err := work(context.Background())
		then(c, v, err)
		return
	}
	ss := c.ss
	ac := *c
	ac.mode = sessionModeAction
	go func() {
		v, err := work(ss.ctx)
		if ss.disposed.Load() {
			return
		}
		if serr := ss.loop.submit(func() {
			if ss.disposed.Load() {
				return
			}
			ss.guard("async completion", func() { then(&ac, v, err) })
		}); serr != nil && !errors.Is(serr, errLoopClosed) {
			ss.warnf("deliver async result failed: %v", serr)
		}
	}()
}

// Package via provides a reactive web framework for Go.
// It lets you build live, type-safe web interfaces without JavaScript.
//
// Via unifies routing, state, and UI reactivity through a simple mental model:
// Go on the server, HTML in the browser, updated in real time via Datastar.
package via

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-via/testbench/via/h"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/starfederation/datastar-go/datastar"
)

const (
	// contextSignal carries the tab id on every Datastar request.
	contextSignal = "via-c"

	datastarBundle = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"
)

// V is the root application.
// It manages page routing, browser tabs, and SSE connections for live updates.
type V struct {
	cfg                  Options
	mux                  *http.ServeMux
	logger               zerolog.Logger
	sessions             *registry
	middlewares          []Middleware
	documentHeadIncludes []h.H
	documentFootIncludes []h.H

	serverMu sync.Mutex
	server   *http.Server
	stopped  bool
}

func newLogger(out io.Writer, lvl LogLevel) zerolog.Logger {
	if out == nil {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl.zerolog()).With().Timestamp().Logger()
}

func (v *V) logEvent(e *zerolog.Event, ss *session, format string, a ...any) {
	if ss != nil && ss.id != "" {
		e = e.Str("via-ctx", ss.id)
	}
	e.Msgf(format, a...)
}

func (v *V) logErr(ss *session, format string, a ...any) {
	v.logEvent(v.logger.Error(), ss, format, a...)
}

func (v *V) logWarn(ss *session, format string, a ...any) {
	v.logEvent(v.logger.Warn(), ss, format, a...)
}

func (v *V) logInfo(ss *session, format string, a ...any) {
	v.logEvent(v.logger.Info(), ss, format, a...)
}

func (v *V) logDebug(ss *session, format string, a ...any) {
	v.logEvent(v.logger.Debug(), ss, format, a...)
}

// Logger returns the application logger.
func (v *V) Logger() *zerolog.Logger {
	return &v.logger
}

// Config overrides the default configuration with the non-zero fields of cfg.
func (v *V) Config(cfg Options) *V {
	if cfg.LogLvl != undefined {
		v.cfg.LogLvl = cfg.LogLvl
	}
	if cfg.LogOutput != nil {
		v.cfg.LogOutput = cfg.LogOutput
	}
	v.logger = newLogger(v.cfg.LogOutput, v.cfg.LogLvl)
	if cfg.DocumentTitle != "" {
		v.cfg.DocumentTitle = cfg.DocumentTitle
	}
	if cfg.ServerAddress != "" {
		v.cfg.ServerAddress = cfg.ServerAddress
	}
	if cfg.SessionTTL != 0 && cfg.SessionTTL != v.cfg.SessionTTL {
		v.cfg.SessionTTL = cfg.SessionTTL
		v.sessions.reset(sessionTTL(cfg.SessionTTL))
	}
	for _, plugin := range cfg.Plugins {
		if plugin != nil {
			plugin.Register(v)
		}
	}
	v.cfg.Plugins = append(v.cfg.Plugins, cfg.Plugins...)
	return v
}

func sessionTTL(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// AppendToHead appends the given h.H nodes to the head of the base HTML document.
// Useful for including css stylesheets and JS scripts.
func (v *V) AppendToHead(elements ...h.H) {
	for _, el := range elements {
		if el != nil {
			v.documentHeadIncludes = append(v.documentHeadIncludes, el)
		}
	}
}

// AppendToFoot appends the given h.H nodes to the end of the base HTML document body.
// Useful for including JS scripts.
func (v *V) AppendToFoot(elements ...h.H) {
	for _, el := range elements {
		if el != nil {
			v.documentFootIncludes = append(v.documentFootIncludes, el)
		}
	}
}

// Page registers a route and its composition.
//
// Example:
//
//	v.Page("/", func(c *via.Composition) {
//		count := via.State(c, 0)
//		inc := via.Action(c, func(ctx *via.Context) {
//			count.Update(ctx, func(n int) int { return n + 1 })
//		})
//		c.View(func(ctx *via.Context) h.H {
//			return h.Button(h.Textf("%d", count.Get(ctx)), inc.OnClick())
//		})
//	})
func (v *V) Page(route string, fn func(c *Composition)) {
	(&Group{v: v}).Page(route, fn)
}

// HTTPServeMux returns the router. Use it to register extra handlers or to
// serve the app from a custom server.
func (v *V) HTTPServeMux() *http.ServeMux {
	return v.mux
}

// Start serves Handler on the configured address until Shutdown is called.
// Start returns nil at once if Shutdown already ran.
func (v *V) Start() error {
	v.serverMu.Lock()
	if v.stopped {
		v.serverMu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              v.cfg.ServerAddress,
		Handler:           v.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	v.server = srv
	v.serverMu.Unlock()

	v.logInfo(nil, "via started on address: %s", v.cfg.ServerAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// Shutdown stops the server, if running, and disposes every live tab.
func (v *V) Shutdown(ctx context.Context) error {
	v.serverMu.Lock()
	srv := v.server
	v.stopped = true
	v.serverMu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	v.sessions.close()
	return err
}

// Mount composes fn into a live tab that is not attached to a browser. The
// returned Context renders with HTML and runs actions with Trigger.
func (v *V) Mount(fn ComposeFn) (*Context, error) {
	c := newComposition("")
	fn(c)
	if c.viewFn == nil {
		return nil, errors.New("composition has no view")
	}
	ss, err := newSession(v, c)
	if err != nil {
		return nil, err
	}
	v.sessions.put(ss)
	return ss.context(), nil
}

// RenderString composes fn and renders its initial view.
func RenderString(fn ComposeFn) (string, error) {
	c := newComposition("")
	fn(c)
	if c.viewFn == nil {
		return "", errors.New("composition has no view")
	}
	ctx := NewContext(nil).viewContext()
	html, ok := ctx.render(c.viewFn(ctx))
	if !ok {
		return "", errors.New("render failed")
	}
	return html, nil
}

// HTML renders the tab's current view on its loop.
func (c *Context) HTML() (string, error) {
	if c.ss == nil || c.ss.c == nil {
		return "", errors.New("context has no composition")
	}
	var html string
	var rendered bool
	err := c.ss.dispatch(func() {
		rc := c.ss.context().viewContext()
		html, rendered = rc.render(c.ss.c.viewFn(rc))
	})
	if err != nil {
		return "", err
	}
	if !rendered {
		return "", errors.New("render failed")
	}
	return html, nil
}

// Trigger runs an action of the tab as if the browser had sent signals with it.
func (c *Context) Trigger(a *ActionHandle, signals map[string]any) error {
	if c.ss == nil {
		return errors.New("context is detached")
	}
	return c.ss.runAction(a.ID(), signals)
}

func (ss *session) runAction(actionID string, sigs map[string]any) error {
	fn, ok := ss.c.actions[actionID]
	if !ok {
		return errors.Errorf("action '%s' not found", actionID)
	}
	return ss.dispatch(func() {
		injectSignals(ss.store, sigs)
		ctx := ss.context()
		if owner, ok := ss.c.actionOwners[actionID]; ok {
			ctx.compID = owner.id
			ctx.compViewFn = owner.viewFn
		}
		fn(ctx)
	})
}

func (v *V) newPageHTTPHandler(c *Composition) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ss, err := newSession(v, c)
		if err != nil {
			v.logErr(nil, "failed to open context: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		registered := false
		defer func() {
			if !registered {
				ss.dispose()
			}
		}()
		v.logDebug(ss, "GET %s", r.URL.Path)

		// the tab is not yet visible to other requests, so render inline
		rc := ss.context().viewContext()
		doc := v.document(ss, c.viewFn(rc))

		v.sessions.put(ss)
		registered = true
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := doc.Render(w); err != nil {
			v.logErr(ss, "failed to render page: %v", err)
		}
	})
}

func (v *V) document(ss *session, body h.H) h.H {
	sigs := ss.c.initialSignals()
	sigs[contextSignal] = ss.id
	sigsJSON, _ := json.Marshal(sigs)

	head := append([]h.H{}, v.documentHeadIncludes...)
	head = append(head,
		h.Meta(h.Data("signals", string(sigsJSON))),
		h.Meta(h.DataInit("@get('/_sse')")),
		h.Script(h.Type("module"), h.Src("/_datastar.js")),
	)
	foot := []h.H{body}
	foot = append(foot, v.documentFootIncludes...)
	foot = append(foot, h.Script(h.Raw(fmt.Sprintf(
		"window.addEventListener('pagehide',()=>navigator.sendBeacon('/_session/close','%s'))", ss.id))))

	return h.HTML5(h.HTML5Props{
		Title: v.cfg.DocumentTitle,
		Head:  head,
		Body:  foot,
	})
}

func (v *V) handleSSE(w http.ResponseWriter, r *http.Request) {
	var sigs map[string]any
	_ = datastar.ReadSignals(r, &sigs)
	cID, _ := sigs[contextSignal].(string)
	ss, err := v.sessions.get(cID)
	if err != nil {
		v.logErr(nil, "failed to open stream: %v", err)
		http.NotFound(w, r)
		return
	}
	sse := datastar.NewSSE(w, r)
	v.logDebug(ss, "SSE connection established")
	defer v.logDebug(ss, "SSE connection closed")

	// an open stream keeps its tab alive while the user is idle
	var keepAlive <-chan time.Time
	if d := v.sessions.keepAlive(); d > 0 {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		keepAlive = ticker.C
	}
	for {
		select {
		case <-sse.Context().Done():
			return
		case <-ss.ctx.Done():
			return
		case <-keepAlive:
			_, _ = v.sessions.get(ss.id)
		case p := <-ss.patchChan:
			_, _ = v.sessions.get(ss.id)
			var err error
			switch p.typ {
			case patchTypeElements:
				err = sse.PatchElements(p.content)
			case patchTypeSignals:
				err = sse.PatchSignals([]byte(p.content))
			case patchTypeScript:
				err = sse.ExecuteScript(p.content)
			}
			if err != nil {
				v.logDebug(ss, "failed to write %s patch: %v", p.typ, err)
				return
			}
		}
	}
}

func (v *V) handleAction(w http.ResponseWriter, r *http.Request) {
	actionID := r.PathValue("id")
	var sigs map[string]any
	_ = datastar.ReadSignals(r, &sigs)
	cID, _ := sigs[contextSignal].(string)
	ss, err := v.sessions.get(cID)
	if err != nil {
		v.logErr(nil, "action '%s' failed: %v", actionID, err)
		http.NotFound(w, r)
		return
	}
	if _, ok := ss.c.actions[actionID]; !ok {
		v.logDebug(ss, "action '%s' failed: not found", actionID)
		http.NotFound(w, r)
		return
	}
	v.logDebug(ss, "action '%s' signals=%v", actionID, sigs)
	if err := ss.runAction(actionID, sigs); err != nil {
		v.logErr(ss, "action '%s' failed: %v", actionID, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (v *V) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(string(body))
	if !isValidHexID(id) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if v.sessions.remove(id) {
		v.logDebug(nil, "context %s closed by browser", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// New creates a new Via application with default configuration.
func New() *V {
	v := &V{
		mux: http.NewServeMux(),
		cfg: Options{
			ServerAddress: ":3000",
			LogLvl:        LogLevelInfo,
			DocumentTitle: "⚡ Via",
			SessionTTL:    1800,
		},
	}
	v.logger = newLogger(nil, v.cfg.LogLvl)
	v.sessions = newRegistry(sessionTTL(v.cfg.SessionTTL))

	v.mux.HandleFunc("GET /_datastar.js", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, datastarBundle, http.StatusFound)
	})
	v.mux.Handle("GET /_sse", v.withMiddleware(http.HandlerFunc(v.handleSSE)))
	v.mux.Handle("GET /_action/{id}", v.withMiddleware(http.HandlerFunc(v.handleAction)))
	v.mux.Handle("POST /_session/close", v.withMiddleware(http.HandlerFunc(v.handleSessionClose)))
	return v
}

func genRandID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func isValidHexID(id string) bool {
	if len(id) != 8 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

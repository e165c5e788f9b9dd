package via

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type store struct {
	state          map[string]any
	signals        map[string]any
	changedSignals map[string]any
}

func newStore() *store {
	return &store{
		state:          make(map[string]any),
		signals:        make(map[string]any),
		changedSignals: make(map[string]any),
	}
}

// injectSignals copies browser-provided signal values into st.
func injectSignals(st *store, sigs map[string]any) {
	for k, v := range sigs {
		if k == contextSignal {
			continue
		}
		st.signals[k] = v
	}
}

type sessionMode uint8

const (
	sessionModeView sessionMode = iota
	sessionModeAction
)

// session is the server side of one browser tab.
type session struct {
	id        string
	v         *V
	c         *Composition
	store     *store
	patchChan chan patch
	loop      *tabLoop
	ctx       context.Context
	cancel    context.CancelFunc
	disposed  atomic.Bool
	log       zerolog.Logger
}

func newSession(v *V, c *Composition) (*session, error) {
	loop, err := newTabLoop()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	ss := &session{
		id:        genRandID(),
		v:         v,
		c:         c,
		store:     newStore(),
		patchChan: make(chan patch, 100),
		loop:      loop,
		ctx:       ctx,
		cancel:    cancel,
	}
	ss.log = v.logger.With().Str("via-ctx", ss.id).Logger()
	return ss, nil
}

// context returns an action-mode handle onto the session.
func (ss *session) context() *Context {
	return &Context{
		s:    ss.store,
		ss:   ss,
		mode: sessionModeAction,
		warn: ss.warnf,
	}
}

func (ss *session) warnf(format string, a ...any) {
	if ss.v == nil {
		return
	}
	ss.v.logWarn(ss, format, a...)
}

// send queues p for the SSE stream. A full buffer drops the patch; the next
// Sync carries the whole view again.
func (ss *session) send(p patch) {
	if ss.disposed.Load() {
		return
	}
	select {
	case ss.patchChan <- p:
	default:
		if ss.v != nil {
			ss.v.logDebug(ss, "patch buffer full; dropped %s patch", p.typ)
		}
	}
}

// dispatch runs fn on the tab loop and waits for it to return.
func (ss *session) dispatch(fn func()) error {
	if ss.disposed.Load() || ss.loop == nil {
		return errors.Errorf("ctx '%s' disposed", ss.id)
	}
	done := make(chan struct{})
	var panicked any
	err := ss.loop.submit(func() {
		defer close(done)
		defer func() { panicked = recover() }()
		if ss.disposed.Load() {
			return
		}
		fn()
	})
	if err != nil {
		return errors.Wrapf(err, "ctx '%s'", ss.id)
	}
	select {
	case <-done:
	case <-ss.ctx.Done():
		return errors.Errorf("ctx '%s' disposed", ss.id)
	}
	if panicked != nil {
		return errors.Errorf("panic: %v", panicked)
	}
	return nil
}

func (ss *session) dispose() {
	if !ss.disposed.CompareAndSwap(false, true) {
		return
	}
	if ss.loop != nil {
		ss.loop.close()
	}
	if ss.cancel != nil {
		ss.cancel()
	}
	if ss.v != nil {
		ss.v.logDebug(ss, "context disposed")
	}
}

// registry holds the live sessions. Entries expire after the configured idle
// TTL; every expiry or removal disposes the session. The registry itself is
// never replaced: reset swaps the underlying cache under mu.
type registry struct {
	mu      sync.RWMutex
	ttl     time.Duration
	cache   *ttlcache.Cache[string, *session]
	started bool
}

func newRegistry(ttl time.Duration) *registry {
	return &registry{ttl: ttl, cache: newSessionCache(ttl)}
}

func newSessionCache(ttl time.Duration) *ttlcache.Cache[string, *session] {
	var opts []ttlcache.Option[string, *session]
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, *session](ttl))
	}
	cache := ttlcache.New[string, *session](opts...)
	cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *session]) {
		item.Value().dispose()
	})
	return cache
}

func (r *registry) current() *ttlcache.Cache[string, *session] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache
}

func (r *registry) put(ss *session) {
	r.mu.Lock()
	if !r.started {
		r.started = true
		go r.cache.Start()
	}
	cache := r.cache
	r.mu.Unlock()
	cache.Set(ss.id, ss, ttlcache.DefaultTTL)
}

// get looks a session up and extends its TTL.
func (r *registry) get(id string) (*session, error) {
	item := r.current().Get(id)
	if item == nil {
		return nil, errors.Errorf("ctx '%s' not found", id)
	}
	return item.Value(), nil
}

// keepAlive is how often an open stream must touch its entry to stay ahead
// of expiry. Zero means entries never expire.
func (r *registry) keepAlive() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ttl / 2
}

func (r *registry) remove(id string) bool {
	cache := r.current()
	item := cache.Get(id)
	if item == nil {
		return false
	}
	cache.Delete(id)
	item.Value().dispose()
	return true
}

func (r *registry) len() int {
	return r.current().Len()
}

func (r *registry) each(fn func(*session)) {
	for _, item := range r.current().Items() {
		fn(item.Value())
	}
}

// reset disposes every session and starts over with an empty cache using ttl.
func (r *registry) reset(ttl time.Duration) {
	r.mu.Lock()
	old, started := r.cache, r.started
	r.ttl = ttl
	r.cache = newSessionCache(ttl)
	r.started = false
	r.mu.Unlock()

	for _, item := range old.Items() {
		item.Value().dispose()
	}
	old.DeleteAll()
	if started {
		old.Stop()
	}
}

func (r *registry) close() {
	r.mu.RLock()
	ttl := r.ttl
	r.mu.RUnlock()
	r.reset(ttl)
}

// guard runs fn and logs a panic instead of letting it kill the loop.
func (ss *session) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil && ss.v != nil {
			ss.v.logErr(ss, "%s failed: %v", what, r)
		}
	}()
	fn()
}

package via

import (
	"context"
	"sync"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/pkg/errors"
)

var errLoopClosed = errors.New("tab loop closed")

// tabLoop serialises all work of one browser tab: actions, timers and async
// completions run on a single goroutine in submission order.
type tabLoop struct {
	loop   *eventloop.Loop
	js     *eventloop.JS
	stop   context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	seq    uint64
	timers map[uint64]uint64
}

func newTabLoop() (*tabLoop, error) {
	loop, err := eventloop.New()
	if err != nil {
		return nil, errors.Wrap(err, "create event loop")
	}
	js, err := eventloop.NewJS(loop)
	if err != nil {
		return nil, errors.Wrap(err, "create timer adapter")
	}
	ctx, stop := context.WithCancel(context.Background())
	t := &tabLoop{
		loop:   loop,
		js:     js,
		stop:   stop,
		done:   make(chan struct{}),
		timers: make(map[uint64]uint64),
	}
	go func() {
		defer close(t.done)
		_ = loop.Run(ctx)
	}()
	return t, nil
}

func (t *tabLoop) submit(fn func()) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return errLoopClosed
	}
	return t.loop.Submit(fn)
}

// after runs fn on the loop once d has elapsed. The returned func cancels the
// timer; it is safe to call more than once and after the timer fired.
func (t *tabLoop) after(d time.Duration, fn func()) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errLoopClosed
	}
	t.seq++
	key := t.seq
	id, err := t.js.SetTimeout(func() {
		if t.take(key) {
			fn()
		}
	}, int(d.Milliseconds()))
	if err != nil {
		return nil, errors.Wrap(err, "schedule timer")
	}
	t.timers[key] = id
	return func() {
		t.mu.Lock()
		id, ok := t.timers[key]
		delete(t.timers, key)
		closed := t.closed
		t.mu.Unlock()
		if ok && !closed {
			// never block the loop goroutine on its own queue
			go func() { _ = t.js.ClearTimeout(id) }()
		}
	}, nil
}

// take reports whether the timer under key is still pending and forgets it.
func (t *tabLoop) take(key uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	_, ok := t.timers[key]
	delete(t.timers, key)
	return ok
}

func (t *tabLoop) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// close drops every pending timer and stops the loop. Timers that were already
// dequeued by the loop observe closed and do nothing.
func (t *tabLoop) close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.timers = make(map[uint64]uint64)
	t.mu.Unlock()
	t.stop()
}

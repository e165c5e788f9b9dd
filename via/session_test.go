package via

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-via/testbench/via/h"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tabIDPattern = regexp.MustCompile(`sendBeacon\('/_session/close','([0-9a-f]{8})'\)`)

func loadPage(t *testing.T, v *V, path string) (body string, tabID string) {
	t.Helper()
	w := httptest.NewRecorder()
	v.HTTPServeMux().ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	require.Equal(t, http.StatusOK, w.Code)
	m := tabIDPattern.FindStringSubmatch(w.Body.String())
	require.Len(t, m, 2, "page carries no tab id")
	return w.Body.String(), m[1]
}

func TestSession_PageLoadRegistersTab(t *testing.T) {
	v := quietApp()
	t.Cleanup(func() { _ = v.Shutdown(context.Background()) })
	v.Page("/", func(c *Composition) {
		c.View(func(ctx *Context) h.H { return h.Div(h.Text("Test")) })
	})

	_, id1 := loadPage(t, v, "/")
	_, id2 := loadPage(t, v, "/")

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, v.sessions.len())
	_, err := v.sessions.get(id1)
	assert.NoError(t, err)
}

func TestSessionClose_RemovesSession(t *testing.T) {
	v := quietApp()
	t.Cleanup(func() { _ = v.Shutdown(context.Background()) })
	v.Page("/", func(c *Composition) {
		c.View(func(ctx *Context) h.H { return h.Div(h.Text("Test")) })
	})
	_, id := loadPage(t, v, "/")
	ss, err := v.sessions.get(id)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	v.HTTPServeMux().ServeHTTP(w, httptest.NewRequest("POST", "/_session/close", bytes.NewBufferString(id)))

	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err = v.sessions.get(id)
	assert.Error(t, err)
	assert.True(t, ss.disposed.Load())
}

func TestSessionClose_RejectsGarbage(t *testing.T) {
	v := quietApp()
	w := httptest.NewRecorder()
	v.HTTPServeMux().ServeHTTP(w, httptest.NewRequest("POST", "/_session/close", bytes.NewBufferString("../../etc")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession_ExpiresAfterTTL(t *testing.T) {
	v := quietApp().Config(Options{SessionTTL: 1})
	t.Cleanup(func() { _ = v.Shutdown(context.Background()) })
	ctx, err := v.Mount(func(c *Composition) {
		c.View(func(ctx *Context) h.H { return h.Div() })
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return ctx.ss.disposed.Load()
	}, 5*time.Second, 50*time.Millisecond)
	_, err = v.sessions.get(ctx.ID())
	assert.Error(t, err)
}

func TestSession_OpenStreamOutlivesTTL(t *testing.T) {
	v := quietApp().Config(Options{SessionTTL: 1})
	t.Cleanup(func() { _ = v.Shutdown(context.Background()) })
	var clicks atomic.Int32
	var act *ActionHandle
	ctx, err := v.Mount(func(c *Composition) {
		act = Action(c, func(*Context) { clicks.Add(1) })
		c.View(func(ctx *Context) h.H { return h.Button(act.OnClick()) })
	})
	require.NoError(t, err)

	streamCtx, closeStream := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/_sse?datastar="+url.QueryEscape(`{"via-c":"`+ctx.ID()+`"}`), nil)
		v.HTTPServeMux().ServeHTTP(httptest.NewRecorder(), req.WithContext(streamCtx))
	}()

	time.Sleep(2500 * time.Millisecond)

	_, err = v.sessions.get(ctx.ID())
	require.NoError(t, err, "idle tab with an open stream was evicted")
	assert.False(t, ctx.ss.disposed.Load())
	require.NoError(t, ctx.Trigger(act, nil))
	assert.Equal(t, int32(1), clicks.Load())

	closeStream()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not return after the client left")
	}
	assert.Eventually(t, func() bool {
		return ctx.ss.disposed.Load()
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSession_ShutdownDisposesAll(t *testing.T) {
	v := quietApp()
	var tabs []*Context
	for range 3 {
		ctx, err := v.Mount(func(c *Composition) {
			c.View(func(ctx *Context) h.H { return h.Div() })
		})
		require.NoError(t, err)
		tabs = append(tabs, ctx)
	}

	require.NoError(t, v.Shutdown(context.Background()))

	for _, ctx := range tabs {
		assert.True(t, ctx.ss.disposed.Load())
	}
	assert.Zero(t, v.sessions.len())
}

func TestSession_SendDropsWhenFull(t *testing.T) {
	ss := detachedSession(&Composition{})
	for range cap(ss.patchChan) + 5 {
		ss.send(patch{patchTypeScript, "x"})
	}
	assert.Len(t, ss.patchChan, cap(ss.patchChan))
}

func TestSession_SendAfterDisposeIsDropped(t *testing.T) {
	ss := detachedSession(&Composition{})
	ss.dispose()
	ss.send(patch{patchTypeScript, "x"})
	assert.Empty(t, ss.patchChan)
}

func TestInjectSignals_SkipsContextSignal(t *testing.T) {
	st := newStore()
	injectSignals(st, map[string]any{contextSignal: "abcd1234", "vx": "y"})
	assert.Equal(t, map[string]any{"vx": "y"}, st.signals)
}

func TestContext_SyncInViewModeWarns(t *testing.T) {
	var warnMsg string
	ctx := &Context{
		s:    newStore(),
		mode: sessionModeView,
		warn: func(format string, _ ...any) { warnMsg = format },
	}

	ctx.Sync()

	assert.Contains(t, warnMsg, "Sync()")
}

func TestContext_SyncSignalsSendsOnlyChanged(t *testing.T) {
	c := newComposition("/")
	a := Signal(c, "a")
	Signal(c, "b")
	c.View(func(ctx *Context) h.H { return h.Div() })
	ss := detachedSession(c)
	ctx := ss.actionContext()

	a.Set(ctx, "changed")
	ctx.SyncSignals()
	ctx.SyncSignals()

	patches := drain(ss.patchChan)
	require.Len(t, patches, 1)
	assert.Equal(t, patchTypeSignals, patches[0].typ)
	assert.JSONEq(t, `{"`+a.ID()+`":"changed"}`, patches[0].content)
}

func TestGenRandID(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := genRandID()
		assert.True(t, isValidHexID(id), id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 90)
	assert.False(t, isValidHexID("zzzzzzzz"))
	assert.False(t, isValidHexID("abc"))
}

func TestShutdown_BeforeStartKeepsServerDown(t *testing.T) {
	v := quietApp().Config(Options{ServerAddress: "127.0.0.1:0"})
	require.NoError(t, v.Shutdown(context.Background()))
	assert.NoError(t, v.Start())
}

func TestShutdown_ConcurrentWithRequests(t *testing.T) {
	v := quietApp()
	v.Page("/", func(c *Composition) {
		c.View(func(ctx *Context) h.H { return h.Div() })
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				w := httptest.NewRecorder()
				v.HTTPServeMux().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
				v.HTTPServeMux().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/_session/close", bytes.NewBufferString("00000000")))
			}
		}()
	}
	for range 5 {
		require.NoError(t, v.Shutdown(context.Background()))
	}
	wg.Wait()

	require.NoError(t, v.Shutdown(context.Background()))
	assert.Zero(t, v.sessions.len())
}

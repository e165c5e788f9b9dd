package via

import (
	"strings"
	"testing"

	"github.com/go-via/testbench/via/h"
	"github.com/stretchr/testify/assert"
)

func TestSignal_TypeSafe(t *testing.T) {
	c := &Composition{}
	count := Signal(c, 0)
	name := Signal(c, "")
	enabled := Signal(c, true)

	ctx := NewContext(nil)
	assert.IsType(t, 0, count.Get(ctx))
	assert.IsType(t, "", name.Get(ctx))
	assert.IsType(t, true, enabled.Get(ctx))
	assert.Len(t, c.signals, 3)
}

func TestSignal_IDIsJSIdentifier(t *testing.T) {
	for range 50 {
		sig := Signal(&Composition{}, 0)
		assert.True(t, strings.HasPrefix(sig.ID(), "v"), sig.ID())
		assert.NotContains(t, sig.ID(), "-")
	}
}

func TestSignal_GetReturnsInitial(t *testing.T) {
	count := Signal(&Composition{}, 42)
	assert.Equal(t, 42, count.Get(nil))
	assert.Equal(t, 42, count.Get(NewContext(nil)))
}

func TestSignal_SetUpdatesValueAndMarksChanged(t *testing.T) {
	ctx := NewContext(nil)
	count := Signal(&Composition{}, 0)

	count.Set(ctx, 99)

	assert.Equal(t, 99, count.Get(ctx))
	assert.Equal(t, 99, ctx.s.changedSignals[count.ID()])
}

func TestSignal_BindHelpers(t *testing.T) {
	name := Signal(&Composition{}, "test")

	assert.Contains(t, renderToString(name.Bind()), `data-bind="`+name.ID()+`"`)
	assert.NotContains(t, renderToString(name.Bind()), `data-bind="$`)
	assert.Contains(t, renderToString(name.Text()), `data-text="$`+name.ID())
	assert.Contains(t, renderToString(name.Show()), `data-show="$`+name.ID())
}

func TestSignal_SetInViewModeWarns(t *testing.T) {
	var warnMsg string
	ctx := &Context{
		s:    newStore(),
		mode: sessionModeView,
		warn: func(format string, args ...any) { warnMsg = format },
	}
	signal := Signal(&Composition{}, 42)

	signal.Set(ctx, 100)

	assert.Contains(t, warnMsg, "SignalHandle.Set()")
	assert.Equal(t, 42, signal.Get(ctx))
}

func TestSignal_GetInvalidTypeReturnsInitial(t *testing.T) {
	signal := Signal(&Composition{}, 42)
	ctx := NewContext(nil)
	ctx.s.signals[signal.id] = struct{}{}

	assert.Equal(t, 42, signal.Get(ctx))
}

func TestSignal_GetConvertsBrowserValues(t *testing.T) {
	ctx := NewContext(nil)
	c := &Composition{}

	i := Signal(c, 0)
	i8 := Signal(c, int8(0))
	u := Signal(c, uint(0))
	f32 := Signal(c, float32(0))
	b := Signal(c, false)
	s := Signal(c, "")

	ctx.s.signals[i.id] = float64(7)
	ctx.s.signals[i8.id] = "-12"
	ctx.s.signals[u.id] = "42"
	ctx.s.signals[f32.id] = float64(1.5)
	ctx.s.signals[b.id] = "true"
	ctx.s.signals[s.id] = float64(3)

	assert.Equal(t, 7, i.Get(ctx))
	assert.Equal(t, int8(-12), i8.Get(ctx))
	assert.Equal(t, uint(42), u.Get(ctx))
	assert.Equal(t, float32(1.5), f32.Get(ctx))
	assert.True(t, b.Get(ctx))
	assert.Equal(t, "3", s.Get(ctx))
}

func TestSignal_GetFloatToBool(t *testing.T) {
	ctx := NewContext(nil)
	b := Signal(&Composition{}, false)

	ctx.s.signals[b.id] = float64(1)
	assert.True(t, b.Get(ctx))

	ctx.s.signals[b.id] = float64(0)
	assert.False(t, b.Get(ctx))
}

func TestSignal_GetInvalidStringReturnsInitial(t *testing.T) {
	ctx := NewContext(nil)
	c := &Composition{}
	n := Signal(c, 5)
	small := Signal(c, int8(1))

	ctx.s.signals[n.id] = "not-a-number"
	ctx.s.signals[small.id] = "300"

	assert.Equal(t, 5, n.Get(ctx))
	assert.Equal(t, int8(1), small.Get(ctx))
}

func TestSignal_InitialsFeedDocument(t *testing.T) {
	c := newComposition("/")
	name := Signal(c, "Bob")
	c.View(func(ctx *Context) h.H { return h.Div() })

	assert.Equal(t, map[string]any{name.ID(): "Bob"}, c.initialSignals())
}

package via

import (
	"reflect"
	"strconv"

	"github.com/go-via/testbench/via/h"
)

type SignalType interface {
	int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64 |
		string | bool
}

// SignalHandle is a typed reference to a value that lives in the browser and
// is sent back with every action.
type SignalHandle[T SignalType] struct {
	id      string
	initial T
}

// Signal declares a browser signal with an initial value. Signal ids are
// valid JavaScript identifiers so they can be used in Datastar expressions.
func Signal[T SignalType](c *Composition, initial T) *SignalHandle[T] {
	c.mustBeBeforeView("Signal")
	id := "v" + genRandID()
	c.signals = append(c.signals, signalRegistration{
		id:      id,
		initial: initial,
	})
	return &SignalHandle[T]{
		id:      id,
		initial: initial,
	}
}

// Get returns the value last received from the browser, converted to T.
// Values that cannot be converted yield the initial value.
func (sh *SignalHandle[T]) Get(ctx *Context) T {
	if ctx == nil || ctx.s == nil {
		return sh.initial
	}
	val, ok := ctx.s.signals[sh.id]
	if !ok {
		return sh.initial
	}
	return convertSignal(val, sh.initial)
}

func convertSignal[T SignalType](val any, initial T) T {
	if typed, ok := val.(T); ok {
		return typed
	}
	target := reflect.TypeOf(initial)
	var out reflect.Value
	switch x := val.(type) {
	case float64:
		out = fromFloat(x, target)
	case string:
		out = fromString(x, target)
	case bool:
		if target.Kind() == reflect.String {
			out = reflect.ValueOf(strconv.FormatBool(x))
		}
	}
	if !out.IsValid() || !out.CanConvert(target) {
		return initial
	}
	return out.Convert(target).Interface().(T)
}

// fromFloat handles numbers decoded from JSON.
func fromFloat(f float64, target reflect.Type) reflect.Value {
	switch target.Kind() {
	case reflect.Bool:
		return reflect.ValueOf(f != 0)
	case reflect.String:
		return reflect.ValueOf(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return reflect.ValueOf(f)
}

// fromString handles values sent as text, e.g. from input elements.
func fromString(s string, target reflect.Type) reflect.Value {
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(s, 10, target.Bits()); err == nil {
			return reflect.ValueOf(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, err := strconv.ParseUint(s, 10, target.Bits()); err == nil {
			return reflect.ValueOf(n)
		}
	case reflect.Float32, reflect.Float64:
		if n, err := strconv.ParseFloat(s, target.Bits()); err == nil {
			return reflect.ValueOf(n)
		}
	case reflect.Bool:
		if b, err := strconv.ParseBool(s); err == nil {
			return reflect.ValueOf(b)
		}
	}
	return reflect.Value{}
}

// Set stores value and marks it for the next Sync or SyncSignals.
func (sh *SignalHandle[T]) Set(ctx *Context, value T) {
	if ctx == nil || ctx.s == nil {
		return
	}
	if ctx.mode == sessionModeView {
		ctx.warn("SignalHandle.Set() called during view render; mutation ignored")
		return
	}
	ctx.s.signals[sh.id] = value
	ctx.s.changedSignals[sh.id] = value
}

// Bind two-way binds an input element to the signal.
func (sh *SignalHandle[T]) Bind() h.H {
	return h.Data("bind", sh.id)
}

// Text renders the signal value as the element text.
func (sh *SignalHandle[T]) Text() h.H {
	return h.Data("text", "$"+sh.id)
}

// Show displays the element only while the signal is truthy.
func (sh *SignalHandle[T]) Show() h.H {
	return h.Data("show", "$"+sh.id)
}

func (sh *SignalHandle[T]) ID() string {
	return sh.id
}

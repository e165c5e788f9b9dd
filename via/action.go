package via

import (
	"fmt"

	"github.com/go-via/testbench/via/h"
)

// Action registers fn as an event handler on c and returns a handle whose
// triggers can be placed on elements of the view.
func Action(c *Composition, fn func(ctx *Context)) *ActionHandle {
	if c.actions == nil {
		c.actions = make(map[string]func(*Context))
	}
	id := genRandID()
	c.actions[id] = fn
	return &ActionHandle{id: id}
}

// ActionHandle represents a handle to an event handler fn
type ActionHandle struct {
	id string
}

// ID returns the action handle's unique identifier.
func (a *ActionHandle) ID() string {
	return a.id
}

// ActionHandleOption configures behavior of action handles
type ActionHandleOption interface {
	apply(*triggerOpts)
}

type triggerOpts struct {
	hasSignal bool
	signalID  string
	value     string
	prevent   bool
	reset     bool
}

type withSignalOpt struct {
	signalID string
	value    string
}

func (o withSignalOpt) apply(opts *triggerOpts) {
	opts.hasSignal = true
	opts.signalID = o.signalID
	opts.value = o.value
}

type withPrevent bool

func (o withPrevent) apply(opts *triggerOpts) {
	opts.prevent = bool(o)
}

type withReset bool

func (o withReset) apply(opts *triggerOpts) {
	opts.reset = bool(o)
}

// ActionOptionWithPrevent is an option that adds preventDefault() to the event handler.
func ActionOptionWithPrevent() ActionHandleOption {
	return withPrevent(true)
}

// ActionOptionWithSignal assigns the JavaScript expression value to the
// signal before the action request is sent.
func ActionOptionWithSignal(signalID, value string) ActionHandleOption {
	return withSignalOpt{signalID: signalID, value: value}
}

// ActionOptionWithReset resets the form natively after the action request is
// sent. Bound signals keep their values.
func ActionOptionWithReset() ActionHandleOption {
	return withReset(true)
}

func buildOnExpr(base string, opts *triggerOpts) string {
	var result string
	if opts.hasSignal {
		result += fmt.Sprintf("$%s=%s;", opts.signalID, opts.value)
	}
	result += base
	if opts.reset {
		result += ";el.reset()"
	}
	return result
}

func applyOptions(options ...ActionHandleOption) triggerOpts {
	var opts triggerOpts
	for _, opt := range options {
		if opt != nil {
			opt.apply(&opts)
		}
	}
	return opts
}

func actionURL(id string) string {
	return fmt.Sprintf("@get('/_action/%s')", id)
}

func eventAttr(event string, opts *triggerOpts) string {
	if opts.prevent {
		event += "__prevent"
	}
	return event
}

// OnClick returns a via.h DOM attribute that triggers on click.
func (a *ActionHandle) OnClick(options ...ActionHandleOption) h.H {
	opts := applyOptions(options...)
	return h.Data(eventAttr("on:click", &opts), buildOnExpr(actionURL(a.id), &opts))
}

// OnChange returns a via.h DOM attribute that triggers on input change.
func (a *ActionHandle) OnChange(options ...ActionHandleOption) h.H {
	opts := applyOptions(options...)
	return h.Data(eventAttr("on:change__debounce.200ms", &opts), buildOnExpr(actionURL(a.id), &opts))
}

// OnKeyDown returns a via.h DOM attribute that triggers when a key is pressed.
// key: optional, see https://developer.mozilla.org/en-US/docs/Web/API/KeyboardEvent/key
// Example: OnKeyDown("Enter")
func (a *ActionHandle) OnKeyDown(key string, options ...ActionHandleOption) h.H {
	opts := applyOptions(options...)
	var condition string
	if key != "" {
		condition = fmt.Sprintf("evt.key==='%s' &&", key)
	}
	return h.Data(eventAttr("on:keydown", &opts), condition+buildOnExpr(actionURL(a.id), &opts))
}

// OnSubmit returns a via.h DOM attribute for forms. The native submission is
// always prevented.
func (a *ActionHandle) OnSubmit(options ...ActionHandleOption) h.H {
	opts := applyOptions(options...)
	opts.prevent = true
	return h.Data(eventAttr("on:submit", &opts), buildOnExpr(actionURL(a.id), &opts))
}

// OnInit returns a via.h attribute that triggers after the page loads.
func (a *ActionHandle) OnInit() h.H {
	return h.DataInit("%s", actionURL(a.id))
}

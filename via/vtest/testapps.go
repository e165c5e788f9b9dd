package vtest

import (
	"net/http"

	"github.com/go-via/testbench/via"
	"github.com/go-via/testbench/via/h"
)

func newApp() *via.V {
	return via.New().Config(via.Options{LogLvl: via.LogLevelError})
}

// NewCounterApp creates a minimal counter app for testing.
func NewCounterApp() http.Handler {
	v := newApp()

	v.Page("/", func(c *via.Composition) {
		count := via.State(c, 0)

		increment := via.Action(c, func(ctx *via.Context) {
			count.Update(ctx, func(n int) int { return n + 1 })
		})

		decrement := via.Action(c, func(ctx *via.Context) {
			count.Update(ctx, func(n int) int { return n - 1 })
		})

		c.View(func(ctx *via.Context) h.H {
			return h.Div(
				h.H1(h.Text("Counter")),
				h.P(h.TestID("count"), h.Textf("Count: %d", count.Get(ctx))),
				h.Button(h.Text("-"), decrement.OnClick()),
				h.Button(h.Text("+"), increment.OnClick()),
			)
		})
	})

	return v.HTTPServeMux()
}

// NewCounterWithStepApp creates a counter whose increment is a browser-side
// step signal.
func NewCounterWithStepApp() http.Handler {
	v := newApp()

	v.Page("/", func(c *via.Composition) {
		count := via.State(c, 0)
		step := via.Signal(c, 1)

		increment := via.Action(c, func(ctx *via.Context) {
			count.Set(ctx, count.Get(ctx)+step.Get(ctx))
		})

		decrement := via.Action(c, func(ctx *via.Context) {
			count.Set(ctx, count.Get(ctx)-step.Get(ctx))
		})

		c.View(func(ctx *via.Context) h.H {
			return h.Div(
				h.H1(h.Text("Counter with Step")),
				h.P(h.Textf("Count: %d", count.Get(ctx))),
				h.P(h.Text("Step: "), h.Span(step.Text())),
				h.Input(h.Type("number"), h.Name("step"), step.Bind()),
				h.Button(h.Text("-"), decrement.OnClick()),
				h.Button(h.Text("+"), increment.OnClick()),
			)
		})
	})

	return v.HTTPServeMux()
}

// NewTodoApp creates a todo list fed by a form.
func NewTodoApp() http.Handler {
	v := newApp()

	v.Page("/", func(c *via.Composition) {
		todos := via.State(c, []string{})
		draft := via.Signal(c, "")

		addTodo := via.Action(c, func(ctx *via.Context) {
			text := draft.Get(ctx)
			if text == "" {
				return
			}
			todos.Update(ctx, func(items []string) []string { return append(items, text) })
		})

		clearAll := via.Action(c, func(ctx *via.Context) {
			todos.Set(ctx, []string{})
		})

		c.View(func(ctx *via.Context) h.H {
			items := todos.Get(ctx)
			return h.Div(
				h.H1(h.Text("Todo List")),
				h.P(h.Textf("Items: %d", len(items))),
				h.Ul(h.Map(items, func(_ int, todo string) h.H { return h.Li(h.Text(todo)) })...),
				h.Form(
					h.TestID("new-todo"),
					addTodo.OnSubmit(via.ActionOptionWithReset()),
					h.Input(h.Name("todo"), h.Placeholder("What needs doing?"), draft.Bind()),
					h.Button(h.Type("submit"), h.Text("Add")),
				),
				h.Button(h.Text("Clear"), clearAll.OnClick()),
			)
		})
	})

	return v.HTTPServeMux()
}

// NewGreeterApp creates a minimal greeter app for testing.
func NewGreeterApp() http.Handler {
	v := newApp()

	v.Page("/", func(c *via.Composition) {
		name := via.State(c, "World")

		greet := via.Action(c, func(ctx *via.Context) {
			name.Set(ctx, "Alice")
		})

		reset := via.Action(c, func(ctx *via.Context) {
			name.Set(ctx, "World")
		})

		c.View(func(ctx *via.Context) h.H {
			return h.Div(
				h.H1(h.Text("Greeter")),
				h.P(h.Textf("Hello, %s!", name.Get(ctx))),
				h.Button(h.Text("Greet"), greet.OnClick()),
				h.Button(h.Text("Reset"), reset.OnClick()),
			)
		})
	})

	return v.HTTPServeMux()
}

func counterComponent(label string) via.ComposeFn {
	return func(c *via.Composition) {
		count := via.State(c, 0)
		inc := via.Action(c, func(ctx *via.Context) {
			count.Update(ctx, func(n int) int { return n + 1 })
		})
		c.View(func(ctx *via.Context) h.H {
			return h.Div(
				h.P(h.Textf("%s: %d", label, count.Get(ctx))),
				h.Button(h.Text("+"), inc.OnClick()),
			)
		})
	}
}

// NewComponentCounterApp mounts a counter component under a static heading.
func NewComponentCounterApp() http.Handler {
	v := newApp()

	v.Page("/", func(c *via.Composition) {
		counter := c.Component(counterComponent("Count"))
		c.View(func(ctx *via.Context) h.H {
			return h.Div(
				h.H1(h.Text("Component Counter")),
				counter.Mount(ctx),
			)
		})
	})

	return v.HTTPServeMux()
}

// NewNestedComponentApp mounts a panel component that itself mounts a counter.
func NewNestedComponentApp() http.Handler {
	v := newApp()

	v.Page("/", func(c *via.Composition) {
		panel := c.Component(func(p *via.Composition) {
			counter := p.Component(counterComponent("Counter A"))
			p.View(func(ctx *via.Context) h.H {
				return h.Section(h.H2(h.Text("Panel")), counter.Mount(ctx))
			})
		})
		c.View(func(ctx *via.Context) h.H {
			return h.Div(h.H1(h.Text("Nested Components")), panel.Mount(ctx))
		})
	})

	return v.HTTPServeMux()
}

// Package showcase is the view the testbench exercises: a marker list, an
// optional item list, a toggled greeting, a name form, a delayed counter and
// a list of fetched posts.
package showcase

import (
	"slices"
	"strconv"
	"time"

	"github.com/go-via/testbench/internal/posts"
	"github.com/go-via/testbench/via"
	"github.com/go-via/testbench/via/h"
)

// DefaultDecrementDelay is how long a decrement waits before it lands.
const DefaultDecrementDelay = 250 * time.Millisecond

// Options configures the view.
type Options struct {
	// Items are rendered one span each; none renders "No items".
	Items []string
	// Fetcher supplies new posts. Without one Add Post only logs.
	Fetcher posts.Fetcher
	// Endpoint names the post source in logs. Defaults to the client's
	// endpoint when Fetcher is a *posts.Client.
	Endpoint string
	// DecrementDelay defaults to DefaultDecrementDelay.
	DecrementDelay time.Duration
}

func (o Options) endpoint() string {
	if o.Endpoint != "" {
		return o.Endpoint
	}
	if c, ok := o.Fetcher.(*posts.Client); ok {
		return c.Endpoint
	}
	return ""
}

// View holds the handles of one composed view so tests can drive it
// without a browser.
type View struct {
	Visible *via.StateHandle[bool]
	Names   *via.StateHandle[[]string]
	Count   *via.StateHandle[int]
	Posts   *via.StateHandle[[]posts.Post]
	Name    *via.SignalHandle[string]

	Toggle    *via.ActionHandle
	AddName   *via.ActionHandle
	Increment *via.ActionHandle
	Decrement *via.ActionHandle
	AddPost   *via.ActionHandle
}

// Compose returns the compose function for the view.
func Compose(opts Options) via.ComposeFn {
	return func(c *via.Composition) {
		Build(c, opts)
	}
}

// Build declares the view on c and returns its handles.
func Build(c *via.Composition, opts Options) *View {
	delay := opts.DecrementDelay
	if delay <= 0 {
		delay = DefaultDecrementDelay
	}
	endpoint := opts.endpoint()

	v := &View{
		Visible: via.State(c, true),
		Names:   via.State(c, []string{}),
		Count:   via.State(c, 0),
		Posts:   via.State(c, []posts.Post{}),
		Name:    via.Signal(c, ""),
	}

	v.Toggle = via.Action(c, func(ctx *via.Context) {
		v.Visible.Update(ctx, func(shown bool) bool { return !shown })
	})

	v.AddName = via.Action(c, func(ctx *via.Context) {
		name := v.Name.Get(ctx)
		v.Names.Update(ctx, func(names []string) []string {
			return append(slices.Clip(names), name)
		})
	})

	v.Increment = via.Action(c, func(ctx *via.Context) {
		v.Count.Set(ctx, v.Count.Get(ctx)+1)
	})

	// the new value is computed from the count seen at click time
	v.Decrement = via.Action(c, func(ctx *via.Context) {
		captured := v.Count.Get(ctx)
		ctx.After(delay, func(ctx *via.Context) {
			v.Count.Set(ctx, captured-1)
		})
	})

	v.AddPost = via.Action(c, func(ctx *via.Context) {
		if opts.Fetcher == nil {
			ctx.Logger().Error().Msg("add post: no fetcher configured")
			return
		}
		via.Go(ctx, opts.Fetcher.Fetch, func(ctx *via.Context, p posts.Post, err error) {
			if err != nil {
				ctx.Logger().Error().Err(err).Str("endpoint", endpoint).Msg("fetch post failed")
				return
			}
			v.Posts.Update(ctx, func(list []posts.Post) []posts.Post {
				return append(slices.Clip(list), p)
			})
		})
	})

	c.View(func(ctx *via.Context) h.H {
		return h.Div(
			h.Div(h.Span(h.Text("1")), h.Span(h.Text("2")), h.Span(h.Text("3"))),
			itemsView(opts.Items),
			h.Button(h.Class("myButton"), h.Text("Toggle"), v.Toggle.OnClick()),
			h.If(v.Visible.Get(ctx), h.P(h.Text("Welcome"))),
			h.Form(
				h.TestID("my-form"),
				v.AddName.OnSubmit(via.ActionOptionWithReset()),
				h.Label(h.For("name"), h.Text("Name:")),
				h.Input(h.Type("text"), h.ID("name"), h.Name("name"), h.Placeholder("Name..."), v.Name.Bind()),
				h.Button(h.Type("submit"), h.Class("submitButton"), h.Text("Add Name")),
			),
			h.Ul(h.Class("names"), h.Group(h.Map(v.Names.Get(ctx), func(_ int, name string) h.H {
				return h.Li(h.Class("name"), h.Text(name))
			})...)),
			h.Div(
				h.H1(h.Class("count"), h.TestID("count"), h.Text(strconv.Itoa(v.Count.Get(ctx)))),
				h.Button(h.Class("incrementButton"), h.Text("Increase"), v.Increment.OnClick()),
				h.Button(h.Class("decrementButton"), h.Text("Decrease"), v.Decrement.OnClick()),
			),
			h.Button(h.Text("Add Post"), v.AddPost.OnClick()),
			h.Div(h.Group(h.Map(v.Posts.Get(ctx), func(_ int, p posts.Post) h.H {
				return h.Div(h.TestID("post"), h.H2(h.Text(p.Title)))
			})...)),
		)
	})

	return v
}

func itemsView(items []string) h.H {
	if len(items) == 0 {
		return h.Div(h.H1(h.Text("No items")))
	}
	return h.Div(h.Group(h.Map(items, func(_ int, item string) h.H {
		return h.Span(h.Text(item))
	})...))
}

// New returns an app serving the view at "/".
func New(opts Options, vopts via.Options) *via.V {
	v := via.New().Config(vopts)
	v.Page("/", Compose(opts))
	return v
}

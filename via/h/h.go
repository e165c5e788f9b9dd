// Package h provides the HTML node constructors used to build Via views.
//
// Every constructor returns an H, which renders itself to an io.Writer.
// Attributes and child elements are passed as the same variadic list.
package h

import (
	"io"

	g "maragu.dev/gomponents"
	gh "maragu.dev/gomponents/html"
)

// H is a renderable HTML node: an element, an attribute or text.
type H interface {
	Render(w io.Writer) error
}

// Text is HTML-escaped text.
func Text(s string) H {
	return g.Text(s)
}

// Textf is formatted, HTML-escaped text.
func Textf(format string, a ...any) H {
	return g.Textf(format, a...)
}

// Raw is unescaped content. Never pass user input to Raw.
func Raw(s string) H {
	return g.Raw(s)
}

// Attr is an arbitrary attribute. With no value it renders as a boolean attribute.
func Attr(name string, value ...string) H {
	return g.Attr(name, value...)
}

// Group renders its children without a wrapping element.
func Group(children ...H) H {
	return g.Group(retype(children))
}

// If returns n when cond is true and nil otherwise. Nil children are skipped on render.
func If(cond bool, n H) H {
	if cond {
		return n
	}
	return nil
}

// Map builds one node per element of ts, in order.
func Map[T any](ts []T, cb func(i int, t T) H) []H {
	nodes := make([]H, 0, len(ts))
	for i, t := range ts {
		nodes = append(nodes, cb(i, t))
	}
	return nodes
}

// HTML5Props describes a complete HTML5 document.
type HTML5Props struct {
	Title     string
	Language  string
	Head      []H
	Body      []H
	HTMLAttrs []H
}

// HTML5 renders a full document with doctype, charset and viewport meta.
func HTML5(p HTML5Props) H {
	lang := p.Language
	if lang == "" {
		lang = "en"
	}
	head := []g.Node{
		gh.Meta(gh.Charset("utf-8")),
		gh.Meta(gh.Name("viewport"), gh.Content("width=device-width, initial-scale=1")),
		gh.TitleEl(g.Text(p.Title)),
	}
	head = append(head, retype(p.Head)...)
	htmlChildren := []g.Node{gh.Lang(lang)}
	htmlChildren = append(htmlChildren, retype(p.HTMLAttrs)...)
	htmlChildren = append(htmlChildren, gh.Head(head...), gh.Body(retype(p.Body)...))
	return gh.Doctype(gh.HTML(htmlChildren...))
}

package h

import (
	"fmt"

	gh "maragu.dev/gomponents/html"
)

func Href(v string) H {
	return gh.Href(v)
}

func Type(v string) H {
	return gh.Type(v)
}

func Src(v string) H {
	return gh.Src(v)
}

func ID(v string) H {
	return gh.ID(v)
}

func Value(v string) H {
	return gh.Value(v)
}

func Name(v string) H {
	return gh.Name(v)
}

func Placeholder(v string) H {
	return gh.Placeholder(v)
}

func Rel(v string) H {
	return gh.Rel(v)
}

func Class(v string) H {
	return gh.Class(v)
}

func Role(v string) H {
	return gh.Role(v)
}

// Data attributes automatically have their name prefixed with "data-".
func Data(name, v string) H {
	return gh.Data(name, v)
}

// TestID marks an element for lookup by test drivers (data-testid).
func TestID(v string) H {
	return gh.Data("testid", v)
}

// DataInit runs the given Datastar expression when the element is initialised.
func DataInit(format string, a ...any) H {
	return gh.Data("init", sprintf(format, a...))
}

func For(v string) H {
	return gh.For(v)
}

func Aria(name, v string) H {
	return gh.Aria(name, v)
}

func AriaLabel(v string) H {
	return gh.Aria("label", v)
}

func AriaLive(v string) H {
	return gh.Aria("live", v)
}

func sprintf(format string, a ...any) string {
	if len(a) == 0 {
		return format
	}
	return fmt.Sprintf(format, a...)
}

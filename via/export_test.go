package via

import (
	"bytes"
	"io"

	"github.com/go-via/testbench/via/h"
)

func renderToString(n h.H) string {
	var buf bytes.Buffer
	_ = n.Render(&buf)
	return buf.String()
}

func quietApp() *V {
	return New().Config(Options{LogOutput: io.Discard})
}

// detachedSession is a session with a patch channel but no loop.
func detachedSession(c *Composition) *session {
	return &session{
		id:        genRandID(),
		store:     newStore(),
		patchChan: make(chan patch, 10),
		c:         c,
	}
}

func (ss *session) actionContext() *Context {
	return &Context{
		s:    ss.store,
		ss:   ss,
		mode: sessionModeAction,
		warn: func(string, ...any) {},
	}
}

func drain(ch <-chan patch) []patch {
	var out []patch
	for {
		select {
		case p := <-ch:
			out = append(out, p)
		default:
			return out
		}
	}
}

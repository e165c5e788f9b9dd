package via

import (
	"net/http"

	"github.com/CAFxX/httpcompression"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Use adds global middleware. It wraps pages registered afterwards and the
// framework's action, stream and session routes.
func (v *V) Use(middleware ...Middleware) {
	v.middlewares = append(v.middlewares, middleware...)
}

func chain(handler http.Handler, middlewares []Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			handler = middlewares[i](handler)
		}
	}
	return handler
}

// withMiddleware applies the global middleware at request time, so routes
// registered in New see middleware added later with Use.
func (v *V) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chain(next, v.middlewares).ServeHTTP(w, r)
	})
}

// Handler returns the router with response compression. The SSE stream is
// left uncompressed so patches are flushed as they are written.
func (v *V) Handler() http.Handler {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		v.logWarn(nil, "compression disabled: %v", err)
		return v.mux
	}
	compressed := compress(v.mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/_sse" {
			v.mux.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

package postserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-via/testbench/via/h"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Handler serves GET /createPost with a random post as JSON and GET /posts
// with an HTML listing of the table.
func Handler(store Store, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /createPost", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		p, err := store.RandomPost(r.Context())
		if err != nil {
			logger.Error().Err(err).Msg("random post failed")
			status := http.StatusInternalServerError
			if errors.Is(err, ErrNoPosts) {
				status = http.StatusNotFound
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(p); err != nil {
			logger.Debug().Err(err).Msg("write post")
		}
	})

	mux.HandleFunc("GET /posts", func(w http.ResponseWriter, r *http.Request) {
		rows, err := store.ListRows(r.Context())
		if err != nil {
			logger.Error().Err(err).Msg("list posts failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		table, err := RenderTable(rows, []string{"no-wrap", "no-wrap", ""})
		if err != nil {
			logger.Error().Err(err).Msg("render posts failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		doc := h.HTML5(h.HTML5Props{
			Title: "Posts",
			Head:  []h.H{h.StyleEl(h.Raw(".no-wrap { white-space: nowrap; }"))},
			Body:  []h.H{h.Main(h.H1(h.Text("Posts")), table)},
		})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := doc.Render(w); err != nil {
			logger.Debug().Err(err).Msg("write posts page")
		}
	})

	return mux
}

package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/httpserver/handlers"
)

func init() { Register(registerSave) }

func registerSave(r chi.Router, d deps.Deps) {
	r.With(guards(d, true)...).Post("/api/library/save", handlers.Save(d))
}

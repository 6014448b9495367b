package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/httpserver/handlers"
)

func init() { Register(registerImage) }

func registerImage(r chi.Router, d deps.Deps) {
	write := r.With(guards(d, true)...)

	write.Post("/api/library/image", handlers.AttachImage(d))
	write.Delete("/api/library/image", handlers.DetachImage(d))
}

package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/httpserver/handlers"
)

func init() { Register(registerLibrary) }

func registerLibrary(r chi.Router, d deps.Deps) {
	read := r.With(guards(d, false)...)
	write := r.With(guards(d, true)...)

	read.Get("/api/library", handlers.ListLibrary(d))
	read.Get("/api/library/file/{filename}", handlers.ServeTrack(d))
	read.Get("/api/library/image/{filename}", handlers.ServeImage(d))

	write.Post("/api/library", handlers.UploadTrack(d))
	write.Put("/api/library", handlers.UpdateRecord(d))
	write.Delete("/api/library", handlers.DeleteRecord(d))
}

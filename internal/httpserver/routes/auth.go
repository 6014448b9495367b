package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/httpserver/handlers"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.With(guards(d, false)...).Get("/api/auth", handlers.Auth(d))
}

package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/httpserver/handlers"
)

func init() { Register(registerOps) }

func registerOps(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.Get("/readyz", handlers.Readyz(d))

	guarded := r.With(guards(d, false)...)
	guarded.Get("/infra", handlers.Infra(d))
	guarded.Post("/sweep", handlers.Sweep(d))
	guarded.Handle("/metrics", promhttp.Handler())
}

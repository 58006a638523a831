package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// pprofPrefix holds the runtime profiles in binaries built with the dev tag.
const pprofPrefix = "/debug/patu/pprof"

// NewRouter creates the daemon router. metrics serves /metrics.
func NewRouter(dp Dataplane, metrics http.Handler, version VersionInfo) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery)
	r.Use(Logger)
	r.Use(PrivateSubnetOnly)

	h := NewHandler(dp, version)

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/connections", h.GetConnections)
	})

	registerPprof(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, NewAPIError(ErrCodeInvalidRequest, "no such endpoint: "+r.URL.Path))
	})

	return r
}

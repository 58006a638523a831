//go:build dev

package api

import (
	"net/http"
	"net/http/pprof"
	runtimepprof "runtime/pprof"

	"github.com/go-chi/chi/v5"

	"github.com/redhat-et/patu/src/internal/log"
)

const profilingEnabled = true

// CPU profiles default to 30s, longer than the server's write timeout.
const defaultProfileSeconds = "10"

func registerPprof(r chi.Router) {
	r.Route(pprofPrefix, func(r chi.Router) {
		r.Get("/", pprof.Index)
		r.Get("/cmdline", pprof.Cmdline)
		r.Get("/profile", boundedProfile)
		r.Get("/symbol", pprof.Symbol)
		r.Get("/trace", pprof.Trace)
		r.Get("/{profile}", namedProfile)
	})
	log.Infof("Profiling endpoints enabled under %s", pprofPrefix)
}

func boundedProfile(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("seconds") == "" {
		q := r.URL.Query()
		q.Set("seconds", defaultProfileSeconds)
		r.URL.RawQuery = q.Encode()
	}
	pprof.Profile(w, r)
}

func namedProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "profile")
	if runtimepprof.Lookup(name) == nil {
		WriteError(w, http.StatusNotFound, NewAPIError(ErrCodeInvalidRequest, "no such profile: "+name))
		return
	}
	pprof.Handler(name).ServeHTTP(w, r)
}

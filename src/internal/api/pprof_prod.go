//go:build !dev

package api

import "github.com/go-chi/chi/v5"

const profilingEnabled = false

func registerPprof(chi.Router) {}

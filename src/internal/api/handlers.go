package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/redhat-et/patu/src/internal/dataplane"
)

// Dataplane is the daemon state served by the API.
type Dataplane interface {
	Attached() bool
	Snapshot() dataplane.Snapshot
	MaxEntries() uint32
}

// Handler serves the daemon endpoints.
type Handler struct {
	dp      Dataplane
	version VersionInfo
}

// NewHandler creates a handler over dp.
func NewHandler(dp Dataplane, version VersionInfo) *Handler {
	return &Handler{dp: dp, version: version}
}

// Healthz reports whether the fast path is attached.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !h.dp.Attached() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("detached\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// GetStatus returns the attachment state and map occupancy.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.dp.Snapshot()

	response := StatusResponse{
		Version:  h.version,
		Attached: h.dp.Attached(),
		Map: MapStatus{
			Name:       dataplane.MapName,
			Entries:    snap.Entries,
			MaxEntries: h.dp.MaxEntries(),
		},
		PollError: snap.Error,
	}
	if !snap.PolledAt.IsZero() {
		polledAt := snap.PolledAt
		response.PolledAt = &polledAt
	}

	writeJSONData(w, response)
}

// GetConnections lists the sockets of the last map walk.
// GET /api/v1/connections?limit=N
func (h *Handler) GetConnections(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteInvalidRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snap := h.dp.Snapshot()
	if snap.Error != "" && snap.Entries == 0 {
		WriteUnavailable(w, "Failed to read redirect map: "+snap.Error)
		return
	}

	conns := snap.Connections
	if conns == nil {
		conns = []dataplane.Connection{}
	}
	if limit > 0 && len(conns) > limit {
		conns = conns[:limit]
	}

	writeJSONData(w, ConnectionsResponse{Total: snap.Entries, Connections: conns})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(DataResponse{Data: data})
}

// writeJSONData writes a successful JSON response with data.
func writeJSONData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}

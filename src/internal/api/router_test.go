package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redhat-et/patu/src/internal/dataplane"
)

type fakeDataplane struct {
	attached bool
	snap     dataplane.Snapshot
}

func (f *fakeDataplane) Attached() bool               { return f.attached }
func (f *fakeDataplane) Snapshot() dataplane.Snapshot { return f.snap }
func (f *fakeDataplane) MaxEntries() uint32           { return 65535 }

func newTestRouter(dp *fakeDataplane) http.Handler {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("patu_redirect_map_entries 2\n"))
	})
	return NewRouter(dp, metrics, VersionInfo{Version: "test"})
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name     string
		attached bool
		want     int
	}{
		{name: "attached", attached: true, want: http.StatusOK},
		{name: "detached", attached: false, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(&fakeDataplane{attached: tt.attached}), "/healthz")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	rec := do(t, newTestRouter(&fakeDataplane{}), "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "patu_redirect_map_entries") {
		t.Errorf("unexpected /metrics response %d %q", rec.Code, rec.Body.String())
	}
}

func TestGetStatus(t *testing.T) {
	polled := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dp := &fakeDataplane{
		attached: true,
		snap:     dataplane.Snapshot{Entries: 2, PolledAt: polled},
	}

	rec := do(t, newTestRouter(dp), "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got StatusResponse
	decodeData(t, rec, &got)
	if !got.Attached || got.Map.Name != "tcp_conns" || got.Map.Entries != 2 || got.Map.MaxEntries != 65535 {
		t.Errorf("unexpected status %+v", got)
	}
	if got.PolledAt == nil || !got.PolledAt.Equal(polled) {
		t.Errorf("PolledAt = %v, want %v", got.PolledAt, polled)
	}
	if got.Version.Version != "test" {
		t.Errorf("Version = %q, want test", got.Version.Version)
	}
}

func TestGetStatus_NeverPolled(t *testing.T) {
	rec := do(t, newTestRouter(&fakeDataplane{}), "/api/v1/status")

	var got StatusResponse
	decodeData(t, rec, &got)
	if got.PolledAt != nil {
		t.Errorf("PolledAt = %v, want nil", got.PolledAt)
	}
}

func TestGetConnections(t *testing.T) {
	conns := []dataplane.Connection{
		{Local: "10.200.0.5:40000", Remote: "10.200.0.6:8080"},
		{Local: "10.200.0.6:8080", Remote: "10.200.0.5:40000"},
	}

	tests := []struct {
		name      string
		snap      dataplane.Snapshot
		target    string
		wantCode  int
		wantConns int
	}{
		{name: "all", snap: dataplane.Snapshot{Entries: 2, Connections: conns}, target: "/api/v1/connections", wantCode: 200, wantConns: 2},
		{name: "limited", snap: dataplane.Snapshot{Entries: 2, Connections: conns}, target: "/api/v1/connections?limit=1", wantCode: 200, wantConns: 1},
		{name: "empty", target: "/api/v1/connections", wantCode: 200, wantConns: 0},
		{name: "bad limit", target: "/api/v1/connections?limit=x", wantCode: 400},
		{name: "negative limit", target: "/api/v1/connections?limit=-1", wantCode: 400},
		{name: "read error", snap: dataplane.Snapshot{Error: "bad file descriptor"}, target: "/api/v1/connections", wantCode: 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(&fakeDataplane{attached: true, snap: tt.snap}), tt.target)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var got ConnectionsResponse
			decodeData(t, rec, &got)
			if len(got.Connections) != tt.wantConns {
				t.Errorf("connections = %d, want %d", len(got.Connections), tt.wantConns)
			}
			if got.Total != tt.snap.Entries {
				t.Errorf("Total = %d, want %d", got.Total, tt.snap.Entries)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	rec := do(t, newTestRouter(&fakeDataplane{}), "/api/v1/lists")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if resp.Error.Code != ErrCodeInvalidRequest {
		t.Errorf("code = %q", resp.Error.Code)
	}
}

func TestProfiling(t *testing.T) {
	okWhenEnabled := http.StatusNotFound
	if profilingEnabled {
		okWhenEnabled = http.StatusOK
	}

	tests := []struct {
		target string
		want   int
	}{
		{target: pprofPrefix + "/", want: okWhenEnabled},
		{target: pprofPrefix + "/goroutine?debug=1", want: okWhenEnabled},
		{target: pprofPrefix + "/heap", want: okWhenEnabled},
		{target: pprofPrefix + "/nosuch", want: http.StatusNotFound},
		{target: "/debug/pprof/goroutine", want: http.StatusNotFound},
	}
	h := newTestRouter(&fakeDataplane{attached: true})
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, h, tt.target)
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.target, rec.Code, tt.want)
			}
		})
	}
}

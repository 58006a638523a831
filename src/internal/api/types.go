package api

import (
	"time"

	"github.com/redhat-et/patu/src/internal/dataplane"
)

// DataResponse wraps successful responses with a "data" field.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// StatusResponse returns the daemon state.
type StatusResponse struct {
	Version   VersionInfo `json:"version"`
	Attached  bool        `json:"attached"`
	Map       MapStatus   `json:"map"`
	PolledAt  *time.Time  `json:"polled_at,omitempty"`
	PollError string      `json:"poll_error,omitempty"`
}

// VersionInfo contains build version information.
type VersionInfo struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	Commit  string `json:"commit"`
}

// MapStatus describes the redirect map occupancy.
type MapStatus struct {
	Name       string `json:"name"`
	Entries    int    `json:"entries"`
	MaxEntries uint32 `json:"max_entries"`
}

// ConnectionsResponse lists sockets held in the redirect map.
type ConnectionsResponse struct {
	Total       int                    `json:"total"`
	Connections []dataplane.Connection `json:"connections"`
}

// Package api provides the HTTP server of the patu dataplane daemon.
//
// Endpoints:
//   - GET /healthz: 200 while both programs are attached, 503 otherwise
//   - GET /metrics: Prometheus exposition of the daemon metrics
//   - GET /api/v1/status: attachment state and redirect map occupancy
//   - GET /api/v1/connections: sockets held in the redirect map
//
// # Response Format
//
// JSON responses wrap their payload in a "data" field:
//
//	{
//	  "data": { /* response payload */ }
//	}
//
// Error responses use the following format:
//
//	{
//	  "error": {
//	    "code": "ERROR_CODE",
//	    "message": "Human-readable error message"
//	  }
//	}
package api

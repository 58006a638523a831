package api

import (
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/redhat-et/patu/src/internal/log"
)

// Logger middleware logs all HTTP requests. Scrapes and probes are logged at
// debug level only.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		switch r.URL.Path {
		case "/metrics", "/healthz":
			log.Debugf("%s %s - %d (%v)", r.Method, r.URL.Path, wrapped.statusCode, duration)
		default:
			log.Infof("%s %s - %d (%v)", r.Method, r.URL.Path, wrapped.statusCode, duration)
		}
	})
}

// Recovery middleware recovers from panics and returns a 500 error.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorf("Panic recovered: %v", err)
				WriteInternalError(w, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("::1/128"),
}

// PrivateSubnetOnly middleware restricts access to clients on private and
// loopback networks. Forwarding headers are ignored.
func PrivateSubnetOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		addr, err := netip.ParseAddr(host)
		if err != nil {
			log.Warnf("Invalid client IP: %s", host)
			WriteForbidden(w, "Access denied")
			return
		}
		addr = addr.Unmap().WithZone("")

		for _, p := range privatePrefixes {
			if p.Contains(addr) {
				next.ServeHTTP(w, r)
				return
			}
		}

		log.Warnf("Access denied from non-private IP: %s", addr)
		WriteForbidden(w, "Access denied: only private networks are allowed")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

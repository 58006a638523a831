package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redhat-et/patu/src/internal/log"
)

// Server represents the daemon HTTP server.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a server for handler on bindAddr.
func NewServer(bindAddr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         bindAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	log.Infof("[API] Listening on http://%s", ln.Addr())

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Infof("[API] Shutting down server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.httpServer.Close()
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Package server runs short-lived local HTTP servers such as the OAuth2
// redirect receiver.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"api-client/internal/common/logging"
)

// Server is an HTTP server bound to a listener
type Server struct {
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// Listen binds addr (for example "127.0.0.1:0" for a random port) and
// prepares to serve handler on it.
func Listen(addr string, handler http.Handler) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Server{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		listener: listener,
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the bound address, including the chosen port
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Local server stopped", err, logging.String("addr", s.listener.Addr().String()))
		}
	}()
}

// Shutdown gracefully stops the server and waits for Serve to return
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}

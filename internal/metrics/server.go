package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultPath is where metrics are served.
const DefaultPath = "/metrics"

// Server timeouts.
const (
	readTimeout     = 5 * time.Second
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server serves a Recorder's metrics and a liveness endpoint.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	done     chan struct{}
}

// NewServer creates a Server for recorder listening on addr, e.g.
// "127.0.0.1:9090". The listener is opened immediately so address errors
// surface here; use Addr to learn the port when addr ends in ":0".
func NewServer(addr string, recorder *Recorder, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(DefaultPath, recorder.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n")) //nolint:errcheck // client went away
	})

	return &Server{
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		listener: listener,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start serves in a background goroutine until Shutdown is called.
func (s *Server) Start() {
	s.logger.Info("metrics server listening", "addr", s.Addr(), "path", DefaultPath)
	go func() {
		defer close(s.done)
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown stops the server, waiting up to five seconds for in-flight
// scrapes. It must only be called after Start.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}

// Package server exposes the conversation router over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bytedge/internal/logger"
	"bytedge/internal/router"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Options configures the HTTP listener.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Now is injectable for tests.
	Now func() time.Time
}

// Server serves the BytEdge API.
type Server struct {
	router *router.Router
	opts   Options
	log    *log.Logger

	handler http.Handler
}

// New creates a Server around r.
func New(r *router.Router, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = "0.0.0.0:5000"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 90 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		router: r,
		opts:   opts,
		log:    logger.NewStyledLogger("http"),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wrapped handler: tracing, CORS and request logging around the mux.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("POST /api/chat/{agent}", s.handleAgentChat)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/suggest", s.handleSuggest)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSession)
	mux.HandleFunc("/", s.handleNotFound)

	var h http.Handler = mux
	h = s.logRequests(h)
	h = cors(h)
	return otelhttp.NewHandler(h, "bytedge.api")
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully, waiting up to shutdownGrace for in-flight requests.
func (s *Server) Run(ctx context.Context, shutdownGrace time.Duration) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln, shutdownGrace)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownGrace time.Duration) error {
	addr := ln.Addr().String()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", addr, "agents", s.router.Registry().Len())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.log.Info("shutting down api", "addr", addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}


// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpserver is a small wrapper around net/http.Server giving it
// the same lifecycle shape as every other long-running component in this
// process: a Serve(ctx) that blocks until ctx is cancelled, then drains
// in-flight requests before returning.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

// Server serves HTTP on a TCP listener. The caller supplies the handler
// (routing, JSON encoding, SSE) — this type only owns listener lifecycle
// and graceful shutdown.
type Server struct {
	address string
	handler http.Handler
	logger  *slog.Logger

	shutdownTimeout time.Duration

	ready chan struct{}
	addr  net.Addr
}

// Config configures a Server.
type Config struct {
	// Address is the TCP listen address, e.g. "127.0.0.1:8080".
	Address string
	// Handler answers incoming requests. Required.
	Handler http.Handler
	// ShutdownTimeout bounds how long Serve waits for in-flight requests
	// to finish after ctx is cancelled. Defaults to 10s if zero.
	ShutdownTimeout time.Duration
	// Logger receives lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// New returns a Server that will listen on cfg.Address once Serve runs.
func New(cfg Config) *Server {
	if cfg.Address == "" {
		panic("httpserver: Address is required")
	}
	if cfg.Handler == nil {
		panic("httpserver: Handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Server{
		address:         cfg.Address,
		handler:         gzipExceptStream(cfg.Handler),
		logger:          logger,
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
	}
}

// gzipExceptStream compresses every response except the SSE stream:
// gzhttp buffers a response until the writer is flushed, which would
// turn /api/events into a round of stalls instead of a live feed.
func gzipExceptStream(h http.Handler) http.Handler {
	compressed := gzhttp.GzipHandler(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/events" {
			h.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

// Ready is closed once the listener is bound and accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr is the resolved listen address. Only valid after Ready closes;
// useful when Config.Address uses port 0.
func (s *Server) Addr() net.Addr { return s.addr }

// Serve binds the listener and blocks until ctx is cancelled, then
// performs a graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("httpserver: listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout is left at zero: the SSE event stream holds its
		// response open indefinitely and a fixed write deadline would
		// cut every subscriber off.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("dashboard listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
			return
		}
		serveDone <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("dashboard shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	s.logger.Info("dashboard stopped")
	return nil
}

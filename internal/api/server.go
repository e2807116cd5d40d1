// Package api exposes the backtest runner over HTTP and gRPC.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"siglab/internal/backtest"
	"siglab/internal/config"
	"siglab/internal/store"
)

// Server hosts the HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	http     *http.Server
	grpc     *grpc.Server
	log      *slog.Logger
}

// NewServer creates a new Server configured from the given Config. runs may
// be nil when run recording is disabled.
func NewServer(cfg *config.Config, runner *backtest.Runner, bars store.BarStore, runs store.RunStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gs := grpc.NewServer()
	NewBacktestService(runner, log).RegisterGRPC(gs)
	reflection.Register(gs)

	return &Server{
		httpAddr: cfg.HTTPAddr(),
		grpcAddr: cfg.GRPCAddr(),
		http: &http.Server{
			Handler:           NewBacktestServer(runner, bars, runs, log).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		grpc: gs,
		log:  log,
	}
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	grpcLis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve serves on the given listeners until ctx is cancelled, then shuts
// both servers down.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	errc := make(chan error, 2)
	go func() {
		s.log.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		s.log.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		if err := s.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errc <- fmt.Errorf("grpc: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down servers")
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	err := s.http.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
	return err
}

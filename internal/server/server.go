// Package server собирает HTTP сервер удалённого хранилища снапшотов.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/statesync/internal/server/handlers"
	"github.com/iudanet/statesync/internal/server/middleware"
	"github.com/iudanet/statesync/internal/server/notify"
	"github.com/iudanet/statesync/internal/server/storage"
)

const (
	pathHealth   = "/api/v1/health"
	pathSnapshot = "/api/v1/snapshot"
	pathChanges  = "/api/v1/snapshot/changes"
)

// Options параметры HTTP сервера
type Options struct {
	Addr            string
	Version         string
	RateLimit       int
	RateWindow      time.Duration
	ShutdownTimeout time.Duration
}

// Server - HTTP сервер синхронизации
type Server struct {
	httpServer      *http.Server
	changes         *handlers.ChangesHandler
	limiter         *middleware.RateLimiter
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New создает сервер и регистрирует маршруты
func New(opts Options, store storage.SnapshotStorage, notifier notify.Notifier, tokens middleware.TokenValidator, logger *slog.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		changes:         handlers.NewChangesHandler(logger, notifier),
		limiter:         middleware.NewRateLimiter(opts.RateLimit, opts.RateWindow, logger),
		logger:          logger,
		shutdownTimeout: opts.ShutdownTimeout,
	}

	health := handlers.NewHealthHandler(logger, store, opts.Version)
	snapshots := handlers.NewSnapshotHandler(logger, store, notifier)

	r := chi.NewRouter()
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingWithSkip(logger, []string{pathHealth}))

	r.Get(pathHealth, health.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(logger, tokens))
		r.Use(middleware.AccountLogger)
		r.Use(middleware.RateLimitMiddleware(s.limiter, logger))

		r.Get(pathSnapshot, snapshots.Get)
		r.Put(pathSnapshot, snapshots.Put)
		r.Get(pathChanges, s.changes.Changes)
	})

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler возвращает корневой обработчик (для тестов)
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run слушает адрес из Options до отмены ctx, затем плавно останавливается
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает уже открытый listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.limiter.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server...")

		// websocket-соединения hijacked, Shutdown их не ждёт
		s.changes.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		s.logger.Info("Server stopped gracefully")
		return nil
	})

	return g.Wait()
}

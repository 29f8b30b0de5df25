// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the long-lived runtime of questplayd: the HTTP server,
// background workers and ordered shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/questplay/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMissingHandler = errors.New("daemon: HTTP handler is required")
	ErrAlreadyRunning = errors.New("daemon: already running")
)

// Worker is a background task that runs until ctx is cancelled.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// ShutdownHook releases a resource during shutdown.
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// Config wires an App.
type Config struct {
	ListenAddr      string
	Handler         http.Handler
	ShutdownTimeout time.Duration // defaults to 10s
	// Listener, if set, is served instead of listening on ListenAddr.
	Listener net.Listener
}

// App runs the HTTP server and workers under one errgroup.
type App struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	workers []Worker
	hooks   []namedHook
}

// NewApp validates cfg.
func NewApp(cfg Config) (*App, error) {
	if cfg.Handler == nil {
		return nil, ErrMissingHandler
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &App{cfg: cfg, logger: log.WithComponent("daemon")}, nil
}

// AddWorker registers a background task started by Run.
func (a *App) AddWorker(w Worker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.workers = append(a.workers, w)
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
// Hooks are executed in reverse registration order (LIFO).
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, namedHook{name: name, hook: hook})
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	workers := append([]Worker(nil), a.workers...)
	a.mu.Unlock()

	ln := a.cfg.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr, err)
		}
	}

	srv := &http.Server{
		Handler:           a.cfg.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().
			Str("addr", ln.Addr().String()).
			Str(log.FieldEvent, "api.listening").
			Msg("API server listening (HTTP)")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Str(log.FieldEvent, "api.server.failed").Msg("API server failed")
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	for _, w := range workers {
		g.Go(func() error {
			a.logger.Debug().Str("worker", w.Name).Str(log.FieldEvent, "worker.started").Msg("worker started")
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Str("worker", w.Name).Str(log.FieldEvent, "worker.failed").Msg("worker failed")
				return fmt.Errorf("worker %s: %w", w.Name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown(ctx, srv)
	})

	return g.Wait()
}

func (a *App) shutdown(ctx context.Context, srv *http.Server) error {
	a.logger.Info().Str(log.FieldEvent, "daemon.stopping").Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
	}

	a.mu.Lock()
	hooks := append([]namedHook(nil), a.hooks...)
	a.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(shutdownCtx); err != nil {
			a.logger.Error().
				Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		a.logger.Debug().
			Str("hook", h.name).
			Dur("duration", time.Since(start)).
			Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	a.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped cleanly")
	return nil
}

// WaitForShutdown returns a context cancelled on SIGINT or SIGTERM.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

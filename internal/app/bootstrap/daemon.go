// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bootstrap

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/ManuGH/questplay/internal/api"
	"github.com/ManuGH/questplay/internal/config"
	"github.com/ManuGH/questplay/internal/daemon"
	"github.com/ManuGH/questplay/internal/health"
	xglog "github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/story"
)

// Daemon is the runnable questplayd graph.
type Daemon struct {
	*Container
	Hub    *api.Hub
	Server *api.Server
	App    *daemon.App
}

// WireDaemon builds the core services plus the HTTP API, the websocket hub
// and, for directory sources with watching enabled, the story watcher.
// Listener is optional and replaces the configured listen address.
func WireDaemon(ctx context.Context, opts Options, listener net.Listener) (*Daemon, error) {
	hub := api.NewHub()
	opts.Presenter = hub

	c, err := Wire(ctx, opts)
	if err != nil {
		return nil, err
	}

	checks := health.NewManager(opts.Version)
	checks.RegisterChecker(health.NewStorageChecker(c.Medium, c.Store.Key()))
	if c.Config.Stories.Source == config.SourceDir {
		checks.RegisterChecker(health.NewDirChecker("stories", c.Config.Stories.Dir))
	}
	checks.RegisterDetail("story_cache", func() any { return c.Fetcher.Stats() })

	srv, err := api.New(api.Options{
		Engine:     c.Engine,
		Store:      c.Store,
		Hub:        hub,
		Health:     checks,
		RateLimit:  c.Config.API.RateLimit,
		RateWindow: c.Config.API.RateWindow,

		TracerProvider: c.Telemetry.TracerProvider(),
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("build API: %w", err)
	}

	app, err := daemon.NewApp(daemon.Config{
		ListenAddr: c.Config.API.ListenAddr,
		Handler:    srv,
		Listener:   listener,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	app.RegisterShutdownHook("storage", func(context.Context) error { return c.Medium.Close() })
	app.RegisterShutdownHook("story-cache", func(context.Context) error {
		c.Fetcher.Close()
		return nil
	})
	app.RegisterShutdownHook("websocket", hub.Close)
	app.RegisterShutdownHook("telemetry", c.Telemetry.Shutdown)

	if c.Config.Stories.Source == config.SourceDir && c.Config.Stories.Watch {
		if err := os.MkdirAll(c.Config.Stories.Dir, 0o750); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("create story dir: %w", err)
		}
		w := story.NewWatcher(c.Config.Stories.Dir, c.Fetcher, 0)
		app.AddWorker(daemon.Worker{Name: "story-watcher", Run: w.Run})
		c.Logger.Info().
			Str(xglog.FieldPath, c.Config.Stories.Dir).
			Str(xglog.FieldEvent, "story.watch_enabled").
			Msg("watching story directory for changes")
	}

	return &Daemon{Container: c, Hub: hub, Server: srv, App: app}, nil
}

// Run serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	return d.App.Run(ctx)
}

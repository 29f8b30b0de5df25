// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bootstrap is the composition root shared by questplayd and the
// questplay CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ManuGH/questplay/internal/catalog"
	"github.com/ManuGH/questplay/internal/config"
	"github.com/ManuGH/questplay/internal/engine"
	xglog "github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/persistence"
	"github.com/ManuGH/questplay/internal/progress"
	"github.com/ManuGH/questplay/internal/story"
	"github.com/ManuGH/questplay/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Options controls Wire.
type Options struct {
	ConfigPath string
	Version    string
	Presenter  engine.Presenter
	// LogOutput and LogLevel override the configured logging when set.
	LogOutput io.Writer
	LogLevel  string
}

// Container holds the wired core services.
type Container struct {
	Config    config.AppConfig
	Logger    zerolog.Logger
	Telemetry *telemetry.Provider
	Medium    persistence.Medium
	Store     *progress.Store
	Catalog   *catalog.Catalog
	Fetcher   *story.CachingFetcher
	Engine    *engine.Engine
}

// Wire loads configuration and builds the engine with its dependencies.
func Wire(ctx context.Context, opts Options) (*Container, error) {
	if ctx == nil {
		return nil, errors.New("wire context is nil")
	}

	xglog.Configure(xglog.Config{
		Level:   firstNonEmpty(opts.LogLevel, "info"),
		Output:  opts.LogOutput,
		Service: "questplay",
		Version: opts.Version,
	})

	cfg, err := config.NewLoader(opts.ConfigPath, opts.Version).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   firstNonEmpty(opts.LogLevel, cfg.LogLevel),
		Output:  opts.LogOutput,
		Service: cfg.LogService,
		Version: opts.Version,
	})
	logger := xglog.WithComponent("bootstrap")

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: opts.Version,
		Environment:    cfg.Telemetry.Environment,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	tp := tel.TracerProvider()

	source, err := newSource(cfg.Stories, tp)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	medium, err := persistence.Open(cfg.Persistence())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("open progress storage: %w", err)
	}
	store := progress.NewStore(medium, cfg.Storage.Key)

	fetcher := story.NewCachingFetcher(source, cfg.Stories.CacheTTL)
	eng, err := engine.New(engine.Options{
		Catalog:   cat,
		Fetcher:   fetcher,
		Store:     store,
		Presenter: opts.Presenter,

		TracerProvider: tp,
	})
	if err != nil {
		fetcher.Close()
		_ = medium.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	logger.Info().
		Str(xglog.FieldBackend, cfg.Storage.Backend).
		Str(xglog.FieldKey, store.Key()).
		Str("stories", cfg.Stories.Source).
		Int("titles", len(cat.Titles)).
		Bool("tracing", tel.Enabled()).
		Str(xglog.FieldEvent, "bootstrap.wired").
		Msg("services wired")

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Telemetry: tel,
		Medium:    medium,
		Store:     store,
		Catalog:   cat,
		Fetcher:   fetcher,
		Engine:    eng,
	}, nil
}

func newSource(cfg config.StoriesConfig, tp trace.TracerProvider) (story.Fetcher, error) {
	switch cfg.Source {
	case config.SourceHTTP:
		f, err := story.NewHTTPFetcher(cfg.BaseURL, story.HTTPOptions{
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			TracerProvider:    tp,
		})
		if err != nil {
			return nil, fmt.Errorf("story source: %w", err)
		}
		return f, nil
	default:
		return story.NewDirFetcher(cfg.Dir), nil
	}
}

// Close releases the story cache and the storage medium and flushes pending
// spans.
func (c *Container) Close() error {
	c.Fetcher.Close()
	return errors.Join(c.Medium.Close(), c.Telemetry.Shutdown(context.Background()))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

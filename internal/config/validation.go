// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/ManuGH/questplay/internal/persistence"
	"github.com/rs/zerolog"
)

// Validate reports every invalid field of cfg at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)))
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		add("logLevel", "unknown level %q", cfg.LogLevel)
	}

	switch cfg.Storage.Backend {
	case persistence.BackendMemory, persistence.BackendRedis:
	case persistence.BackendFile, persistence.BackendSQLite, persistence.BackendBadger:
		if strings.TrimSpace(cfg.DataDir) == "" {
			add("dataDir", "required for the %s backend", cfg.Storage.Backend)
		}
	default:
		add("storage.backend", "unknown backend %q", cfg.Storage.Backend)
	}
	if err := persistence.ValidateKey(cfg.Storage.Key); err != nil {
		add("storage.key", "%v", err)
	}
	if cfg.Storage.Backend == persistence.BackendRedis {
		if _, _, err := net.SplitHostPort(cfg.Storage.Redis.Addr); err != nil {
			add("storage.redis.addr", "invalid address %q", cfg.Storage.Redis.Addr)
		}
		if cfg.Storage.Redis.DB < 0 || cfg.Storage.Redis.DB > 15 {
			add("storage.redis.db", "must be between 0 and 15, got %d", cfg.Storage.Redis.DB)
		}
	}

	switch cfg.Stories.Source {
	case SourceDir:
		if strings.TrimSpace(cfg.Stories.Dir) == "" {
			add("stories.dir", "required for the dir source")
		}
	case SourceHTTP:
		u, err := url.Parse(cfg.Stories.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("stories.baseURL", "must be an absolute http(s) URL, got %q", cfg.Stories.BaseURL)
		}
		if cfg.Stories.RequestsPerSecond < 0 {
			add("stories.requestsPerSecond", "must not be negative")
		}
		if cfg.Stories.Timeout <= 0 {
			add("stories.timeout", "must be positive")
		}
	default:
		add("stories.source", "unknown source %q (want %s or %s)", cfg.Stories.Source, SourceDir, SourceHTTP)
	}
	if cfg.Stories.CacheTTL < 0 {
		add("stories.cacheTTL", "must not be negative")
	}

	if cfg.API.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.API.ListenAddr); err != nil {
			add("api.listenAddr", "invalid address %q", cfg.API.ListenAddr)
		}
	}
	if cfg.API.RateLimit < 0 {
		add("api.rateLimit", "must not be negative")
	}
	if cfg.API.RateLimit > 0 && cfg.API.RateWindow <= 0 {
		add("api.rateWindow", "must be positive when rate limiting is enabled")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case ExporterGRPC, ExporterHTTP:
		default:
			add("telemetry.exporter", "unknown exporter %q (want %s or %s)", cfg.Telemetry.Exporter, ExporterGRPC, ExporterHTTP)
		}
		if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
			add("telemetry.endpoint", "required when tracing is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.samplingRate", "must be between 0 and 1, got %g", cfg.Telemetry.SamplingRate)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

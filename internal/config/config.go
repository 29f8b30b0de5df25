// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads questplay configuration with precedence
// ENV > YAML file > defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/questplay/internal/persistence"
	"github.com/ManuGH/questplay/internal/progress"
	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Trace exporters.
const (
	ExporterGRPC = "grpc"
	ExporterHTTP = "http"
)

// Story sources.
const (
	SourceDir  = "dir"
	SourceHTTP = "http"
)

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version     string
	DataDir     string
	LogLevel    string
	LogService  string
	CatalogPath string
	Storage     StorageConfig
	Stories     StoriesConfig
	API         APIConfig
	Telemetry   TelemetryConfig
}

type StorageConfig struct {
	Backend string
	Key     string
	Redis   persistence.RedisConfig
}

type StoriesConfig struct {
	Source            string
	Dir               string
	BaseURL           string
	CacheTTL          time.Duration
	Watch             bool
	RequestsPerSecond float64
	Timeout           time.Duration
}

type APIConfig struct {
	ListenAddr string
	RateLimit  int
	RateWindow time.Duration
}

// TelemetryConfig controls OpenTelemetry tracing. Tracing is off unless
// Enabled is set.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// Persistence returns the medium configuration derived from the storage section.
func (c AppConfig) Persistence() persistence.Config {
	return persistence.Config{
		Backend: c.Storage.Backend,
		Dir:     c.DataDir,
		Redis:   c.Storage.Redis,
	}
}

// FileConfig mirrors the YAML file. Nil fields keep the previous layer's value.
type FileConfig struct {
	DataDir     *string              `yaml:"dataDir"`
	LogLevel    *string              `yaml:"logLevel"`
	LogService  *string              `yaml:"logService"`
	CatalogPath *string              `yaml:"catalogPath"`
	Storage     *StorageFileConfig   `yaml:"storage"`
	Stories     *StoriesFileConfig   `yaml:"stories"`
	API         *APIFileConfig       `yaml:"api"`
	Telemetry   *TelemetryFileConfig `yaml:"telemetry"`
}

type StorageFileConfig struct {
	Backend *string          `yaml:"backend"`
	Key     *string          `yaml:"key"`
	Redis   *RedisFileConfig `yaml:"redis"`
}

type RedisFileConfig struct {
	Addr     *string `yaml:"addr"`
	Password *string `yaml:"password"`
	DB       *int    `yaml:"db"`
	Prefix   *string `yaml:"prefix"`
}

type StoriesFileConfig struct {
	Source            *string        `yaml:"source"`
	Dir               *string        `yaml:"dir"`
	BaseURL           *string        `yaml:"baseURL"`
	CacheTTL          *time.Duration `yaml:"cacheTTL"`
	Watch             *bool          `yaml:"watch"`
	RequestsPerSecond *float64       `yaml:"requestsPerSecond"`
	Timeout           *time.Duration `yaml:"timeout"`
}

type APIFileConfig struct {
	ListenAddr *string        `yaml:"listenAddr"`
	RateLimit  *int           `yaml:"rateLimit"`
	RateWindow *time.Duration `yaml:"rateWindow"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled"`
	Exporter     *string  `yaml:"exporter"`
	Endpoint     *string  `yaml:"endpoint"`
	SamplingRate *float64 `yaml:"samplingRate"`
	Environment  *string  `yaml:"environment"`
}

// Loader resolves an AppConfig.
type Loader struct {
	configPath string
	version    string

	// ConsumedEnvKeys records every environment key read during Load.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// The file is parsed strictly, env is applied on top, and the result is validated.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}
	l.setDefaults(&cfg)

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	if cfg.DataDir != "" {
		abs, err := filepath.Abs(cfg.DataDir)
		if err != nil {
			return cfg, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = abs
	}
	if cfg.Stories.Source == SourceDir && cfg.Stories.Dir == "" && cfg.DataDir != "" {
		cfg.Stories.Dir = filepath.Join(cfg.DataDir, "stories")
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l *Loader) setDefaults(cfg *AppConfig) {
	cfg.Version = l.version
	cfg.DataDir = "/tmp/questplay"
	cfg.LogLevel = "info"
	cfg.LogService = "questplay"
	cfg.Storage = StorageConfig{
		Backend: persistence.BackendFile,
		Key:     progress.DefaultKey,
		Redis: persistence.RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "questplay:",
		},
	}
	cfg.Stories = StoriesConfig{
		Source:            SourceDir,
		CacheTTL:          5 * time.Minute,
		RequestsPerSecond: 5,
		Timeout:           10 * time.Second,
	}
	cfg.API = APIConfig{
		ListenAddr: ":8088",
		RateLimit:  120,
		RateWindow: time.Minute,
	}
	cfg.Telemetry = TelemetryConfig{
		Exporter:     ExporterGRPC,
		Endpoint:     "localhost:4317",
		SamplingRate: 1.0,
		Environment:  "production",
	}
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFileConfig(data)
}

func parseFileConfig(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("strict config parse error: %w", err)
		}
		return nil, errors.New("strict config parse error: multiple YAML documents are not supported")
	}
	return &fileCfg, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	set(&cfg.DataDir, f.DataDir)
	set(&cfg.LogLevel, f.LogLevel)
	set(&cfg.LogService, f.LogService)
	set(&cfg.CatalogPath, f.CatalogPath)

	if s := f.Storage; s != nil {
		set(&cfg.Storage.Backend, s.Backend)
		set(&cfg.Storage.Key, s.Key)
		if r := s.Redis; r != nil {
			set(&cfg.Storage.Redis.Addr, r.Addr)
			set(&cfg.Storage.Redis.Password, r.Password)
			set(&cfg.Storage.Redis.DB, r.DB)
			set(&cfg.Storage.Redis.Prefix, r.Prefix)
		}
	}
	if s := f.Stories; s != nil {
		set(&cfg.Stories.Source, s.Source)
		set(&cfg.Stories.Dir, s.Dir)
		set(&cfg.Stories.BaseURL, s.BaseURL)
		set(&cfg.Stories.CacheTTL, s.CacheTTL)
		set(&cfg.Stories.Watch, s.Watch)
		set(&cfg.Stories.RequestsPerSecond, s.RequestsPerSecond)
		set(&cfg.Stories.Timeout, s.Timeout)
	}
	if a := f.API; a != nil {
		set(&cfg.API.ListenAddr, a.ListenAddr)
		set(&cfg.API.RateLimit, a.RateLimit)
		set(&cfg.API.RateWindow, a.RateWindow)
	}
	if t := f.Telemetry; t != nil {
		set(&cfg.Telemetry.Enabled, t.Enabled)
		set(&cfg.Telemetry.Exporter, t.Exporter)
		set(&cfg.Telemetry.Endpoint, t.Endpoint)
		set(&cfg.Telemetry.SamplingRate, t.SamplingRate)
		set(&cfg.Telemetry.Environment, t.Environment)
	}
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString("QUESTPLAY_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("QUESTPLAY_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("QUESTPLAY_LOG_SERVICE", cfg.LogService)
	cfg.CatalogPath = l.envString("QUESTPLAY_CATALOG", cfg.CatalogPath)

	cfg.Storage.Backend = l.envString("QUESTPLAY_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Key = l.envString("QUESTPLAY_STORAGE_KEY", cfg.Storage.Key)
	cfg.Storage.Redis.Addr = l.envString("QUESTPLAY_REDIS_ADDR", cfg.Storage.Redis.Addr)
	cfg.Storage.Redis.Password = l.envString("QUESTPLAY_REDIS_PASSWORD", cfg.Storage.Redis.Password)
	cfg.Storage.Redis.DB = l.envInt("QUESTPLAY_REDIS_DB", cfg.Storage.Redis.DB)
	cfg.Storage.Redis.Prefix = l.envString("QUESTPLAY_REDIS_PREFIX", cfg.Storage.Redis.Prefix)

	cfg.Stories.Source = l.envString("QUESTPLAY_STORIES_SOURCE", cfg.Stories.Source)
	cfg.Stories.Dir = l.envString("QUESTPLAY_STORIES_DIR", cfg.Stories.Dir)
	cfg.Stories.BaseURL = l.envString("QUESTPLAY_STORIES_BASE_URL", cfg.Stories.BaseURL)
	cfg.Stories.CacheTTL = l.envDuration("QUESTPLAY_STORIES_CACHE_TTL", cfg.Stories.CacheTTL)
	cfg.Stories.Watch = l.envBool("QUESTPLAY_STORIES_WATCH", cfg.Stories.Watch)
	cfg.Stories.RequestsPerSecond = l.envFloat("QUESTPLAY_STORIES_RPS", cfg.Stories.RequestsPerSecond)
	cfg.Stories.Timeout = l.envDuration("QUESTPLAY_STORIES_TIMEOUT", cfg.Stories.Timeout)

	cfg.API.ListenAddr = l.envString("QUESTPLAY_LISTEN", cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt("QUESTPLAY_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.RateWindow = l.envDuration("QUESTPLAY_RATE_WINDOW", cfg.API.RateWindow)

	cfg.Telemetry.Enabled = l.envBool("QUESTPLAY_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("QUESTPLAY_TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("QUESTPLAY_OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("QUESTPLAY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("QUESTPLAY_ENVIRONMENT", cfg.Telemetry.Environment)
}

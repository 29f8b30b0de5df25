// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health provides liveness and readiness checks for questplayd.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/persistence"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Details   map[string]any         `json:"details,omitempty"`
}

// ReadinessResponse is the readiness payload.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) CheckResult
}

func (c CheckerFunc) Name() string                          { return c.CheckName }
func (c CheckerFunc) Check(ctx context.Context) CheckResult { return c.Fn(ctx) }

// Manager runs registered checks. Register everything before serving.
type Manager struct {
	version  string
	checkers []Checker
	details  map[string]func() any
	now      func() time.Time
}

// NewManager creates a new health check manager
func NewManager(version string) *Manager {
	return &Manager{
		version: version,
		details: make(map[string]func() any),
		now:     time.Now,
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// RegisterDetail adds a value reported by verbose liveness responses.
func (m *Manager) RegisterDetail(name string, fn func() any) {
	m.details[name] = fn
}

func (m *Manager) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	results := make(map[string]CheckResult, len(m.checkers))
	overall := StatusHealthy
	for _, c := range m.checkers {
		res := c.Check(ctx)
		results[c.Name()] = res
		switch res.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return results, overall
}

// Health reports liveness. Component checks run only when verbose is set.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: m.now(),
	}
	if !verbose {
		return resp
	}
	if len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.runChecks(ctx)
	}
	if len(m.details) > 0 {
		names := make([]string, 0, len(m.details))
		for name := range m.details {
			names = append(names, name)
		}
		sort.Strings(names)
		resp.Details = make(map[string]any, len(names))
		for _, name := range names {
			resp.Details[name] = m.details[name]()
		}
	}
	return resp
}

// Ready reports whether every check passes. Degraded checks keep the
// service ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{Ready: true, Status: StatusHealthy, Timestamp: m.now()}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Checks, resp.Status = m.runChecks(ctx)
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

// ServeHealth handles HTTP health check requests
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // Always 200 for liveness
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness check requests
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// DirChecker checks that a directory exists.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for directory existence
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return CheckResult{Status: StatusUnhealthy, Error: "directory not found", Message: c.path}
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	case !info.IsDir():
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.path}
	}
	entries, err := os.ReadDir(c.path)
	if err == nil && len(entries) == 0 {
		return CheckResult{Status: StatusDegraded, Message: "directory is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: "directory exists"}
}

// StorageChecker reads the progress key to prove the medium answers.
type StorageChecker struct {
	medium persistence.Medium
	key    string
}

// NewStorageChecker creates a checker for the persistence medium.
func NewStorageChecker(medium persistence.Medium, key string) *StorageChecker {
	return &StorageChecker{medium: medium, key: key}
}

func (c *StorageChecker) Name() string { return "storage" }

func (c *StorageChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := c.medium.Get(ctx, c.key)
	switch {
	case err == nil:
		return CheckResult{Status: StatusHealthy, Message: "progress record readable"}
	case errors.Is(err, persistence.ErrNotFound):
		return CheckResult{Status: StatusHealthy, Message: "no progress saved yet"}
	default:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ManuGH/questplay/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(status Status) Checker {
	return CheckerFunc{CheckName: string(status), Fn: func(context.Context) CheckResult {
		return CheckResult{Status: status}
	}}
}

func TestHealthIsAlwaysLive(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(fixed(StatusUnhealthy))
	m.RegisterDetail("engine", func() any { return "idle" })

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "idle", resp.Details["engine"])

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyAggregates(t *testing.T) {
	tests := []struct {
		name   string
		checks []Checker
		ready  bool
		status Status
		code   int
	}{
		{"no checks", nil, true, StatusHealthy, http.StatusOK},
		{"degraded stays ready", []Checker{fixed(StatusHealthy), fixed(StatusDegraded)}, true, StatusDegraded, http.StatusOK},
		{"unhealthy wins", []Checker{fixed(StatusDegraded), fixed(StatusUnhealthy)}, false, StatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("")
			for _, c := range tt.checks {
				m.RegisterChecker(c)
			}
			rec := httptest.NewRecorder()
			m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			require.Equal(t, tt.code, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.ready, resp.Ready)
			assert.Equal(t, tt.status, resp.Status)
		})
	}
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	assert.Equal(t, StatusDegraded, NewDirChecker("stories", dir).Check(ctx).Status)

	file := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o600))
	assert.Equal(t, StatusHealthy, NewDirChecker("stories", dir).Check(ctx).Status)
	assert.Equal(t, StatusUnhealthy, NewDirChecker("stories", file).Check(ctx).Status)
	assert.Equal(t, StatusUnhealthy, NewDirChecker("stories", filepath.Join(dir, "nope")).Check(ctx).Status)
	assert.Equal(t, StatusHealthy, NewDirChecker("stories", "").Check(ctx).Status)
}

func TestStorageChecker(t *testing.T) {
	ctx := context.Background()
	m := persistence.NewMemoryMedium()
	c := NewStorageChecker(m, "progress")

	assert.Equal(t, StatusHealthy, c.Check(ctx).Status)
	require.NoError(t, m.Put(ctx, "progress", []byte("{}")))
	assert.Equal(t, StatusHealthy, c.Check(ctx).Status)

	require.NoError(t, m.Close())
	res := c.Check(ctx)
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.NotEmpty(t, res.Error)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/questplay/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

const forest = `{"startScene":"edge","scenes":{
  "edge":{"text":"The forest edge.","choices":[{"text":"back","nextScene":"main_menu"}]}
}}`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	stories := filepath.Join(dir, "stories")
	require.NoError(t, os.MkdirAll(stories, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(stories, "forest-adventure.json"), []byte(forest), 0o600))

	t.Setenv("QUESTPLAY_DATA_DIR", dir)
	t.Setenv("QUESTPLAY_STORAGE_BACKEND", "file")
	t.Setenv("QUESTPLAY_STORIES_WATCH", "false")
	return dir
}

func TestWireCore(t *testing.T) {
	dir := setupEnv(t)

	c, err := Wire(context.Background(), Options{Version: "test", LogOutput: io.Discard})
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close()) }()

	assert.Equal(t, filepath.Join(dir, "stories"), c.Config.Stories.Dir)
	assert.Len(t, c.Catalog.Titles, 4)
	assert.False(t, c.Telemetry.Enabled(), "tracing is off by default")

	require.NoError(t, c.Engine.Start(context.Background(), "forest-adventure"))
	snap := c.Engine.Snapshot()
	require.NotNil(t, snap.Scene)
	assert.Equal(t, "edge", snap.Scene.SceneID)

	_, err = os.Stat(filepath.Join(dir, "progress"))
	assert.NoError(t, err, "file medium writes under the data dir")
}

func TestWireWithTracingEnabled(t *testing.T) {
	setupEnv(t)
	t.Setenv("QUESTPLAY_TELEMETRY_ENABLED", "true")
	t.Setenv("QUESTPLAY_TELEMETRY_EXPORTER", "http")
	t.Setenv("QUESTPLAY_OTLP_ENDPOINT", "127.0.0.1:4318")

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	c, err := Wire(context.Background(), Options{Version: "test", LogOutput: io.Discard})
	require.NoError(t, err)
	assert.True(t, c.Telemetry.Enabled())
	assert.Same(t, c.Telemetry.TracerProvider(), otel.GetTracerProvider())
	require.NoError(t, c.Close())
}

func TestWireRejectsBadTelemetryConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("QUESTPLAY_TELEMETRY_ENABLED", "true")
	t.Setenv("QUESTPLAY_TELEMETRY_EXPORTER", "zipkin")

	_, err := Wire(context.Background(), Options{LogOutput: io.Discard})
	require.ErrorContains(t, err, "telemetry.exporter")
}

func TestWireRejectsBadConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("QUESTPLAY_STORAGE_BACKEND", "floppy")

	_, err := Wire(context.Background(), Options{LogOutput: io.Discard})
	require.ErrorContains(t, err, "storage.backend")
}

func TestWireDaemonServesAPI(t *testing.T) {
	setupEnv(t)
	t.Setenv("QUESTPLAY_STORIES_WATCH", "true")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d, err := WireDaemon(context.Background(), Options{Version: "test", LogOutput: io.Discard}, ln)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ready, err := http.Get(base + "/readyz")
	require.NoError(t, err)
	ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)

	resp, err := http.Post(base+"/api/play/forest-adventure", "application/json", nil)
	require.NoError(t, err)
	var snap engine.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, engine.StatePlaying, snap.State)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	http.DefaultClient.CloseIdleConnections()
}

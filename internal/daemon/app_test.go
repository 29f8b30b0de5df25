// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestNewAppRequiresHandler(t *testing.T) {
	_, err := NewApp(Config{})
	require.ErrorIs(t, err, ErrMissingHandler)
}

func TestRunServesAndShutsDown(t *testing.T) {
	ln := listen(t)
	app, err := NewApp(Config{
		Listener: ln,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}),
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	hook := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	app.RegisterShutdownHook("first", hook("first"))
	app.RegisterShutdownHook("second", hook("second"))

	workerStopped := make(chan struct{})
	app.AddWorker(Worker{Name: "idle", Run: func(ctx context.Context) error {
		<-ctx.Done()
		close(workerStopped)
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body) == "ok"
	}, 2*time.Second, 20*time.Millisecond)

	require.ErrorIs(t, app.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	<-workerStopped
	assert.Equal(t, []string{"second", "first"}, order)
	http.DefaultClient.CloseIdleConnections()
}

func TestWorkerFailureStopsApp(t *testing.T) {
	app, err := NewApp(Config{Listener: listen(t), Handler: http.NotFoundHandler()})
	require.NoError(t, err)

	boom := errors.New("boom")
	app.AddWorker(Worker{Name: "broken", Run: func(context.Context) error { return boom }})

	hookRan := false
	app.RegisterShutdownHook("flag", func(context.Context) error {
		hookRan = true
		return nil
	})

	err = app.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.True(t, hookRan)
}

func TestShutdownHookErrorsAreJoined(t *testing.T) {
	app, err := NewApp(Config{Listener: listen(t), Handler: http.NotFoundHandler()})
	require.NoError(t, err)

	closeErr := errors.New("close failed")
	app.RegisterShutdownHook("store", func(context.Context) error { return closeErr })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = app.Run(ctx)
	require.ErrorIs(t, err, closeErr)
	assert.ErrorContains(t, err, "hook store")
}

func TestListenError(t *testing.T) {
	ln := listen(t)
	defer ln.Close()

	app, err := NewApp(Config{ListenAddr: ln.Addr().String(), Handler: http.NotFoundHandler()})
	require.NoError(t, err)
	require.ErrorContains(t, app.Run(context.Background()), "listen")
}

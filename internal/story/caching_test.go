// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (c *countingFetcher) Fetch(ctx context.Context, titleID string) (*Document, error) {
	c.calls.Add(1)
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return nil, c.err
	}
	return Parse(strings.NewReader(sampleDocument))
}

func TestCachingFetcherServesFromCache(t *testing.T) {
	upstream := &countingFetcher{}
	f := NewCachingFetcher(upstream, time.Minute)
	defer f.Close()
	ctx := context.Background()

	first, err := f.Fetch(ctx, "forest-adventure")
	require.NoError(t, err)
	second, err := f.Fetch(ctx, "forest-adventure")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), upstream.calls.Load())
	assert.Equal(t, int64(1), f.Stats().Hits)

	f.Invalidate("forest-adventure")
	_, err = f.Fetch(ctx, "forest-adventure")
	require.NoError(t, err)
	assert.Equal(t, int32(2), upstream.calls.Load())

	f.InvalidateAll()
	_, err = f.Fetch(ctx, "forest-adventure")
	require.NoError(t, err)
	assert.Equal(t, int32(3), upstream.calls.Load())
}

func TestCachingFetcherCollapsesConcurrentFetches(t *testing.T) {
	upstream := &countingFetcher{release: make(chan struct{})}
	f := NewCachingFetcher(upstream, time.Minute)
	defer f.Close()

	var wg sync.WaitGroup
	docs := make([]*Document, 5)
	for i := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := f.Fetch(context.Background(), "castle-mystery")
			assert.NoError(t, err)
			docs[i] = doc
		}()
	}

	require.Eventually(t, func() bool { return upstream.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(upstream.release)
	wg.Wait()

	assert.LessOrEqual(t, upstream.calls.Load(), int32(2))
	for _, d := range docs {
		assert.NotNil(t, d)
	}
}

func TestCachingFetcherDoesNotCacheErrors(t *testing.T) {
	upstream := &countingFetcher{err: classify("x", "", ErrTransport, 0, nil)}
	f := NewCachingFetcher(upstream, time.Minute)
	defer f.Close()

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), "x")
		assert.ErrorIs(t, err, ErrTransport)
	}
	assert.Equal(t, int32(2), upstream.calls.Load())
}

func TestCachingFetcherInvalidateDuringFetch(t *testing.T) {
	upstream := &countingFetcher{release: make(chan struct{})}
	f := NewCachingFetcher(upstream, time.Minute)
	defer f.Close()

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), "forest-adventure")
		done <- err
	}()
	require.Eventually(t, func() bool { return upstream.calls.Load() == 1 }, time.Second, time.Millisecond)

	f.Invalidate("forest-adventure")
	close(upstream.release)
	require.NoError(t, <-done)

	_, ok := f.docs.Get("forest-adventure")
	assert.False(t, ok, "document fetched before the invalidation must not be cached")

	_, err := f.Fetch(context.Background(), "forest-adventure")
	require.NoError(t, err)
	assert.Equal(t, int32(2), upstream.calls.Load())
}

func TestCachingFetcherCancelledCallerDoesNotFailOthers(t *testing.T) {
	upstream := &countingFetcher{release: make(chan struct{})}
	f := NewCachingFetcher(upstream, time.Minute)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, "castle-mystery")
		first <- err
	}()
	require.Eventually(t, func() bool { return upstream.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan *Document, 1)
	go func() {
		doc, err := f.Fetch(context.Background(), "castle-mystery")
		assert.NoError(t, err)
		second <- doc
	}()

	cancel()
	err := <-first
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrTransport)

	close(upstream.release)
	assert.NotNil(t, <-second)
	assert.Equal(t, int32(1), upstream.calls.Load())
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(titleID string) {
	r.mu.Lock()
	r.ids = append(r.ids, titleID)
	r.mu.Unlock()
}

func TestWatcherInvalidatesChangedStories(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	target := &recordingInvalidator{}
	w := NewWatcher(dir, target, 20*time.Millisecond)
	flushed := make(chan []string, 4)
	w.OnFlush = func(ids []string) {
		select {
		case flushed <- ids:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(filepath.Join(dir, "forest-adventure.json"), []byte(sampleDocument), 0o600); err != nil {
			return false
		}
		select {
		case ids := <-flushed:
			assert.Equal(t, []string{"forest-adventure"}, ids)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	cancel()
	require.NoError(t, <-done)

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.NotEmpty(t, target.ids)
	for _, id := range target.ids {
		assert.Equal(t, "forest-adventure", id)
	}
}

func TestWatcherMissingDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "absent"), &recordingInvalidator{}, 0)
	assert.Error(t, w.Run(context.Background()))
}

func TestTitleFromPath(t *testing.T) {
	id, ok := titleFromPath("/stories/forest-adventure.json")
	assert.True(t, ok)
	assert.Equal(t, "forest-adventure", id)

	_, ok = titleFromPath("/stories/.forest.json.swp")
	assert.False(t, ok)
	_, ok = titleFromPath("/stories/bad id.json")
	assert.False(t, ok)
}

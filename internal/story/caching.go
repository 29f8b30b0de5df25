// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/questplay/internal/cache"
	"github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachingFetcher keeps parsed documents for a TTL and collapses concurrent
// fetches of the same title into one upstream call. Failures are not cached.
type CachingFetcher struct {
	next   Fetcher
	ttl    time.Duration
	docs   *cache.Memory[*Document]
	group  singleflight.Group
	logger zerolog.Logger

	// mu orders cache writes against invalidations; epoch counts the
	// invalidations seen so far.
	mu    sync.Mutex
	epoch uint64
}

// NewCachingFetcher wraps next. A non-positive ttl caches until invalidated.
func NewCachingFetcher(next Fetcher, ttl time.Duration) *CachingFetcher {
	cleanup := time.Duration(0)
	if ttl > 0 {
		cleanup = ttl
	}
	return &CachingFetcher{
		next:   next,
		ttl:    ttl,
		docs:   cache.NewMemory[*Document](cleanup),
		logger: log.WithComponent("story_cache"),
	}
}

func (f *CachingFetcher) Fetch(ctx context.Context, titleID string) (*Document, error) {
	if doc, ok := f.docs.Get(titleID); ok {
		metrics.RecordStoryCache("hit")
		return doc, nil
	}
	metrics.RecordStoryCache("miss")

	// The shared fetch runs detached from any single caller's cancellation;
	// each caller stops waiting when its own ctx is done.
	detached := context.WithoutCancel(ctx)
	ch := f.group.DoChan(titleID, func() (any, error) {
		f.mu.Lock()
		epoch := f.epoch
		f.mu.Unlock()

		doc, err := f.next.Fetch(detached, titleID)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		if f.epoch == epoch {
			f.docs.Set(titleID, doc, f.ttl)
		}
		f.mu.Unlock()
		return doc, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			f.logger.Debug().Str(log.FieldTitleID, titleID).Msg("story fetch shared with concurrent caller")
		}
		return res.Val.(*Document), nil
	case <-ctx.Done():
		return nil, classify(titleID, "", ErrTransport, 0, ctx.Err())
	}
}

// Invalidate drops the cached document of titleID.
func (f *CachingFetcher) Invalidate(titleID string) {
	f.mu.Lock()
	f.epoch++
	deleted := f.docs.Delete(titleID)
	f.mu.Unlock()
	f.group.Forget(titleID)
	if deleted {
		metrics.RecordStoryCache("invalidated")
		f.logger.Info().
			Str(log.FieldTitleID, titleID).
			Str(log.FieldEvent, "story.cache_invalidated").
			Msg("story document invalidated")
	}
}

// InvalidateAll drops every cached document.
func (f *CachingFetcher) InvalidateAll() {
	f.mu.Lock()
	f.epoch++
	f.docs.Clear()
	f.mu.Unlock()
	metrics.RecordStoryCache("invalidated")
}

// Stats exposes the underlying cache counters.
func (f *CachingFetcher) Stats() cache.Stats { return f.docs.Stats() }

// Close stops the cache janitor.
func (f *CachingFetcher) Close() { f.docs.Close() }

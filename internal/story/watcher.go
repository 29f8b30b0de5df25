// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/questplay/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// Invalidator drops cached documents. *CachingFetcher implements it.
type Invalidator interface {
	Invalidate(titleID string)
}

// Watcher invalidates cached documents when story files in a directory
// change. Bursts of events are coalesced per debounce window.
type Watcher struct {
	dir      string
	target   Invalidator
	debounce time.Duration
	logger   zerolog.Logger

	// OnFlush, if set, is called with the title ids invalidated by each flush.
	OnFlush func(titleIDs []string)
}

// NewWatcher watches dir and invalidates target. A non-positive debounce uses
// 500ms.
func NewWatcher(dir string, target Invalidator, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		dir:      dir,
		target:   target,
		debounce: debounce,
		logger:   log.WithComponent("story_watcher"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch story dir: %w", err)
	}
	w.logger.Info().
		Str(log.FieldEvent, "story.watcher_started").
		Str(log.FieldPath, w.dir).
		Msg("watching story directory for changes")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str(log.FieldEvent, "story.watcher_stopped").Msg("story watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			titleID, ok := titleFromPath(event.Name)
			if !ok {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug().
				Str(log.FieldTitleID, titleID).
				Str("op", event.Op.String()).
				Msg("story file changed")
			pending[titleID] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.flush(pending)
			pending = make(map[string]struct{})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Str(log.FieldEvent, "story.watcher_error").Msg("story watcher error")
		}
	}
}

func (w *Watcher) flush(pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}
	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		w.target.Invalidate(id)
	}
	if w.OnFlush != nil {
		w.OnFlush(ids)
	}
}

func titleFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".json") {
		return "", false
	}
	id := strings.TrimSuffix(base, ".json")
	if ValidateTitleID(id) != nil {
		return "", false
	}
	return id, true
}

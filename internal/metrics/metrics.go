// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes the Prometheus instruments shared by the engine,
// the story fetchers and the progress store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Playback metrics
	scenesRenderedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questplay_scenes_rendered_total",
		Help: "Scenes rendered by the playback engine",
	}, []string{"kind"}) // kind=passage|ending

	endingsReachedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questplay_endings_reached_total",
		Help: "Completion updates applied, by resulting status",
	}, []string{"status"}) // status=victory|defeat

	contentMissingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questplay_content_missing_total",
		Help: "Render attempts that referenced a scene absent from the story document",
	})

	engineTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questplay_engine_transitions_total",
		Help: "Playback engine state transitions",
	}, []string{"from", "to"})

	// Story loading metrics
	storyFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questplay_story_fetch_total",
		Help: "Story document fetches by outcome",
	}, []string{"outcome"}) // outcome=success|not_found|transport|malformed|superseded

	storyCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questplay_story_cache_total",
		Help: "Story cache lookups by result",
	}, []string{"result"}) // result=hit|miss|invalidated

	// Progress storage metrics
	progressSaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questplay_progress_save_failures_total",
		Help: "Progress record writes that failed and were dropped",
	})

	progressLoadRecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questplay_progress_load_recoveries_total",
		Help: "Progress record loads that fell back to a default or migrated record",
	}, []string{"reason"}) // reason=missing|corrupt|read_error|migrated
)

// RecordSceneRendered counts a rendered scene. Endings are counted separately
// from passages.
func RecordSceneRendered(ending bool) {
	kind := "passage"
	if ending {
		kind = "ending"
	}
	scenesRenderedTotal.WithLabelValues(kind).Inc()
}

func RecordEndingReached(status string) { endingsReachedTotal.WithLabelValues(status).Inc() }
func IncContentMissing()                { contentMissingTotal.Inc() }

func RecordEngineTransition(from, to string) {
	engineTransitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordStoryFetch(outcome string) { storyFetchTotal.WithLabelValues(outcome).Inc() }
func RecordStoryCache(result string)  { storyCacheTotal.WithLabelValues(result).Inc() }

func IncProgressSaveFailure() { progressSaveFailuresTotal.Inc() }

func RecordProgressLoadRecovery(reason string) {
	progressLoadRecoveriesTotal.WithLabelValues(reason).Inc()
}

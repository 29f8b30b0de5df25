// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package engine drives playback of one title at a time: it loads the story
// document, resumes at the saved scene, checkpoints every rendered scene and
// records endings in the progress record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/questplay/internal/catalog"
	"github.com/ManuGH/questplay/internal/fsm"
	"github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/metrics"
	"github.com/ManuGH/questplay/internal/progress"
	"github.com/ManuGH/questplay/internal/story"
	"github.com/ManuGH/questplay/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ManuGH/questplay/internal/engine"

// Options wires an engine.
type Options struct {
	Catalog   *catalog.Catalog
	Fetcher   story.Fetcher
	Store     *progress.Store
	Presenter Presenter        // defaults to NopPresenter
	Clock     func() time.Time // defaults to time.Now

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Engine owns all session state. Intents are serialised by one mutex; the
// story fetch runs without it.
type Engine struct {
	catalog   *catalog.Catalog
	fetcher   story.Fetcher
	store     *progress.Store
	presenter Presenter
	now       func() time.Time
	logger    zerolog.Logger
	tracer    trace.Tracer

	mu      sync.Mutex
	machine *fsm.Machine[State, event]
	query   catalog.Query

	generation   uint64
	loadingTitle string

	titleID       string
	doc           *story.Document
	scene         *story.Scene
	view          *SceneView
	endingApplied bool
}

// New validates opts and returns an idle engine.
func New(opts Options) (*Engine, error) {
	if opts.Catalog == nil {
		return nil, errors.New("engine: catalog is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("engine: story fetcher is required")
	}
	if opts.Store == nil {
		return nil, errors.New("engine: progress store is required")
	}
	if opts.Presenter == nil {
		opts.Presenter = NopPresenter{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	e := &Engine{
		catalog:   opts.Catalog,
		fetcher:   opts.Fetcher,
		store:     opts.Store,
		presenter: opts.Presenter,
		now:       opts.Clock,
		logger:    log.WithComponent("engine"),
		tracer:    telemetry.Tracer(opts.TracerProvider, tracerName),
		machine:   fsm.MustNew(StateIdle, transitions),
		query:     catalog.Query{Tab: catalog.TabAll},
	}
	e.machine.OnTransition = func(from, to State, ev event) {
		metrics.RecordEngineTransition(string(from), string(to))
		e.logger.Debug().
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Str(log.FieldEvent, "engine."+string(ev)).
			Msg("engine state changed")
	}
	return e, nil
}

// State returns the current top-level state.
func (e *Engine) State() State {
	return e.machine.State()
}

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		State:          e.machine.State(),
		TitleID:        e.titleID,
		LoadingTitleID: e.loadingTitle,
		Query:          e.query,
	}
	if e.view != nil {
		v := *e.view
		s.Scene = &v
	}
	return s
}

// Start opens a title. It blocks for the story fetch; concurrent intents are
// served meanwhile, and an exit during the fetch supersedes it.
func (e *Engine) Start(ctx context.Context, titleID string) error {
	logger := log.WithContext(ctx, e.logger).With().Str(log.FieldTitleID, titleID).Logger()

	title, err := e.catalog.Find(titleID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownTitle, titleID)
	}
	if title.IsDev {
		logger.Debug().Str(log.FieldEvent, "engine.start_ignored").Msg("title is in development, ignoring start")
		return ErrTitleUnplayable
	}

	e.mu.Lock()
	if e.machine.State() != StateIdle {
		e.mu.Unlock()
		return ErrBusy
	}
	if err := e.fire(evStart); err != nil {
		e.mu.Unlock()
		return err
	}
	e.generation++
	gen := e.generation
	e.loadingTitle = titleID
	e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "engine.start", trace.WithAttributes(telemetry.TitleAttributes(titleID, "")...))
	defer span.End()

	doc, fetchErr := e.fetcher.Fetch(ctx, titleID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generation != gen || e.machine.State() != StateLoading {
		metrics.RecordStoryFetch("superseded")
		span.SetAttributes(telemetry.FetchAttributes("superseded")...)
		logger.Info().Str(log.FieldEvent, "engine.fetch_superseded").Msg("discarding late story response")
		return ErrSuperseded
	}
	e.loadingTitle = ""

	if fetchErr != nil {
		_ = e.fire(evFailed)
		reason := story.Reason(fetchErr)
		metrics.RecordStoryFetch(reason)
		span.SetAttributes(telemetry.FetchAttributes(reason)...)
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, reason)
		logger.Warn().Err(fetchErr).
			Str("reason", reason).
			Str(log.FieldEvent, "story.fetch_failed").
			Msg("story document could not be loaded")
		e.presenter.FetchFailed(titleID, fetchErr)
		return fmt.Errorf("start %s: %w", titleID, fetchErr)
	}
	metrics.RecordStoryFetch("success")
	span.SetAttributes(telemetry.FetchAttributes("success")...)

	if issues := story.Validate(doc); len(issues) > 0 {
		logger.Warn().
			Int("issues", len(issues)).
			Str("first", issues[0].String()).
			Str(log.FieldEvent, "story.validation_issues").
			Msg("story document has validation issues")
	}

	rec := e.store.Update(ctx, func(r *progress.Record) {
		r.Touch(titleID, e.now())
	})
	target, resumed := rec.ResumePoint(titleID)
	if !resumed {
		target = doc.StartSceneID
	}

	if err := e.fire(evLoaded); err != nil {
		return err
	}
	e.titleID = titleID
	e.doc = doc
	span.SetAttributes(telemetry.SceneAttributes(target, resumed)...)
	logger.Info().
		Str(log.FieldSceneID, target).
		Bool("resumed", resumed).
		Str(log.FieldEvent, "engine.title_started").
		Msg("title started")

	return e.render(ctx, target, resumed)
}

// ChooseOption follows choice index of the current scene.
func (e *Engine) ChooseOption(ctx context.Context, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.machine.State() != StatePlaying {
		return ErrNotPlaying
	}
	if index < 0 || index >= len(e.scene.Choices) {
		return fmt.Errorf("%w: %d (scene %q has %d)", ErrNoSuchChoice, index, e.scene.ID, len(e.scene.Choices))
	}

	choice := e.scene.Choices[index]
	switch choice.Target.Kind {
	case story.ToMenu:
		e.completeEnding(ctx)
		e.exitToMenu(ctx, true)
		return nil
	case story.ToScene:
		e.completeEnding(ctx)
		return e.render(ctx, choice.Target.SceneID, false)
	default:
		return fmt.Errorf("engine: unhandled choice target %s", choice.Target.Kind)
	}
}

// ExitToMenu leaves the current title. clearSession drops the resume pointer;
// the manual menu button passes false so the checkpoint survives. Leaving an
// ending records its completion first. During Loading the pending fetch is
// superseded.
func (e *Engine) ExitToMenu(ctx context.Context, clearSession bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.machine.State() {
	case StateLoading:
		e.generation++
		e.loadingTitle = ""
		if err := e.fire(evExit); err != nil {
			return err
		}
		e.emitCatalog(ctx)
		return nil
	case StatePlaying:
		e.completeEnding(ctx)
		e.exitToMenu(ctx, clearSession)
		return nil
	default:
		return ErrNotPlaying
	}
}

// ToggleBookmark flips the bookmark of titleID, bumps its lastPlayedAt and
// returns the new membership. It is allowed in every state.
func (e *Engine) ToggleBookmark(ctx context.Context, titleID string) (bool, error) {
	if _, err := e.catalog.Find(titleID); err != nil {
		return false, fmt.Errorf("%w: %q", ErrUnknownTitle, titleID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var bookmarked bool
	e.store.Update(ctx, func(r *progress.Record) {
		bookmarked = r.ToggleBookmark(titleID)
		r.Touch(titleID, e.now())
	})
	logger := log.WithContext(ctx, e.logger)
	logger.Info().
		Str(log.FieldTitleID, titleID).
		Bool("bookmarked", bookmarked).
		Str(log.FieldEvent, "catalog.bookmark_toggled").
		Msg("bookmark toggled")
	e.emitCatalog(ctx)
	return bookmarked, nil
}

// SwitchTab changes the menu tab and re-emits the catalog.
func (e *Engine) SwitchTab(ctx context.Context, tab catalog.Tab) error {
	parsed, err := catalog.ParseTab(string(tab))
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query.Tab = parsed
	e.emitCatalog(ctx)
	return nil
}

// Search changes the search term and re-emits the catalog.
func (e *Engine) Search(ctx context.Context, term string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query.Search = term
	e.emitCatalog(ctx)
}

// SetQuery replaces the menu tab and search term together and re-emits the
// catalog once. An empty tab selects TabAll.
func (e *Engine) SetQuery(ctx context.Context, q catalog.Query) error {
	tab := catalog.TabAll
	if q.Tab != "" {
		parsed, err := catalog.ParseTab(string(q.Tab))
		if err != nil {
			return err
		}
		tab = parsed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = catalog.Query{Tab: tab, Search: q.Search}
	e.emitCatalog(ctx)
	return nil
}

// Browse computes a display list for q without touching the engine's own
// menu state.
func (e *Engine) Browse(ctx context.Context, q catalog.Query) catalog.Result {
	return catalog.Select(e.catalog.Titles, e.store.Load(ctx), q)
}

// Catalog returns the display list for the engine's current tab and search.
func (e *Engine) Catalog(ctx context.Context) catalog.Result {
	e.mu.Lock()
	q := e.query
	e.mu.Unlock()
	return e.Browse(ctx, q)
}

// render shows sceneID. Callers hold e.mu and are in StatePlaying.
func (e *Engine) render(ctx context.Context, sceneID string, resumed bool) error {
	titleID := e.titleID
	logger := log.WithContext(ctx, e.logger).With().
		Str(log.FieldTitleID, titleID).
		Str(log.FieldSceneID, sceneID).
		Logger()

	scene, ok := e.doc.Scene(sceneID)
	if !ok {
		metrics.IncContentMissing()
		logger.Error().Bool("resumed", resumed).Str(log.FieldEvent, "engine.content_missing").Msg("scene missing from story document")
		if resumed {
			e.store.Update(ctx, func(r *progress.Record) { r.ClearResume(titleID) })
		}
		e.leave()
		e.presenter.FatalContentError(titleID, sceneID)
		e.emitCatalog(ctx)
		return fmt.Errorf("%w: title %q scene %q", ErrContentMissing, titleID, sceneID)
	}

	e.store.Update(ctx, func(r *progress.Record) {
		if scene.IsEnding() {
			r.ClearResume(titleID)
		} else {
			r.Checkpoint(titleID, sceneID)
		}
	})

	e.scene = scene
	e.endingApplied = false
	view := newSceneView(titleID, scene, resumed)
	e.view = &view
	metrics.RecordSceneRendered(scene.IsEnding())
	logger.Debug().Bool("ending", scene.IsEnding()).Str(log.FieldEvent, "engine.scene_rendered").Msg("scene rendered")
	e.presenter.SceneRendered(view)
	return nil
}

// completeEnding records the completion of the current scene if it is an
// ending whose completion was not yet applied during this visit.
func (e *Engine) completeEnding(ctx context.Context) {
	if e.scene == nil || !e.scene.IsEnding() || e.endingApplied {
		return
	}
	ending := *e.scene.Ending
	status := progress.StatusVictory
	if ending.Type.IsDefeat() {
		status = progress.StatusDefeat
	}
	titleID := e.titleID
	e.store.Update(ctx, func(r *progress.Record) {
		r.ApplyEnding(titleID, status, ending.ID)
	})
	e.endingApplied = true
	metrics.RecordEndingReached(string(status))
	logger := log.WithContext(ctx, e.logger)
	logger.Info().
		Str(log.FieldTitleID, titleID).
		Str(log.FieldEndingID, ending.ID).
		Str("status", string(status)).
		Str(log.FieldEvent, "engine.ending_recorded").
		Msg("ending recorded")
}

func (e *Engine) exitToMenu(ctx context.Context, clearSession bool) {
	if clearSession {
		titleID := e.titleID
		e.store.Update(ctx, func(r *progress.Record) { r.ClearResume(titleID) })
	}
	e.leave()
	e.emitCatalog(ctx)
}

// leave resets the session and moves to Idle.
func (e *Engine) leave() {
	if err := e.fire(evExit); err != nil {
		e.logger.Error().Err(err).Msg("engine could not leave session")
	}
	e.titleID = ""
	e.doc = nil
	e.scene = nil
	e.view = nil
	e.endingApplied = false
}

func (e *Engine) emitCatalog(ctx context.Context) {
	e.presenter.CatalogChanged(catalog.Select(e.catalog.Titles, e.store.Load(ctx), e.query))
}

func (e *Engine) fire(ev event) error {
	if _, err := e.machine.Fire(ev); err != nil {
		e.logger.Error().Err(err).Msg("engine transition rejected")
		return err
	}
	return nil
}

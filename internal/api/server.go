// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the playback engine over HTTP and streams render
// events over a websocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/questplay/internal/catalog"
	"github.com/ManuGH/questplay/internal/engine"
	"github.com/ManuGH/questplay/internal/health"
	"github.com/ManuGH/questplay/internal/progress"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// Options wires a Server.
type Options struct {
	Engine     *engine.Engine
	Store      *progress.Store
	Hub        *Hub
	Health     *health.Manager
	RateLimit  int
	RateWindow time.Duration

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Server holds the HTTP handlers.
type Server struct {
	engine *engine.Engine
	store  *progress.Store
	hub    *Hub
	router chi.Router
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("api: engine is required")
	}
	if opts.Store == nil {
		return nil, errors.New("api: progress store is required")
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.Health == nil {
		opts.Health = health.NewManager("")
	}
	s := &Server{engine: opts.Engine, store: opts.Store, hub: opts.Hub}
	opts.Health.RegisterDetail("engine", func() any { return s.engine.State() })
	opts.Health.RegisterDetail("websocket_clients", func() any { return s.hub.Clients() })

	r := chi.NewRouter()
	r.Use(tracing(opts.TracerProvider))
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(accessLog)

	r.Get("/healthz", opts.Health.ServeHealth)
	r.Get("/readyz", opts.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(opts.RateLimit, opts.RateWindow))

		r.Route("/api", func(r chi.Router) {
			r.Get("/catalog", s.handleCatalog)
			r.Put("/catalog/query", s.handleSetQuery)
			r.Post("/bookmarks/{titleID}", s.handleToggleBookmark)
			r.Get("/progress", s.handleProgress)

			r.Route("/play", func(r chi.Router) {
				r.Get("/", s.handleSnapshot)
				r.Post("/exit", s.handleExit)
				r.Post("/choices/{index}", s.handleChoose)
				r.Post("/{titleID}", s.handleStart)
			})
		})
		r.Get("/ws", s.hub.ServeHTTP)
	})

	s.router = r
	return s, nil
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleCatalog returns the engine's menu, or an ad hoc selection when tab
// or q is given.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("tab") && !q.Has("q") {
		writeJSON(w, http.StatusOK, s.engine.Catalog(r.Context()))
		return
	}
	tab, err := catalog.ParseTab(q.Get("tab"))
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Browse(r.Context(), catalog.Query{Tab: tab, Search: q.Get("q")}))
}

// handleSetQuery updates the engine's menu tab and search term.
func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request) {
	var body catalog.Query
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeBadRequest(w, r, "invalid query body: "+err.Error())
		return
	}
	if err := s.engine.Dispatch(r.Context(), engine.SetQuery{Query: body}); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Catalog(r.Context()))
}

func (s *Server) handleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	titleID := chi.URLParam(r, "titleID")
	bookmarked, err := s.engine.ToggleBookmark(r.Context(), titleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"titleId": titleID, "bookmarked": bookmarked})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Load(r.Context()))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Dispatch(r.Context(), engine.StartTitle{TitleID: chi.URLParam(r, "titleID")}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, r, "choice index must be an integer")
		return
	}
	if err := s.engine.Dispatch(r.Context(), engine.ChooseOption{Index: index}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// handleExit leaves the current title. clear=true also drops the resume
// point; the default keeps it.
func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	clearSession := false
	if v := r.URL.Query().Get("clear"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, r, "clear must be a boolean")
			return
		}
		clearSession = b
	}
	if err := s.engine.Dispatch(r.Context(), engine.ExitToMenu{ClearSession: clearSession}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

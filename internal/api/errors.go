// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/questplay/internal/engine"
	"github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/story"
)

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrUnknownTitle):
		return http.StatusNotFound, "unknown_title"
	case errors.Is(err, engine.ErrTitleUnplayable):
		return http.StatusConflict, "title_unplayable"
	case errors.Is(err, engine.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, engine.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, engine.ErrNotPlaying):
		return http.StatusConflict, "not_playing"
	case errors.Is(err, engine.ErrNoSuchChoice):
		return http.StatusBadRequest, "no_such_choice"
	case errors.Is(err, engine.ErrContentMissing):
		return http.StatusUnprocessableEntity, "content_missing"
	case errors.Is(err, story.ErrNotFound):
		return http.StatusNotFound, "story_not_found"
	case errors.Is(err, story.ErrInvalidID):
		return http.StatusBadRequest, "invalid_title_id"
	case errors.Is(err, story.ErrMalformed):
		return http.StatusBadGateway, "story_malformed"
	case errors.Is(err, story.ErrTransport):
		return http.StatusBadGateway, "story_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, name := classify(err)
	if code >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.request_failed").
			Str(log.FieldPath, r.URL.Path).
			Msg("request failed")
	}
	writeJSON(w, code, errorBody{
		Error:     name,
		Detail:    err.Error(),
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     "bad_request",
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

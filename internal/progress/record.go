// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package progress holds the persisted progress record: bookmarks, per-title
// completion and the resume pointer of the active session.
package progress

import (
	"slices"
	"time"
)

// SchemaVersion is the version written into every saved record.
const SchemaVersion = 3

// Status is the completion status of a title.
type Status string

const (
	StatusNone    Status = "none"
	StatusVictory Status = "victory"
	StatusDefeat  Status = "defeat"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusVictory, StatusDefeat:
		return true
	}
	return false
}

// TitleProgress is the per-title part of the record.
type TitleProgress struct {
	Status         Status    `json:"status"`
	FoundEndings   []string  `json:"foundEndings"`
	CurrentSceneID string    `json:"currentSceneId,omitempty"`
	LastPlayedAt   time.Time `json:"lastPlayedAt,omitzero"`
}

// HasEnding reports whether endingID was already found.
func (tp TitleProgress) HasEnding(endingID string) bool {
	return slices.Contains(tp.FoundEndings, endingID)
}

// Session names the title and scene the player left off at.
type Session struct {
	TitleID string `json:"titleId"`
	SceneID string `json:"sceneId"`
}

// Record is the single persisted aggregate.
type Record struct {
	Version       int                      `json:"version"`
	Bookmarks     []string                 `json:"bookmarks"`
	PerTitle      map[string]TitleProgress `json:"perTitle"`
	ActiveSession *Session                 `json:"activeSession"`
}

// New returns the empty record used when nothing was persisted yet.
func New() Record {
	return Record{
		Version:   SchemaVersion,
		Bookmarks: []string{},
		PerTitle:  map[string]TitleProgress{},
	}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := Record{
		Version:   r.Version,
		Bookmarks: slices.Clone(r.Bookmarks),
		PerTitle:  make(map[string]TitleProgress, len(r.PerTitle)),
	}
	if out.Bookmarks == nil {
		out.Bookmarks = []string{}
	}
	for id, tp := range r.PerTitle {
		tp.FoundEndings = slices.Clone(tp.FoundEndings)
		out.PerTitle[id] = tp
	}
	if r.ActiveSession != nil {
		s := *r.ActiveSession
		out.ActiveSession = &s
	}
	return out
}

// Title returns the progress of titleID, or an untouched entry when the title
// was never opened.
func (r Record) Title(titleID string) TitleProgress {
	tp, ok := r.PerTitle[titleID]
	if !ok {
		return TitleProgress{Status: StatusNone, FoundEndings: []string{}}
	}
	return tp
}

// IsBookmarked reports whether titleID is in the bookmark set.
func (r Record) IsBookmarked(titleID string) bool {
	return slices.Contains(r.Bookmarks, titleID)
}

// ResumePoint returns the scene to resume titleID at. It only reports a scene
// when the active session names this title and agrees with its pointer.
func (r Record) ResumePoint(titleID string) (string, bool) {
	s := r.ActiveSession
	if s == nil || s.TitleID != titleID || s.SceneID == "" {
		return "", false
	}
	if r.PerTitle[titleID].CurrentSceneID != s.SceneID {
		return "", false
	}
	return s.SceneID, true
}

// Normalize repairs a decoded record so every invariant holds: empty
// collections instead of nil, no duplicate bookmarks or endings, known
// statuses only, and at most one resume pointer that matches the session.
func (r *Record) Normalize() {
	r.Version = SchemaVersion
	r.Bookmarks = dedupe(r.Bookmarks)
	if r.PerTitle == nil {
		r.PerTitle = map[string]TitleProgress{}
	}
	delete(r.PerTitle, "")

	if s := r.ActiveSession; s != nil {
		tp, ok := r.PerTitle[s.TitleID]
		if !ok || s.SceneID == "" || tp.CurrentSceneID != s.SceneID {
			r.ActiveSession = nil
		}
	}

	for id, tp := range r.PerTitle {
		if !tp.Status.Valid() {
			tp.Status = StatusNone
		}
		tp.FoundEndings = dedupe(tp.FoundEndings)
		if r.ActiveSession == nil || r.ActiveSession.TitleID != id {
			tp.CurrentSceneID = ""
		}
		r.PerTitle[id] = tp
	}
}

func (r *Record) entry(titleID string) TitleProgress {
	if r.PerTitle == nil {
		r.PerTitle = map[string]TitleProgress{}
	}
	tp, ok := r.PerTitle[titleID]
	if !ok {
		tp = TitleProgress{Status: StatusNone, FoundEndings: []string{}}
	}
	return tp
}

// Touch records that titleID was opened at now. LastPlayedAt never moves
// backwards.
func (r *Record) Touch(titleID string, now time.Time) {
	tp := r.entry(titleID)
	now = now.UTC().Truncate(time.Millisecond)
	if now.After(tp.LastPlayedAt) {
		tp.LastPlayedAt = now
	}
	r.PerTitle[titleID] = tp
}

// Checkpoint makes sceneID the resume point of titleID and the active
// session. A pointer held by a different title is cleared.
func (r *Record) Checkpoint(titleID, sceneID string) {
	if s := r.ActiveSession; s != nil && s.TitleID != titleID {
		r.ClearResume(s.TitleID)
	}
	tp := r.entry(titleID)
	tp.CurrentSceneID = sceneID
	r.PerTitle[titleID] = tp
	r.ActiveSession = &Session{TitleID: titleID, SceneID: sceneID}
}

// ClearResume drops the resume pointer of titleID and, if it is the active
// one, the session.
func (r *Record) ClearResume(titleID string) {
	if tp, ok := r.PerTitle[titleID]; ok {
		tp.CurrentSceneID = ""
		r.PerTitle[titleID] = tp
	}
	if r.ActiveSession != nil && r.ActiveSession.TitleID == titleID {
		r.ActiveSession = nil
	}
}

// ApplyEnding records a completion for titleID. The status is overwritten by
// the latest ending; endingID is added to the found set when non-empty and new.
func (r *Record) ApplyEnding(titleID string, status Status, endingID string) {
	tp := r.entry(titleID)
	tp.Status = status
	if endingID != "" && !tp.HasEnding(endingID) {
		tp.FoundEndings = append(tp.FoundEndings, endingID)
	}
	r.PerTitle[titleID] = tp
}

// ToggleBookmark flips membership of titleID and returns the new state.
func (r *Record) ToggleBookmark(titleID string) bool {
	if i := slices.Index(r.Bookmarks, titleID); i >= 0 {
		r.Bookmarks = slices.Delete(r.Bookmarks, i, i+1)
		return false
	}
	r.Bookmarks = append(r.Bookmarks, titleID)
	return true
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

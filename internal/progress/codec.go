// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrEmpty is returned by Decode for a blank blob.
	ErrEmpty = errors.New("progress: empty record")
	// ErrCorrupt wraps any decoding failure of a stored blob.
	ErrCorrupt = errors.New("progress: corrupt record")
)

// Encode serialises a normalised copy of rec.
func Encode(rec Record) ([]byte, error) {
	out := rec.Clone()
	out.Normalize()
	return json.Marshal(out)
}

// Decode parses a stored record and normalises it.
func Decode(data []byte) (Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Record{}, ErrEmpty
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	rec.Normalize()
	return rec, nil
}

// legacyRecord is the shape written by the browser build of the player.
type legacyRecord struct {
	Quests    map[string]legacyQuest `json:"quests"`
	Bookmarks []string               `json:"bookmarks"`
}

type legacyQuest struct {
	FoundEndings []string `json:"foundEndings"`
	EndingsFound []string `json:"endingsFound"`
	LastPlayed   float64  `json:"lastPlayed"`
	CurrentScene string   `json:"currentScene"`
	Status       string   `json:"status"`
}

// DecodeLegacy converts a record stored under one of the legacy keys. The most
// recently played title that still carries a scene pointer becomes the active
// session; every other pointer is dropped.
func DecodeLegacy(data []byte) (Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Record{}, ErrEmpty
	}
	var legacy legacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	rec := New()
	rec.Bookmarks = dedupe(legacy.Bookmarks)

	ids := make([]string, 0, len(legacy.Quests))
	for id := range legacy.Quests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		resumeID string
		resumeAt time.Time
	)
	for _, id := range ids {
		q := legacy.Quests[id]
		tp := TitleProgress{
			Status:       Status(q.Status),
			FoundEndings: dedupe(append(q.FoundEndings, q.EndingsFound...)),
			LastPlayedAt: fromUnixMillis(q.LastPlayed),
		}
		if !tp.Status.Valid() {
			tp.Status = StatusNone
		}
		rec.PerTitle[id] = tp

		if q.CurrentScene != "" && q.CurrentScene != "main_menu" {
			if resumeID == "" || tp.LastPlayedAt.After(resumeAt) {
				resumeID, resumeAt = id, tp.LastPlayedAt
			}
		}
	}
	if resumeID != "" {
		rec.Checkpoint(resumeID, legacy.Quests[resumeID].CurrentScene)
	}
	rec.Normalize()
	return rec, nil
}

func fromUnixMillis(ms float64) time.Time {
	if ms <= 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}

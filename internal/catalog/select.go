// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ManuGH/questplay/internal/progress"
	"golang.org/x/text/cases"
)

// Tab selects which titles the menu shows.
type Tab string

const (
	TabAll   Tab = "all"
	TabSaved Tab = "saved"
)

// ParseTab accepts "all" (or empty) and "saved".
func ParseTab(s string) (Tab, error) {
	switch Tab(strings.ToLower(strings.TrimSpace(s))) {
	case "", TabAll:
		return TabAll, nil
	case TabSaved:
		return TabSaved, nil
	default:
		return "", fmt.Errorf("unknown tab %q (want all or saved)", s)
	}
}

// Query is the current menu state.
type Query struct {
	Tab    Tab    `json:"tab"`
	Search string `json:"search"`
}

// Badge is the single status marker a card shows.
type Badge string

const (
	BadgeNone     Badge = ""
	BadgeDev      Badge = "dev"
	BadgeVictory  Badge = "victory"
	BadgeDefeat   Badge = "defeat"
	BadgeContinue Badge = "continue"
)

// Item is one entry of the display list.
type Item struct {
	Title
	IsBookmarked      bool            `json:"isBookmarked"`
	ResumeAvailable   bool            `json:"resumeAvailable"`
	CompletionStatus  progress.Status `json:"completionStatus"`
	EndingsFoundCount int             `json:"endingsFoundCount"`
	Badge             Badge           `json:"badge,omitempty"`
}

// EmptyReason explains an empty display list.
type EmptyReason string

const (
	EmptyNone        EmptyReason = ""
	EmptyNoBookmarks EmptyReason = "no_bookmarks"
	EmptyNoMatches   EmptyReason = "no_matches"
)

// Result is the output of Select.
type Result struct {
	Query       Query       `json:"query"`
	Items       []Item      `json:"items"`
	EmptyReason EmptyReason `json:"emptyReason,omitempty"`
}

// IDs returns the title ids of the result in display order.
func (r Result) IDs() []string {
	ids := make([]string, len(r.Items))
	for i, it := range r.Items {
		ids[i] = it.ID
	}
	return ids
}

// Select filters and orders titles for display. It does not modify rec.
func Select(titles []Title, rec progress.Record, q Query) Result {
	if q.Tab == "" {
		q.Tab = TabAll
	}
	fold := cases.Fold()
	term := fold.String(q.Search)

	candidates := make([]Title, 0, len(titles))
	for _, t := range titles {
		if term != "" && !strings.Contains(fold.String(t.Title), term) {
			continue
		}
		if q.Tab == TabSaved && (t.IsDev || !rec.IsBookmarked(t.ID)) {
			continue
		}
		candidates = append(candidates, t)
	}

	if q.Tab == TabSaved {
		sort.SliceStable(candidates, func(i, j int) bool {
			a := rec.Title(candidates[i].ID).LastPlayedAt
			b := rec.Title(candidates[j].ID).LastPlayedAt
			switch {
			case a.IsZero():
				return false
			case b.IsZero():
				return true
			default:
				return a.After(b)
			}
		})
	}

	res := Result{Query: q, Items: make([]Item, 0, len(candidates))}
	for _, t := range candidates {
		res.Items = append(res.Items, newItem(t, rec))
	}

	if len(res.Items) == 0 {
		if term == "" && q.Tab == TabSaved {
			res.EmptyReason = EmptyNoBookmarks
		} else {
			res.EmptyReason = EmptyNoMatches
		}
	}
	return res
}

func newItem(t Title, rec progress.Record) Item {
	tp := rec.Title(t.ID)
	_, resumable := rec.ResumePoint(t.ID)
	it := Item{
		Title:             t,
		IsBookmarked:      rec.IsBookmarked(t.ID),
		ResumeAvailable:   resumable,
		CompletionStatus:  tp.Status,
		EndingsFoundCount: len(tp.FoundEndings),
	}
	switch {
	case t.IsDev:
		it.Badge = BadgeDev
	case tp.Status == progress.StatusVictory:
		it.Badge = BadgeVictory
	case tp.Status == progress.StatusDefeat:
		it.Badge = BadgeDefeat
	case resumable:
		it.Badge = BadgeContinue
	}
	return it
}

// EndingsLabel renders the "found / total" counter, or "" when the title does
// not track endings.
func (it Item) EndingsLabel() string {
	if it.TotalEndings <= 0 {
		return ""
	}
	return fmt.Sprintf("%d / %d", it.EndingsFoundCount, it.TotalEndings)
}

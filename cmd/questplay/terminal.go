// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/questplay/internal/catalog"
	"github.com/ManuGH/questplay/internal/engine"
	"github.com/ManuGH/questplay/internal/story"
)

// terminalPresenter prints scenes as plain text.
type terminalPresenter struct {
	out io.Writer
}

var _ engine.Presenter = terminalPresenter{}

func (p terminalPresenter) SceneRendered(v engine.SceneView) {
	fmt.Fprintln(p.out)
	if v.Resumed {
		fmt.Fprintln(p.out, "(continuing where you left off)")
	}
	fmt.Fprintln(p.out, strings.TrimSpace(v.Text))
	if v.IsEnding {
		label := "THE END"
		switch v.EndingType {
		case story.EndingDefeat:
			label = "THE END (defeat)"
		case story.EndingVictory:
			label = "THE END (victory)"
		}
		fmt.Fprintf(p.out, "\n*** %s ***\n", label)
	}
}

func (p terminalPresenter) CatalogChanged(catalog.Result) {}

func (p terminalPresenter) FatalContentError(titleID, sceneID string) {
	fmt.Fprintf(p.out, "\nThe story %q is broken: scene %q does not exist. Returning to the menu.\n", titleID, sceneID)
}

func (p terminalPresenter) FetchFailed(titleID string, err error) {
	fmt.Fprintf(p.out, "\nCould not load %q: %v\n", titleID, err)
}

// printCatalog writes one line per item.
func printCatalog(w io.Writer, res catalog.Result) {
	switch res.EmptyReason {
	case catalog.EmptyNoBookmarks:
		fmt.Fprintln(w, "No saved titles yet.")
		return
	case catalog.EmptyNoMatches:
		fmt.Fprintln(w, "Nothing matches your search.")
		return
	}
	for _, it := range res.Items {
		mark := " "
		if it.IsBookmarked {
			mark = "*"
		}
		line := fmt.Sprintf("%s %-20s %s", mark, it.ID, it.Title.Title)
		if label := it.EndingsLabel(); label != "" {
			line += "  [" + label + "]"
		}
		if it.Badge != catalog.BadgeNone {
			line += "  (" + string(it.Badge) + ")"
		}
		fmt.Fprintln(w, line)
	}
}

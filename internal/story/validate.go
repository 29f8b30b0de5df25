// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"fmt"
	"sort"
)

// Severity ranks validation issues.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in a document.
type Issue struct {
	Severity Severity
	SceneID  string
	Message  string
}

func (i Issue) String() string {
	if i.SceneID == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: scene %q: %s", i.Severity, i.SceneID, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks the scene graph. Errors are conditions that break playback
// (missing start, dangling links, duplicate ending ids, dead ends); warnings
// flag content a player can never see or cannot leave by a choice.
func Validate(doc *Document) []Issue {
	var issues []Issue
	add := func(sev Severity, sceneID, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, SceneID: sceneID, Message: fmt.Sprintf(format, args...)})
	}

	if doc.StartSceneID == "" {
		add(SeverityError, "", "startScene is empty")
	} else if _, ok := doc.Scenes[doc.StartSceneID]; !ok {
		add(SeverityError, "", "startScene %q does not exist", doc.StartSceneID)
	}

	ids := make([]string, 0, len(doc.Scenes))
	for id := range doc.Scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	endingOwners := make(map[string]string)
	for _, id := range ids {
		scene := doc.Scenes[id]

		for n, c := range scene.Choices {
			if c.Target.Kind != ToScene {
				continue
			}
			if _, ok := doc.Scenes[c.Target.SceneID]; !ok {
				add(SeverityError, id, "choice %d leads to missing scene %q", n+1, c.Target.SceneID)
			}
		}

		switch {
		case scene.Ending != nil:
			if eid := scene.Ending.ID; eid != "" {
				if owner, dup := endingOwners[eid]; dup {
					add(SeverityError, id, "endingId %q already used by scene %q", eid, owner)
				} else {
					endingOwners[eid] = id
				}
			}
			if !hasMenuExit(scene) {
				add(SeverityWarning, id, "ending has no choice returning to the menu")
			}
		case len(scene.Choices) == 0:
			add(SeverityError, id, "scene is a dead end: no choices and not an ending")
		}
	}

	if _, ok := doc.Scenes[doc.StartSceneID]; ok {
		reached := Reachable(doc, doc.StartSceneID)
		for _, id := range ids {
			if !reached[id] {
				add(SeverityWarning, id, "scene is unreachable from the start scene")
			}
		}
	}
	return issues
}

func hasMenuExit(s *Scene) bool {
	for _, c := range s.Choices {
		if c.Target.Kind == ToMenu {
			return true
		}
	}
	return false
}

// Reachable returns the set of scenes reachable from start by following
// choices (breadth first).
func Reachable(doc *Document, start string) map[string]bool {
	seen := map[string]bool{}
	if _, ok := doc.Scenes[start]; !ok {
		return seen
	}
	seen[start] = true
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range doc.Scenes[id].Choices {
			next := c.Target.SceneID
			if c.Target.Kind != ToScene || seen[next] {
				continue
			}
			if _, ok := doc.Scenes[next]; !ok {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return seen
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package story models a title's scene graph and loads it from disk or HTTP.
package story

// MenuSentinel is the nextScene value that sends the player back to the menu.
const MenuSentinel = "main_menu"

// EndingType classifies an ending. Any value other than EndingDefeat counts
// as a victory when completion is recorded.
type EndingType string

const (
	EndingUnspecified EndingType = ""
	EndingVictory     EndingType = "victory"
	EndingDefeat      EndingType = "defeat"
)

// IsDefeat reports whether the ending is a defeat.
func (t EndingType) IsDefeat() bool { return t == EndingDefeat }

// TargetKind discriminates where a choice leads.
type TargetKind int

const (
	ToScene TargetKind = iota
	ToMenu
)

func (k TargetKind) String() string {
	switch k {
	case ToScene:
		return "scene"
	case ToMenu:
		return "menu"
	default:
		return "unknown"
	}
}

// Target is the destination of a choice. SceneID is only set for ToScene.
type Target struct {
	Kind    TargetKind
	SceneID string
}

// Choice is one option offered by a scene.
type Choice struct {
	Text   string
	Target Target
}

// Ending carries the bookkeeping data of a terminal scene.
type Ending struct {
	ID   string // optional, unique per document
	Type EndingType
}

// Scene is one node of the story graph. Ending is nil for ordinary passages.
type Scene struct {
	ID              string
	Text            string
	BackgroundImage string
	Choices         []Choice
	Ending          *Ending
}

// IsEnding reports whether reaching the scene completes the title.
func (s *Scene) IsEnding() bool { return s.Ending != nil }

// Document is the immutable scene graph of one title.
type Document struct {
	StartSceneID string
	Scenes       map[string]*Scene
}

// Scene looks up a scene by id.
func (d *Document) Scene(id string) (*Scene, bool) {
	if d == nil {
		return nil, false
	}
	s, ok := d.Scenes[id]
	return s, ok
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"errors"

	"github.com/ManuGH/questplay/internal/catalog"
	"github.com/ManuGH/questplay/internal/fsm"
	"github.com/ManuGH/questplay/internal/story"
)

var (
	ErrUnknownTitle    = errors.New("engine: unknown title")
	ErrTitleUnplayable = errors.New("engine: title is not playable yet")
	ErrBusy            = errors.New("engine: a title is already loading or playing")
	ErrSuperseded      = errors.New("engine: story response arrived after the player moved on")
	ErrNotPlaying      = errors.New("engine: no title is being played")
	ErrNoSuchChoice    = errors.New("engine: no such choice")
	ErrContentMissing  = errors.New("engine: scene missing from story document")
)

// State is the engine's top-level state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
)

type event string

const (
	evStart  event = "start"
	evLoaded event = "loaded"
	evFailed event = "fetch_failed"
	evExit   event = "exit"
)

var transitions = []fsm.Transition[State, event]{
	{From: StateIdle, Event: evStart, To: StateLoading},
	{From: StateLoading, Event: evLoaded, To: StatePlaying},
	{From: StateLoading, Event: evFailed, To: StateIdle},
	{From: StateLoading, Event: evExit, To: StateIdle},
	{From: StatePlaying, Event: evExit, To: StateIdle},
}

// ChoiceView is one option as shown to the player.
type ChoiceView struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	ToMenu bool   `json:"toMenu"`
}

// SceneView is everything the presentation layer needs to draw a scene.
type SceneView struct {
	TitleID         string           `json:"titleId"`
	SceneID         string           `json:"sceneId"`
	Text            string           `json:"text"`
	BackgroundImage string           `json:"backgroundImage"`
	Choices         []ChoiceView     `json:"choices"`
	IsEnding        bool             `json:"isEnding"`
	EndingID        string           `json:"endingId,omitempty"`
	EndingType      story.EndingType `json:"endingType,omitempty"`
	Resumed         bool             `json:"resumed"`
}

func newSceneView(titleID string, s *story.Scene, resumed bool) SceneView {
	v := SceneView{
		TitleID:         titleID,
		SceneID:         s.ID,
		Text:            s.Text,
		BackgroundImage: s.BackgroundImage,
		Choices:         make([]ChoiceView, len(s.Choices)),
		IsEnding:        s.IsEnding(),
		Resumed:         resumed,
	}
	for i, c := range s.Choices {
		v.Choices[i] = ChoiceView{Index: i, Text: c.Text, ToMenu: c.Target.Kind == story.ToMenu}
	}
	if s.Ending != nil {
		v.EndingID = s.Ending.ID
		v.EndingType = s.Ending.Type
	}
	return v
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	State          State         `json:"state"`
	TitleID        string        `json:"titleId,omitempty"`
	LoadingTitleID string        `json:"loadingTitleId,omitempty"`
	Scene          *SceneView    `json:"scene,omitempty"`
	Query          catalog.Query `json:"query"`
}

// Presenter receives render events. Callbacks run while the engine holds its
// lock and must not call back into the engine.
type Presenter interface {
	SceneRendered(view SceneView)
	CatalogChanged(result catalog.Result)
	FatalContentError(titleID, sceneID string)
	FetchFailed(titleID string, err error)
}

// NopPresenter discards every event.
type NopPresenter struct{}

func (NopPresenter) SceneRendered(SceneView)          {}
func (NopPresenter) CatalogChanged(catalog.Result)    {}
func (NopPresenter) FatalContentError(string, string) {}
func (NopPresenter) FetchFailed(string, error)        {}

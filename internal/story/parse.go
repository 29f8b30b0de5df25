// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type wireDocument struct {
	StartScene string               `json:"startScene"`
	Scenes     map[string]wireScene `json:"scenes"`
}

type wireScene struct {
	Text            string       `json:"text"`
	BackgroundImage string       `json:"backgroundImage"`
	Choices         []wireChoice `json:"choices"`
	IsEnding        bool         `json:"isEnding"`
	EndingID        string       `json:"endingId,omitempty"`
	EndingType      string       `json:"endingType,omitempty"`
}

type wireChoice struct {
	Text      string `json:"text"`
	NextScene string `json:"nextScene"`
}

var errNoScenes = errors.New("document has no scenes object")

// Parse decodes a story document. Syntax and type errors are reported as
// ErrMalformed; graph problems are left to Validate.
func Parse(r io.Reader) (*Document, error) {
	var w wireDocument
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Scenes == nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, errNoScenes)
	}

	doc := &Document{
		StartSceneID: w.StartScene,
		Scenes:       make(map[string]*Scene, len(w.Scenes)),
	}
	for id, ws := range w.Scenes {
		scene := &Scene{
			ID:              id,
			Text:            ws.Text,
			BackgroundImage: ws.BackgroundImage,
			Choices:         make([]Choice, 0, len(ws.Choices)),
		}
		for _, wc := range ws.Choices {
			target := Target{Kind: ToScene, SceneID: wc.NextScene}
			if wc.NextScene == MenuSentinel {
				target = Target{Kind: ToMenu}
			}
			scene.Choices = append(scene.Choices, Choice{Text: wc.Text, Target: target})
		}
		if ws.IsEnding {
			scene.Ending = &Ending{ID: ws.EndingID, Type: EndingType(ws.EndingType)}
		}
		doc.Scenes[id] = scene
	}
	return doc, nil
}

// Marshal encodes doc in the story file format.
func Marshal(doc *Document) ([]byte, error) {
	w := wireDocument{
		StartScene: doc.StartSceneID,
		Scenes:     make(map[string]wireScene, len(doc.Scenes)),
	}
	for id, s := range doc.Scenes {
		ws := wireScene{
			Text:            s.Text,
			BackgroundImage: s.BackgroundImage,
			Choices:         make([]wireChoice, 0, len(s.Choices)),
		}
		for _, c := range s.Choices {
			next := c.Target.SceneID
			if c.Target.Kind == ToMenu {
				next = MenuSentinel
			}
			ws.Choices = append(ws.Choices, wireChoice{Text: c.Text, NextScene: next})
		}
		if s.Ending != nil {
			ws.IsEnding = true
			ws.EndingID = s.Ending.ID
			ws.EndingType = string(s.Ending.Type)
		}
		w.Scenes[id] = ws
	}
	return json.MarshalIndent(w, "", "  ")
}

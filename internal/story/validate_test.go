// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCleanDocument(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	issues := Validate(doc)
	assert.Empty(t, issues)
	assert.False(t, HasErrors(issues))
}

func TestValidateFindsProblems(t *testing.T) {
	doc := &Document{
		StartSceneID: "a",
		Scenes: map[string]*Scene{
			"a": {ID: "a", Choices: []Choice{
				{Text: "b", Target: Target{Kind: ToScene, SceneID: "b"}},
				{Text: "ghost", Target: Target{Kind: ToScene, SceneID: "ghost"}},
			}},
			"b":      {ID: "b"},
			"e1":     {ID: "e1", Ending: &Ending{ID: "E"}, Choices: []Choice{{Target: Target{Kind: ToMenu}}}},
			"e2":     {ID: "e2", Ending: &Ending{ID: "E"}},
			"orphan": {ID: "orphan", Choices: []Choice{{Target: Target{Kind: ToMenu}}}},
		},
	}

	issues := Validate(doc)
	require.True(t, HasErrors(issues))

	var rendered []string
	for _, i := range issues {
		rendered = append(rendered, i.String())
	}
	assert.Equal(t, []string{
		`error: scene "a": choice 2 leads to missing scene "ghost"`,
		`error: scene "b": scene is a dead end: no choices and not an ending`,
		`error: scene "e2": endingId "E" already used by scene "e1"`,
		`warning: scene "e2": ending has no choice returning to the menu`,
		`warning: scene "e1": scene is unreachable from the start scene`,
		`warning: scene "e2": scene is unreachable from the start scene`,
		`warning: scene "orphan": scene is unreachable from the start scene`,
	}, rendered)
}

func TestValidateMissingStart(t *testing.T) {
	doc := &Document{
		StartSceneID: "nope",
		Scenes:       map[string]*Scene{"a": {ID: "a", Ending: &Ending{}, Choices: []Choice{{Target: Target{Kind: ToMenu}}}}},
	}
	issues := Validate(doc)
	require.Len(t, issues, 1)
	assert.Equal(t, `error: startScene "nope" does not exist`, issues[0].String())
}

func TestReachable(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"intro": true, "hall": true, "win": true, "lose": true}, Reachable(doc, "intro"))
	assert.Equal(t, map[string]bool{"win": true}, Reachable(doc, "win"))
	assert.Empty(t, Reachable(doc, "ghost"))
}

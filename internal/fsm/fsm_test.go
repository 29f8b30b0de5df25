// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type event string

var table = []Transition[state, event]{
	{From: "idle", Event: "start", To: "loading"},
	{From: "loading", Event: "loaded", To: "playing"},
	{From: "loading", Event: "fail", To: "idle"},
	{From: "playing", Event: "exit", To: "idle"},
}

func TestMachineFollowsTable(t *testing.T) {
	m, err := New[state, event]("idle", table)
	require.NoError(t, err)

	var seen []string
	m.OnTransition = func(from, to state, ev event) {
		seen = append(seen, string(from)+">"+string(to))
	}

	to, err := m.Fire("start")
	require.NoError(t, err)
	assert.Equal(t, state("loading"), to)
	assert.True(t, m.Can("loaded"))
	assert.False(t, m.Can("exit"))

	_, err = m.Fire("loaded")
	require.NoError(t, err)
	_, err = m.Fire("exit")
	require.NoError(t, err)

	assert.Equal(t, state("idle"), m.State())
	assert.Equal(t, []string{"idle>loading", "loading>playing", "playing>idle"}, seen)
}

func TestMachineRejectsUnknownTransition(t *testing.T) {
	m := MustNew[state, event]("idle", table)

	got, err := m.Fire("exit")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, state("idle"), got)
	assert.Equal(t, state("idle"), m.State())
}

func TestNewRejectsDuplicates(t *testing.T) {
	dup := append([]Transition[state, event]{}, table...)
	dup = append(dup, Transition[state, event]{From: "idle", Event: "start", To: "playing"})

	_, err := New[state, event]("idle", dup)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew[state, event]("idle", dup) })
}

func TestMachineConcurrentFire(t *testing.T) {
	m := MustNew[state, event]("idle", table)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Fire("start"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, state("loading"), m.State())
}

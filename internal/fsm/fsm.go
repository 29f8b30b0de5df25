// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm is a small strict finite state machine: every (state, event)
// pair must be declared, anything else is an error.
package fsm

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned by Fire for undeclared (state, event) pairs.
var ErrInvalidTransition = errors.New("fsm: invalid transition")

// Transition describes a single edge.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
}

// Machine holds the current state and the transition table.
type Machine[S ~string, E ~string] struct {
	mu    sync.Mutex
	state S
	index map[string]S

	// OnTransition, if set, observes every applied transition. It runs with
	// the machine lock released.
	OnTransition func(from, to S, event E)
}

// New builds a machine. Duplicate (From, Event) pairs are rejected.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	idx := make(map[string]S, len(transitions))
	for _, t := range transitions {
		k := key(t.From, t.Event)
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t.To
	}
	return &Machine[S, E]{state: initial, index: idx}, nil
}

// MustNew is New for static tables.
func MustNew[S ~string, E ~string](initial S, transitions []Transition[S, E]) *Machine[S, E] {
	m, err := New(initial, transitions)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether event is declared for the current state.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[key(m.state, event)]
	return ok
}

// Fire applies event atomically and returns the new state.
func (m *Machine[S, E]) Fire(event E) (S, error) {
	m.mu.Lock()
	from := m.state
	to, ok := m.index[key(from, event)]
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}
	m.state = to
	hook := m.OnTransition
	m.mu.Unlock()

	if hook != nil {
		hook(from, to, event)
	}
	return to, nil
}

func key[S ~string, E ~string](from S, event E) string {
	return string(from) + "|" + string(event)
}

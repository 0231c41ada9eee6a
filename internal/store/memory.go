package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// Memory is an in-process Repository. State lives only as long as the value;
// it backs tests and the "memory" store driver.
type Memory struct {
	mu           sync.RWMutex
	states       map[string]*State
	interactions map[string][]Interaction
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		states:       make(map[string]*State),
		interactions: make(map[string][]Interaction),
	}
}

func (m *Memory) LoadState(ctx context.Context, studentID string) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, Fail("load state", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[studentID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := Validate(studentID, st); err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

func (m *Memory) SaveState(ctx context.Context, studentID string, state *State) error {
	if err := ctx.Err(); err != nil {
		return Fail("save state", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c := state.Clone()
	c.StudentID = studentID
	m.states[studentID] = c
	return nil
}

func (m *Memory) AppendInteraction(ctx context.Context, studentID string, rec Interaction) error {
	if err := ctx.Err(); err != nil {
		return Fail("append interaction", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(studentID, rec)
}

func (m *Memory) appendLocked(studentID string, rec Interaction) error {
	log := m.interactions[studentID]
	for _, existing := range log {
		if existing.Ordinal == rec.Ordinal {
			return fmt.Errorf("%w: student %q ordinal %d", ErrDuplicateOrdinal, studentID, rec.Ordinal)
		}
	}
	rec.StudentID = studentID
	log = append(log, rec)
	slices.SortFunc(log, func(a, b Interaction) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	m.interactions[studentID] = log
	return nil
}

func (m *Memory) LoadInteractions(ctx context.Context, studentID string) ([]Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, Fail("load interactions", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.interactions[studentID]), nil
}

func (m *Memory) RecordUpdate(ctx context.Context, studentID string, state *State, rec Interaction) error {
	if err := ctx.Err(); err != nil {
		return Fail("record update", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.appendLocked(studentID, rec); err != nil {
		return err
	}
	c := state.Clone()
	c.StudentID = studentID
	m.states[studentID] = c
	return nil
}

func (m *Memory) Close() error { return nil }

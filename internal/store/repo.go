package store

import (
	"context"
	"maps"
	"time"
)

// State is the persisted mastery record for one student: one probability per
// knowledge component plus the highest interaction ordinal issued so far.
type State struct {
	StudentID     string
	Probabilities map[string]float64
	LastOrdinal   int64
	UpdatedAt     time.Time
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Probabilities = maps.Clone(s.Probabilities)
	if c.Probabilities == nil {
		c.Probabilities = make(map[string]float64)
	}
	return &c
}

// Interaction is one append-only observation in a student's log.
type Interaction struct {
	Ordinal           int64
	StudentID         string
	KC                string
	Correct           bool
	ProbabilityBefore float64
	ProbabilityAfter  float64
	Timestamp         time.Time
}

// Repository persists mastery state and the interaction log.
//
// Implementations must make SaveState and RecordUpdate atomic with respect to
// concurrent readers of the same student: a reader sees either the previous
// or the new record, never a mix.
type Repository interface {
	// LoadState returns the stored state, ErrNotFound if the student has
	// none, or a *CorruptStateError if the stored record fails validation.
	LoadState(ctx context.Context, studentID string) (*State, error)

	// SaveState upserts the state record.
	SaveState(ctx context.Context, studentID string, state *State) error

	// AppendInteraction appends a record. A duplicate ordinal is rejected
	// with ErrDuplicateOrdinal.
	AppendInteraction(ctx context.Context, studentID string, rec Interaction) error

	// LoadInteractions returns the log ordered by ordinal.
	LoadInteractions(ctx context.Context, studentID string) ([]Interaction, error)

	// RecordUpdate appends rec and saves state in a single transaction.
	RecordUpdate(ctx context.Context, studentID string, state *State, rec Interaction) error

	// Close releases the underlying resources.
	Close() error
}

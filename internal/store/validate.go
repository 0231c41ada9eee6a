package store

import (
	"encoding/json"
	"fmt"
	"math"
)

// Validate checks a loaded state and returns a *CorruptStateError describing
// the first problem found.
func Validate(studentID string, s *State) error {
	if s == nil {
		return &CorruptStateError{StudentID: studentID, Reason: "missing record"}
	}
	if s.Probabilities == nil {
		return &CorruptStateError{StudentID: studentID, Reason: "missing probabilities"}
	}
	if s.LastOrdinal < 0 {
		return &CorruptStateError{StudentID: studentID, Reason: fmt.Sprintf("negative last ordinal %d", s.LastOrdinal)}
	}
	for kc, p := range s.Probabilities {
		if kc == "" {
			return &CorruptStateError{StudentID: studentID, Reason: "empty knowledge component key"}
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return &CorruptStateError{StudentID: studentID, Reason: fmt.Sprintf("probability %v for %q out of range", p, kc)}
		}
	}
	return nil
}

// EncodeProbabilities serializes the probability map for a text/JSON column.
func EncodeProbabilities(p map[string]float64) ([]byte, error) {
	if p == nil {
		p = map[string]float64{}
	}
	return json.Marshal(p)
}

// DecodeState parses a stored probabilities document and validates the result.
func DecodeState(studentID string, raw []byte, lastOrdinal int64) (*State, error) {
	if len(raw) == 0 {
		return nil, &CorruptStateError{StudentID: studentID, Reason: "missing probabilities"}
	}
	var probs map[string]float64
	if err := json.Unmarshal(raw, &probs); err != nil {
		return nil, &CorruptStateError{StudentID: studentID, Reason: "undecodable probabilities", Err: err}
	}
	st := &State{StudentID: studentID, Probabilities: probs, LastOrdinal: lastOrdinal}
	if err := Validate(studentID, st); err != nil {
		return nil, err
	}
	return st, nil
}

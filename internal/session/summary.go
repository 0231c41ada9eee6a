package session

import (
	"cmp"
	"slices"

	"github.com/abhisek/fractiz/internal/store"
)

// KCResult is the answer tally for one knowledge component.
type KCResult struct {
	KC        string  `json:"kc"`
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
}

// Summary aggregates a student's interaction log.
type Summary struct {
	TotalQuestions int        `json:"total_questions"`
	TotalCorrect   int        `json:"total_correct"`
	Accuracy       float64    `json:"accuracy"`
	KCResults      []KCResult `json:"kc_results"`
}

// BuildSummary tallies an interaction log. KC results are listed in order of
// first appearance.
func BuildSummary(log []store.Interaction) *Summary {
	s := &Summary{}
	index := make(map[string]int)
	for _, rec := range log {
		i, ok := index[rec.KC]
		if !ok {
			i = len(s.KCResults)
			index[rec.KC] = i
			s.KCResults = append(s.KCResults, KCResult{KC: rec.KC})
		}
		s.TotalQuestions++
		s.KCResults[i].Attempted++
		if rec.Correct {
			s.TotalCorrect++
			s.KCResults[i].Correct++
		}
	}

	s.Accuracy = ratio(s.TotalCorrect, s.TotalQuestions)
	for i := range s.KCResults {
		s.KCResults[i].Accuracy = ratio(s.KCResults[i].Correct, s.KCResults[i].Attempted)
	}
	return s
}

// SortedByKC returns the KC results ordered by KC.
func (s *Summary) SortedByKC() []KCResult {
	out := slices.Clone(s.KCResults)
	slices.SortFunc(out, func(a, b KCResult) int {
		return cmp.Compare(a.KC, b.KC)
	})
	return out
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

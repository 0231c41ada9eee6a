package mastery

import (
	"maps"
	"slices"

	"github.com/abhisek/fractiz/internal/rating"
)

// Vector maps each KC to a mastery probability.
type Vector map[string]float64

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	return maps.Clone(v)
}

// KCs returns the vector's keys, sorted.
func (v Vector) KCs() []string {
	return slices.Sorted(maps.Keys(v))
}

// Progress is a consistent view of one student's standing, derived from a
// single state snapshot.
type Progress struct {
	StudentID    string                  `json:"student_id"`
	Vector       Vector                  `json:"mastery"`
	Stars        map[string]int          `json:"stars"`
	States       map[string]MasteryState `json:"states"`
	TotalStars   int                     `json:"total_stars"`
	Title        string                  `json:"title"`
	Interactions int64                   `json:"interactions"`
}

func buildProgress(studentID string, vec Vector, observed map[string]bool, lastOrdinal int64, threshold float64, ladder rating.Ladder) *Progress {
	stars := rating.TopicStars(vec)
	total := rating.Total(stars)

	states := make(map[string]MasteryState, len(vec))
	for kc, p := range vec {
		states[kc] = Classify(p, observed[kc], threshold)
	}

	return &Progress{
		StudentID:    studentID,
		Vector:       vec,
		Stars:        stars,
		States:       states,
		TotalStars:   total,
		Title:        ladder.Title(total),
		Interactions: lastOrdinal,
	}
}

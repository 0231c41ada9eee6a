package mastery

// MasteryState is a KC's position in the mastery lifecycle, derived from its
// probability and whether it has been observed.
type MasteryState string

const (
	StateNew      MasteryState = "new"
	StateLearning MasteryState = "learning"
	StateMastered MasteryState = "mastered"
)

// Classify derives the lifecycle state of one KC.
func Classify(p float64, observed bool, threshold float64) MasteryState {
	switch {
	case !observed:
		return StateNew
	case p >= threshold:
		return StateMastered
	default:
		return StateLearning
	}
}

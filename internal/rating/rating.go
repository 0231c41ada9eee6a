// Package rating turns mastery probabilities into the discrete ratings shown
// to learners: per-topic stars, a star total, and a title.
package rating

// Bands is an ordered list of inclusive upper bounds. A probability falls in
// the first band whose bound it does not exceed; values above the last bound
// fall in the final band, so there are len(b)+1 bands.
type Bands []float64

// StarBands maps probability to 0-5 stars.
var StarBands = Bands{0.2, 0.4, 0.6, 0.8, 0.9}

// MaxStars is the highest star count a single topic can earn.
const MaxStars = 5

// Index returns the band p falls into. Boundary values belong to the lower band.
func (b Bands) Index(p float64) int {
	for i, upper := range b {
		if p <= upper {
			return i
		}
	}
	return len(b)
}

// Valid reports whether the bounds are strictly increasing and within [0, 1].
func (b Bands) Valid() bool {
	prev := -1.0
	for _, upper := range b {
		if upper <= prev || upper < 0 || upper > 1 {
			return false
		}
		prev = upper
	}
	return true
}

// Stars returns the star count for a single probability.
func Stars(p float64) int {
	return StarBands.Index(p)
}

// TopicStars bands every entry of a mastery vector.
func TopicStars(vector map[string]float64) map[string]int {
	stars := make(map[string]int, len(vector))
	for kc, p := range vector {
		stars[kc] = Stars(p)
	}
	return stars
}

// Total sums per-topic stars.
func Total(stars map[string]int) int {
	total := 0
	for _, s := range stars {
		total += s
	}
	return total
}

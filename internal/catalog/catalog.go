// Package catalog holds the fixed question bank for a run: validated
// question descriptors, the knowledge-component set derived from them, and
// the resolution of an adaptation target to a concrete question.
package catalog

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
)

// Catalog is an immutable, indexed question bank. It is safe for concurrent use.
type Catalog struct {
	questions []Question
	byID      map[string]int
	byKC      map[string][]int
	byTarget  map[targetKey][]int
	kcs       []string
}

type targetKey struct {
	kc         string
	difficulty int
}

// Resolution is the question chosen for a target.
type Resolution struct {
	Question Question
	// Relaxed is true when no question matched the requested difficulty and
	// the choice was made among all questions for the KC.
	Relaxed bool
}

// Rand is the source of randomness for Resolve. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// New validates questions and builds the catalog indices.
func New(questions []Question) (*Catalog, error) {
	if err := validateQuestions(questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{
		questions: slices.Clone(questions),
		byID:      make(map[string]int, len(questions)),
		byKC:      make(map[string][]int),
		byTarget:  make(map[targetKey][]int),
	}
	for i, q := range c.questions {
		c.byID[q.ID] = i
		if _, ok := c.byKC[q.KC]; !ok {
			c.kcs = append(c.kcs, q.KC)
		}
		c.byKC[q.KC] = append(c.byKC[q.KC], i)
		key := targetKey{kc: q.KC, difficulty: q.Difficulty}
		c.byTarget[key] = append(c.byTarget[key], i)
	}
	sort.Strings(c.kcs)
	return c, nil
}

// KCs returns the distinct knowledge components, sorted. This is the KC set
// the mastery model tracks and the tie-break order for selection.
func (c *Catalog) KCs() []string {
	return slices.Clone(c.kcs)
}

// HasKC reports whether kc appears in the catalog.
func (c *Catalog) HasKC(kc string) bool {
	_, ok := c.byKC[kc]
	return ok
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Questions returns all questions in file order.
func (c *Catalog) Questions() []Question {
	return slices.Clone(c.questions)
}

// Lookup returns the question with the given id, or ErrUnknownItem.
func (c *Catalog) Lookup(id string) (Question, error) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}
	return c.questions[i], nil
}

// ByKC returns the questions for kc in file order.
func (c *Catalog) ByKC(kc string) []Question {
	return c.collect(c.byKC[kc])
}

// Difficulties returns the distinct difficulty levels present for kc, ascending.
func (c *Catalog) Difficulties(kc string) []int {
	var levels []int
	for _, i := range c.byKC[kc] {
		d := c.questions[i].Difficulty
		if !slices.Contains(levels, d) {
			levels = append(levels, d)
		}
	}
	slices.Sort(levels)
	return levels
}

// Resolve picks a question for {kc, difficulty}:
//  1. uniformly among exact matches;
//  2. otherwise uniformly among all questions for kc (Relaxed);
//  3. otherwise a *NoQuestionError.
//
// A nil rng uses the process-wide source.
func (c *Catalog) Resolve(kc string, difficulty int, rng Rand) (Resolution, error) {
	if rng == nil {
		rng = globalRand{}
	}
	if idx := c.byTarget[targetKey{kc: kc, difficulty: difficulty}]; len(idx) > 0 {
		return Resolution{Question: c.questions[idx[rng.IntN(len(idx))]]}, nil
	}
	if idx := c.byKC[kc]; len(idx) > 0 {
		return Resolution{Question: c.questions[idx[rng.IntN(len(idx))]], Relaxed: true}, nil
	}
	return Resolution{}, &NoQuestionError{KC: kc, Difficulty: difficulty}
}

func (c *Catalog) collect(idx []int) []Question {
	out := make([]Question, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.questions[i])
	}
	return out
}

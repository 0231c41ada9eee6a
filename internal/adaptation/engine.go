// Package adaptation decides what a student should practice next from a
// snapshot of their mastery vector.
package adaptation

import (
	"fmt"
	"math"

	"github.com/abhisek/fractiz/internal/rating"
)

// Config parameterizes target selection.
type Config struct {
	// MasteryThreshold is the probability at or above which a KC needs no
	// more practice.
	MasteryThreshold float64 `mapstructure:"mastery_threshold"`
	// DifficultyBands map probability to a difficulty tier, in the same
	// inclusive-upper-bound form as the star bands.
	DifficultyBands rating.Bands `mapstructure:"difficulty_bands"`
	// MinDifficulty is the tier served for the lowest band.
	MinDifficulty int `mapstructure:"min_difficulty"`
}

// DefaultConfig returns threshold 0.95 and bands {0.4, 0.7} starting at
// difficulty 1, giving tiers 1..3.
func DefaultConfig() Config {
	return Config{
		MasteryThreshold: 0.95,
		DifficultyBands:  rating.Bands{0.4, 0.7},
		MinDifficulty:    1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if math.IsNaN(c.MasteryThreshold) || c.MasteryThreshold <= 0 || c.MasteryThreshold > 1 {
		return fmt.Errorf("adaptation.mastery_threshold must be in (0,1], got %v", c.MasteryThreshold)
	}
	if !c.DifficultyBands.Valid() {
		return fmt.Errorf("adaptation.difficulty_bands must be strictly increasing values in [0,1], got %v", c.DifficultyBands)
	}
	if c.MinDifficulty < 1 {
		return fmt.Errorf("adaptation.min_difficulty must be >= 1, got %d", c.MinDifficulty)
	}
	return nil
}

// MaxDifficulty is the tier served for the highest band.
func (c Config) MaxDifficulty() int {
	return c.MinDifficulty + len(c.DifficultyBands)
}

// Target is the KC and difficulty tier to serve next.
type Target struct {
	KC         string `json:"kc"`
	Difficulty int    `json:"difficulty"`
}

// Selection is the outcome of SelectTarget: either a Target or Complete.
// Completion is a terminal learner-success state, not an error.
type Selection struct {
	Target      Target  `json:"target"`
	Complete    bool    `json:"complete"`
	Probability float64 `json:"probability"` // selected KC's mastery at selection time

}

// Engine selects practice targets. It is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// New creates an Engine after validating cfg.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// SelectTarget picks the KC with the lowest probability, ties broken by
// position in kcs, and maps its probability to a difficulty tier. If every KC
// is at or above the mastery threshold it returns a completed Selection. KCs
// missing from vector are treated as probability 0. The vector is only read.
func (e *Engine) SelectTarget(vector map[string]float64, kcs []string) Selection {
	best := -1
	bestP := math.Inf(1)
	for i, kc := range kcs {
		p := vector[kc]
		if p >= e.cfg.MasteryThreshold {
			continue
		}
		if p < bestP {
			best, bestP = i, p
		}
	}
	if best < 0 {
		return Selection{Complete: true}
	}
	return Selection{
		Target:      Target{KC: kcs[best], Difficulty: e.Difficulty(bestP)},
		Probability: bestP,
	}
}

// Difficulty maps a probability to a difficulty tier: lower mastery, lower tier.
func (e *Engine) Difficulty(p float64) int {
	return e.cfg.MinDifficulty + e.cfg.DifficultyBands.Index(p)
}

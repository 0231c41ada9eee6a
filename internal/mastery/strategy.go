package mastery

import (
	"fmt"
	"math"
)

// Strategy names accepted by NewStrategy.
const (
	StrategyBayesian  = "bayesian"
	StrategyHeuristic = "heuristic"
)

// Strategy is a mastery update rule. A model uses exactly one strategy for its
// lifetime; the two variants are never blended.
type Strategy interface {
	// Name identifies the strategy in logs, metrics, and exports.
	Name() string
	// Prior is the probability of a KC that has never been observed.
	Prior() float64
	// Next returns the probability after observing one answer.
	Next(p float64, correct bool) float64
}

// BayesianParams are the four Bayesian Knowledge Tracing parameters.
type BayesianParams struct {
	Prior float64 `mapstructure:"prior"` // L0
	Learn float64 `mapstructure:"learn"` // T
	Slip  float64 `mapstructure:"slip"`  // S
	Guess float64 `mapstructure:"guess"` // G
}

// DefaultBayesianParams returns L0=0.1, T=0.2, S=0.1, G=0.2.
func DefaultBayesianParams() BayesianParams {
	return BayesianParams{Prior: 0.1, Learn: 0.2, Slip: 0.1, Guess: 0.2}
}

// HeuristicParams configure the fixed-rate update.
type HeuristicParams struct {
	Prior        float64 `mapstructure:"prior"`
	LearningRate float64 `mapstructure:"learning_rate"`
	PenaltyRate  float64 `mapstructure:"penalty_rate"`
}

// DefaultHeuristicParams returns prior 0.3, learning rate 0.25, penalty rate 0.15.
func DefaultHeuristicParams() HeuristicParams {
	return HeuristicParams{Prior: 0.3, LearningRate: 0.25, PenaltyRate: 0.15}
}

// Config selects and parameterizes the update strategy.
type Config struct {
	Strategy  string          `mapstructure:"strategy"`
	Bayesian  BayesianParams  `mapstructure:"bayesian"`
	Heuristic HeuristicParams `mapstructure:"heuristic"`
}

// DefaultConfig uses the Bayesian strategy with default parameters.
func DefaultConfig() Config {
	return Config{
		Strategy:  StrategyBayesian,
		Bayesian:  DefaultBayesianParams(),
		Heuristic: DefaultHeuristicParams(),
	}
}

// Validate checks that the selected strategy exists and its parameters are
// probabilities.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyBayesian:
		return checkUnit(map[string]float64{
			"bayesian.prior": c.Bayesian.Prior,
			"bayesian.learn": c.Bayesian.Learn,
			"bayesian.slip":  c.Bayesian.Slip,
			"bayesian.guess": c.Bayesian.Guess,
		})
	case StrategyHeuristic:
		return checkUnit(map[string]float64{
			"heuristic.prior":         c.Heuristic.Prior,
			"heuristic.learning_rate": c.Heuristic.LearningRate,
			"heuristic.penalty_rate":  c.Heuristic.PenaltyRate,
		})
	default:
		return fmt.Errorf("unknown mastery strategy %q (want %q or %q)", c.Strategy, StrategyBayesian, StrategyHeuristic)
	}
}

func checkUnit(params map[string]float64) error {
	for name, v := range params {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("mastery.%s must be in [0,1], got %v", name, v)
		}
	}
	return nil
}

// NewStrategy builds the strategy named by cfg.Strategy.
func NewStrategy(cfg Config) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Strategy == StrategyHeuristic {
		return Heuristic{Params: cfg.Heuristic}, nil
	}
	return Bayesian{Params: cfg.Bayesian}, nil
}

// Bayesian is the canonical BKT update: a posterior on the observation
// followed by the learning transition.
type Bayesian struct {
	Params BayesianParams
}

func (b Bayesian) Name() string { return StrategyBayesian }

func (b Bayesian) Prior() float64 { return b.Params.Prior }

func (b Bayesian) Next(p float64, correct bool) float64 {
	s, g, t := b.Params.Slip, b.Params.Guess, b.Params.Learn

	pObsMastered, pObsUnmastered := s, 1-g
	if correct {
		pObsMastered, pObsUnmastered = 1-s, g
	}

	posterior := p
	if pObs := p*pObsMastered + (1-p)*pObsUnmastered; pObs != 0 {
		posterior = p * pObsMastered / pObs
	}
	return clamp(posterior+(1-posterior)*t, 0, 1)
}

// Heuristic bounds for the fixed-rate update. Values never fully saturate.
const (
	HeuristicFloor   = 0.05
	HeuristicCeiling = 0.95
)

// Heuristic moves p a fixed fraction toward 1 on a correct answer and toward 0
// on an incorrect one.
type Heuristic struct {
	Params HeuristicParams
}

func (h Heuristic) Name() string { return StrategyHeuristic }

func (h Heuristic) Prior() float64 { return h.Params.Prior }

func (h Heuristic) Next(p float64, correct bool) float64 {
	var next float64
	if correct {
		next = p + (1-p)*h.Params.LearningRate
	} else {
		next = p - p*h.Params.PenaltyRate
	}
	return clamp(next, HeuristicFloor, HeuristicCeiling)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(hi, v))
}

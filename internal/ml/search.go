package ml

import (
	"math"
	"math/rand"
)

// Trial is one sampled configuration and its validation error
type Trial struct {
	Number int
	Params BoostingParams
	RMSE   float64
}

// SearchSpace bounds the sampled hyperparameters
type SearchSpace struct {
	RoundsMin, RoundsMax, RoundsStep int
	LearningRateMin, LearningRateMax float64
	DepthMin, DepthMax               int
	SubsampleMin, SubsampleMax       float64
	ColsampleMin, ColsampleMax       float64
	GammaMin, GammaMax               float64
}

// DefaultSpace is the regressor tuning range
var DefaultSpace = SearchSpace{
	RoundsMin: 100, RoundsMax: 1000, RoundsStep: 100,
	LearningRateMin: 0.01, LearningRateMax: 0.3,
	DepthMin: 3, DepthMax: 10,
	SubsampleMin: 0.6, SubsampleMax: 1,
	ColsampleMin: 0.6, ColsampleMax: 1,
	GammaMin: 0, GammaMax: 5,
}

// Sample draws one configuration on top of base
func (s SearchSpace) Sample(rng *rand.Rand, base BoostingParams) BoostingParams {
	p := base
	steps := (s.RoundsMax-s.RoundsMin)/s.RoundsStep + 1
	p.Rounds = s.RoundsMin + rng.Intn(steps)*s.RoundsStep
	p.LearningRate = math.Exp(uniform(rng, math.Log(s.LearningRateMin), math.Log(s.LearningRateMax)))
	p.MaxDepth = s.DepthMin + rng.Intn(s.DepthMax-s.DepthMin+1)
	p.Subsample = uniform(rng, s.SubsampleMin, s.SubsampleMax)
	p.ColsampleByTree = uniform(rng, s.ColsampleMin, s.ColsampleMax)
	p.Gamma = uniform(rng, s.GammaMin, s.GammaMax)
	return p
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// RandomSearch fits one regressor per sampled trial on train, scores it on
// eval and returns the trial with the lowest RMSE (earliest wins ties).
// Trials whose fit fails are recorded with an infinite RMSE.
type RandomSearch struct {
	Space  SearchSpace
	Trials int
	Seed   int64
	Base   BoostingParams
}

// NewRandomSearch creates the default 25-trial search
func NewRandomSearch() *RandomSearch {
	base := RegressorDefaults
	base.EarlyStoppingRounds = 50
	return &RandomSearch{Space: DefaultSpace, Trials: 25, Seed: 42, Base: base}
}

// Run evaluates every trial and returns the best plus the full history
func (s *RandomSearch) Run(train, eval Dataset) (Trial, []Trial, error) {
	if err := train.Validate(); err != nil {
		return Trial{}, nil, err
	}
	if err := eval.Validate(); err != nil {
		return Trial{}, nil, err
	}

	rng := rand.New(rand.NewSource(s.Seed))
	history := make([]Trial, 0, s.Trials)
	best := Trial{Number: -1, RMSE: math.Inf(1)}

	for i := 0; i < s.Trials; i++ {
		params := s.Space.Sample(rng, s.Base)
		trial := Trial{Number: i, Params: params, RMSE: math.Inf(1)}

		model := NewRegressor(params)
		if err := model.FitEval(train, eval); err == nil {
			pred := make([]float64, eval.Len())
			for j, x := range eval.X {
				pred[j] = model.Predict(x)
			}
			trial.RMSE = RMSE(pred, eval.Y)
		}

		history = append(history, trial)
		if trial.RMSE < best.RMSE {
			best = trial
		}
	}

	if best.Number < 0 {
		return Trial{}, history, ErrNoTrial
	}
	return best, history, nil
}

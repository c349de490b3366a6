package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// Objective is the boosting loss
type Objective int

const (
	// SquaredError fits real-valued targets
	SquaredError Objective = iota
	// Logistic fits 0/1 labels and predicts probabilities
	Logistic
)

// BoostingParams are the knobs shared by the boosted models
type BoostingParams struct {
	Rounds              int
	LearningRate        float64
	MaxDepth            int
	MaxLeaves           int
	LeafWise            bool
	Lambda              float64
	Gamma               float64
	MinChildWeight      float64
	MinChildSamples     int
	Subsample           float64
	ColsampleByTree     float64
	EarlyStoppingRounds int
	MaxBins             int
	Seed                int64
}

// XGBoostDefaults are the depth-wise defaults used for classification
var XGBoostDefaults = BoostingParams{
	Rounds:          100,
	LearningRate:    0.3,
	MaxDepth:        6,
	Lambda:          1,
	MinChildWeight:  1,
	Subsample:       1,
	ColsampleByTree: 1,
	Seed:            42,
}

// LightGBMDefaults are the leaf-wise defaults used for classification
var LightGBMDefaults = BoostingParams{
	Rounds:          100,
	LearningRate:    0.1,
	MaxLeaves:       31,
	LeafWise:        true,
	MinChildWeight:  1e-3,
	MinChildSamples: 20,
	Subsample:       1,
	ColsampleByTree: 1,
	Seed:            42,
}

// RegressorDefaults back the baseline price model
var RegressorDefaults = BoostingParams{
	Rounds:          100,
	LearningRate:    0.1,
	MaxDepth:        6,
	Lambda:          1,
	MinChildWeight:  1,
	Subsample:       1,
	ColsampleByTree: 1,
	Seed:            42,
}

// GradientBoosting is an additive ensemble of regression trees fit to the
// loss gradient. LeafWise selects best-first growth bounded by MaxLeaves.
type GradientBoosting struct {
	Params    BoostingParams
	Objective Objective

	features      []string
	base          float64
	trees         []*Tree
	bestIteration int
	evalHistory   []float64
}

// NewRegressor creates a squared-error booster
func NewRegressor(p BoostingParams) *GradientBoosting {
	return &GradientBoosting{Params: p, Objective: SquaredError}
}

// NewClassifier creates a logistic booster
func NewClassifier(p BoostingParams) *GradientBoosting {
	return &GradientBoosting{Params: p, Objective: Logistic}
}

// Fit trains on the full dataset
func (g *GradientBoosting) Fit(d Dataset) error {
	return g.FitEval(d, Dataset{})
}

// FitEval trains on train and, when eval has rows and EarlyStoppingRounds is
// set, stops once eval RMSE has not improved for that many rounds. The
// ensemble is truncated to the best round.
func (g *GradientBoosting) FitEval(train, eval Dataset) error {
	if err := train.Validate(); err != nil {
		return err
	}
	if eval.Len() > 0 {
		if err := eval.Validate(); err != nil {
			return fmt.Errorf("eval set: %w", err)
		}
	}
	if g.Objective == Logistic {
		for i, y := range train.Y {
			if y != 0 && y != 1 {
				return fmt.Errorf("%w: label %v at row %d is not 0 or 1", ErrInvalidData, y, i)
			}
		}
	}

	p := g.Params
	if p.Rounds <= 0 {
		p.Rounds = 100
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = 1
	}
	if p.ColsampleByTree <= 0 || p.ColsampleByTree > 1 {
		p.ColsampleByTree = 1
	}

	nFeatures := len(train.Features)
	rng := rand.New(rand.NewSource(p.Seed))
	m := newMatrix(train.X, nFeatures, p.MaxBins)

	g.features = train.Features
	g.base = g.baseScore(train.Y)
	g.trees = g.trees[:0]
	g.evalHistory = nil
	g.bestIteration = -1

	n := train.Len()
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = g.base
	}
	var evalPred []float64
	stopping := eval.Len() > 0 && p.EarlyStoppingRounds > 0
	if eval.Len() > 0 {
		evalPred = make([]float64, eval.Len())
		for i := range evalPred {
			evalPred[i] = g.base
		}
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	growthMode := depthWise
	if p.LeafWise {
		growthMode = leafWise
	}
	cfg := treeConfig{
		growth:          growthMode,
		maxDepth:        p.MaxDepth,
		maxLeaves:       p.MaxLeaves,
		lambda:          p.Lambda,
		gamma:           p.Gamma,
		minChildWeight:  p.MinChildWeight,
		minChildSamples: p.MinChildSamples,
		learningRate:    p.LearningRate,
	}

	bestScore := math.Inf(1)
	for round := 0; round < p.Rounds; round++ {
		g.gradients(train.Y, pred, grad, hess)

		b := &builder{
			m:        m,
			grad:     grad,
			hess:     hess,
			cfg:      cfg,
			features: sampleFeatures(rng, nFeatures, p.ColsampleByTree),
			rng:      rng,
		}
		tree := b.build(sampleRows(rng, n, p.Subsample))
		g.trees = append(g.trees, tree)

		for i, x := range train.X {
			pred[i] += tree.Predict(x)
		}
		if eval.Len() == 0 {
			continue
		}

		for i, x := range eval.X {
			evalPred[i] += tree.Predict(x)
		}
		score := RMSE(g.output(evalPred), eval.Y)
		g.evalHistory = append(g.evalHistory, score)
		if score < bestScore {
			bestScore = score
			g.bestIteration = round
		} else if stopping && round-g.bestIteration >= p.EarlyStoppingRounds {
			break
		}
	}

	if stopping && g.bestIteration >= 0 {
		g.trees = g.trees[:g.bestIteration+1]
	}
	return nil
}

func (g *GradientBoosting) baseScore(y []float64) float64 {
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	if g.Objective == Logistic {
		p := math.Min(math.Max(mean, 1e-6), 1-1e-6)
		return math.Log(p / (1 - p))
	}
	return mean
}

func (g *GradientBoosting) gradients(y, pred, grad, hess []float64) {
	for i := range y {
		if g.Objective == Logistic {
			p := sigmoid(pred[i])
			grad[i] = p - y[i]
			hess[i] = math.Max(p*(1-p), 1e-16)
		} else {
			grad[i] = pred[i] - y[i]
			hess[i] = 1
		}
	}
}

// output maps raw margins to the prediction scale
func (g *GradientBoosting) output(raw []float64) []float64 {
	if g.Objective != Logistic {
		return raw
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = sigmoid(v)
	}
	return out
}

// PredictRaw is the margin: base score plus every tree
func (g *GradientBoosting) PredictRaw(x []float64) float64 {
	sum := g.base
	for _, t := range g.trees {
		sum += t.Predict(x)
	}
	return sum
}

// Predict returns the target estimate, or the positive-class probability
// for a logistic model
func (g *GradientBoosting) Predict(x []float64) float64 {
	raw := g.PredictRaw(x)
	if g.Objective == Logistic {
		return sigmoid(raw)
	}
	return raw
}

// PredictClass thresholds the probability at 0.5
func (g *GradientBoosting) PredictClass(x []float64) int {
	if g.Predict(x) > 0.5 {
		return 1
	}
	return 0
}

// BaseScore is the initial margin
func (g *GradientBoosting) BaseScore() float64 {
	return g.base
}

// Trees exposes the fitted ensemble
func (g *GradientBoosting) Trees() []*Tree {
	return g.trees
}

// Features are the column names seen at fit time
func (g *GradientBoosting) Features() []string {
	return g.features
}

// BestIteration is the zero-based round with the lowest eval RMSE, or -1
func (g *GradientBoosting) BestIteration() int {
	return g.bestIteration
}

// EvalHistory is the eval RMSE after every round
func (g *GradientBoosting) EvalHistory() []float64 {
	return g.evalHistory
}

func sampleRows(rng *rand.Rand, n int, frac float64) []int {
	rows := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if frac >= 1 || rng.Float64() < frac {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, rng.Intn(n))
	}
	return rows
}

func sampleFeatures(rng *rand.Rand, n int, frac float64) []int {
	k := n
	if frac < 1 {
		k = max(1, int(frac*float64(n)))
	}
	if k == n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return rng.Perm(n)[:k]
}

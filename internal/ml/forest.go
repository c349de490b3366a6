package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomForest is a bagged ensemble of unpruned CART classifiers. Each tree
// sees a bootstrap sample and considers sqrt(features) columns per split.
type RandomForest struct {
	Trees   int
	Seed    int64
	MaxBins int

	trees []*Tree
}

// NewRandomForest creates a 100-tree forest
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{Trees: 100, Seed: seed}
}

// Fit grows the forest on 0/1 labels
func (f *RandomForest) Fit(d Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	for i, y := range d.Y {
		if y != 0 && y != 1 {
			return fmt.Errorf("%w: label %v at row %d is not 0 or 1", ErrInvalidData, y, i)
		}
	}

	n := d.Len()
	nFeatures := len(d.Features)
	rng := rand.New(rand.NewSource(f.Seed))
	m := newMatrix(d.X, nFeatures, f.MaxBins)

	// Squared loss on 0/1 labels with unit hessian: leaves hold the positive
	// fraction and split gain equals the Gini decrease scaled by node size.
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i, y := range d.Y {
		grad[i] = -y
		hess[i] = 1
	}

	all := make([]int, nFeatures)
	for i := range all {
		all[i] = i
	}
	cfg := treeConfig{
		growth:          depthWise,
		minChildSamples: 1,
		learningRate:    1,
		featuresPerNode: max(1, int(math.Sqrt(float64(nFeatures)))),
	}

	trees := f.Trees
	if trees <= 0 {
		trees = 100
	}
	f.trees = make([]*Tree, 0, trees)
	for t := 0; t < trees; t++ {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = rng.Intn(n)
		}
		b := &builder{m: m, grad: grad, hess: hess, cfg: cfg, features: all, rng: rng}
		f.trees = append(f.trees, b.build(rows))
	}
	return nil
}

// PredictProba is the mean positive fraction across trees
func (f *RandomForest) PredictProba(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.trees))
}

// PredictClass is 1 when the positive vote share exceeds one half
func (f *RandomForest) PredictClass(x []float64) int {
	if f.PredictProba(x) > 0.5 {
		return 1
	}
	return 0
}

// Package ml implements the tree ensembles behind the signal and price
// pipelines: histogram-binned CART trees, gradient boosting (depth-wise and
// leaf-wise), a bagged random forest, seeded random search and TreeSHAP.
package ml

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyDataset is returned when fitting on zero rows
	ErrEmptyDataset = errors.New("ml: empty dataset")
	// ErrInvalidData is returned for ragged rows or non-finite values
	ErrInvalidData = errors.New("ml: invalid data")
	// ErrNoTrial is returned when no search trial produced a finite score
	ErrNoTrial = errors.New("ml: no successful trial")
)

// Dataset is a dense feature matrix with one target per row
type Dataset struct {
	Features []string
	X        [][]float64
	Y        []float64
}

// Len is the number of rows
func (d Dataset) Len() int {
	return len(d.X)
}

// Validate checks shapes and rejects NaN or Inf
func (d Dataset) Validate() error {
	if len(d.X) == 0 {
		return ErrEmptyDataset
	}
	if len(d.Y) != len(d.X) {
		return fmt.Errorf("%w: %d rows but %d targets", ErrInvalidData, len(d.X), len(d.Y))
	}
	for i, row := range d.X {
		if len(row) != len(d.Features) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidData, i, len(row), len(d.Features))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s is not finite at row %d", ErrInvalidData, d.Features[j], i)
			}
		}
		if math.IsNaN(d.Y[i]) || math.IsInf(d.Y[i], 0) {
			return fmt.Errorf("%w: target is not finite at row %d", ErrInvalidData, i)
		}
	}
	return nil
}

// Split cuts the rows chronologically; the test part is the last
// ceil((1-trainFrac)*n) rows. No shuffling is applied.
func (d Dataset) Split(trainFrac float64) (train, test Dataset) {
	nTest := int(math.Ceil((1-trainFrac)*float64(d.Len()) - 1e-9))
	nTest = min(max(nTest, 0), d.Len())
	n := d.Len() - nTest
	train = Dataset{Features: d.Features, X: d.X[:n], Y: d.Y[:n]}
	test = Dataset{Features: d.Features, X: d.X[n:], Y: d.Y[n:]}
	return train, test
}

// RMSE is the root mean squared error of predictions against targets
func RMSE(pred, target []float64) float64 {
	if len(pred) == 0 {
		return math.NaN()
	}
	var sum float64
	for i := range pred {
		d := pred[i] - target[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(pred)))
}

// Regressor predicts a real-valued target
type Regressor interface {
	Fit(d Dataset) error
	Predict(x []float64) float64
}

// Classifier predicts a 0/1 label
type Classifier interface {
	Fit(d Dataset) error
	PredictClass(x []float64) int
}

var (
	_ Regressor  = (*GradientBoosting)(nil)
	_ Classifier = (*GradientBoosting)(nil)
	_ Classifier = (*RandomForest)(nil)
)

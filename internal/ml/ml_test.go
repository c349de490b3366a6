package ml

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func syntheticRegression(n int, seed int64) Dataset {
	rng := rand.New(rand.NewSource(seed))
	d := Dataset{Features: []string{"a", "b", "c", "noise"}}
	for i := 0; i < n; i++ {
		a, b, c := rng.Float64()*10, rng.Float64()*10, float64(rng.Intn(3))
		noise := rng.NormFloat64()
		d.X = append(d.X, []float64{a, b, c, noise})
		d.Y = append(d.Y, 3*a-2*b+5*c+0.1*noise)
	}
	return d
}

func syntheticClassification(n int, seed int64) Dataset {
	rng := rand.New(rand.NewSource(seed))
	d := Dataset{Features: []string{"x", "y", "z"}}
	for i := 0; i < n; i++ {
		x, y, z := rng.Float64()*2-1, rng.Float64()*2-1, rng.Float64()
		d.X = append(d.X, []float64{x, y, z})
		label := 0.0
		if x+y > 0 {
			label = 1
		}
		d.Y = append(d.Y, label)
	}
	return d
}

func TestComputeCuts(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		maxBins int
		want    int
	}{
		{"constant column", []float64{4, 4, 4}, 128, 0},
		{"few distinct values", []float64{1, 2, 2, 3}, 128, 2},
		{"quantile capped", func() []float64 {
			v := make([]float64, 1000)
			for i := range v {
				v[i] = float64(i)
			}
			return v
		}(), 16, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cuts := computeCuts(tt.values, tt.maxBins)
			if len(cuts) != tt.want {
				t.Errorf("len(computeCuts()) = %d, want %d", len(cuts), tt.want)
			}
			for i := 1; i < len(cuts); i++ {
				if cuts[i] <= cuts[i-1] {
					t.Fatalf("cuts not strictly increasing: %v", cuts)
				}
			}
		})
	}

	cuts := computeCuts([]float64{1, 2, 3}, 128)
	if binOf(cuts, 1) != 0 || binOf(cuts, 2) != 1 || binOf(cuts, 3) != 2 {
		t.Errorf("binOf() does not match cut semantics for %v", cuts)
	}
}

func TestDatasetValidateAndSplit(t *testing.T) {
	if err := (Dataset{}).Validate(); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("Validate() on empty = %v, want ErrEmptyDataset", err)
	}
	bad := Dataset{Features: []string{"a"}, X: [][]float64{{math.NaN()}}, Y: []float64{1}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidData) {
		t.Errorf("Validate() with NaN = %v, want ErrInvalidData", err)
	}

	d := syntheticRegression(10, 1)
	train, test := d.Split(0.8)
	if train.Len() != 8 || test.Len() != 2 {
		t.Fatalf("Split(0.8) = %d/%d, want 8/2", train.Len(), test.Len())
	}
	if &train.X[0][0] != &d.X[0][0] || &test.X[0][0] != &d.X[8][0] {
		t.Error("Split() must keep chronological order")
	}
}

func TestRegressorLearns(t *testing.T) {
	d := syntheticRegression(400, 7)
	train, test := d.Split(0.8)

	model := NewRegressor(RegressorDefaults)
	if err := model.Fit(train); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	pred := make([]float64, test.Len())
	baseline := make([]float64, test.Len())
	for i, x := range test.X {
		pred[i] = model.Predict(x)
		baseline[i] = model.BaseScore()
	}
	if got, naive := RMSE(pred, test.Y), RMSE(baseline, test.Y); got > naive/2 {
		t.Errorf("RMSE = %v, want well below the mean predictor %v", got, naive)
	}

	for _, tree := range model.Trees() {
		if tree.Depth() > 6 {
			t.Fatalf("tree depth %d exceeds max depth 6", tree.Depth())
		}
	}
}

func TestFitIsDeterministic(t *testing.T) {
	d := syntheticRegression(200, 3)
	p := RegressorDefaults
	p.Subsample = 0.7
	p.ColsampleByTree = 0.7

	a, b := NewRegressor(p), NewRegressor(p)
	if err := a.Fit(d); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(d); err != nil {
		t.Fatal(err)
	}
	for _, x := range d.X[:20] {
		if a.Predict(x) != b.Predict(x) {
			t.Fatal("same seed produced different models")
		}
	}
}

func TestEarlyStoppingTruncates(t *testing.T) {
	d := syntheticRegression(300, 11)
	train, eval := d.Split(0.8)

	p := RegressorDefaults
	p.Rounds = 400
	p.LearningRate = 0.3
	p.EarlyStoppingRounds = 10
	model := NewRegressor(p)
	if err := model.FitEval(train, eval); err != nil {
		t.Fatalf("FitEval() error = %v", err)
	}

	best := model.BestIteration()
	if best < 0 {
		t.Fatal("BestIteration() = -1 with an eval set")
	}
	if len(model.Trees()) != best+1 {
		t.Errorf("len(Trees()) = %d, want best iteration + 1 = %d", len(model.Trees()), best+1)
	}
	history := model.EvalHistory()
	for i, v := range history {
		if v < history[best] {
			t.Errorf("round %d RMSE %v beats best round %d RMSE %v", i, v, best, history[best])
		}
	}
}

func TestLeafwiseRespectsLeafBudget(t *testing.T) {
	d := syntheticClassification(500, 5)
	p := LightGBMDefaults
	p.MaxLeaves = 8
	model := NewClassifier(p)
	if err := model.Fit(d); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	for _, tree := range model.Trees() {
		if tree.Leaves() > 8 {
			t.Fatalf("tree has %d leaves, want <= 8", tree.Leaves())
		}
	}
}

func TestClassifiers(t *testing.T) {
	d := syntheticClassification(600, 9)
	train, test := d.Split(0.75)

	tests := []struct {
		name  string
		model interface {
			Fit(Dataset) error
			PredictClass([]float64) int
		}
	}{
		{"xgboost", NewClassifier(XGBoostDefaults)},
		{"lightgbm", NewClassifier(LightGBMDefaults)},
		{"random forest", NewRandomForest(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.model.Fit(train); err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			correct := 0
			for i, x := range test.X {
				if float64(tt.model.PredictClass(x)) == test.Y[i] {
					correct++
				}
			}
			if acc := float64(correct) / float64(test.Len()); acc < 0.85 {
				t.Errorf("accuracy = %.2f, want >= 0.85", acc)
			}
		})
	}
}

func TestClassifierRejectsNonBinaryLabels(t *testing.T) {
	d := Dataset{Features: []string{"x"}, X: [][]float64{{1}, {2}}, Y: []float64{0, 2}}
	if err := NewClassifier(XGBoostDefaults).Fit(d); !errors.Is(err, ErrInvalidData) {
		t.Errorf("Fit() error = %v, want ErrInvalidData", err)
	}
	if err := NewRandomForest(42).Fit(d); !errors.Is(err, ErrInvalidData) {
		t.Errorf("RandomForest.Fit() error = %v, want ErrInvalidData", err)
	}
}

func TestRandomSearch(t *testing.T) {
	d := syntheticRegression(200, 13)
	train, eval := d.Split(0.8)

	s := NewRandomSearch()
	s.Trials = 4
	s.Space.RoundsMax = 200

	best, history, err := s.Run(train, eval)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("len(history) = %d, want 4", len(history))
	}
	for _, trial := range history {
		if trial.RMSE < best.RMSE {
			t.Errorf("trial %d RMSE %v beats best %v", trial.Number, trial.RMSE, best.RMSE)
		}
		p := trial.Params
		if p.Rounds < 100 || p.Rounds > 200 || p.Rounds%100 != 0 {
			t.Errorf("Rounds = %d out of range", p.Rounds)
		}
		if p.LearningRate < 0.01 || p.LearningRate > 0.3 {
			t.Errorf("LearningRate = %v out of range", p.LearningRate)
		}
		if p.MaxDepth < 3 || p.MaxDepth > 10 {
			t.Errorf("MaxDepth = %d out of range", p.MaxDepth)
		}
		if p.Gamma < 0 || p.Gamma > 5 {
			t.Errorf("Gamma = %v out of range", p.Gamma)
		}
	}

	again, _, _ := s.Run(train, eval)
	if again.Params != best.Params {
		t.Error("seeded search is not reproducible")
	}
}

// bruteForceSHAP enumerates every feature subset with the same
// cover-weighted conditional expectation TreeSHAP uses
func bruteForceSHAP(t *Tree, x []float64) []float64 {
	m := len(x)
	var expect func(node int, set uint) float64
	expect = func(node int, set uint) float64 {
		n := t.Nodes[node]
		if n.IsLeaf() {
			return n.Value
		}
		if set&(1<<uint(n.Feature)) != 0 {
			if x[n.Feature] < n.Threshold {
				return expect(n.Left, set)
			}
			return expect(n.Right, set)
		}
		l, r := t.Nodes[n.Left], t.Nodes[n.Right]
		return (l.Cover*expect(n.Left, set) + r.Cover*expect(n.Right, set)) / n.Cover
	}

	fact := func(k int) float64 {
		f := 1.0
		for i := 2; i <= k; i++ {
			f *= float64(i)
		}
		return f
	}

	phi := make([]float64, m)
	for i := 0; i < m; i++ {
		for set := uint(0); set < 1<<uint(m); set++ {
			if set&(1<<uint(i)) != 0 {
				continue
			}
			size := 0
			for j := 0; j < m; j++ {
				if set&(1<<uint(j)) != 0 {
					size++
				}
			}
			w := fact(size) * fact(m-size-1) / fact(m)
			phi[i] += w * (expect(0, set|1<<uint(i)) - expect(0, set))
		}
	}
	return phi
}

func TestExplainMatchesSubsetEnumeration(t *testing.T) {
	d := syntheticRegression(300, 17)
	p := RegressorDefaults
	p.Rounds = 20
	p.MaxDepth = 4
	model := NewRegressor(p)
	if err := model.Fit(d); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	x := d.X[len(d.X)-1]
	attr, err := Explain(model, x)
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}

	want := make([]float64, len(x))
	for _, tree := range model.Trees() {
		for i, v := range bruteForceSHAP(tree, x) {
			want[i] += v
		}
	}
	for i := range want {
		if math.Abs(attr.Contributions[i]-want[i]) > 1e-6 {
			t.Errorf("contribution[%s] = %v, want %v", attr.Features[i], attr.Contributions[i], want[i])
		}
	}

	sum := attr.BaseValue
	for _, c := range attr.Contributions {
		sum += c
	}
	if math.Abs(sum-model.Predict(x)) > 1e-6 {
		t.Errorf("base + contributions = %v, want prediction %v", sum, model.Predict(x))
	}
	if math.Abs(attr.Prediction-model.Predict(x)) > 1e-9 {
		t.Errorf("Prediction = %v, want %v", attr.Prediction, model.Predict(x))
	}
}

func TestExplainRejectsClassifier(t *testing.T) {
	model := NewClassifier(XGBoostDefaults)
	if _, err := Explain(model, nil); err == nil {
		t.Error("Explain() on a logistic model should fail")
	}
}

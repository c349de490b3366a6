package ml

import "fmt"

// Attribution splits one prediction into per-feature Shapley contributions.
// BaseValue plus the sum of Contributions equals the model output.
type Attribution struct {
	BaseValue     float64   `json:"base_value"`
	Prediction    float64   `json:"prediction"`
	Features      []string  `json:"features"`
	Values        []float64 `json:"values"`
	Contributions []float64 `json:"contributions"`
}

// Explain computes exact path-dependent TreeSHAP values of x for a
// squared-error booster
func Explain(model *GradientBoosting, x []float64) (*Attribution, error) {
	if model.Objective != SquaredError {
		return nil, fmt.Errorf("ml: explain supports squared-error models only")
	}
	if len(x) != len(model.features) {
		return nil, fmt.Errorf("%w: explain row has %d values, want %d", ErrInvalidData, len(x), len(model.features))
	}

	phi := make([]float64, len(x))
	base := model.base
	for _, t := range model.trees {
		base += t.ExpectedValue()
		treeSHAP(t, x, phi)
	}

	return &Attribution{
		BaseValue:     base,
		Prediction:    model.PredictRaw(x),
		Features:      append([]string(nil), model.features...),
		Values:        append([]float64(nil), x...),
		Contributions: phi,
	}, nil
}

// pathElement tracks one feature on the unique path from the root
type pathElement struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

func treeSHAP(t *Tree, x []float64, phi []float64) {
	shapRecurse(t, x, phi, 0, nil, 1, 1, -1)
}

func shapRecurse(t *Tree, x, phi []float64, node int, parent []pathElement, zero, one float64, feature int) {
	path := make([]pathElement, len(parent), len(parent)+1)
	copy(path, parent)
	path = extendPath(path, zero, one, feature)

	n := t.Nodes[node]
	if n.IsLeaf() {
		for i := 1; i < len(path); i++ {
			w := unwoundPathSum(path, i)
			el := path[i]
			phi[el.feature] += w * (el.one - el.zero) * n.Value
		}
		return
	}

	hot, cold := n.Right, n.Left
	if x[n.Feature] < n.Threshold {
		hot, cold = n.Left, n.Right
	}

	incomingZero, incomingOne := 1.0, 1.0
	for k := range path {
		if path[k].feature == n.Feature {
			incomingZero, incomingOne = path[k].zero, path[k].one
			path = unwindPath(path, k)
			break
		}
	}

	hotZero, coldZero := 0.0, 0.0
	if n.Cover > 0 {
		hotZero = t.Nodes[hot].Cover / n.Cover
		coldZero = t.Nodes[cold].Cover / n.Cover
	}
	shapRecurse(t, x, phi, hot, path, hotZero*incomingZero, incomingOne, n.Feature)
	shapRecurse(t, x, phi, cold, path, coldZero*incomingZero, 0, n.Feature)
}

func extendPath(path []pathElement, zero, one float64, feature int) []pathElement {
	depth := len(path)
	w := 0.0
	if depth == 0 {
		w = 1
	}
	path = append(path, pathElement{feature: feature, zero: zero, one: one, weight: w})
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / float64(depth+1)
		path[i].weight = zero * path[i].weight * float64(depth-i) / float64(depth+1)
	}
	return path
}

// unwindPath removes element k, undoing its extend, and returns a new slice
func unwindPath(path []pathElement, k int) []pathElement {
	depth := len(path) - 1
	one, zero := path[k].one, path[k].zero
	out := make([]pathElement, len(path))
	copy(out, path)

	next := out[depth].weight
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := out[i].weight
			out[i].weight = next * float64(depth+1) / (float64(i+1) * one)
			next = tmp - out[i].weight*zero*float64(depth-i)/float64(depth+1)
		} else if zero != 0 {
			out[i].weight = out[i].weight * float64(depth+1) / (zero * float64(depth-i))
		}
	}
	for i := k; i < depth; i++ {
		out[i].feature = out[i+1].feature
		out[i].zero = out[i+1].zero
		out[i].one = out[i+1].one
	}
	return out[:depth]
}

func unwoundPathSum(path []pathElement, k int) float64 {
	depth := len(path) - 1
	one, zero := path[k].one, path[k].zero
	next := path[depth].weight
	var total float64

	if one != 0 {
		for i := depth - 1; i >= 0; i-- {
			tmp := next / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)
		}
	} else if zero != 0 {
		for i := depth - 1; i >= 0; i-- {
			total += path[i].weight / (zero * float64(depth-i))
		}
	}
	return total * float64(depth+1)
}

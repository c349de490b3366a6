// Package scoring ranks companies by a weighted composite of their ratios
package scoring

import (
	"math"
	"sort"

	"github.com/Alias1177/insighthub/models"
)

// Weight ties a ratio to its weight. Negative weights reward low values.
type Weight struct {
	Metric string
	Weight float64
	Value  func(models.Fundamentals) *float64
}

// Scored is one ranked company
type Scored struct {
	models.Fundamentals
	Score         float64            `json:"score"`
	Contributions map[string]float64 `json:"contributions"`
}

// DefaultWeights favour cheap valuations and high margins
var DefaultWeights = []Weight{
	{Metric: "trailingPE", Weight: -0.2, Value: func(f models.Fundamentals) *float64 { return f.TrailingPE }},
	{Metric: "priceToSales", Weight: -0.1, Value: func(f models.Fundamentals) *float64 { return f.PriceToSales }},
	{Metric: "profitMargins", Weight: 0.4, Value: func(f models.Fundamentals) *float64 { return f.ProfitMargins }},
}

// Score computes the composite score and sorts by it, best first.
// Missing values take the metric's median; a metric nobody reports is skipped.
func Score(rows []models.Fundamentals, weights []Weight) []Scored {
	out := make([]Scored, len(rows))
	for i, r := range rows {
		out[i] = Scored{Fundamentals: r, Contributions: make(map[string]float64, len(weights))}
	}

	for _, w := range weights {
		column, ok := fillMedian(rows, w.Value)
		if !ok {
			continue
		}
		for i, scaled := range minMax(column) {
			var c float64
			if w.Weight < 0 {
				c = (1 - scaled) * math.Abs(w.Weight)
			} else {
				c = scaled * w.Weight
			}
			out[i].Contributions[w.Metric] = c
			out[i].Score += c
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

func fillMedian(rows []models.Fundamentals, value func(models.Fundamentals) *float64) ([]float64, bool) {
	var present []float64
	for _, r := range rows {
		if v := value(r); v != nil && !math.IsNaN(*v) {
			present = append(present, *v)
		}
	}
	if len(present) == 0 {
		return nil, false
	}
	m := median(present)

	column := make([]float64, len(rows))
	for i, r := range rows {
		column[i] = m
		if v := value(r); v != nil && !math.IsNaN(*v) {
			column[i] = *v
		}
	}
	return column, true
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// minMax scales to [0, 1]; a constant column scales to 0
func minMax(values []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(values))
	if hi == lo {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

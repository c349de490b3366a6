package ml

import "sort"

const defaultMaxBins = 128

// matrix is the column-major binned view of a feature matrix.
// A value x falls in bin k when exactly k cuts are <= x, so x < cuts[k]
// holds for every bin <= k.
type matrix struct {
	bins [][]uint8
	cuts [][]float64
	rows int
}

func newMatrix(X [][]float64, nFeatures, maxBins int) *matrix {
	if maxBins <= 1 || maxBins > 256 {
		maxBins = defaultMaxBins
	}
	m := &matrix{
		bins: make([][]uint8, nFeatures),
		cuts: make([][]float64, nFeatures),
		rows: len(X),
	}

	column := make([]float64, len(X))
	for f := 0; f < nFeatures; f++ {
		for i, row := range X {
			column[i] = row[f]
		}
		cuts := computeCuts(column, maxBins)
		m.cuts[f] = cuts

		bins := make([]uint8, len(X))
		for i, v := range column {
			bins[i] = uint8(binOf(cuts, v))
		}
		m.bins[f] = bins
	}
	return m
}

func binOf(cuts []float64, v float64) int {
	return sort.Search(len(cuts), func(i int) bool { return cuts[i] > v })
}

// computeCuts places at most maxBins-1 thresholds at value quantiles,
// halfway between neighbouring distinct values
func computeCuts(values []float64, maxBins int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var unique []float64
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) <= 1 {
		return nil
	}

	if len(unique) <= maxBins {
		cuts := make([]float64, len(unique)-1)
		for i := range cuts {
			cuts[i] = (unique[i] + unique[i+1]) / 2
		}
		return cuts
	}

	var cuts []float64
	for k := 1; k < maxBins; k++ {
		q := sorted[k*len(sorted)/maxBins]
		j := sort.SearchFloat64s(unique, q)
		if j == 0 {
			continue
		}
		cut := (unique[j-1] + unique[j]) / 2
		if len(cuts) == 0 || cut > cuts[len(cuts)-1] {
			cuts = append(cuts, cut)
		}
	}
	return cuts
}

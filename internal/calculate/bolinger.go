package calculate

import "math"

// Bands holds the Bollinger envelope series
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Width is (upper - lower) / middle * 100 at index i
func (b Bands) Width(i int) float64 {
	if b.Middle[i] == 0 {
		return math.NaN()
	}
	return (b.Upper[i] - b.Lower[i]) / b.Middle[i] * 100
}

// Bollinger computes bands around the SMA using the population standard deviation
func Bollinger(closes []float64, period int, stdDev float64) Bands {
	middle := SMA(closes, period)
	b := Bands{
		Upper:  nanSeries(len(closes)),
		Middle: middle,
		Lower:  nanSeries(len(closes)),
	}

	for i := period - 1; i < len(closes) && period > 0; i++ {
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			variance += math.Pow(closes[j]-middle[i], 2)
		}
		sd := math.Sqrt(variance / float64(period))

		b.Upper[i] = middle[i] + sd*stdDev
		b.Lower[i] = middle[i] - sd*stdDev
	}
	return b
}

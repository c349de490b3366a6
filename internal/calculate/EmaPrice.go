package calculate

import "math"

// EMA is the exponential moving average seeded with the SMA of the first
// period defined values. Leading NaNs in the input are skipped.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}

	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < period {
		return out
	}

	// Seed with the simple average of the first window
	seed := start + period - 1
	ema := calculateAverage(values[start : seed+1])
	out[seed] = ema

	multiplier := 2.0 / float64(period+1)
	for i := seed + 1; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

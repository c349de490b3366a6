package calculate

// MACD returns the MACD line EMA(fast) - EMA(slow). Values before the slow
// EMA is seeded are NaN.
func MACD(closes []float64, fastPeriod, slowPeriod int) []float64 {
	fast := EMA(closes, fastPeriod)
	slow := EMA(closes, slowPeriod)

	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = fast[i] - slow[i]
	}
	return out
}

// MACDSignal is the EMA of the MACD line, for charting
func MACDSignal(macd []float64, signalPeriod int) []float64 {
	return EMA(macd, signalPeriod)
}

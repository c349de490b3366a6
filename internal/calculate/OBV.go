package calculate

import "github.com/Alias1177/insighthub/models"

// OBV is the cumulative on-balance volume, starting at 0 on the first bar
func OBV(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		out[i] = out[i-1]
		if candles[i].Close > candles[i-1].Close {
			// Price up, add volume
			out[i] += float64(candles[i].Volume)
		} else if candles[i].Close < candles[i-1].Close {
			// Price down, subtract volume
			out[i] -= float64(candles[i].Volume)
		}
	}
	return out
}

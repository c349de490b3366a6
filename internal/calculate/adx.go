package calculate

import (
	"math"

	"github.com/Alias1177/insighthub/models"
)

// Directional holds the ADX system series
type Directional struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX computes the average directional index with Wilder smoothing.
// +DI and -DI start at index period, ADX at index 2*period-1.
func ADX(candles []models.Candle, period int) Directional {
	n := len(candles)
	d := Directional{
		ADX:     nanSeries(n),
		PlusDI:  nanSeries(n),
		MinusDI: nanSeries(n),
	}
	if period <= 0 || n < period+1 {
		return d
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	trueRange := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}

		tr1 := candles[i].High - candles[i].Low
		tr2 := math.Abs(candles[i].High - candles[i-1].Close)
		tr3 := math.Abs(candles[i].Low - candles[i-1].Close)
		trueRange[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	var smoothedPlusDM, smoothedMinusDM, smoothedTR float64
	for i := 1; i <= period; i++ {
		smoothedPlusDM += plusDM[i]
		smoothedMinusDM += minusDM[i]
		smoothedTR += trueRange[i]
	}

	dx := nanSeries(n)
	p := float64(period)
	for i := period; i < n; i++ {
		if i > period {
			smoothedPlusDM = smoothedPlusDM - smoothedPlusDM/p + plusDM[i]
			smoothedMinusDM = smoothedMinusDM - smoothedMinusDM/p + minusDM[i]
			smoothedTR = smoothedTR - smoothedTR/p + trueRange[i]
		}

		plusDI, minusDI := 0.0, 0.0
		if smoothedTR > 0 {
			plusDI = smoothedPlusDM / smoothedTR * 100
			minusDI = smoothedMinusDM / smoothedTR * 100
		}
		d.PlusDI[i] = plusDI
		d.MinusDI[i] = minusDI

		dx[i] = 0
		if sum := plusDI + minusDI; sum > 0 {
			dx[i] = math.Abs(plusDI-minusDI) / sum * 100
		}
	}

	first := 2*period - 1
	if first >= n {
		return d
	}
	adx := calculateAverage(dx[period : first+1])
	d.ADX[first] = adx
	for i := first + 1; i < n; i++ {
		adx = (adx*(p-1) + dx[i]) / p
		d.ADX[i] = adx
	}
	return d
}

package calculate

import (
	"math"
	"time"

	"github.com/Alias1177/insighthub/models"
)

// Feature column names shared by the training pipelines
const (
	FeatureMACD        = "macd"
	FeatureRSI         = "rsi"
	FeatureADX         = "adx"
	FeatureBBHigh      = "bb_high"
	FeatureBBLow       = "bb_low"
	FeatureBBWidth     = "bb_width"
	FeatureOBV         = "obv"
	FeatureDayOfWeek   = "day_of_week"
	FeatureMonth       = "month"
	FeaturePctChange1  = "pct_change_1"
	FeaturePctChange5  = "pct_change_5"
	FeaturePctChange21 = "pct_change_21"
	FeatureClose       = "Close"
	FeatureVolume      = "Volume"
)

// Params configures the indicator windows
type Params struct {
	MACDFastPeriod int
	MACDSlowPeriod int
	RSIPeriod      int
	ADXPeriod      int
	BBPeriod       int
	BBStdDev       float64
}

// DefaultParams mirrors the conventional settings
var DefaultParams = Params{
	MACDFastPeriod: 12,
	MACDSlowPeriod: 26,
	RSIPeriod:      14,
	ADXPeriod:      14,
	BBPeriod:       20,
	BBStdDev:       2,
}

// Row is one bar with every derived feature defined
type Row struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64

	MACD        float64
	RSI         float64
	ADX         float64
	PlusDI      float64
	MinusDI     float64
	BBHigh      float64
	BBMiddle    float64
	BBLow       float64
	BBWidth     float64
	OBV         float64
	PctChange1  float64
	PctChange5  float64
	PctChange21 float64
	DayOfWeek   int
	Month       int
}

// Feature returns a named column value; ok is false for unknown names
func (r Row) Feature(name string) (float64, bool) {
	switch name {
	case FeatureMACD:
		return r.MACD, true
	case FeatureRSI:
		return r.RSI, true
	case FeatureADX:
		return r.ADX, true
	case FeatureBBHigh:
		return r.BBHigh, true
	case FeatureBBLow:
		return r.BBLow, true
	case FeatureBBWidth:
		return r.BBWidth, true
	case FeatureOBV:
		return r.OBV, true
	case FeatureDayOfWeek:
		return float64(r.DayOfWeek), true
	case FeatureMonth:
		return float64(r.Month), true
	case FeaturePctChange1:
		return r.PctChange1, true
	case FeaturePctChange5:
		return r.PctChange5, true
	case FeaturePctChange21:
		return r.PctChange21, true
	case FeatureClose:
		return r.Close, true
	case FeatureVolume:
		return r.Volume, true
	}
	return 0, false
}

// Closes extracts the close series
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// PctChange is close[t]/close[t-k] - 1
func PctChange(values []float64, k int) []float64 {
	out := nanSeries(len(values))
	for i := k; i < len(values) && k > 0; i++ {
		if values[i-k] != 0 {
			out[i] = values[i]/values[i-k] - 1
		}
	}
	return out
}

// Compute derives the feature table. Bars still in any indicator's warm-up
// are dropped, so the output aligns with candles[len(candles)-len(rows):].
func Compute(candles []models.Candle, p Params) []Row {
	if len(candles) == 0 {
		return nil
	}

	closes := Closes(candles)
	macd := MACD(closes, p.MACDFastPeriod, p.MACDSlowPeriod)
	rsi := RSI(closes, p.RSIPeriod)
	adx := ADX(candles, p.ADXPeriod)
	bands := Bollinger(closes, p.BBPeriod, p.BBStdDev)
	obv := OBV(candles)
	pct1 := PctChange(closes, 1)
	pct5 := PctChange(closes, 5)
	pct21 := PctChange(closes, 21)

	rows := make([]Row, 0, len(candles))
	for i, c := range candles {
		row := Row{
			Timestamp:   c.Timestamp,
			Open:        c.Open,
			High:        c.High,
			Low:         c.Low,
			Close:       c.Close,
			Volume:      float64(c.Volume),
			MACD:        macd[i],
			RSI:         rsi[i],
			ADX:         adx.ADX[i],
			PlusDI:      adx.PlusDI[i],
			MinusDI:     adx.MinusDI[i],
			BBHigh:      bands.Upper[i],
			BBMiddle:    bands.Middle[i],
			BBLow:       bands.Lower[i],
			BBWidth:     bands.Width(i),
			OBV:         obv[i],
			PctChange1:  pct1[i],
			PctChange5:  pct5[i],
			PctChange21: pct21[i],
			DayOfWeek:   (int(c.Timestamp.Weekday()) + 6) % 7,
			Month:       int(c.Timestamp.Month()),
		}
		if row.defined() {
			rows = append(rows, row)
		}
	}
	return rows
}

func (r Row) defined() bool {
	for _, v := range []float64{
		r.MACD, r.RSI, r.ADX, r.PlusDI, r.MinusDI,
		r.BBHigh, r.BBMiddle, r.BBLow, r.BBWidth, r.OBV,
		r.PctChange1, r.PctChange5, r.PctChange21,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

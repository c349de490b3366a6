// Package trend extends a daily close series years ahead with a
// multiplicative model: a log-linear growth trend scaled by weekday and
// month-of-year factors, with an 80% band from the fit residuals.
package trend

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Alias1177/insighthub/models"
)

// MinPoints is the shortest history a trend is fitted on
const MinPoints = 30

// MaxYears bounds the forecast length
const MaxYears = 5

// z-score of an 80% two-sided interval
const bandZ = 1.2816

var (
	ErrTooShort = errors.New("not enough history for a trend forecast")
	ErrBadYears = fmt.Errorf("forecast years must be between 1 and %d", MaxYears)
)

// Point is one forecast day
type Point struct {
	Date  time.Time `json:"date"`
	Yhat  float64   `json:"yhat"`
	Lower float64   `json:"yhat_lower"`
	Upper float64   `json:"yhat_upper"`
}

// Components are the fitted multiplicative factors
type Components struct {
	AnnualGrowthPct float64     `json:"annual_growth_pct"`
	Weekly          [7]float64  `json:"weekly"` // Sunday first
	Yearly          [12]float64 `json:"yearly"` // January first
}

// Forecast is a fitted trend and its daily extension
type Forecast struct {
	Years       int        `json:"years"`
	FittedFrom  time.Time  `json:"fitted_from"`
	FittedTo    time.Time  `json:"fitted_to"`
	ResidualStd float64    `json:"residual_std"`
	Components  Components `json:"components"`
	Points      []Point    `json:"points"`
}

// History is a ticker's daily bars with an optional trend forecast
type History struct {
	Ticker   string          `json:"ticker"`
	Candles  []models.Candle `json:"candles"`
	Forecast *Forecast       `json:"forecast,omitempty"`
}

type model struct {
	origin    time.Time
	intercept float64
	slope     float64 // log growth per year
	weekly    [7]float64
	yearly    [12]float64
	sigma     float64
}

func yearsSince(origin, t time.Time) float64 {
	return t.Sub(origin).Hours() / 24 / 365.25
}

func (m *model) logValue(t time.Time) float64 {
	return m.intercept + m.slope*yearsSince(m.origin, t) + m.weekly[t.Weekday()] + m.yearly[t.Month()-1]
}

// Fit fits the model on candles and extends it years*365 days past the last bar.
// Bars with a non-positive close are skipped.
func Fit(candles []models.Candle, years int) (*Forecast, error) {
	if years < 1 || years > MaxYears {
		return nil, fmt.Errorf("%w, got %d", ErrBadYears, years)
	}

	dates := make([]time.Time, 0, len(candles))
	logs := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c.Close <= 0 {
			continue
		}
		dates = append(dates, models.Day(c.Timestamp))
		logs = append(logs, math.Log(c.Close))
	}
	if len(dates) < MinPoints {
		return nil, fmt.Errorf("%w: %d bars, need %d", ErrTooShort, len(dates), MinPoints)
	}

	m := fitModel(dates, logs)
	last := dates[len(dates)-1]

	days := years * 365
	points := make([]Point, 0, days)
	for i := 1; i <= days; i++ {
		d := last.AddDate(0, 0, i)
		v := m.logValue(d)
		points = append(points, Point{
			Date:  d,
			Yhat:  math.Exp(v),
			Lower: math.Exp(v - bandZ*m.sigma),
			Upper: math.Exp(v + bandZ*m.sigma),
		})
	}

	comp := Components{AnnualGrowthPct: (math.Exp(m.slope) - 1) * 100}
	for i, w := range m.weekly {
		comp.Weekly[i] = math.Exp(w)
	}
	for i, y := range m.yearly {
		comp.Yearly[i] = math.Exp(y)
	}

	return &Forecast{
		Years:       years,
		FittedFrom:  dates[0],
		FittedTo:    last,
		ResidualStd: m.sigma,
		Components:  comp,
		Points:      points,
	}, nil
}

func fitModel(dates []time.Time, logs []float64) *model {
	m := &model{origin: dates[0]}
	n := float64(len(dates))

	var sx, sy float64
	xs := make([]float64, len(dates))
	for i, d := range dates {
		xs[i] = yearsSince(m.origin, d)
		sx += xs[i]
		sy += logs[i]
	}
	mx, my := sx/n, sy/n
	var sxy, sxx float64
	for i := range xs {
		sxy += (xs[i] - mx) * (logs[i] - my)
		sxx += (xs[i] - mx) * (xs[i] - mx)
	}
	if sxx > 0 {
		m.slope = sxy / sxx
	}
	m.intercept = my - m.slope*mx

	resid := make([]float64, len(logs))
	for i := range logs {
		resid[i] = logs[i] - (m.intercept + m.slope*xs[i])
	}

	copy(m.weekly[:], seasonal(resid, 7, func(i int) int { return int(dates[i].Weekday()) }))
	for i := range resid {
		resid[i] -= m.weekly[dates[i].Weekday()]
	}

	// a yearly cycle needs a full year of bars to be told apart from the trend
	if dates[len(dates)-1].Sub(dates[0]) >= 365*24*time.Hour {
		copy(m.yearly[:], seasonal(resid, 12, func(i int) int { return int(dates[i].Month()) - 1 }))
		for i := range resid {
			resid[i] -= m.yearly[dates[i].Month()-1]
		}
	}

	var ss float64
	for _, r := range resid {
		ss += r * r
	}
	m.sigma = math.Sqrt(ss / n)
	return m
}

// seasonal averages residuals per bucket and centers the observed buckets on zero
func seasonal(resid []float64, buckets int, bucket func(int) int) []float64 {
	sums := make([]float64, buckets)
	counts := make([]int, buckets)
	for i, r := range resid {
		b := bucket(i)
		sums[b] += r
		counts[b]++
	}

	var total float64
	var seen int
	for b := range sums {
		if counts[b] > 0 {
			sums[b] /= float64(counts[b])
			total += sums[b]
			seen++
		}
	}

	out := make([]float64, buckets)
	if seen == 0 {
		return out
	}
	mean := total / float64(seen)
	for b := range sums {
		if counts[b] > 0 {
			out[b] = sums[b] - mean
		}
	}
	return out
}

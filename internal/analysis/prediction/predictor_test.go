package prediction

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Alias1177/insighthub/internal/cache"
	"github.com/Alias1177/insighthub/internal/calculate"
	"github.com/Alias1177/insighthub/internal/ml"
	"github.com/Alias1177/insighthub/models"
)

func generateTestCandles(n int, generator func(int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = generator(i)
	}
	return candles
}

func trend(i int) models.Candle {
	c := 50 + float64(i)*0.2 + 3*math.Sin(float64(i)/5)
	return models.Candle{
		Timestamp: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		Open:      c - 0.3,
		High:      c + 1,
		Low:       c - 1,
		Close:     c,
		Volume:    int64(5000 + (i%9)*300),
	}
}

type fakeHistory struct {
	candles []models.Candle
	err     error
	periods []string
}

func (f *fakeHistory) Period(_ context.Context, _ string, period string) ([]models.Candle, error) {
	f.periods = append(f.periods, period)
	return f.candles, f.err
}

func quickSearch() *ml.RandomSearch {
	s := ml.NewRandomSearch()
	s.Trials = 3
	s.Space.RoundsMax = 200
	s.Space.DepthMax = 4
	return s
}

func TestBuildDataset(t *testing.T) {
	rows := calculate.Compute(generateTestCandles(60, trend), calculate.DefaultParams)
	d, latest := BuildDataset(rows, 7)

	if d.Len() != len(rows)-7 {
		t.Fatalf("Len() = %d, want %d", d.Len(), len(rows)-7)
	}
	if d.Y[0] != rows[7].Close {
		t.Errorf("Y[0] = %v, want close 7 rows ahead %v", d.Y[0], rows[7].Close)
	}
	if latest[8] != rows[len(rows)-1].Close {
		t.Errorf("latest Close = %v, want %v", latest[8], rows[len(rows)-1].Close)
	}
	if len(d.Features) != 10 {
		t.Errorf("len(Features) = %d, want 10", len(d.Features))
	}
}

func TestPredictBaseline(t *testing.T) {
	history := &fakeHistory{candles: generateTestCandles(500, trend)}
	p := NewPredictor(history, cache.NewMemory(nil))

	res := p.Predict(context.Background(), "aapl", 7)
	if !res.OK() {
		t.Fatalf("Predict() status = %q", res.Status)
	}
	if history.periods[0] != "2y" {
		t.Errorf("period = %q, want 2y", history.periods[0])
	}
	want := (*res.PredictedPrice - *res.CurrentPrice) / *res.CurrentPrice * 100
	if *res.PercentChange != want {
		t.Errorf("PercentChange = %v, want %v", *res.PercentChange, want)
	}
	if res.Attribution != nil {
		t.Error("baseline should not compute an attribution")
	}

	p.Predict(context.Background(), "AAPL", 7)
	if len(history.periods) != 1 {
		t.Errorf("history fetched %d times, want 1 (memoized)", len(history.periods))
	}
}

func TestPredictOptimized(t *testing.T) {
	history := &fakeHistory{candles: generateTestCandles(400, trend)}
	p := NewPredictor(history, nil)
	p.search = quickSearch

	res := p.PredictOptimized(context.Background(), "MSFT", 30)
	if !res.OK() {
		t.Fatalf("PredictOptimized() status = %q", res.Status)
	}
	if history.periods[0] != "3y" {
		t.Errorf("period = %q, want 3y", history.periods[0])
	}
	if res.ValidationRMSE == nil {
		t.Error("ValidationRMSE is nil")
	}

	attr := res.Attribution
	if attr == nil {
		t.Fatal("Attribution is nil")
	}
	sum := attr.BaseValue
	for _, c := range attr.Contributions {
		sum += c
	}
	if math.Abs(sum-*res.PredictedPrice) > 1e-6 {
		t.Errorf("base + contributions = %v, want %v", sum, *res.PredictedPrice)
	}
}

func TestPredictFailures(t *testing.T) {
	tests := []struct {
		name    string
		history *fakeHistory
		variant Variant
		status  string
	}{
		{"download error", &fakeHistory{err: errors.New("timeout")}, Baseline, StatusNoData},
		{"empty data", &fakeHistory{}, Baseline, StatusNoData},
		{"too few rows", &fakeHistory{candles: generateTestCandles(80, trend)}, Baseline, "Not enough data"},
		{"optimized needs 100 rows", &fakeHistory{candles: generateTestCandles(130, trend)}, Optimized, "Not enough data"},
		{"non-positive price", &fakeHistory{candles: generateTestCandles(200, func(i int) models.Candle {
			c := trend(i)
			if i == 199 {
				c.Close = -1
			}
			return c
		})}, Baseline, StatusBadPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPredictor(tt.history, nil)
			p.search = quickSearch

			res := p.run(context.Background(), "X", 7, tt.variant)
			if !strings.HasPrefix(res.Status, tt.status) {
				t.Errorf("Status = %q, want prefix %q", res.Status, tt.status)
			}
			if res.PredictedPrice != nil || res.PercentChange != nil || res.Attribution != nil {
				t.Errorf("failed result carries values: %+v", res)
			}
		})
	}
}

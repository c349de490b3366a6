package analyze

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Alias1177/insighthub/internal/cache"
	"github.com/Alias1177/insighthub/internal/calculate"
	"github.com/Alias1177/insighthub/internal/sentiment"
	"github.com/Alias1177/insighthub/models"
)

func TestDeriveSignal(t *testing.T) {
	tests := []struct {
		name     string
		output   int
		rsi      float64
		expected models.Signal
	}{
		{"bullish model", 1, 50, models.SignalBuy},
		{"bullish model while overbought", 1, 85, models.SignalBuy},
		{"bearish and overbought", 0, 70.1, models.SignalSell},
		{"bearish at the threshold", 0, 70, models.SignalHold},
		{"bearish and oversold", 0, 20, models.SignalHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := DeriveSignal(tt.output, tt.rsi); result != tt.expected {
				t.Errorf("DeriveSignal(%d, %v) = %v, want %v", tt.output, tt.rsi, result, tt.expected)
			}
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := map[string]Algorithm{
		"":             XGBoost,
		"xgboost":      XGBoost,
		"LightGBM":     LightGBM,
		"RandomForest": RandomForest,
	}
	for in, want := range tests {
		got, err := ParseAlgorithm(in)
		if err != nil || got != want {
			t.Errorf("ParseAlgorithm(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseAlgorithm("svm"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("ParseAlgorithm(svm) error = %v, want ErrUnknownAlgorithm", err)
	}
}

func TestBuildDataset(t *testing.T) {
	rows := []calculate.Row{{Close: 10, RSI: 40}, {Close: 12, RSI: 50}, {Close: 11, RSI: 60}, {Close: 9, RSI: 70}}
	d, latest := BuildDataset(rows, []string{calculate.FeatureRSI, FeatureSentiment}, map[string]float64{FeatureSentiment: 0.3}, 1)

	wantY := []float64{1, 0, 0}
	if d.Len() != len(wantY) {
		t.Fatalf("Len() = %d, want %d", d.Len(), len(wantY))
	}
	for i, y := range wantY {
		if d.Y[i] != y {
			t.Errorf("Y[%d] = %v, want %v", i, d.Y[i], y)
		}
	}
	if d.X[1][0] != 50 || d.X[1][1] != 0.3 {
		t.Errorf("X[1] = %v, want [50 0.3]", d.X[1])
	}
	if latest[0] != 70 {
		t.Errorf("latest = %v, want the last row", latest)
	}
}

func generateTestCandles(n int, generator func(int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = generator(i)
	}
	return candles
}

func wave(i int) models.Candle {
	c := 100 + 10*math.Sin(float64(i)/6) + float64(i%5)
	return models.Candle{
		Timestamp: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		Open:      c - 0.5,
		High:      c + 1,
		Low:       c - 1,
		Close:     c,
		Volume:    int64(1000 + (i%7)*150),
	}
}

type fakeHistory struct {
	candles []models.Candle
	err     error
	panics  bool
	calls   int
}

func (f *fakeHistory) Period(_ context.Context, _ string, _ string) ([]models.Candle, error) {
	f.calls++
	if f.panics {
		panic("index out of range")
	}
	return f.candles, f.err
}

type fakeFundamentals struct {
	f *models.Fundamentals
}

func (f fakeFundamentals) Fundamentals(context.Context, string) (*models.Fundamentals, error) {
	if f.f == nil {
		return nil, errors.New("quote summary unavailable")
	}
	return f.f, nil
}

type fixedSentiment float64

func (s fixedSentiment) Analyze(context.Context, string) sentiment.Result {
	return sentiment.Result{Score: float64(s), Status: sentiment.StatusOK}
}

func TestSignalAlgorithms(t *testing.T) {
	for _, algo := range []Algorithm{XGBoost, LightGBM, RandomForest} {
		t.Run(string(algo), func(t *testing.T) {
			history := &fakeHistory{candles: generateTestCandles(250, wave)}
			c := NewClassifier(history, fakeFundamentals{}, nil, cache.NewMemory(nil))

			res := c.Signal(context.Background(), "btc-usd", algo)
			if !res.Signal.IsActionable() {
				t.Fatalf("Signal = %v (%s), want BUY/SELL/HOLD", res.Signal, res.Reason)
			}
			if res.ModelOutput == nil {
				t.Fatal("ModelOutput is nil")
			}
			if res.Signal != DeriveSignal(*res.ModelOutput, res.RSI) {
				t.Errorf("Signal %v does not follow output %d and RSI %v", res.Signal, *res.ModelOutput, res.RSI)
			}
			// 250 bars - 27 warm-up - 5 horizon
			if res.Rows != 218 {
				t.Errorf("Rows = %d, want 218", res.Rows)
			}

			c.Signal(context.Background(), "BTC-USD", algo)
			if history.calls != 1 {
				t.Errorf("history fetched %d times, want 1", history.calls)
			}
		})
	}
}

func TestSignalFailures(t *testing.T) {
	full := &models.Fundamentals{
		DebtToEquity:   models.Float(120),
		ReturnOnEquity: models.Float(0.3),
		TrailingEps:    models.Float(6),
		PegRatio:       models.Float(2),
	}
	partial := &models.Fundamentals{DebtToEquity: models.Float(120)}

	tests := []struct {
		name         string
		ticker       string
		history      *fakeHistory
		fundamentals fakeFundamentals
		want         models.Signal
	}{
		{"provider error", "ETH-USD", &fakeHistory{err: errors.New("502")}, fakeFundamentals{}, models.SignalInsufficientData},
		{"empty download", "ETH-USD", &fakeHistory{}, fakeFundamentals{}, models.SignalInsufficientData},
		{"too few rows", "ETH-USD", &fakeHistory{candles: generateTestCandles(60, wave)}, fakeFundamentals{}, models.SignalInsufficientData},
		{"missing fundamental", "AAPL", &fakeHistory{candles: generateTestCandles(300, wave)}, fakeFundamentals{partial}, models.SignalTrainingFailed},
		{"fundamentals unavailable", "AAPL", &fakeHistory{candles: generateTestCandles(300, wave)}, fakeFundamentals{}, models.SignalInsufficientData},
		{"equity with fundamentals", "AAPL", &fakeHistory{candles: generateTestCandles(300, wave)}, fakeFundamentals{full}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.history, tt.fundamentals, fixedSentiment(0.2), nil)
			res := c.Signal(context.Background(), tt.ticker, XGBoost)
			if tt.want == "" {
				if !res.Signal.IsActionable() {
					t.Errorf("Signal = %v (%s), want actionable", res.Signal, res.Reason)
				}
				return
			}
			if res.Signal != tt.want {
				t.Errorf("Signal = %v (%s), want %v", res.Signal, res.Reason, tt.want)
			}
		})
	}
}

func TestSignalRecoversPanics(t *testing.T) {
	history := &fakeHistory{panics: true}
	c := NewClassifier(history, fakeFundamentals{}, nil, cache.NewMemory(nil))

	for i := 0; i < 2; i++ {
		if res := c.Signal(context.Background(), "SOL-USD", XGBoost); res.Signal != models.SignalTechnicalError {
			t.Fatalf("Signal = %v, want TECHNICAL_ERROR", res.Signal)
		}
	}
	if history.calls != 2 {
		t.Errorf("history fetched %d times, want 2 (technical errors are not cached)", history.calls)
	}
}

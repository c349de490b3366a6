// Package analyze produces BUY / SELL / HOLD signals from a classifier
// trained on each ticker's own history.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/cache"
	"github.com/Alias1177/insighthub/internal/calculate"
	"github.com/Alias1177/insighthub/internal/metrics"
	"github.com/Alias1177/insighthub/internal/ml"
	"github.com/Alias1177/insighthub/internal/sentiment"
	"github.com/Alias1177/insighthub/models"
)

// Algorithm selects the classifier family
type Algorithm string

const (
	RandomForest Algorithm = "RandomForest"
	LightGBM     Algorithm = "LightGBM"
	XGBoost      Algorithm = "XGBoost"
)

// Extra feature names for the equity model
const (
	FeatureSentiment      = "sentiment"
	FeatureDebtToEquity   = "debtToEquity"
	FeatureReturnOnEquity = "returnOnEquity"
	FeatureTrailingEps    = "trailingEps"
	FeaturePegRatio       = "pegRatio"
)

// MinLabeledRows is the smallest training set a signal is trained on
const MinLabeledRows = 50

var (
	// CryptoFeatures are purely technical
	CryptoFeatures = []string{
		calculate.FeatureMACD, calculate.FeatureRSI,
		calculate.FeatureBBHigh, calculate.FeatureBBLow, calculate.FeatureOBV,
	}
	// EquityFeatures add news sentiment and fundamentals, constant over the window
	EquityFeatures = append(append([]string(nil), CryptoFeatures...),
		FeatureSentiment, FeatureDebtToEquity, FeatureReturnOnEquity, FeatureTrailingEps, FeaturePegRatio,
	)
)

// ErrUnknownAlgorithm is returned by ParseAlgorithm
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// ParseAlgorithm accepts the algorithm names case-insensitively; empty means XGBoost
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xgboost", "xgb":
		return XGBoost, nil
	case "lightgbm", "lgbm":
		return LightGBM, nil
	case "randomforest", "random_forest", "rf":
		return RandomForest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// NewModel returns an untrained classifier for algo
func NewModel(algo Algorithm) ml.Classifier {
	switch algo {
	case RandomForest:
		return ml.NewRandomForest(42)
	case LightGBM:
		return ml.NewClassifier(ml.LightGBMDefaults)
	default:
		return ml.NewClassifier(ml.XGBoostDefaults)
	}
}

// Result is one classification run
type Result struct {
	Ticker      string        `json:"ticker"`
	Algorithm   Algorithm     `json:"algorithm"`
	Signal      models.Signal `json:"signal"`
	ModelOutput *int          `json:"model_output,omitempty"`
	RSI         float64       `json:"rsi"`
	Rows        int           `json:"rows"`
	Reason      string        `json:"reason,omitempty"`
}

// FundamentalsSource fetches the ratio snapshot used by equity models
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error)
}

// SentimentSource scores recent news
type SentimentSource interface {
	Analyze(ctx context.Context, query string) sentiment.Result
}

// Classifier trains a per-ticker model and derives the latest signal
type Classifier struct {
	history      models.CandleSource
	fundamentals FundamentalsSource
	sentiment    SentimentSource
	store        cache.Store
	params       calculate.Params
	logger       zerolog.Logger
}

// NewClassifier creates the signal pipeline
func NewClassifier(history models.CandleSource, fundamentals FundamentalsSource, sentiment SentimentSource, store cache.Store) *Classifier {
	return &Classifier{
		history:      history,
		fundamentals: fundamentals,
		sentiment:    sentiment,
		store:        store,
		params:       calculate.DefaultParams,
		logger:       log.With().Str("component", "classifier").Logger(),
	}
}

// unstable wraps results that must not be memoized
type unstable struct{ res Result }

func (u unstable) Error() string { return u.res.Reason }

// Signal runs the pipeline for one ticker. It never returns an error:
// failures are reported through Result.Signal and Result.Reason.
func (c *Classifier) Signal(ctx context.Context, ticker string, algo Algorithm) Result {
	ticker = models.NormalizeTicker(ticker)
	if algo == "" {
		algo = XGBoost
	}

	key := cache.Key("signal", ticker, algo)
	res, err := cache.Remember(ctx, c.store, "signal", key, cache.TTLSignal, func() (Result, error) {
		res := c.run(ctx, ticker, algo)
		if res.Signal == models.SignalTechnicalError {
			return res, unstable{res}
		}
		return res, nil
	})
	var u unstable
	if errors.As(err, &u) {
		res = u.res
	}

	metrics.SignalsTotal.WithLabelValues(string(algo), string(res.Signal)).Inc()
	return res
}

func (c *Classifier) run(ctx context.Context, ticker string, algo Algorithm) (res Result) {
	start := time.Now()
	res = Result{Ticker: ticker, Algorithm: algo}
	logger := c.logger.With().Str("ticker", ticker).Str("algorithm", string(algo)).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("classification panicked")
			res = Result{Ticker: ticker, Algorithm: algo, Signal: models.SignalTechnicalError, Reason: fmt.Sprint(r)}
		}
		metrics.PipelineDuration.WithLabelValues("signal").Observe(time.Since(start).Seconds())
	}()

	crypto := models.IsCrypto(ticker)
	horizon, period, features := 10, "2y", EquityFeatures
	if crypto {
		horizon, period, features = 5, "1y", CryptoFeatures
	}

	candles, err := c.history.Period(ctx, ticker, period)
	if err != nil {
		logger.Warn().Err(err).Msg("history unavailable")
		return res.fail(models.SignalInsufficientData, "price history unavailable")
	}
	if len(candles) == 0 {
		return res.fail(models.SignalInsufficientData, "no price history")
	}

	constants := map[string]float64{}
	if !crypto {
		constants, err = c.equityConstants(ctx, ticker)
		if errors.Is(err, errMissingFundamental) {
			return res.fail(models.SignalTrainingFailed, err.Error())
		}
		if err != nil {
			logger.Warn().Err(err).Msg("fundamentals unavailable")
			return res.fail(models.SignalInsufficientData, "fundamentals unavailable")
		}
	}

	rows := calculate.Compute(candles, c.params)
	data, latest := BuildDataset(rows, features, constants, horizon)
	res.Rows = data.Len()
	if data.Len() < MinLabeledRows {
		return res.fail(models.SignalInsufficientData, fmt.Sprintf("%d labeled rows, need %d", data.Len(), MinLabeledRows))
	}

	model := NewModel(algo)
	if err := model.Fit(data); err != nil {
		logger.Warn().Err(err).Msg("training failed")
		return res.fail(models.SignalTrainingFailed, err.Error())
	}

	output := model.PredictClass(latest)
	res.ModelOutput = &output
	res.RSI = rows[len(rows)-1].RSI
	res.Signal = DeriveSignal(output, res.RSI)

	logger.Info().Str("signal", string(res.Signal)).Int("rows", res.Rows).Msg("signal computed")
	return res
}

func (r Result) fail(signal models.Signal, reason string) Result {
	r.Signal = signal
	r.Reason = reason
	return r
}

var errMissingFundamental = errors.New("missing fundamental")

func (c *Classifier) equityConstants(ctx context.Context, ticker string) (map[string]float64, error) {
	f, err := c.fundamentals.Fundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}

	values := map[string]*float64{
		FeatureDebtToEquity:   f.DebtToEquity,
		FeatureReturnOnEquity: f.ReturnOnEquity,
		FeatureTrailingEps:    f.TrailingEps,
		FeaturePegRatio:       f.PegRatio,
	}
	out := make(map[string]float64, len(values)+1)
	for name, v := range values {
		if v == nil {
			return nil, fmt.Errorf("%w: %s", errMissingFundamental, name)
		}
		out[name] = *v
	}

	out[FeatureSentiment] = 0
	if c.sentiment != nil {
		out[FeatureSentiment] = c.sentiment.Analyze(ctx, ticker).Score
	}
	return out, nil
}

// BuildDataset labels each row 1 when the close horizon bars later is higher.
// Names missing from the row are looked up in constants. latest is the
// feature vector of the most recent row, which has no label yet.
func BuildDataset(rows []calculate.Row, features []string, constants map[string]float64, horizon int) (ml.Dataset, []float64) {
	d := ml.Dataset{Features: features}
	if len(rows) == 0 {
		return d, nil
	}

	vector := func(r calculate.Row) []float64 {
		x := make([]float64, len(features))
		for i, name := range features {
			if v, ok := r.Feature(name); ok {
				x[i] = v
			} else {
				x[i] = constants[name]
			}
		}
		return x
	}

	for t := 0; t+horizon < len(rows); t++ {
		label := 0.0
		if rows[t+horizon].Close > rows[t].Close {
			label = 1
		}
		d.X = append(d.X, vector(rows[t]))
		d.Y = append(d.Y, label)
	}
	return d, vector(rows[len(rows)-1])
}

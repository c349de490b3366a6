// Package prediction forecasts the close H days ahead with a boosted
// regressor, either with fixed hyperparameters or after a random search.
package prediction

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
	"github.com/Alias1177/insighthub/models"
)

// Variant selects the model configuration
type Variant string

const (
	Baseline  Variant = "baseline"
	Optimized Variant = "optimized"
)

// Status messages
const (
	StatusOK            = "Analysis succeeded"
	StatusNoData        = "Could not download price data"
	StatusTrainFailed   = "Model training failed"
	StatusBadPrice      = "Current price is not positive"
	StatusUnexpectedErr = "Unexpected error"
)

// Features of the price model, in column order
var Features = []string{
	calculate.FeatureMACD, calculate.FeatureRSI, calculate.FeatureBBWidth,
	calculate.FeatureDayOfWeek, calculate.FeatureMonth,
	calculate.FeaturePctChange1, calculate.FeaturePctChange5, calculate.FeaturePctChange21,
	calculate.FeatureClose, calculate.FeatureVolume,
}

type variantConfig struct {
	period  string
	minRows int
}

var variants = map[Variant]variantConfig{
	Baseline:  {period: "2y", minRows: 50},
	Optimized: {period: "3y", minRows: 100},
}

// Result is a price forecast. Every pointer is nil when Status reports a failure.
type Result struct {
	Ticker         string          `json:"ticker"`
	Horizon        int             `json:"horizon"`
	Variant        Variant         `json:"variant"`
	Rows           int             `json:"rows"`
	CurrentPrice   *float64        `json:"current_price,omitempty"`
	PredictedPrice *float64        `json:"predicted_price,omitempty"`
	PercentChange  *float64        `json:"percent_change,omitempty"`
	Attribution    *ml.Attribution `json:"attribution,omitempty"`
	ValidationRMSE *float64        `json:"validation_rmse,omitempty"`
	Status         string          `json:"status"`
}

// OK reports whether the forecast succeeded
func (r Result) OK() bool {
	return r.PredictedPrice != nil
}

// Predictor runs the regression pipelines
type Predictor struct {
	history models.CandleSource
	store   cache.Store
	params  calculate.Params
	search  func() *ml.RandomSearch
	logger  zerolog.Logger
}

// NewPredictor creates the price forecaster
func NewPredictor(history models.CandleSource, store cache.Store) *Predictor {
	return &Predictor{
		history: history,
		store:   store,
		params:  calculate.DefaultParams,
		search:  ml.NewRandomSearch,
		logger:  log.With().Str("component", "predictor").Logger(),
	}
}

// Predict fits the fixed-hyperparameter regressor on 2y of history
func (p *Predictor) Predict(ctx context.Context, ticker string, horizon int) Result {
	return p.run(ctx, ticker, horizon, Baseline)
}

// PredictOptimized tunes the regressor on 3y of history and explains the forecast
func (p *Predictor) PredictOptimized(ctx context.Context, ticker string, horizon int) Result {
	return p.run(ctx, ticker, horizon, Optimized)
}

type transient struct{ res Result }

func (t transient) Error() string { return t.res.Status }

func (p *Predictor) run(ctx context.Context, ticker string, horizon int, variant Variant) Result {
	ticker = models.NormalizeTicker(ticker)
	key := cache.Key("prediction", ticker, horizon, variant)
	res, err := cache.Remember(ctx, p.store, "prediction", key, cache.TTLPrediction, func() (Result, error) {
		res := p.forecast(ctx, ticker, horizon, variant)
		if res.Status == StatusNoData || strings.HasPrefix(res.Status, StatusUnexpectedErr) {
			return res, transient{res}
		}
		return res, nil
	})
	var t transient
	if errors.As(err, &t) {
		return t.res
	}
	return res
}

func (p *Predictor) forecast(ctx context.Context, ticker string, horizon int, variant Variant) (res Result) {
	start := time.Now()
	cfg := variants[variant]
	res = Result{Ticker: ticker, Horizon: horizon, Variant: variant}
	logger := p.logger.With().Str("ticker", ticker).Int("horizon", horizon).Str("variant", string(variant)).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("prediction panicked")
			res = Result{Ticker: ticker, Horizon: horizon, Variant: variant, Status: fmt.Sprintf("%s: %v", StatusUnexpectedErr, r)}
		}
		metrics.PipelineDuration.WithLabelValues("predict_" + string(variant)).Observe(time.Since(start).Seconds())
	}()

	if horizon <= 0 {
		res.Status = fmt.Sprintf("%s: horizon must be positive", StatusTrainFailed)
		return res
	}

	candles, err := p.history.Period(ctx, ticker, cfg.period)
	if err != nil || len(candles) == 0 {
		if err != nil {
			logger.Warn().Err(err).Msg("history unavailable")
		}
		res.Status = StatusNoData
		return res
	}

	rows := calculate.Compute(candles, p.params)
	data, latest := BuildDataset(rows, horizon)
	res.Rows = data.Len()
	if data.Len() < cfg.minRows {
		res.Status = fmt.Sprintf("Not enough data after cleaning: %d rows, need %d", data.Len(), cfg.minRows)
		return res
	}

	current := rows[len(rows)-1].Close
	if current <= 0 {
		res.Status = StatusBadPrice
		return res
	}

	var model *ml.GradientBoosting
	if variant == Optimized {
		train, eval := data.Split(0.8)
		best, _, err := p.search().Run(train, eval)
		if err != nil {
			logger.Warn().Err(err).Msg("hyperparameter search failed")
			res.Status = fmt.Sprintf("%s: %v", StatusTrainFailed, err)
			return res
		}
		logger.Debug().Int("trial", best.Number).Float64("rmse", best.RMSE).Msg("best trial")
		res.ValidationRMSE = &best.RMSE

		params := best.Params
		params.EarlyStoppingRounds = 0
		model = ml.NewRegressor(params)
	} else {
		model = ml.NewRegressor(ml.RegressorDefaults)
	}

	if err := model.Fit(data); err != nil {
		logger.Warn().Err(err).Msg("training failed")
		res.Status = fmt.Sprintf("%s: %v", StatusTrainFailed, err)
		return res
	}

	predicted := model.Predict(latest)
	change := (predicted - current) / current * 100
	res.CurrentPrice = &current
	res.PredictedPrice = &predicted
	res.PercentChange = &change

	if variant == Optimized {
		attr, err := ml.Explain(model, latest)
		if err != nil {
			logger.Warn().Err(err).Msg("attribution failed")
		}
		res.Attribution = attr
	}

	res.Status = StatusOK
	logger.Info().Float64("predicted", predicted).Float64("change_pct", change).Msg("forecast computed")
	return res
}

// BuildDataset targets the close horizon rows ahead. latest is the feature
// vector of the most recent row, which is what gets forecast.
func BuildDataset(rows []calculate.Row, horizon int) (ml.Dataset, []float64) {
	d := ml.Dataset{Features: Features}
	if len(rows) == 0 {
		return d, nil
	}

	vector := func(r calculate.Row) []float64 {
		x := make([]float64, len(Features))
		for i, name := range Features {
			x[i], _ = r.Feature(name)
		}
		return x
	}

	for t := 0; t+horizon < len(rows); t++ {
		d.X = append(d.X, vector(rows[t]))
		d.Y = append(d.Y, rows[t+horizon].Close)
	}
	return d, vector(rows[len(rows)-1])
}

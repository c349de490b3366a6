package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Alias1177/insighthub/internal/analysis/prediction"
	"github.com/Alias1177/insighthub/internal/analysis/trend"
	"github.com/Alias1177/insighthub/internal/analyze"
	"github.com/Alias1177/insighthub/internal/discovery"
	"github.com/Alias1177/insighthub/internal/marketdata"
	"github.com/Alias1177/insighthub/internal/portfolio"
	"github.com/Alias1177/insighthub/internal/scoring"
	"github.com/Alias1177/insighthub/internal/tracking"
	"github.com/Alias1177/insighthub/internal/trading/backtest"
	"github.com/Alias1177/insighthub/models"
)

// ErrNoTickers is returned when an operation receives an empty ticker list
var ErrNoTickers = errors.New("no tickers given")

// Score fetches fundamentals for tickers and ranks them. Tickers whose
// fundamentals cannot be fetched are left out.
func (a *App) Score(ctx context.Context, tickers []string) ([]scoring.Scored, error) {
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}
	rows := a.Market.FundamentalsBatch(ctx, tickers)
	return scoring.Score(rows, scoring.DefaultWeights), nil
}

// Backtest replays the SMA crossover strategy on daily bars in [start, end)
func (a *App) Backtest(ctx context.Context, ticker string, start, end time.Time) (*backtest.Result, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("backtest window is empty: %s..%s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	ticker = models.NormalizeTicker(ticker)
	candles, err := a.Market.History(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", ticker, err)
	}
	return a.Backtester.Run(candles, backtest.NewSMACross())
}

// PriceHistory returns the daily bars of ticker in [start, end). A positive
// years extends a long-range trend fitted on those bars that many years ahead.
func (a *App) PriceHistory(ctx context.Context, ticker string, start, end time.Time, years int) (trend.History, error) {
	if !end.After(start) {
		return trend.History{}, fmt.Errorf("history window is empty: %s..%s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	if years < 0 || years > trend.MaxYears {
		return trend.History{}, fmt.Errorf("%w, got %d", trend.ErrBadYears, years)
	}
	ticker = models.NormalizeTicker(ticker)
	candles, err := a.Market.History(ctx, ticker, start, end)
	if err != nil {
		return trend.History{}, fmt.Errorf("load history for %s: %w", ticker, err)
	}
	if len(candles) == 0 {
		return trend.History{}, fmt.Errorf("%s: %w", ticker, marketdata.ErrNoPrice)
	}

	h := trend.History{Ticker: ticker, Candles: candles}
	if years > 0 {
		if h.Forecast, err = trend.Fit(candles, years); err != nil {
			return h, err
		}
	}
	return h, nil
}

// ScanSignals classifies tickers and sends the buy list to the notifier
func (a *App) ScanSignals(ctx context.Context, tickers []string, algo analyze.Algorithm, progress discovery.Progress) (discovery.SignalScan, error) {
	if len(tickers) == 0 {
		return discovery.SignalScan{}, ErrNoTickers
	}
	if algo == "" {
		algo = a.Algo
	}
	scan, err := a.Discovery.ScanSignals(ctx, tickers, algo, progress)
	if err != nil {
		return scan, err
	}
	a.notify(ctx, scan.Summary())
	return scan, nil
}

// Discover ranks a market's movers. When save is set every forecast is
// appended to the prediction ledger.
func (a *App) Discover(ctx context.Context, market discovery.Market, horizon int, save bool, progress discovery.Progress) (discovery.Discovery, error) {
	d, err := a.Discovery.Discover(ctx, market, horizon, progress)
	if err != nil {
		return d, err
	}
	if save && len(d.Predictions) > 0 {
		if _, err := a.Tracker.Save(ctx, d.ToPredictions(), horizon); err != nil {
			return d, fmt.Errorf("save predictions: %w", err)
		}
	}
	a.notify(ctx, d.Summary())
	return d, nil
}

// Signal classifies one ticker; an empty algo uses the configured default
func (a *App) Signal(ctx context.Context, ticker string, algo analyze.Algorithm) analyze.Result {
	if algo == "" {
		algo = a.Algo
	}
	return a.Classifier.Signal(ctx, models.NormalizeTicker(ticker), algo)
}

// Predict forecasts ticker horizon days ahead
func (a *App) Predict(ctx context.Context, ticker string, horizon int, optimized bool) (prediction.Result, error) {
	if !discovery.ValidHorizon(horizon, discovery.QuantHorizons) {
		return prediction.Result{}, fmt.Errorf("%w: %d", discovery.ErrBadHorizon, horizon)
	}
	ticker = models.NormalizeTicker(ticker)
	if optimized {
		return a.Predictor.PredictOptimized(ctx, ticker, horizon), nil
	}
	return a.Predictor.Predict(ctx, ticker, horizon), nil
}

// Positions aggregates the trades of one portfolio
func (a *App) Positions(ctx context.Context, kind models.PortfolioKind) ([]portfolio.Position, portfolio.Summary, error) {
	return a.Portfolio.Positions(ctx, kind)
}

// AddTrade books a trade
func (a *App) AddTrade(ctx context.Context, req portfolio.AddTradeRequest) (models.Trade, error) {
	return a.Portfolio.AddTrade(ctx, req)
}

// Valuate parses holdings text and prices it. Parse warnings come first.
func (a *App) Valuate(ctx context.Context, text string) portfolio.Valuation {
	holdings, warnings := portfolio.ParseHoldings(text)
	v := a.Portfolio.Valuate(ctx, holdings)
	v.Warnings = append(warnings, v.Warnings...)
	return v
}

// Predictions returns the whole prediction ledger with accuracy stats
func (a *App) Predictions(ctx context.Context) ([]models.PredictionRecord, tracking.Stats, error) {
	records, err := a.Tracker.Records(ctx)
	if err != nil {
		return nil, tracking.Stats{}, err
	}
	return records, tracking.ComputeStats(records), nil
}

// Reconcile resolves matured predictions
func (a *App) Reconcile(ctx context.Context) (tracking.ReconcileReport, error) {
	return a.Tracker.Reconcile(ctx)
}

// MacroRows collects the macro series for [start, end]
func (a *App) MacroRows(ctx context.Context, start, end time.Time) ([]models.MacroRow, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("macro window is empty: %s..%s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return a.Macro.Collect(ctx, start, end), nil
}

func (a *App) notify(ctx context.Context, text string) {
	if err := a.Notifier.Notify(ctx, text); err != nil {
		a.logger.Warn().Err(err).Msg("notification failed")
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

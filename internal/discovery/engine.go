// Package discovery runs the batch scans: classification signals over a
// ticker list and baseline price forecasts over a whole market.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/analysis/prediction"
	"github.com/Alias1177/insighthub/internal/analyze"
	"github.com/Alias1177/insighthub/internal/metrics"
	"github.com/Alias1177/insighthub/internal/tracking"
	"github.com/Alias1177/insighthub/models"
)

// Market is a scannable universe
type Market string

const (
	MarketCrypto Market = "crypto"
	MarketSP500  Market = "sp500"
)

// CryptoUniverseSize is how many coins by market cap a crypto discovery scans
const CryptoUniverseSize = 250

// topN caps both discovery top lists
const topN = 10

var (
	// DiscoveryHorizons are the horizons a market discovery accepts
	DiscoveryHorizons = []int{7, 30}
	// QuantHorizons are the horizons of single-ticker forecasts
	QuantHorizons = []int{7, 30, 90}

	ErrUnknownMarket = errors.New("unknown market")
	ErrBadHorizon    = errors.New("unsupported horizon")
)

// ParseMarket accepts crypto or sp500 case-insensitively
func ParseMarket(s string) (Market, error) {
	switch Market(strings.ToLower(strings.TrimSpace(s))) {
	case MarketCrypto:
		return MarketCrypto, nil
	case MarketSP500, "s&p500", "sp-500":
		return MarketSP500, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMarket, s)
}

// ValidHorizon reports whether h is one of allowed
func ValidHorizon(h int, allowed []int) bool {
	for _, a := range allowed {
		if a == h {
			return true
		}
	}
	return false
}

// Progress is called after each ticker with the number done and the total
type Progress func(done, total int, ticker string)

// Signaler computes one classification signal
type Signaler interface {
	Signal(ctx context.Context, ticker string, algo analyze.Algorithm) analyze.Result
}

// Forecaster computes one baseline price forecast
type Forecaster interface {
	Predict(ctx context.Context, ticker string, horizon int) prediction.Result
}

// Universe resolves the ticker lists of each market
type Universe interface {
	TopCrypto(ctx context.Context, n int) []string
	SP500(ctx context.Context) []string
}

// SignalScan is the outcome of ScanSignals
type SignalScan struct {
	Algorithm analyze.Algorithm `json:"algorithm"`
	Results   []analyze.Result  `json:"results"`
	Buys      []string          `json:"buys"`
}

// Candidate is one successful forecast of a discovery run
type Candidate struct {
	Ticker         string  `json:"ticker"`
	CurrentPrice   float64 `json:"current_price"`
	PredictedPrice float64 `json:"predicted_price"`
	PercentChange  float64 `json:"percent_change"`
}

// Discovery is the outcome of Discover
type Discovery struct {
	Market      Market      `json:"market"`
	Horizon     int         `json:"horizon"`
	Scanned     int         `json:"scanned"`
	Predictions []Candidate `json:"predictions"`
	TopUp       []Candidate `json:"top_up"`
	TopDown     []Candidate `json:"top_down"`
}

// Engine runs the scans sequentially
type Engine struct {
	signals   Signaler
	forecasts Forecaster
	universe  Universe
	logger    zerolog.Logger
}

// NewEngine creates a scan engine
func NewEngine(signals Signaler, forecasts Forecaster, universe Universe) *Engine {
	return &Engine{
		signals:   signals,
		forecasts: forecasts,
		universe:  universe,
		logger:    log.With().Str("component", "discovery").Logger(),
	}
}

// ScanSignals classifies each ticker in order. A failing ticker keeps its
// sentinel signal and the scan continues.
func (e *Engine) ScanSignals(ctx context.Context, tickers []string, algo analyze.Algorithm, progress Progress) (SignalScan, error) {
	started := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues("signal_scan").Observe(time.Since(started).Seconds())
	}()

	scan := SignalScan{Algorithm: algo, Results: make([]analyze.Result, 0, len(tickers)), Buys: []string{}}
	for i, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return scan, err
		}
		res := e.signals.Signal(ctx, ticker, algo)
		scan.Results = append(scan.Results, res)
		if res.Signal == models.SignalBuy {
			scan.Buys = append(scan.Buys, res.Ticker)
		}
		if progress != nil {
			progress(i+1, len(tickers), ticker)
		}
	}

	e.logger.Info().Int("tickers", len(tickers)).Int("buys", len(scan.Buys)).Str("algorithm", string(algo)).Msg("signal scan finished")
	return scan, nil
}

// Discover forecasts every ticker of market and ranks the movers
func (e *Engine) Discover(ctx context.Context, market Market, horizon int, progress Progress) (Discovery, error) {
	if !ValidHorizon(horizon, DiscoveryHorizons) {
		return Discovery{}, fmt.Errorf("%w: %d", ErrBadHorizon, horizon)
	}

	var tickers []string
	switch market {
	case MarketCrypto:
		tickers = e.universe.TopCrypto(ctx, CryptoUniverseSize)
	case MarketSP500:
		tickers = e.universe.SP500(ctx)
	default:
		return Discovery{}, fmt.Errorf("%w: %q", ErrUnknownMarket, market)
	}

	started := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues("discovery").Observe(time.Since(started).Seconds())
	}()

	d := Discovery{Market: market, Horizon: horizon, Scanned: len(tickers), Predictions: []Candidate{}}
	for i, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		res := e.forecasts.Predict(ctx, ticker, horizon)
		if res.OK() && res.CurrentPrice != nil && res.PercentChange != nil {
			d.Predictions = append(d.Predictions, Candidate{
				Ticker:         ticker,
				CurrentPrice:   *res.CurrentPrice,
				PredictedPrice: *res.PredictedPrice,
				PercentChange:  *res.PercentChange,
			})
		} else {
			e.logger.Debug().Str("ticker", ticker).Str("status", res.Status).Msg("forecast omitted")
		}
		if progress != nil {
			progress(i+1, len(tickers), ticker)
		}
	}

	d.TopUp, d.TopDown = rank(d.Predictions)
	e.logger.Info().
		Str("market", string(market)).
		Int("horizon", horizon).
		Int("scanned", d.Scanned).
		Int("forecasts", len(d.Predictions)).
		Msg("discovery finished")
	return d, nil
}

func rank(all []Candidate) (up, down []Candidate) {
	up, down = []Candidate{}, []Candidate{}
	for _, c := range all {
		switch {
		case c.PercentChange > 0:
			up = append(up, c)
		case c.PercentChange < 0:
			down = append(down, c)
		}
	}
	sort.SliceStable(up, func(i, j int) bool { return up[i].PercentChange > up[j].PercentChange })
	sort.SliceStable(down, func(i, j int) bool { return down[i].PercentChange < down[j].PercentChange })
	if len(up) > topN {
		up = up[:topN]
	}
	if len(down) > topN {
		down = down[:topN]
	}
	return up, down
}

// ToPredictions converts every forecast for the prediction ledger
func (d Discovery) ToPredictions() []tracking.Prediction {
	out := make([]tracking.Prediction, 0, len(d.Predictions))
	for _, c := range d.Predictions {
		out = append(out, tracking.Prediction{
			Ticker:             c.Ticker,
			PredictedPrice:     c.PredictedPrice,
			PredictedChangePct: c.PercentChange,
		})
	}
	return out
}

// Summary renders a short text digest, used for notifications
func (d Discovery) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Discovery %s, %d days: %d/%d forecasts\n", d.Market, d.Horizon, len(d.Predictions), d.Scanned)
	if len(d.TopUp) > 0 {
		b.WriteString("Top up:\n")
		for _, c := range d.TopUp {
			fmt.Fprintf(&b, "  %s %+.2f%%\n", c.Ticker, c.PercentChange)
		}
	}
	if len(d.TopDown) > 0 {
		b.WriteString("Top down:\n")
		for _, c := range d.TopDown {
			fmt.Fprintf(&b, "  %s %+.2f%%\n", c.Ticker, c.PercentChange)
		}
	}
	return b.String()
}

// Summary renders the buy list of a signal scan
func (s SignalScan) Summary() string {
	if len(s.Buys) == 0 {
		return fmt.Sprintf("Signal scan (%s): no BUY among %d tickers", s.Algorithm, len(s.Results))
	}
	return fmt.Sprintf("Signal scan (%s): BUY %s", s.Algorithm, strings.Join(s.Buys, ", "))
}

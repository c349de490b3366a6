// Package portfolio keeps the real and paper trade books and values them at
// current prices.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Alias1177/insighthub/internal/analyze"
	"github.com/Alias1177/insighthub/internal/cache"
	"github.com/Alias1177/insighthub/internal/ledger"
	"github.com/Alias1177/insighthub/internal/metrics"
	"github.com/Alias1177/insighthub/models"
)

const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

// dustQuantity hides positions left over from rounding
var dustQuantity = decimal.NewFromFloat(1e-6)

// ErrInvalidTrade is returned for requests that cannot be booked
var ErrInvalidTrade = errors.New("invalid trade")

// Quotes prices tickers in USD and converts EUR amounts
type Quotes interface {
	CurrentPrice(ctx context.Context, ticker string) (float64, error)
	EURUSD(ctx context.Context) (float64, error)
}

// Signaler supplies the latest classification signal of a ticker
type Signaler interface {
	Signal(ctx context.Context, ticker string, algo analyze.Algorithm) analyze.Result
}

// AddTradeRequest books a buy of Amount in Currency
type AddTradeRequest struct {
	Ticker   string               `json:"ticker"`
	Amount   float64              `json:"amount"`
	Currency string               `json:"currency"`
	Kind     models.PortfolioKind `json:"kind"`
}

// Position is the aggregated holding of one ticker
type Position struct {
	Ticker       string        `json:"ticker"`
	Quantity     float64       `json:"quantity"`
	Invested     float64       `json:"invested"`
	AvgPrice     float64       `json:"avg_price"`
	CurrentPrice float64       `json:"current_price"`
	CurrentValue float64       `json:"current_value"`
	Gain         float64       `json:"gain"`
	GainPct      float64       `json:"gain_pct"`
	Signal       models.Signal `json:"signal,omitempty"`
}

// Summary totals a set of positions
type Summary struct {
	Invested float64 `json:"invested"`
	Value    float64 `json:"value"`
	Gain     float64 `json:"gain"`
	GainPct  float64 `json:"gain_pct"`
}

// Ledger books trades and aggregates positions
type Ledger struct {
	trades  ledger.Log[models.Trade]
	quotes  Quotes
	signals Signaler
	algo    analyze.Algorithm
	clock   cache.Clock
	logger  zerolog.Logger
}

// NewLedger creates a portfolio over a trade log. signals may be nil.
func NewLedger(trades ledger.Log[models.Trade], quotes Quotes, signals Signaler, algo analyze.Algorithm, clock cache.Clock) *Ledger {
	if clock == nil {
		clock = cache.SystemClock{}
	}
	return &Ledger{
		trades:  trades,
		quotes:  quotes,
		signals: signals,
		algo:    algo,
		clock:   clock,
		logger:  log.With().Str("component", "portfolio").Logger(),
	}
}

func (r AddTradeRequest) validate() (AddTradeRequest, error) {
	r.Ticker = models.NormalizeTicker(r.Ticker)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = CurrencyUSD
	}
	switch {
	case r.Ticker == "":
		return r, fmt.Errorf("%w: empty ticker", ErrInvalidTrade)
	case !(r.Amount > 0):
		return r, fmt.Errorf("%w: amount must be positive, got %v", ErrInvalidTrade, r.Amount)
	case r.Currency != CurrencyUSD && r.Currency != CurrencyEUR:
		return r, fmt.Errorf("%w: unsupported currency %q", ErrInvalidTrade, r.Currency)
	case !r.Kind.Valid():
		return r, fmt.Errorf("%w: unknown portfolio %q", ErrInvalidTrade, r.Kind)
	}
	return r, nil
}

// AddTrade prices the request at the current close and appends it
func (l *Ledger) AddTrade(ctx context.Context, req AddTradeRequest) (models.Trade, error) {
	req, err := req.validate()
	if err != nil {
		return models.Trade{}, err
	}

	price, err := l.quotes.CurrentPrice(ctx, req.Ticker)
	if err != nil {
		return models.Trade{}, fmt.Errorf("price %s: %w", req.Ticker, err)
	}
	if price <= 0 {
		return models.Trade{}, fmt.Errorf("%w: no positive price for %s", ErrInvalidTrade, req.Ticker)
	}

	amountUSD := decimal.NewFromFloat(req.Amount)
	if req.Currency == CurrencyEUR {
		rate, err := l.quotes.EURUSD(ctx)
		if err != nil {
			return models.Trade{}, fmt.Errorf("eur/usd rate: %w", err)
		}
		amountUSD = amountUSD.Mul(decimal.NewFromFloat(rate))
	}

	trade := models.Trade{
		ID:        uuid.NewString(),
		Timestamp: l.clock.Now(),
		Ticker:    req.Ticker,
		Action:    models.ActionBuy,
		Quantity:  amountUSD.Div(decimal.NewFromFloat(price)).InexactFloat64(),
		Price:     price,
		Value:     amountUSD.InexactFloat64(),
		Currency:  req.Currency,
		AmountIn:  req.Amount,
		Kind:      req.Kind,
	}

	if err := l.trades.Append(ctx, trade); err != nil {
		metrics.LedgerWrites.WithLabelValues("trades", "error").Inc()
		return models.Trade{}, fmt.Errorf("persist trade: %w", err)
	}
	metrics.LedgerWrites.WithLabelValues("trades", "ok").Inc()

	l.logger.Info().
		Str("ticker", trade.Ticker).
		Str("kind", string(trade.Kind)).
		Float64("value_usd", trade.Value).
		Msg("trade booked")
	return trade, nil
}

// Trades returns the raw log of one portfolio kind
func (l *Ledger) Trades(ctx context.Context, kind models.PortfolioKind) ([]models.Trade, error) {
	all, err := l.trades.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	out := make([]models.Trade, 0, len(all))
	for _, t := range all {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out, nil
}

// Positions aggregates trades by ticker and values them. Enrichment failures
// leave the market fields zero instead of failing the view.
func (l *Ledger) Positions(ctx context.Context, kind models.PortfolioKind) ([]Position, Summary, error) {
	trades, err := l.Trades(ctx, kind)
	if err != nil {
		return nil, Summary{}, err
	}

	type agg struct {
		quantity decimal.Decimal
		invested decimal.Decimal
	}
	byTicker := make(map[string]*agg)
	for _, t := range trades {
		a, ok := byTicker[t.Ticker]
		if !ok {
			a = &agg{}
			byTicker[t.Ticker] = a
		}
		a.quantity = a.quantity.Add(decimal.NewFromFloat(t.Quantity))
		a.invested = a.invested.Add(decimal.NewFromFloat(t.Value))
	}

	tickers := make([]string, 0, len(byTicker))
	for ticker, a := range byTicker {
		if a.quantity.LessThan(dustQuantity) {
			continue
		}
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	positions := make([]Position, 0, len(tickers))
	var invested, value decimal.Decimal
	for _, ticker := range tickers {
		a := byTicker[ticker]
		p := Position{
			Ticker:   ticker,
			Quantity: a.quantity.InexactFloat64(),
			Invested: a.invested.InexactFloat64(),
			AvgPrice: a.invested.Div(a.quantity).InexactFloat64(),
		}
		invested = invested.Add(a.invested)

		if price, err := l.quotes.CurrentPrice(ctx, ticker); err != nil {
			l.logger.Warn().Err(err).Str("ticker", ticker).Msg("position price unavailable")
		} else {
			current := a.quantity.Mul(decimal.NewFromFloat(price))
			gain := current.Sub(a.invested)
			p.CurrentPrice = price
			p.CurrentValue = current.InexactFloat64()
			p.Gain = gain.InexactFloat64()
			if a.invested.IsPositive() {
				p.GainPct = gain.Div(a.invested).Mul(decimal.NewFromInt(100)).InexactFloat64()
			}
			value = value.Add(current)
		}

		if l.signals != nil {
			p.Signal = l.signals.Signal(ctx, ticker, l.algo).Signal
		}
		positions = append(positions, p)
	}

	return positions, summarize(invested, value), nil
}

func summarize(invested, value decimal.Decimal) Summary {
	gain := value.Sub(invested)
	s := Summary{
		Invested: invested.InexactFloat64(),
		Value:    value.InexactFloat64(),
		Gain:     gain.InexactFloat64(),
	}
	if invested.IsPositive() {
		s.GainPct = gain.Div(invested).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return s
}

package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/models"
)

const (
	DefaultCash       = 10000.0
	DefaultCommission = 0.002
)

// ErrInsufficientData is returned when the series is shorter than the strategy warm-up
var ErrInsufficientData = errors.New("backtest: insufficient data")

// Trade is a closed round trip. Size is negative for shorts.
type Trade struct {
	EntryBar   int       `json:"entry_bar"`
	ExitBar    int       `json:"exit_bar"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	PnL        float64   `json:"pnl"`
	ReturnPct  float64   `json:"return_pct"`
}

// EquityPoint is the marked-to-close account value of one bar
type EquityPoint struct {
	Time        time.Time `json:"time"`
	Equity      float64   `json:"equity"`
	DrawdownPct float64   `json:"drawdown_pct"`
}

// Result holds everything a run produced
type Result struct {
	Strategy    string        `json:"strategy"`
	Stats       Stats         `json:"stats"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Trades      []Trade       `json:"trades"`
}

// Engine replays a strategy bar by bar
type Engine struct {
	Cash       float64
	Commission float64
	logger     zerolog.Logger
}

// NewEngine creates an engine with the default cash and commission
func NewEngine() *Engine {
	return &Engine{
		Cash:       DefaultCash,
		Commission: DefaultCommission,
		logger:     log.With().Str("component", "backtest").Logger(),
	}
}

// SetInitialValue overrides the starting cash
func (e *Engine) SetInitialValue(cash float64) {
	e.Cash = cash
}

type orderKind int

const (
	orderBuy orderKind = iota
	orderSell
	orderClose
)

type position struct {
	size       float64
	entryPrice float64
	entryBar   int
}

// broker is the account a strategy trades through during a run
type broker struct {
	commission float64
	cash       float64
	pos        *position
	pending    []orderKind
	trades     []Trade
	candles    []models.Candle
}

func (b *broker) Position() float64 {
	if b.pos == nil {
		return 0
	}
	return b.pos.size
}

func (b *broker) Buy()   { b.pending = append(b.pending, orderBuy) }
func (b *broker) Sell()  { b.pending = append(b.pending, orderSell) }
func (b *broker) Close() { b.pending = append(b.pending, orderClose) }

// fill executes queued orders at the open of bar i
func (b *broker) fill(i int) {
	orders := b.pending
	b.pending = nil
	price := b.candles[i].Open

	for _, o := range orders {
		switch o {
		case orderClose:
			b.closeAt(i, price)
		case orderBuy:
			if b.Position() > 0 {
				continue
			}
			b.closeAt(i, price)
			b.open(i, price, 1)
		case orderSell:
			if b.Position() < 0 {
				continue
			}
			b.closeAt(i, price)
			b.open(i, price, -1)
		}
	}
}

func (b *broker) open(i int, price, dir float64) {
	entry := price * (1 + dir*b.commission)
	if entry <= 0 || b.cash <= 0 {
		return
	}
	b.pos = &position{size: dir * b.cash / entry, entryPrice: entry, entryBar: i}
}

func (b *broker) closeAt(i int, price float64) {
	if b.pos == nil {
		return
	}
	dir := 1.0
	if b.pos.size < 0 {
		dir = -1
	}
	exit := price * (1 - dir*b.commission)
	pnl := b.pos.size * (exit - b.pos.entryPrice)
	b.cash += pnl
	b.trades = append(b.trades, Trade{
		EntryBar:   b.pos.entryBar,
		ExitBar:    i,
		EntryTime:  b.candles[b.pos.entryBar].Timestamp,
		ExitTime:   b.candles[i].Timestamp,
		EntryPrice: b.pos.entryPrice,
		ExitPrice:  exit,
		Size:       b.pos.size,
		PnL:        pnl,
		ReturnPct:  dir * (exit/b.pos.entryPrice - 1) * 100,
	})
	b.pos = nil
}

func (b *broker) equity(price float64) float64 {
	if b.pos == nil {
		return b.cash
	}
	return b.cash + b.pos.size*(price-b.pos.entryPrice)
}

// Run replays candles through s. Orders placed on bar i fill at the open of
// bar i+1; a position still open after the last bar is closed at its close.
func (e *Engine) Run(candles []models.Candle, s Strategy) (*Result, error) {
	if len(candles) < s.Warmup()+1 {
		return nil, fmt.Errorf("%w: %d bars, need %d", ErrInsufficientData, len(candles), s.Warmup()+1)
	}
	if err := s.Init(candles); err != nil {
		return nil, fmt.Errorf("init strategy %s: %w", s.Name(), err)
	}

	b := &broker{commission: e.Commission, cash: e.Cash, candles: candles}
	curve := make([]EquityPoint, 0, len(candles))
	exposed := 0
	peak := e.Cash

	for i, c := range candles {
		if len(b.pending) > 0 {
			b.fill(i)
		}
		if b.pos != nil {
			exposed++
		}

		equity := b.equity(c.Close)
		if equity > peak {
			peak = equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - equity) / peak * 100
		}
		curve = append(curve, EquityPoint{Time: c.Timestamp, Equity: equity, DrawdownPct: dd})

		s.Next(i, b)
	}

	last := len(candles) - 1
	b.closeAt(last, candles[last].Close)
	curve[last].Equity = b.cash
	if b.cash > peak {
		peak = b.cash
	}
	if peak > 0 {
		curve[last].DrawdownPct = (peak - b.cash) / peak * 100
	}

	res := &Result{
		Strategy:    s.Name(),
		EquityCurve: curve,
		Trades:      b.trades,
	}
	res.Stats = computeStats(e.Cash, candles, curve, b.trades, exposed)

	e.logger.Debug().
		Str("strategy", s.Name()).
		Int("bars", len(candles)).
		Int("trades", len(b.trades)).
		Float64("return_pct", res.Stats.ReturnPct).
		Msg("backtest finished")
	return res, nil
}

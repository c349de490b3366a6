package portfolio

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/Alias1177/insighthub/internal/analyze"
	"github.com/Alias1177/insighthub/internal/cache"
	"github.com/Alias1177/insighthub/internal/ledger"
	"github.com/Alias1177/insighthub/models"
)

type fakeQuotes struct {
	prices map[string]float64
	eurusd float64
}

func (f *fakeQuotes) CurrentPrice(_ context.Context, ticker string) (float64, error) {
	p, ok := f.prices[ticker]
	if !ok {
		return 0, errors.New("no price")
	}
	return p, nil
}

func (f *fakeQuotes) EURUSD(context.Context) (float64, error) {
	return f.eurusd, nil
}

type fakeSignaler struct{ calls int }

func (f *fakeSignaler) Signal(_ context.Context, ticker string, algo analyze.Algorithm) analyze.Result {
	f.calls++
	return analyze.Result{Ticker: ticker, Algorithm: algo, Signal: models.SignalBuy}
}

func newTestLedger(t *testing.T, quotes *fakeQuotes, signals Signaler) *Ledger {
	t.Helper()
	trades := ledger.NewFileLog[models.Trade](filepath.Join(t.TempDir(), "trades.csv"), ledger.TradeCodec{})
	clock := cache.NewFakeClock(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC))
	return NewLedger(trades, quotes, signals, analyze.XGBoost, clock)
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAddTradeValidation(t *testing.T) {
	l := newTestLedger(t, &fakeQuotes{prices: map[string]float64{"AAPL": 100}}, nil)

	tests := []struct {
		name string
		req  AddTradeRequest
	}{
		{"empty ticker", AddTradeRequest{Ticker: " ", Amount: 10, Kind: models.PortfolioReal}},
		{"zero amount", AddTradeRequest{Ticker: "AAPL", Amount: 0, Kind: models.PortfolioReal}},
		{"negative amount", AddTradeRequest{Ticker: "AAPL", Amount: -5, Kind: models.PortfolioReal}},
		{"unknown currency", AddTradeRequest{Ticker: "AAPL", Amount: 10, Currency: "GBP", Kind: models.PortfolioReal}},
		{"unknown kind", AddTradeRequest{Ticker: "AAPL", Amount: 10, Kind: "margin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.AddTrade(context.Background(), tt.req); !errors.Is(err, ErrInvalidTrade) {
				t.Errorf("AddTrade() error = %v, want ErrInvalidTrade", err)
			}
		})
	}
}

func TestAddTradeConvertsEUR(t *testing.T) {
	l := newTestLedger(t, &fakeQuotes{prices: map[string]float64{"AAPL": 200}, eurusd: 1.1}, nil)

	trade, err := l.AddTrade(context.Background(), AddTradeRequest{
		Ticker: "aapl", Amount: 100, Currency: "eur", Kind: models.PortfolioFictitious,
	})
	if err != nil {
		t.Fatalf("AddTrade() error = %v", err)
	}
	if trade.Ticker != "AAPL" || trade.Currency != CurrencyEUR || trade.ID == "" {
		t.Errorf("AddTrade() = %+v", trade)
	}
	if !near(trade.Value, 110) || !near(trade.Quantity, 0.55) || trade.AmountIn != 100 {
		t.Errorf("AddTrade() value = %v, quantity = %v, want 110 and 0.55", trade.Value, trade.Quantity)
	}
	if !trade.Timestamp.Equal(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v, want the clock time", trade.Timestamp)
	}
}

func TestAddTradeWithoutPrice(t *testing.T) {
	l := newTestLedger(t, &fakeQuotes{}, nil)
	_, err := l.AddTrade(context.Background(), AddTradeRequest{Ticker: "NOPE", Amount: 1, Kind: models.PortfolioReal})
	if err == nil {
		t.Fatal("AddTrade() error = nil, want price error")
	}
	trades, _ := l.Trades(context.Background(), models.PortfolioReal)
	if len(trades) != 0 {
		t.Errorf("Trades() = %v, want nothing persisted", trades)
	}
}

func TestPositionsAggregateAndEnrich(t *testing.T) {
	ctx := context.Background()
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 100, "MSFT": 50}, eurusd: 1}
	signals := &fakeSignaler{}
	l := newTestLedger(t, quotes, signals)

	for _, req := range []AddTradeRequest{
		{Ticker: "AAPL", Amount: 100, Kind: models.PortfolioReal},
		{Ticker: "AAPL", Amount: 300, Kind: models.PortfolioReal},
		{Ticker: "MSFT", Amount: 50, Kind: models.PortfolioReal},
		{Ticker: "TSLA", Amount: 999, Kind: models.PortfolioFictitious},
	} {
		if req.Ticker == "TSLA" {
			quotes.prices["TSLA"] = 10
		}
		if _, err := l.AddTrade(ctx, req); err != nil {
			t.Fatalf("AddTrade(%s) error = %v", req.Ticker, err)
		}
	}

	quotes.prices["AAPL"] = 150
	delete(quotes.prices, "MSFT")

	positions, summary, err := l.Positions(ctx, models.PortfolioReal)
	if err != nil {
		t.Fatalf("Positions() error = %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("Positions() = %d rows, want 2", len(positions))
	}

	aapl := positions[0]
	if aapl.Ticker != "AAPL" || !near(aapl.Quantity, 4) || !near(aapl.Invested, 400) {
		t.Errorf("AAPL position = %+v", aapl)
	}
	if !near(aapl.CurrentValue, 600) || !near(aapl.Gain, 200) || !near(aapl.GainPct, 50) {
		t.Errorf("AAPL valuation = %+v", aapl)
	}
	if aapl.Signal != models.SignalBuy {
		t.Errorf("AAPL signal = %q, want BUY", aapl.Signal)
	}

	msft := positions[1]
	if msft.CurrentPrice != 0 || msft.CurrentValue != 0 {
		t.Errorf("MSFT without a price should keep zero market fields, got %+v", msft)
	}
	if !near(summary.Invested, 450) || !near(summary.Value, 600) {
		t.Errorf("Summary = %+v", summary)
	}
	if signals.calls != 2 {
		t.Errorf("signal calls = %d, want 2", signals.calls)
	}
}

func TestParseHoldings(t *testing.T) {
	text := "# my book\naapl, 10\n\nBTC-USD,0.5\nbroken line\nMSFT,abc\nTSLA,-1\n"
	holdings, warnings := ParseHoldings(text)

	want := []Holding{{"AAPL", 10}, {"BTC-USD", 0.5}}
	if len(holdings) != len(want) {
		t.Fatalf("ParseHoldings() = %v, want %v", holdings, want)
	}
	for i := range want {
		if holdings[i] != want[i] {
			t.Errorf("ParseHoldings()[%d] = %v, want %v", i, holdings[i], want[i])
		}
	}
	if len(warnings) != 3 {
		t.Errorf("warnings = %v, want 3", warnings)
	}
}

func TestValuate(t *testing.T) {
	l := newTestLedger(t, &fakeQuotes{prices: map[string]float64{"AAPL": 100, "MSFT": 300}}, nil)

	v := l.Valuate(context.Background(), []Holding{{"AAPL", 3}, {"MSFT", 1}, {"GONE", 5}})
	if !near(v.Total, 600) {
		t.Errorf("Total = %v, want 600", v.Total)
	}
	if !near(v.Holdings[0].Allocation, 0.5) || !near(v.Holdings[1].Allocation, 0.5) {
		t.Errorf("allocations = %v, %v, want 0.5 each", v.Holdings[0].Allocation, v.Holdings[1].Allocation)
	}
	if v.Holdings[2].Value != 0 || v.Holdings[2].Allocation != 0 {
		t.Errorf("missing price holding = %+v, want zero value", v.Holdings[2])
	}
	if len(v.Warnings) != 1 {
		t.Errorf("Warnings = %v, want 1", v.Warnings)
	}
}

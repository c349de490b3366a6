package models

import (
	"strings"
	"time"
)

// Candle represents a single daily price bar
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume,omitempty"`
}

// Fundamentals is a point-in-time snapshot of company ratios.
// A nil field means the provider did not report it.
type Fundamentals struct {
	Ticker                 string   `json:"ticker"`
	Name                   string   `json:"name,omitempty"`
	Sector                 string   `json:"sector,omitempty"`
	TrailingPE             *float64 `json:"trailing_pe,omitempty"`
	PriceToSales           *float64 `json:"price_to_sales,omitempty"`
	ProfitMargins          *float64 `json:"profit_margins,omitempty"`
	RevenueQuarterlyGrowth *float64 `json:"revenue_quarterly_growth,omitempty"`
	DebtToEquity           *float64 `json:"debt_to_equity,omitempty"`
	ReturnOnEquity         *float64 `json:"return_on_equity,omitempty"`
	TrailingEps            *float64 `json:"trailing_eps,omitempty"`
	PegRatio               *float64 `json:"peg_ratio,omitempty"`
}

// Signal is the outcome of a classification run for one ticker
type Signal string

const (
	SignalBuy              Signal = "BUY"
	SignalSell             Signal = "SELL"
	SignalHold             Signal = "HOLD"
	SignalInsufficientData Signal = "INSUFFICIENT_DATA"
	SignalTrainingFailed   Signal = "TRAINING_FAILED"
	SignalTechnicalError   Signal = "TECHNICAL_ERROR"
)

// IsActionable reports whether the signal came from a trained model
func (s Signal) IsActionable() bool {
	return s == SignalBuy || s == SignalSell || s == SignalHold
}

// IsCrypto reports whether a ticker is quoted as a crypto pair (BTC-USD)
func IsCrypto(ticker string) bool {
	return strings.HasSuffix(strings.ToUpper(ticker), "-USD")
}

// NormalizeTicker trims and upper-cases user input
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Float returns a pointer to v; used for optional numeric fields
func Float(v float64) *float64 {
	return &v
}

// MacroRow is one day of the macro dashboard
type MacroRow struct {
	Date             time.Time `json:"date"`
	FedFundsRate     float64   `json:"fed_funds_rate"`
	InflationCPI     float64   `json:"inflation_cpi"`
	UnemploymentRate float64   `json:"unemployment_rate"`
	VIX              float64   `json:"vix"`
}

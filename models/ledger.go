package models

import "time"

// PortfolioKind separates real holdings from paper trading
type PortfolioKind string

const (
	PortfolioReal       PortfolioKind = "real"
	PortfolioFictitious PortfolioKind = "fictitious"
)

// Valid reports whether k is a known portfolio kind
func (k PortfolioKind) Valid() bool {
	return k == PortfolioReal || k == PortfolioFictitious
}

// TradeAction is always BUY today; sells are not recorded
type TradeAction string

const ActionBuy TradeAction = "BUY"

// Trade is one row of the portfolio ledger
type Trade struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Ticker    string        `json:"ticker"`
	Action    TradeAction   `json:"action"`
	Quantity  float64       `json:"quantity"`
	Price     float64       `json:"price"`
	Value     float64       `json:"value"`
	Currency  string        `json:"currency"`
	AmountIn  float64       `json:"amount_in"`
	Kind      PortfolioKind `json:"kind"`
}

// PredictionStatus is the lifecycle state of a logged prediction
type PredictionStatus string

const (
	StatusPending    PredictionStatus = "pending"
	StatusCompleted  PredictionStatus = "completed"
	StatusPriceError PredictionStatus = "price_error"
)

// PredictionRecord is one row of the prediction ledger
type PredictionRecord struct {
	ID                 string           `json:"id"`
	PredictionDate     time.Time        `json:"prediction_date"`
	Ticker             string           `json:"ticker"`
	HorizonDays        int              `json:"horizon_days"`
	InitialPrice       float64          `json:"initial_price"`
	PredictedPrice     float64          `json:"predicted_price"`
	PredictedChangePct float64          `json:"predicted_change_pct"`
	RealizedPrice      *float64         `json:"realized_price,omitempty"`
	RealizedChangePct  *float64         `json:"realized_change_pct,omitempty"`
	Status             PredictionStatus `json:"status"`
}

// DueDate is the calendar day the prediction matures
func (r PredictionRecord) DueDate() time.Time {
	return Day(r.PredictionDate).AddDate(0, 0, r.HorizonDays)
}

package models

import (
	"context"
	"time"
)

// PriceSource resolves spot and historical closes for the ledgers
type PriceSource interface {
	CurrentPrice(ctx context.Context, ticker string) (float64, error)
	PriceOnDate(ctx context.Context, ticker string, date time.Time) (float64, bool, error)
}

// CandleSource returns daily bars for a lookback period such as "1y"
type CandleSource interface {
	Period(ctx context.Context, ticker, period string) ([]Candle, error)
}

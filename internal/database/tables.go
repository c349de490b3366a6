package database

import (
	"database/sql"
	"time"

	"github.com/Alias1177/insighthub/internal/ledger"
	"github.com/Alias1177/insighthub/models"
)

// Timestamps are stored as RFC 3339 text so both drivers round-trip them identically.
var tradesTable = table[models.Trade]{
	name: "trades",
	create: `
		CREATE TABLE IF NOT EXISTS trades (
			seq BIGINT PRIMARY KEY,
			id TEXT NOT NULL,
			traded_at TEXT NOT NULL,
			ticker TEXT NOT NULL,
			action TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			currency TEXT NOT NULL,
			amount_in DOUBLE PRECISION NOT NULL,
			kind TEXT NOT NULL
		)`,
	columns: []string{"id", "traded_at", "ticker", "action", "quantity", "price", "value", "currency", "amount_in", "kind"},
	args: func(t models.Trade) []any {
		return []any{
			t.ID, t.Timestamp.UTC().Format(time.RFC3339Nano), t.Ticker, string(t.Action),
			t.Quantity, t.Price, t.Value, t.Currency, t.AmountIn, string(t.Kind),
		}
	},
	scan: func(s scanner) (models.Trade, error) {
		var t models.Trade
		var ts, action, kind string
		err := s.Scan(&t.ID, &ts, &t.Ticker, &action, &t.Quantity, &t.Price, &t.Value, &t.Currency, &t.AmountIn, &kind)
		if err != nil {
			return t, err
		}
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return t, err
		}
		t.Action = models.TradeAction(action)
		t.Kind = models.PortfolioKind(kind)
		return t, nil
	},
}

var predictionsTable = table[models.PredictionRecord]{
	name: "predictions",
	create: `
		CREATE TABLE IF NOT EXISTS predictions (
			seq BIGINT PRIMARY KEY,
			id TEXT NOT NULL,
			prediction_date TEXT NOT NULL,
			ticker TEXT NOT NULL,
			horizon_days INTEGER NOT NULL,
			initial_price DOUBLE PRECISION NOT NULL,
			predicted_price DOUBLE PRECISION NOT NULL,
			predicted_change_pct DOUBLE PRECISION NOT NULL,
			realized_price DOUBLE PRECISION,
			realized_change_pct DOUBLE PRECISION,
			status TEXT NOT NULL
		)`,
	columns: []string{
		"id", "prediction_date", "ticker", "horizon_days", "initial_price", "predicted_price",
		"predicted_change_pct", "realized_price", "realized_change_pct", "status",
	},
	args: func(p models.PredictionRecord) []any {
		return []any{
			p.ID, p.PredictionDate.Format(models.DateLayout), p.Ticker, p.HorizonDays,
			p.InitialPrice, p.PredictedPrice, p.PredictedChangePct,
			nullable(p.RealizedPrice), nullable(p.RealizedChangePct), string(p.Status),
		}
	},
	scan: func(s scanner) (models.PredictionRecord, error) {
		var p models.PredictionRecord
		var date, status string
		var realized, realizedPct sql.NullFloat64
		err := s.Scan(&p.ID, &date, &p.Ticker, &p.HorizonDays, &p.InitialPrice, &p.PredictedPrice,
			&p.PredictedChangePct, &realized, &realizedPct, &status)
		if err != nil {
			return p, err
		}
		if p.PredictionDate, err = models.ParseDate(date); err != nil {
			return p, err
		}
		if realized.Valid {
			p.RealizedPrice = models.Float(realized.Float64)
		}
		if realizedPct.Valid {
			p.RealizedChangePct = models.Float(realizedPct.Float64)
		}
		p.Status = models.PredictionStatus(status)
		return p, nil
	},
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// Trades returns the portfolio ledger stored in this database
func (db *DB) Trades() ledger.Log[models.Trade] {
	return &tableLog[models.Trade]{db: db, t: tradesTable}
}

// Predictions returns the prediction ledger stored in this database
func (db *DB) Predictions() ledger.Log[models.PredictionRecord] {
	return &tableLog[models.PredictionRecord]{db: db, t: predictionsTable}
}

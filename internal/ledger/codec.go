package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Alias1177/insighthub/models"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func parseOptional(field, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseFloat(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// TradeCodec encodes portfolio trades
type TradeCodec struct{}

func (TradeCodec) Header() []string {
	return []string{"id", "timestamp", "ticker", "action", "quantity", "price", "value", "currency", "amount_in", "kind"}
}

func (TradeCodec) Encode(t models.Trade) []string {
	return []string{
		t.ID,
		t.Timestamp.UTC().Format(time.RFC3339Nano),
		t.Ticker,
		string(t.Action),
		formatFloat(t.Quantity),
		formatFloat(t.Price),
		formatFloat(t.Value),
		t.Currency,
		formatFloat(t.AmountIn),
		string(t.Kind),
	}
}

func (TradeCodec) Decode(r []string) (models.Trade, error) {
	ts, err := time.Parse(time.RFC3339Nano, r[1])
	if err != nil {
		return models.Trade{}, fmt.Errorf("timestamp: %w", err)
	}
	t := models.Trade{
		ID:        r[0],
		Timestamp: ts,
		Ticker:    r[2],
		Action:    models.TradeAction(r[3]),
		Currency:  r[7],
		Kind:      models.PortfolioKind(r[9]),
	}
	if t.Quantity, err = parseFloat("quantity", r[4]); err != nil {
		return models.Trade{}, err
	}
	if t.Price, err = parseFloat("price", r[5]); err != nil {
		return models.Trade{}, err
	}
	if t.Value, err = parseFloat("value", r[6]); err != nil {
		return models.Trade{}, err
	}
	if t.AmountIn, err = parseFloat("amount_in", r[8]); err != nil {
		return models.Trade{}, err
	}
	return t, nil
}

// PredictionCodec encodes prediction records
type PredictionCodec struct{}

func (PredictionCodec) Header() []string {
	return []string{
		"id", "prediction_date", "ticker", "horizon_days", "initial_price", "predicted_price",
		"predicted_change_pct", "realized_price", "realized_change_pct", "status",
	}
}

func (PredictionCodec) Encode(p models.PredictionRecord) []string {
	return []string{
		p.ID,
		p.PredictionDate.Format(models.DateLayout),
		p.Ticker,
		strconv.Itoa(p.HorizonDays),
		formatFloat(p.InitialPrice),
		formatFloat(p.PredictedPrice),
		formatFloat(p.PredictedChangePct),
		formatOptional(p.RealizedPrice),
		formatOptional(p.RealizedChangePct),
		string(p.Status),
	}
}

func (PredictionCodec) Decode(r []string) (models.PredictionRecord, error) {
	date, err := models.ParseDate(r[1])
	if err != nil {
		return models.PredictionRecord{}, err
	}
	horizon, err := strconv.Atoi(r[3])
	if err != nil {
		return models.PredictionRecord{}, fmt.Errorf("horizon_days: %w", err)
	}
	p := models.PredictionRecord{
		ID:             r[0],
		PredictionDate: date,
		Ticker:         r[2],
		HorizonDays:    horizon,
		Status:         models.PredictionStatus(r[9]),
	}
	if p.InitialPrice, err = parseFloat("initial_price", r[4]); err != nil {
		return models.PredictionRecord{}, err
	}
	if p.PredictedPrice, err = parseFloat("predicted_price", r[5]); err != nil {
		return models.PredictionRecord{}, err
	}
	if p.PredictedChangePct, err = parseFloat("predicted_change_pct", r[6]); err != nil {
		return models.PredictionRecord{}, err
	}
	if p.RealizedPrice, err = parseOptional("realized_price", r[7]); err != nil {
		return models.PredictionRecord{}, err
	}
	if p.RealizedChangePct, err = parseOptional("realized_change_pct", r[8]); err != nil {
		return models.PredictionRecord{}, err
	}
	return p, nil
}

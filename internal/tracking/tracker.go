// Package tracking logs price predictions and scores them once they mature.
package tracking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/cache"
	"github.com/Alias1177/insighthub/internal/ledger"
	"github.com/Alias1177/insighthub/internal/metrics"
	"github.com/Alias1177/insighthub/models"
)

// Prediction is a forecast to be logged
type Prediction struct {
	Ticker             string  `json:"ticker"`
	PredictedPrice     float64 `json:"predicted_price"`
	PredictedChangePct float64 `json:"predicted_change_pct"`
}

// ReconcileReport counts what a reconcile pass did
type ReconcileReport struct {
	Checked      int `json:"checked"`
	Completed    int `json:"completed"`
	Errored      int `json:"errored"`
	StillPending int `json:"still_pending"`
}

// Stats scores completed predictions
type Stats struct {
	Count               int     `json:"count"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
	MAE                 float64 `json:"mae"`
}

// Tracker owns the prediction ledger
type Tracker struct {
	records ledger.Log[models.PredictionRecord]
	prices  models.PriceSource
	clock   cache.Clock
	logger  zerolog.Logger
}

// NewTracker creates a tracker; a nil clock uses the system time
func NewTracker(records ledger.Log[models.PredictionRecord], prices models.PriceSource, clock cache.Clock) *Tracker {
	if clock == nil {
		clock = cache.SystemClock{}
	}
	return &Tracker{
		records: records,
		prices:  prices,
		clock:   clock,
		logger:  log.With().Str("component", "tracking").Logger(),
	}
}

// Save logs predictions as pending with today's date and the current price
// as the initial price. Tickers without a price are dropped.
func (t *Tracker) Save(ctx context.Context, predictions []Prediction, horizon int) ([]models.PredictionRecord, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	today := t.today()

	saved := make([]models.PredictionRecord, 0, len(predictions))
	for _, p := range predictions {
		ticker := models.NormalizeTicker(p.Ticker)
		price, err := t.prices.CurrentPrice(ctx, ticker)
		if err != nil || price <= 0 {
			t.logger.Warn().Err(err).Str("ticker", ticker).Msg("no initial price, prediction dropped")
			continue
		}
		saved = append(saved, models.PredictionRecord{
			ID:                 uuid.NewString(),
			PredictionDate:     today,
			Ticker:             ticker,
			HorizonDays:        horizon,
			InitialPrice:       price,
			PredictedPrice:     p.PredictedPrice,
			PredictedChangePct: p.PredictedChangePct,
			Status:             models.StatusPending,
		})
	}
	if len(saved) == 0 {
		return saved, nil
	}

	if err := t.records.Append(ctx, saved...); err != nil {
		metrics.LedgerWrites.WithLabelValues("predictions", "error").Inc()
		return nil, fmt.Errorf("persist predictions: %w", err)
	}
	metrics.LedgerWrites.WithLabelValues("predictions", "ok").Inc()
	t.logger.Info().Int("saved", len(saved)).Int("horizon", horizon).Msg("predictions logged")
	return saved, nil
}

// realized is the outcome of one close lookup
type realized struct {
	price float64
	found bool
}

type dueKey struct {
	ticker string
	due    string
}

// Reconcile resolves every due pending record against the close on its due
// date and persists the ledger once. Closes are looked up before the ledger
// is locked so slow providers do not block concurrent writers.
func (t *Tracker) Reconcile(ctx context.Context) (ReconcileReport, error) {
	today := t.today()

	snapshot, err := t.records.Load(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("load predictions: %w", err)
	}
	closes := t.lookupDue(ctx, snapshot, today)

	var report ReconcileReport
	err = t.records.Update(ctx, func(records []models.PredictionRecord) ([]models.PredictionRecord, error) {
		report = ReconcileReport{}
		for i := range records {
			r := &records[i]
			if r.Status != models.StatusPending {
				continue
			}
			report.Checked++

			due := r.DueDate()
			if today.Before(due) {
				report.StillPending++
				continue
			}
			if r.InitialPrice <= 0 {
				t.logger.Warn().Str("id", r.ID).Str("ticker", r.Ticker).Float64("initial_price", r.InitialPrice).Msg("invalid initial price")
				r.Status = models.StatusPriceError
				report.Errored++
				continue
			}

			res, looked := closes[dueKey{r.Ticker, due.Format(models.DateLayout)}]
			if !looked {
				// appended after the snapshot, picked up by the next pass
				report.StillPending++
				continue
			}
			if !res.found {
				r.Status = models.StatusPriceError
				report.Errored++
				continue
			}

			r.RealizedPrice = models.Float(res.price)
			r.RealizedChangePct = models.Float((res.price - r.InitialPrice) / r.InitialPrice * 100)
			r.Status = models.StatusCompleted
			report.Completed++
		}
		return records, nil
	})
	if err != nil {
		metrics.LedgerWrites.WithLabelValues("predictions", "error").Inc()
		return report, fmt.Errorf("reconcile predictions: %w", err)
	}
	metrics.LedgerWrites.WithLabelValues("predictions", "ok").Inc()
	metrics.PredictionsReconciled.WithLabelValues(string(models.StatusCompleted)).Add(float64(report.Completed))
	metrics.PredictionsReconciled.WithLabelValues(string(models.StatusPriceError)).Add(float64(report.Errored))

	t.logger.Info().
		Int("checked", report.Checked).
		Int("completed", report.Completed).
		Int("errored", report.Errored).
		Int("pending", report.StillPending).
		Msg("predictions reconciled")
	return report, nil
}

// lookupDue fetches the due-date close of every matured pending record,
// once per ticker and date. Failed lookups count as not found.
func (t *Tracker) lookupDue(ctx context.Context, records []models.PredictionRecord, today time.Time) map[dueKey]realized {
	closes := make(map[dueKey]realized)
	for _, r := range records {
		if r.Status != models.StatusPending || r.InitialPrice <= 0 {
			continue
		}
		due := r.DueDate()
		if today.Before(due) {
			continue
		}
		key := dueKey{r.Ticker, due.Format(models.DateLayout)}
		if _, ok := closes[key]; ok {
			continue
		}
		price, found, err := t.prices.PriceOnDate(ctx, r.Ticker, due)
		if err != nil {
			t.logger.Warn().Err(err).Str("ticker", r.Ticker).Msg("realized price lookup failed")
			found = false
		}
		closes[key] = realized{price: price, found: found}
	}
	return closes
}

// today is the local calendar date expressed in UTC, the location ledger dates load in
func (t *Tracker) today() time.Time {
	y, m, d := t.clock.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Records returns the whole ledger
func (t *Tracker) Records(ctx context.Context) ([]models.PredictionRecord, error) {
	return t.records.Load(ctx)
}

// Pending returns records still awaiting their due date
func (t *Tracker) Pending(ctx context.Context) ([]models.PredictionRecord, error) {
	return t.byStatus(ctx, models.StatusPending)
}

// Completed returns records with a realized price
func (t *Tracker) Completed(ctx context.Context) ([]models.PredictionRecord, error) {
	return t.byStatus(ctx, models.StatusCompleted)
}

func (t *Tracker) byStatus(ctx context.Context, status models.PredictionStatus) ([]models.PredictionRecord, error) {
	all, err := t.records.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	out := make([]models.PredictionRecord, 0, len(all))
	for _, r := range all {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

// ComputeStats scores the completed records among records. A prediction is
// directionally right when predicted and realized changes share a sign.
func ComputeStats(records []models.PredictionRecord) Stats {
	var s Stats
	var hits int
	var absErr float64
	for _, r := range records {
		if r.Status != models.StatusCompleted || r.RealizedChangePct == nil {
			continue
		}
		s.Count++
		if r.PredictedChangePct*(*r.RealizedChangePct) > 0 {
			hits++
		}
		absErr += math.Abs(r.PredictedChangePct - *r.RealizedChangePct)
	}
	if s.Count == 0 {
		return s
	}
	s.DirectionalAccuracy = float64(hits) / float64(s.Count)
	s.MAE = absErr / float64(s.Count)
	return s
}

// Package macro assembles the FRED macro dashboard
package macro

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/api/fred"
	"github.com/Alias1177/insighthub/internal/cache"
	"github.com/Alias1177/insighthub/models"
)

// FRED series identifiers
const (
	SeriesFedFunds     = "DFF"
	SeriesCPI          = "CPIAUCSL"
	SeriesUnemployment = "UNRATE"
	SeriesVIX          = "VIXCLS"
)

// SeriesSource downloads one FRED series
type SeriesSource interface {
	Series(ctx context.Context, id string, start, end time.Time) ([]fred.Observation, error)
}

// Collector joins the macro series into daily rows
type Collector struct {
	source SeriesSource
	store  cache.Store
	logger zerolog.Logger
}

// NewCollector creates a macro collector
func NewCollector(source SeriesSource, store cache.Store) *Collector {
	return &Collector{
		source: source,
		store:  store,
		logger: log.With().Str("component", "macro").Logger(),
	}
}

// Collect returns one row per date seen in any series, oldest first.
// Monthly series are carried forward; remaining gaps are zero.
// A download failure yields an empty result.
func (c *Collector) Collect(ctx context.Context, start, end time.Time) []models.MacroRow {
	key := cache.Key("macro", start.Format(models.DateLayout), end.Format(models.DateLayout))
	rows, err := cache.Remember(ctx, c.store, "macro", key, cache.TTLMacro, func() ([]models.MacroRow, error) {
		return c.collect(ctx, start, end)
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("macro data unavailable")
		return []models.MacroRow{}
	}
	return rows
}

func (c *Collector) collect(ctx context.Context, start, end time.Time) ([]models.MacroRow, error) {
	ids := []string{SeriesFedFunds, SeriesCPI, SeriesUnemployment, SeriesVIX}

	// date -> series index -> value
	table := make(map[time.Time][4]*float64)
	for i, id := range ids {
		obs, err := c.source.Series(ctx, id, start, end)
		if err != nil {
			return nil, err
		}
		for _, o := range obs {
			day := models.Day(o.Date)
			row := table[day]
			row[i] = o.Value
			table[day] = row
		}
	}

	dates := make([]time.Time, 0, len(table))
	for d := range table {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var lastCPI, lastUnemployment *float64
	out := make([]models.MacroRow, 0, len(dates))
	for _, d := range dates {
		row := table[d]
		if row[1] != nil {
			lastCPI = row[1]
		}
		if row[2] != nil {
			lastUnemployment = row[2]
		}
		out = append(out, models.MacroRow{
			Date:             d,
			FedFundsRate:     orZero(row[0]),
			InflationCPI:     orZero(lastCPI),
			UnemploymentRate: orZero(lastUnemployment),
			VIX:              orZero(row[3]),
		})
	}
	return out, nil
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

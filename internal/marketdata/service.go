// Package marketdata is the single entry point for price history,
// fundamentals and FX rates. Every provider call is memoized and retried.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/cache"
	"github.com/Alias1177/insighthub/internal/platform/retry"
	"github.com/Alias1177/insighthub/models"
)

// EURUSDTicker is the Yahoo symbol of the EUR/USD rate
const EURUSDTicker = "EURUSD=X"

// ErrNoPrice is returned when a provider has no close for a ticker
var ErrNoPrice = errors.New("no price available")

// Provider is the raw market-data source
type Provider interface {
	History(ctx context.Context, ticker string, start, end time.Time) ([]models.Candle, error)
	HistoryRange(ctx context.Context, ticker, rng string) ([]models.Candle, error)
	Fundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error)
}

// Service wraps a Provider with caching and retry
type Service struct {
	provider Provider
	store    cache.Store
	clock    cache.Clock
	policy   retry.Policy
	logger   zerolog.Logger
}

// NewService creates the data access layer
func NewService(provider Provider, store cache.Store, clock cache.Clock, policy retry.Policy) *Service {
	if clock == nil {
		clock = cache.SystemClock{}
	}
	return &Service{
		provider: provider,
		store:    store,
		clock:    clock,
		policy:   policy,
		logger:   log.With().Str("component", "marketdata").Logger(),
	}
}

// Period returns daily bars for a lookback such as "1y" or "3y"
func (s *Service) Period(ctx context.Context, ticker, period string) ([]models.Candle, error) {
	key := cache.Key("history", ticker, period)
	return cache.Remember(ctx, s.store, "history", key, cache.TTLHistory, func() ([]models.Candle, error) {
		return retry.Value(ctx, s.policy, func() ([]models.Candle, error) {
			return s.provider.HistoryRange(ctx, ticker, period)
		})
	})
}

// History returns daily bars between two dates
func (s *Service) History(ctx context.Context, ticker string, start, end time.Time) ([]models.Candle, error) {
	key := cache.Key("history", ticker, start.Format(models.DateLayout), end.Format(models.DateLayout))
	return cache.Remember(ctx, s.store, "history", key, cache.TTLHistory, func() ([]models.Candle, error) {
		return retry.Value(ctx, s.policy, func() ([]models.Candle, error) {
			return s.provider.History(ctx, ticker, start, end)
		})
	})
}

// CurrentPrice is the latest daily close
func (s *Service) CurrentPrice(ctx context.Context, ticker string) (float64, error) {
	candles, err := s.Period(ctx, ticker, "5d")
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("%s: %w", ticker, ErrNoPrice)
	}
	return candles[len(candles)-1].Close, nil
}

// PriceOnDate returns the first close on or after date, looking at most two
// days ahead. ok is false when no bar falls in that window.
func (s *Service) PriceOnDate(ctx context.Context, ticker string, date time.Time) (float64, bool, error) {
	day := models.Day(date)

	type lookup struct {
		Price float64 `json:"price"`
		Found bool    `json:"found"`
	}

	key := cache.Key("price_on_date", ticker, day.Format(models.DateLayout))
	res, err := cache.Remember(ctx, s.store, "price_on_date", key, cache.TTLPriceDate, func() (lookup, error) {
		candles, err := retry.Value(ctx, s.policy, func() ([]models.Candle, error) {
			return s.provider.History(ctx, ticker, day, day.AddDate(0, 0, 2))
		})
		if err != nil {
			return lookup{}, err
		}
		for _, c := range candles {
			if !models.Day(c.Timestamp).Before(day) {
				return lookup{Price: c.Close, Found: true}, nil
			}
		}
		return lookup{}, nil
	})
	if err != nil {
		return 0, false, err
	}
	return res.Price, res.Found, nil
}

// Fundamentals returns the ratio snapshot of one ticker
func (s *Service) Fundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	key := cache.Key("fundamentals", ticker)
	return cache.Remember(ctx, s.store, "fundamentals", key, cache.TTLQuote, func() (*models.Fundamentals, error) {
		return retry.Value(ctx, s.policy, func() (*models.Fundamentals, error) {
			return s.provider.Fundamentals(ctx, ticker)
		})
	})
}

// FundamentalsBatch fetches snapshots sequentially; failing tickers are omitted
func (s *Service) FundamentalsBatch(ctx context.Context, tickers []string) []models.Fundamentals {
	out := make([]models.Fundamentals, 0, len(tickers))
	for _, ticker := range tickers {
		f, err := s.Fundamentals(ctx, ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("fundamentals unavailable")
			continue
		}
		out = append(out, *f)
	}
	return out
}

// EURUSD is the latest EUR/USD rate
func (s *Service) EURUSD(ctx context.Context) (float64, error) {
	key := cache.Key("fx", EURUSDTicker)
	return cache.Remember(ctx, s.store, "fx", key, cache.TTLQuote, func() (float64, error) {
		return s.CurrentPrice(ctx, EURUSDTicker)
	})
}

// Now exposes the service clock to collaborators that must agree on "today"
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

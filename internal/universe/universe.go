// Package universe produces the ticker lists scanned by discovery
package universe

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/api/coingecko"
	"github.com/Alias1177/insighthub/internal/cache"
)

var (
	fallbackCrypto = []string{"BTC-USD", "ETH-USD", "SOL-USD", "XRP-USD", "DOGE-USD", "ADA-USD", "AVAX-USD"}
	fallbackSP500  = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "TSLA", "JPM"}
)

// CoinRanker lists coins by market cap
type CoinRanker interface {
	Markets(ctx context.Context, vsCurrency string, perPage, page int) ([]coingecko.Coin, error)
}

// IndexScraper lists index constituents
type IndexScraper interface {
	SP500Symbols(ctx context.Context) ([]string, error)
}

// Lists resolves symbol lists with static fallbacks
type Lists struct {
	coins  CoinRanker
	index  IndexScraper
	store  cache.Store
	logger zerolog.Logger
}

// New creates the symbol list resolver
func New(coins CoinRanker, index IndexScraper, store cache.Store) *Lists {
	return &Lists{
		coins:  coins,
		index:  index,
		store:  store,
		logger: log.With().Str("component", "universe").Logger(),
	}
}

// TopCrypto returns the n largest coins as Yahoo symbols (BTC-USD)
func (l *Lists) TopCrypto(ctx context.Context, n int) []string {
	symbols, err := cache.Remember(ctx, l.store, "list", cache.Key("list", "crypto", n), cache.TTLList, func() ([]string, error) {
		coins, err := l.coins.Markets(ctx, "usd", n, 1)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(coins))
		for _, c := range coins {
			if c.Symbol == "" {
				continue
			}
			out = append(out, strings.ToUpper(c.Symbol)+"-USD")
		}
		return out, nil
	})
	if err != nil || len(symbols) == 0 {
		l.logger.Warn().Err(err).Msg("crypto ranking unavailable, using fallback list")
		return append([]string(nil), fallbackCrypto...)
	}
	return symbols
}

// SP500 returns the S&P 500 constituents with class-share dots as dashes (BRK-B)
func (l *Lists) SP500(ctx context.Context) []string {
	symbols, err := cache.Remember(ctx, l.store, "list", cache.Key("list", "sp500"), cache.TTLList, func() ([]string, error) {
		raw, err := l.index.SP500Symbols(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(raw))
		for _, s := range raw {
			out = append(out, strings.ReplaceAll(s, ".", "-"))
		}
		return out, nil
	})
	if err != nil || len(symbols) == 0 {
		l.logger.Warn().Err(err).Msg("S&P 500 constituents unavailable, using fallback list")
		return append([]string(nil), fallbackSP500...)
	}
	return symbols
}

// ParseTickerList splits a comma-separated user list
func ParseTickerList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.ToUpper(strings.TrimSpace(part)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

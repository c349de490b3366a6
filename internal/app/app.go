// Package app wires configuration, caches, provider clients and engines
// into one explicit context shared by the CLI and the HTTP server.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/analysis/prediction"
	"github.com/Alias1177/insighthub/internal/analyze"
	"github.com/Alias1177/insighthub/internal/api/coingecko"
	"github.com/Alias1177/insighthub/internal/api/fred"
	"github.com/Alias1177/insighthub/internal/api/newsapi"
	"github.com/Alias1177/insighthub/internal/api/wikipedia"
	"github.com/Alias1177/insighthub/internal/api/yahoo"
	"github.com/Alias1177/insighthub/internal/cache"
	"github.com/Alias1177/insighthub/internal/config"
	"github.com/Alias1177/insighthub/internal/database"
	"github.com/Alias1177/insighthub/internal/discovery"
	"github.com/Alias1177/insighthub/internal/ledger"
	"github.com/Alias1177/insighthub/internal/macro"
	"github.com/Alias1177/insighthub/internal/marketdata"
	"github.com/Alias1177/insighthub/internal/notify"
	httpClient "github.com/Alias1177/insighthub/internal/platform/http"
	"github.com/Alias1177/insighthub/internal/platform/httpcache"
	"github.com/Alias1177/insighthub/internal/platform/retry"
	"github.com/Alias1177/insighthub/internal/portfolio"
	"github.com/Alias1177/insighthub/internal/sentiment"
	"github.com/Alias1177/insighthub/internal/tracking"
	"github.com/Alias1177/insighthub/internal/trading/backtest"
	"github.com/Alias1177/insighthub/internal/universe"
	"github.com/Alias1177/insighthub/models"
)

// App owns every long-lived collaborator. Nothing in the process is global
// except the logger and the metric registry.
type App struct {
	Config *config.Config
	Store  cache.Store
	Clock  cache.Clock
	Retry  retry.Policy
	Algo   analyze.Algorithm

	Market     *marketdata.Service
	Universe   *universe.Lists
	Macro      *macro.Collector
	Sentiment  *sentiment.Analyzer
	Classifier *analyze.Classifier
	Predictor  *prediction.Predictor
	Backtester *backtest.Engine
	Portfolio  *portfolio.Ledger
	Tracker    *tracking.Tracker
	Discovery  *discovery.Engine
	Notifier   notify.Notifier

	closers []io.Closer
	logger  zerolog.Logger
}

// New builds the application from cfg
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	algo, err := analyze.ParseAlgorithm(cfg.DefaultAlgo)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Clock:  cache.SystemClock{},
		Algo:   algo,
		Retry: retry.Policy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   time.Duration(cfg.RetryBaseDelay) * time.Millisecond,
			Multiplier:  cfg.RetryMultiplier,
		},
		logger: log.With().Str("component", "app").Logger(),
	}

	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}

	transport, err := a.openHTTPCache()
	if err != nil {
		a.Close()
		return nil, err
	}
	newHTTP := func(name string) *httpClient.Client {
		return httpClient.NewClient(httpClient.ClientOptions{
			Name:           name,
			Timeout:        cfg.Timeout(),
			RequestsPerSec: cfg.RequestsPerSec,
			Retry:          retry.None, // the data layer owns market-data retries
			Transport:      transport,
		})
	}

	yahooClient := yahoo.NewClient(newHTTP("yahoo"), "")
	newsClient := newsapi.NewClient(newHTTP("newsapi"), cfg.NewsAPIKey, "")
	coinClient := coingecko.NewClient(newHTTP("coingecko"), "")
	wikiClient := wikipedia.NewClient(newHTTP("wikipedia"), "")
	fredClient := fred.NewClient(newHTTP("fred"), "")

	a.Market = marketdata.NewService(yahooClient, a.Store, a.Clock, a.Retry)
	a.Universe = universe.New(coinClient, wikiClient, a.Store)
	a.Macro = macro.NewCollector(fredClient, a.Store)
	a.Sentiment = sentiment.NewAnalyzer(newsClient, a.Store, a.Clock)
	a.Classifier = analyze.NewClassifier(a.Market, a.Market, a.Sentiment, a.Store)
	a.Predictor = prediction.NewPredictor(a.Market, a.Store)
	a.Backtester = backtest.NewEngine()
	a.Backtester.Cash = cfg.BacktestCash
	a.Backtester.Commission = cfg.BacktestCommission
	a.Discovery = discovery.NewEngine(a.Classifier, a.Predictor, a.Universe)

	trades, predictions, err := a.openLedgers(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Portfolio = portfolio.NewLedger(trades, a.Market, a.Classifier, algo, a.Clock)
	a.Tracker = tracking.NewTracker(predictions, a.Market, a.Clock)

	a.Notifier = notify.Noop{}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			a.logger.Warn().Err(err).Msg("telegram unavailable, notifications disabled")
		} else {
			a.Notifier = tg
		}
	}

	a.logger.Info().
		Str("cache", cfg.CacheBackend).
		Str("ledger", cfg.LedgerBackend).
		Str("algorithm", string(algo)).
		Msg("application initialized")
	return a, nil
}

func (a *App) openCache(ctx context.Context) error {
	switch a.Config.CacheBackend {
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     a.Config.RedisAddr,
			Password: a.Config.RedisPassword,
			DB:       a.Config.RedisDB,
			Prefix:   "insighthub:",
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.Store = r
		a.closers = append(a.closers, r)
	default:
		a.Store = cache.NewMemory(a.Clock)
	}
	return nil
}

func (a *App) openHTTPCache() (http.RoundTripper, error) {
	if a.Config.HTTPCacheTTL <= 0 || a.Config.HTTPCachePath == "" {
		return http.DefaultTransport, nil
	}
	if err := ensureDir(a.Config.HTTPCachePath); err != nil {
		return nil, err
	}
	t, err := httpcache.Open(a.Config.HTTPCachePath, time.Duration(a.Config.HTTPCacheTTL)*time.Second, nil)
	if err != nil {
		return nil, fmt.Errorf("open http cache: %w", err)
	}
	a.closers = append(a.closers, t)
	return t, nil
}

func (a *App) openLedgers(ctx context.Context) (ledger.Log[models.Trade], ledger.Log[models.PredictionRecord], error) {
	switch a.Config.LedgerBackend {
	case database.DriverPostgres, database.DriverSQLite:
		db, err := database.New(ctx, a.Config.LedgerBackend, a.Config.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db)
		return db.Trades(), db.Predictions(), nil
	default:
		return ledger.NewFileLog[models.Trade](a.Config.TradesPath, ledger.TradeCodec{}),
			ledger.NewFileLog[models.PredictionRecord](a.Config.PredictionsPath, ledger.PredictionCodec{}),
			nil
	}
}

// Close releases caches and database handles
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Package sentiment scores recent news headlines for a ticker
package sentiment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/api/newsapi"
	"github.com/Alias1177/insighthub/internal/cache"
)

// Status messages returned alongside a score
const (
	StatusOK         = "Analysis succeeded"
	StatusNoKey      = "API key not configured"
	StatusInvalidKey = "Invalid API key"
	StatusNoArticles = "No recent articles found"
	StatusAPIError   = "News API error"
)

const (
	lookback = 7 * 24 * time.Hour
	pageSize = 20
)

// NewsSearcher is the article search backend
type NewsSearcher interface {
	HasKey() bool
	Everything(ctx context.Context, q newsapi.Query) ([]newsapi.Article, error)
}

// Article is one scored headline
type Article struct {
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Source   string  `json:"source,omitempty"`
	Polarity float64 `json:"polarity"`
}

// Result is the averaged headline polarity
type Result struct {
	Score    float64   `json:"score"`
	Articles []Article `json:"articles"`
	Status   string    `json:"status"`
}

// Analyzer computes news sentiment; failures degrade to a zero score
type Analyzer struct {
	news   NewsSearcher
	store  cache.Store
	clock  cache.Clock
	logger zerolog.Logger
}

// NewAnalyzer creates a sentiment analyzer
func NewAnalyzer(news NewsSearcher, store cache.Store, clock cache.Clock) *Analyzer {
	if clock == nil {
		clock = cache.SystemClock{}
	}
	return &Analyzer{
		news:   news,
		store:  store,
		clock:  clock,
		logger: log.With().Str("component", "sentiment").Logger(),
	}
}

// SearchQuery turns a ticker into a news search phrase
func SearchQuery(query string) string {
	q := strings.ReplaceAll(query, "-USD", "")
	q = strings.ReplaceAll(q, "AAPL", "Apple")
	return strings.ReplaceAll(q, "GOOGL", "Google")
}

// Analyze returns the mean title polarity of the last week's articles
func (a *Analyzer) Analyze(ctx context.Context, query string) Result {
	if a.news == nil || !a.news.HasKey() {
		return Result{Status: StatusNoKey}
	}

	key := cache.Key("sentiment", query)
	res, err := cache.Remember(ctx, a.store, "sentiment", key, cache.TTLSentiment, func() (Result, error) {
		return a.analyze(ctx, query)
	})
	if err != nil {
		var apiErr *newsapi.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "apiKeyInvalid" {
			return Result{Status: StatusInvalidKey}
		}
		a.logger.Warn().Err(err).Str("query", query).Msg("news search failed")
		return Result{Status: StatusAPIError}
	}
	return res
}

func (a *Analyzer) analyze(ctx context.Context, query string) (Result, error) {
	articles, err := a.news.Everything(ctx, newsapi.Query{
		Q:        SearchQuery(query),
		From:     a.clock.Now().Add(-lookback),
		Language: "en",
		SortBy:   "relevancy",
		PageSize: pageSize,
	})
	if err != nil {
		return Result{}, err
	}
	if len(articles) == 0 {
		return Result{Status: StatusNoArticles}, nil
	}

	var sum float64
	scored := make([]Article, 0, len(articles))
	for _, art := range articles {
		if art.Title == "" {
			continue
		}
		p := Polarity(art.Title)
		sum += p
		scored = append(scored, Article{
			Title:    art.Title,
			URL:      art.URL,
			Source:   art.Source.Name,
			Polarity: p,
		})
	}

	res := Result{Articles: scored, Status: StatusOK}
	if len(scored) > 0 {
		res.Score = sum / float64(len(scored))
	}
	return res, nil
}

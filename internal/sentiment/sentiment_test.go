package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Alias1177/insighthub/internal/api/newsapi"
	"github.com/Alias1177/insighthub/internal/cache"
)

func TestPolarity(t *testing.T) {
	tests := []struct {
		name  string
		title string
		check func(float64) bool
	}{
		{"positive headline", "Apple posts record profit, shares surge", func(p float64) bool { return p > 0 }},
		{"negative headline", "Bitcoin crashes as fears of recession grow", func(p float64) bool { return p < 0 }},
		{"neutral headline", "Company announces quarterly results on Tuesday", func(p float64) bool { return p == 0 }},
		{"negation flips", "Results not good", func(p float64) bool { return p < 0 }},
		{"intensifier stays bounded", "extremely very excellent", func(p float64) bool { return p == 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Polarity(tt.title); !tt.check(got) {
				t.Errorf("Polarity(%q) = %v", tt.title, got)
			}
		})
	}
}

func TestSearchQuery(t *testing.T) {
	tests := map[string]string{
		"BTC-USD": "BTC",
		"AAPL":    "Apple",
		"GOOGL":   "Google",
		"MSFT":    "MSFT",
	}
	for in, want := range tests {
		if got := SearchQuery(in); got != want {
			t.Errorf("SearchQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeNews struct {
	key      bool
	articles []newsapi.Article
	err      error
	last     newsapi.Query
	calls    int
}

func (f *fakeNews) HasKey() bool { return f.key }

func (f *fakeNews) Everything(_ context.Context, q newsapi.Query) ([]newsapi.Article, error) {
	f.calls++
	f.last = q
	return f.articles, f.err
}

func TestAnalyze(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	news := &fakeNews{key: true, articles: []newsapi.Article{
		{Title: "Shares surge on strong growth"},
		{Title: ""},
		{Title: "Analysts issue downgrade"},
	}}
	a := NewAnalyzer(news, cache.NewMemory(nil), cache.NewFakeClock(now))

	res := a.Analyze(context.Background(), "AAPL")
	if res.Status != StatusOK {
		t.Fatalf("Status = %q, want %q", res.Status, StatusOK)
	}
	if len(res.Articles) != 2 {
		t.Errorf("len(Articles) = %d, want 2 (untitled skipped)", len(res.Articles))
	}
	want := (res.Articles[0].Polarity + res.Articles[1].Polarity) / 2
	if res.Score != want {
		t.Errorf("Score = %v, want mean %v", res.Score, want)
	}
	if news.last.Q != "Apple" || news.last.PageSize != 20 || news.last.SortBy != "relevancy" {
		t.Errorf("query = %+v", news.last)
	}
	if !news.last.From.Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Errorf("From = %v", news.last.From)
	}

	a.Analyze(context.Background(), "AAPL")
	if news.calls != 1 {
		t.Errorf("Everything called %d times, want 1 (memoized)", news.calls)
	}
}

func TestAnalyzeDegrades(t *testing.T) {
	tests := []struct {
		name   string
		news   *fakeNews
		status string
	}{
		{"no key", &fakeNews{}, StatusNoKey},
		{"invalid key", &fakeNews{key: true, err: &newsapi.APIError{Code: "apiKeyInvalid"}}, StatusInvalidKey},
		{"no articles", &fakeNews{key: true}, StatusNoArticles},
		{"other error", &fakeNews{key: true, err: errors.New("timeout")}, StatusAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewAnalyzer(tt.news, nil, nil).Analyze(context.Background(), "MSFT")
			if res.Status != tt.status || res.Score != 0 || len(res.Articles) != 0 {
				t.Errorf("Analyze() = %+v, want status %q with zero score", res, tt.status)
			}
		})
	}
}

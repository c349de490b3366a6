package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alias1177/insighthub/internal/api/yahoo"
	"github.com/Alias1177/insighthub/internal/cache"
	httpClient "github.com/Alias1177/insighthub/internal/platform/http"
	"github.com/Alias1177/insighthub/internal/platform/retry"
	"github.com/Alias1177/insighthub/models"
)

type fakeProvider struct {
	bars        []models.Candle
	fundamental *models.Fundamentals
	failures    int
	calls       int
}

func (f *fakeProvider) History(_ context.Context, _ string, start, end time.Time) ([]models.Candle, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("flaky")
	}
	var out []models.Candle
	for _, b := range f.bars {
		if !b.Timestamp.Before(start) && b.Timestamp.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeProvider) HistoryRange(_ context.Context, _ string, _ string) ([]models.Candle, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("flaky")
	}
	return f.bars, nil
}

func (f *fakeProvider) Fundamentals(_ context.Context, ticker string) (*models.Fundamentals, error) {
	if f.fundamental == nil {
		return nil, errors.New("not found")
	}
	return f.fundamental, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var fastRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}

func TestPriceOnDateLooksTwoDaysAhead(t *testing.T) {
	provider := &fakeProvider{bars: []models.Candle{
		{Timestamp: day(2024, 3, 1), Close: 100},
		{Timestamp: day(2024, 3, 4), Close: 104},
	}}
	svc := NewService(provider, cache.NewMemory(nil), nil, fastRetry)

	tests := []struct {
		name      string
		date      time.Time
		wantPrice float64
		wantFound bool
	}{
		{"exact trading day", day(2024, 3, 1), 100, true},
		{"weekend rolls to monday", day(2024, 3, 3), 104, true},
		{"saturday is outside the window", day(2024, 3, 2), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, found, err := svc.PriceOnDate(context.Background(), "AAPL", tt.date)
			if err != nil {
				t.Fatalf("PriceOnDate() error = %v", err)
			}
			if price != tt.wantPrice || found != tt.wantFound {
				t.Errorf("PriceOnDate() = %v, %v, want %v, %v", price, found, tt.wantPrice, tt.wantFound)
			}
		})
	}
}

func TestPeriodRetriesAndMemoizes(t *testing.T) {
	provider := &fakeProvider{
		bars:     []models.Candle{{Timestamp: day(2024, 3, 1), Close: 10}},
		failures: 2,
	}
	svc := NewService(provider, cache.NewMemory(nil), nil, fastRetry)

	for i := 0; i < 2; i++ {
		candles, err := svc.Period(context.Background(), "BTC-USD", "1y")
		if err != nil {
			t.Fatalf("Period() error = %v", err)
		}
		if len(candles) != 1 {
			t.Fatalf("len(candles) = %d, want 1", len(candles))
		}
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want 3 (two failures, one success, then cached)", provider.calls)
	}
}

func TestPeriodDoesNotRetryUnknownTicker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, `{"chart":{"error":{"code":"Not Found"}}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	hc := httpClient.NewClient(httpClient.ClientOptions{RequestsPerSec: 100, Retry: retry.None})
	svc := NewService(yahoo.NewClient(hc, srv.URL), cache.NewMemory(nil), nil, fastRetry)

	_, err := svc.Period(context.Background(), "NOPE", "1y")
	var statusErr *httpClient.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Period() error = %v, want a 404 status error", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestPeriodRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hc := httpClient.NewClient(httpClient.ClientOptions{RequestsPerSec: 100, Retry: retry.None})
	svc := NewService(yahoo.NewClient(hc, srv.URL), cache.NewMemory(nil), nil, fastRetry)

	if _, err := svc.Period(context.Background(), "AAPL", "1y"); err == nil {
		t.Fatal("Period() error = nil, want error")
	}
	if got := hits.Load(); got != int32(fastRetry.MaxAttempts) {
		t.Errorf("requests = %d, want %d", got, fastRetry.MaxAttempts)
	}
}

func TestCurrentPriceWithoutBars(t *testing.T) {
	svc := NewService(&fakeProvider{}, nil, nil, fastRetry)
	_, err := svc.CurrentPrice(context.Background(), "NOPE")
	if !errors.Is(err, ErrNoPrice) {
		t.Errorf("CurrentPrice() error = %v, want ErrNoPrice", err)
	}
}

func TestFundamentalsBatchOmitsFailures(t *testing.T) {
	svc := NewService(&fakeProvider{}, nil, nil, retry.None)
	if got := svc.FundamentalsBatch(context.Background(), []string{"A", "B"}); len(got) != 0 {
		t.Errorf("FundamentalsBatch() = %v, want empty", got)
	}
}

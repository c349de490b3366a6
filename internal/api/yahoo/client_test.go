package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpClient "github.com/Alias1177/insighthub/internal/platform/http"
	"github.com/Alias1177/insighthub/internal/platform/retry"
)

const chartFixture = `{"chart":{"result":[{"timestamp":[1704240000,1704153600,1704326400],
"indicators":{"quote":[{"open":[11,10,null],"high":[12,11,null],"low":[10,9,null],
"close":[11.5,10.5,null],"volume":[2000,1000,null]}]}}],"error":null}}`

const summaryFixture = `{"quoteSummary":{"result":[{
"price":{"shortName":"Apple Inc."},
"assetProfile":{"sector":"Technology"},
"summaryDetail":{"trailingPE":{"raw":28.5,"fmt":"28.50"},"priceToSalesTrailing12Months":{"raw":7.1}},
"defaultKeyStatistics":{"trailingEps":{"raw":6.4},"pegRatio":{},"profitMargins":{"raw":0.2}},
"financialData":{"debtToEquity":{"raw":145.2},"returnOnEquity":{"raw":1.5}}}],"error":null}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpClient.NewClient(httpClient.ClientOptions{RequestsPerSec: 100, Retry: retry.None})
	return NewClient(hc, srv.URL)
}

func TestHistoryRangeParsesAndSorts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/BTC-USD") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("range") != "1y" {
			t.Errorf("range = %s", r.URL.Query().Get("range"))
		}
		w.Write([]byte(chartFixture))
	})

	candles, err := c.HistoryRange(context.Background(), "BTC-USD", "1y")
	if err != nil {
		t.Fatalf("HistoryRange() error = %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2 (null close dropped)", len(candles))
	}
	if !candles[0].Timestamp.Before(candles[1].Timestamp) {
		t.Error("candles not sorted oldest first")
	}
	if candles[0].Close != 10.5 || candles[0].Volume != 1000 {
		t.Errorf("first candle = %+v", candles[0])
	}
	if candles[1].Timestamp != time.Unix(1704240000, 0).UTC() {
		t.Errorf("second timestamp = %v", candles[1].Timestamp)
	}
}

func TestFundamentals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(summaryFixture))
	})

	f, err := c.Fundamentals(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Fundamentals() error = %v", err)
	}
	if f.Name != "Apple Inc." || f.Sector != "Technology" {
		t.Errorf("name/sector = %q/%q", f.Name, f.Sector)
	}
	if f.TrailingPE == nil || *f.TrailingPE != 28.5 {
		t.Errorf("TrailingPE = %v, want 28.5", f.TrailingPE)
	}
	if f.PegRatio != nil {
		t.Errorf("PegRatio = %v, want nil", *f.PegRatio)
	}
	if f.ProfitMargins == nil || *f.ProfitMargins != 0.2 {
		t.Errorf("ProfitMargins fallback = %v, want 0.2", f.ProfitMargins)
	}
}

func TestChartErrorIsReported(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})

	if _, err := c.HistoryRange(context.Background(), "NOPE", "1y"); err == nil {
		t.Error("HistoryRange() error = nil, want error")
	}
}

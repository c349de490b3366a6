package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/Alias1177/insighthub/internal/platform/http"
	"github.com/Alias1177/insighthub/models"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client is the Yahoo Finance API client
type Client struct {
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// NewClient creates a Yahoo client on top of a shared HTTP client.
// An empty baseURL selects the public endpoint.
func NewClient(hc *httpClient.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: hc,
		logger:     log.With().Str("component", "yahoo_client").Logger(),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History fetches daily bars in [start, end)
func (c *Client) History(ctx context.Context, ticker string, start, end time.Time) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprint(start.Unix()))
	q.Set("period2", fmt.Sprint(end.Unix()))
	return c.chart(ctx, ticker, q)
}

// HistoryRange fetches daily bars for a Yahoo range such as "1d", "1y", "3y"
func (c *Client) HistoryRange(ctx context.Context, ticker, rng string) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("range", rng)
	return c.chart(ctx, ticker, q)
}

func (c *Client) chart(ctx context.Context, ticker string, q url.Values) ([]models.Candle, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), q.Encode())
	c.logger.Debug().Str("url", u).Msg("Fetching candles")

	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching chart for %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error for %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]models.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := at(quote.Close, i)
		if closePrice == nil {
			continue // halted or partial bar
		}
		candle := models.Candle{
			Timestamp: time.Unix(ts, 0).UTC(),
			Close:     *closePrice,
			Open:      valueOr(at(quote.Open, i), *closePrice),
			High:      valueOr(at(quote.High, i), *closePrice),
			Low:       valueOr(at(quote.Low, i), *closePrice),
		}
		if v := at(quote.Volume, i); v != nil {
			candle.Volume = int64(*v)
		}
		candles = append(candles, candle)
	}

	// Sort candles by time (oldest first)
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	return candles, nil
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				ShortName string `json:"shortName"`
			} `json:"price"`
			AssetProfile struct {
				Sector string `json:"sector"`
			} `json:"assetProfile"`
			SummaryDetail struct {
				TrailingPE   rawValue `json:"trailingPE"`
				PriceToSales rawValue `json:"priceToSalesTrailing12Months"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				TrailingEps            rawValue `json:"trailingEps"`
				PegRatio               rawValue `json:"pegRatio"`
				ProfitMargins          rawValue `json:"profitMargins"`
				RevenueQuarterlyGrowth rawValue `json:"revenueQuarterlyGrowth"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				ProfitMargins  rawValue `json:"profitMargins"`
				DebtToEquity   rawValue `json:"debtToEquity"`
				ReturnOnEquity rawValue `json:"returnOnEquity"`
			} `json:"financialData"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Fundamentals fetches the ratio snapshot for a ticker
func (c *Client) Fundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s", c.baseURL, url.PathEscape(ticker),
		url.QueryEscape("price,assetProfile,summaryDetail,defaultKeyStatistics,financialData"))

	var resp quoteSummaryResponse
	if err := c.httpClient.GetJSON(ctx, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching fundamentals for %s: %w", ticker, err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo api error for %s: %s", ticker, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no fundamentals for %s", ticker)
	}

	r := resp.QuoteSummary.Result[0]
	f := &models.Fundamentals{
		Ticker:                 ticker,
		Name:                   r.Price.ShortName,
		Sector:                 r.AssetProfile.Sector,
		TrailingPE:             r.SummaryDetail.TrailingPE.Raw,
		PriceToSales:           r.SummaryDetail.PriceToSales.Raw,
		ProfitMargins:          r.FinancialData.ProfitMargins.Raw,
		RevenueQuarterlyGrowth: r.DefaultKeyStatistics.RevenueQuarterlyGrowth.Raw,
		DebtToEquity:           r.FinancialData.DebtToEquity.Raw,
		ReturnOnEquity:         r.FinancialData.ReturnOnEquity.Raw,
		TrailingEps:            r.DefaultKeyStatistics.TrailingEps.Raw,
		PegRatio:               r.DefaultKeyStatistics.PegRatio.Raw,
	}
	if f.ProfitMargins == nil {
		f.ProfitMargins = r.DefaultKeyStatistics.ProfitMargins.Raw
	}
	return f, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

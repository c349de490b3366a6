package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	httpClient "github.com/Alias1177/insighthub/internal/platform/http"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Coin is one row of the /coins/markets ranking
type Coin struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	CurrentPrice  float64 `json:"current_price"`
	MarketCap     float64 `json:"market_cap"`
	MarketCapRank int     `json:"market_cap_rank"`
}

// Client is the CoinGecko API client
type Client struct {
	baseURL    string
	httpClient *httpClient.Client
}

// NewClient creates a CoinGecko client. An empty baseURL selects the public endpoint.
func NewClient(hc *httpClient.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{baseURL: baseURL, httpClient: hc}
}

// Markets lists coins ordered by market cap, descending
func (c *Client) Markets(ctx context.Context, vsCurrency string, perPage, page int) ([]Coin, error) {
	params := url.Values{}
	params.Set("vs_currency", vsCurrency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))

	var coins []Coin
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/coins/markets?"+params.Encode(), nil, &coins); err != nil {
		return nil, fmt.Errorf("coins markets: %w", err)
	}
	return coins, nil
}

package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	httpClient "github.com/Alias1177/insighthub/internal/platform/http"
)

const defaultBaseURL = "https://newsapi.org"

// Article is the subset of a NewsAPI article the analyzer reads
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// Query describes an /v2/everything search
type Query struct {
	Q        string
	From     time.Time
	Language string
	SortBy   string
	PageSize int
}

// APIError is the error envelope NewsAPI returns with non-200 statuses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("newsapi %s: %s", e.Code, e.Message)
}

// Client is the NewsAPI client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
}

// NewClient creates a NewsAPI client. An empty baseURL selects the public endpoint.
func NewClient(hc *httpClient.Client, apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: hc}
}

// HasKey reports whether an API key is configured
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// Everything runs a full-text article search
func (c *Client) Everything(ctx context.Context, q Query) ([]Article, error) {
	params := url.Values{}
	params.Set("q", q.Q)
	if !q.From.IsZero() {
		params.Set("from", q.From.Format("2006-01-02"))
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	if q.SortBy != "" {
		params.Set("sortBy", q.SortBy)
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}

	u := fmt.Sprintf("%s/v2/everything?%s", c.baseURL, params.Encode())

	var resp struct {
		Status   string    `json:"status"`
		Code     string    `json:"code"`
		Message  string    `json:"message"`
		Articles []Article `json:"articles"`
	}
	err := c.httpClient.GetJSON(ctx, u, map[string]string{"X-Api-Key": c.apiKey}, &resp)
	if err != nil {
		var statusErr *httpClient.HTTPStatusError
		if errors.As(err, &statusErr) {
			var apiErr APIError
			if json.Unmarshal(statusErr.Body, &apiErr) == nil && apiErr.Code != "" {
				return nil, &apiErr
			}
		}
		return nil, fmt.Errorf("news search %q: %w", q.Q, err)
	}
	if resp.Status == "error" {
		return nil, &APIError{Code: resp.Code, Message: resp.Message}
	}
	return resp.Articles, nil
}

package fred

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	httpClient "github.com/Alias1177/insighthub/internal/platform/http"
	"github.com/Alias1177/insighthub/models"
)

const defaultBaseURL = "https://fred.stlouisfed.org"

// Observation is one dated value of a series. Value is nil for FRED's "." gaps.
type Observation struct {
	Date  time.Time
	Value *float64
}

// Client downloads FRED series as CSV
type Client struct {
	baseURL    string
	httpClient *httpClient.Client
}

// NewClient creates a FRED client. An empty baseURL selects the public endpoint.
func NewClient(hc *httpClient.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{baseURL: baseURL, httpClient: hc}
}

// Series downloads observations of one series between start and end (inclusive)
func (c *Client) Series(ctx context.Context, id string, start, end time.Time) ([]Observation, error) {
	params := url.Values{}
	params.Set("id", id)
	params.Set("cosd", start.Format(models.DateLayout))
	params.Set("coed", end.Format(models.DateLayout))

	body, err := c.httpClient.Get(ctx, c.baseURL+"/graph/fredgraph.csv?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fred series %s: %w", id, err)
	}
	return ParseCSV(bytes.NewReader(body))
}

// ParseCSV reads a two-column date,value export
func ParseCSV(r io.Reader) ([]Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read fred csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	out := make([]Observation, 0, len(records)-1)
	for _, rec := range records[1:] {
		date, err := models.ParseDate(rec[0])
		if err != nil {
			return nil, err
		}
		obs := Observation{Date: date}
		if v, err := strconv.ParseFloat(rec[1], 64); err == nil {
			obs.Value = &v
		}
		out = append(out, obs)
	}
	return out, nil
}

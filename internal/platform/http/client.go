package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Alias1177/insighthub/internal/metrics"
	"github.com/Alias1177/insighthub/internal/platform/retry"
)

const maxErrorBody = 512

// Client is a wrapper for HTTP client with rate limiting and retries
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Retry      retry.Policy
	UserAgent  string
	Name       string
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	Name           string
	Timeout        time.Duration
	RequestsPerSec int
	Retry          retry.Policy
	Transport      http.RoundTripper
	UserAgent      string
}

// NewClient creates a new HTTP client with rate limiting
func NewClient(opts ClientOptions) *Client {
	// Set default values if not provided
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Default
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "insighthub/1.0"
	}
	if opts.Name == "" {
		opts.Name = "http"
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		Limiter:   rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RequestsPerSec)), opts.RequestsPerSec),
		Retry:     opts.Retry,
		UserAgent: opts.UserAgent,
		Name:      opts.Name,
	}
}

// DoRequest performs an HTTP request with rate limiting and retries.
// Only 200 responses are returned; the caller closes the body.
func (c *Client) DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := retry.Value(ctx, c.Retry, func() (*http.Response, error) {
		// Wait for rate limiter
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(err)
		}

		resp, err := c.HTTPClient.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, Body: body}
			if !statusErr.Temporary() {
				return nil, retry.Permanent(statusErr)
			}
			return nil, statusErr
		}
		return resp, nil
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ProviderRequests.WithLabelValues(c.Name, outcome).Inc()

	return resp, err
}

// Get issues a GET request with the given headers and returns the body
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.DoRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// GetJSON issues a GET request and decodes the JSON body into dest
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, dest any) error {
	body, err := c.Get(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// HTTPStatusError represents an error due to a non-200 HTTP status code
type HTTPStatusError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("non-200 status code: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether retrying the request may succeed
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Retryable lets retry policies outside the client stop on 4xx responses
func (e *HTTPStatusError) Retryable() bool {
	return e.Temporary()
}

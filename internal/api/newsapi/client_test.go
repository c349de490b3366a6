package newsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	httpClient "github.com/Alias1177/insighthub/internal/platform/http"
	"github.com/Alias1177/insighthub/internal/platform/retry"
)

func newTestClient(t *testing.T, key string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpClient.NewClient(httpClient.ClientOptions{RequestsPerSec: 100, Retry: retry.None})
	return NewClient(hc, key, srv.URL)
}

func TestEverything(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("X-Api-Key = %q", r.Header.Get("X-Api-Key"))
		}
		if r.URL.Query().Get("q") != "Apple" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		w.Write([]byte(`{"status":"ok","articles":[{"title":"Apple beats estimates","source":{"name":"Reuters"}}]}`))
	})

	articles, err := c.Everything(context.Background(), Query{Q: "Apple", PageSize: 20})
	if err != nil {
		t.Fatalf("Everything() error = %v", err)
	}
	if len(articles) != 1 || articles[0].Source.Name != "Reuters" {
		t.Errorf("Everything() = %+v", articles)
	}
}

func TestEverythingInvalidKey(t *testing.T) {
	c := newTestClient(t, "bad", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`))
	})

	_, err := c.Everything(context.Background(), Query{Q: "Apple"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Everything() error = %v, want *APIError", err)
	}
	if apiErr.Code != "apiKeyInvalid" {
		t.Errorf("Code = %q, want apiKeyInvalid", apiErr.Code)
	}
}

package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alias1177/insighthub/internal/platform/retry"
)

func testClient() *Client {
	return NewClient(ClientOptions{
		Name:           "test",
		RequestsPerSec: 100,
		Retry:          retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2},
	})
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if got := r.Header.Get("User-Agent"); got != "insighthub/1.0" {
			t.Errorf("User-Agent = %q, want insighthub/1.0", got)
		}
		w.Write([]byte(`{"value": 7}`))
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	if err := testClient().GetJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Value != 7 {
		t.Errorf("Value = %d, want 7", out.Value)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"apiKeyInvalid"}`))
	}))
	defer srv.Close()

	_, err := testClient().Get(context.Background(), srv.URL, nil)

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Get() error = %v, want *HTTPStatusError", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", statusErr.StatusCode)
	}
	if string(statusErr.Body) != `{"code":"apiKeyInvalid"}` {
		t.Errorf("Body = %q", statusErr.Body)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

package httpcache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestTransportServesFreshEntriesFromCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	tr, err := Open(filepath.Join(t.TempDir(), "cache.db"), time.Hour, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer tr.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr.Now = func() time.Time { return now }
	client := &http.Client{Transport: tr}

	get := func() string {
		resp, err := client.Get(srv.URL + "/quote")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return string(b)
	}

	if got := get(); got != "payload" {
		t.Fatalf("first body = %q", got)
	}
	if got := get(); got != "payload" {
		t.Fatalf("cached body = %q", got)
	}
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}

	now = now.Add(time.Hour)
	get()
	if calls != 2 {
		t.Errorf("upstream calls after expiry = %d, want 2", calls)
	}
}

func TestTransportDoesNotCacheErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, err := Open(filepath.Join(t.TempDir(), "cache.db"), time.Hour, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer tr.Close()
	client := &http.Client{Transport: tr}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		resp.Body.Close()
	}
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2", calls)
	}
}

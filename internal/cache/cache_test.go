package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryExpiresAtTTL(t *testing.T) {
	ctx := context.Background()
	clock := NewFakeClock(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	store := NewMemory(clock)

	if err := store.Set(ctx, "k", 41.5, 30*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	tests := []struct {
		name    string
		advance time.Duration
		wantHit bool
	}{
		{"fresh", 0, true},
		{"just before expiry", 30*time.Minute - time.Nanosecond, true},
		{"at expiry", time.Nanosecond, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)
			var got float64
			err := store.Get(ctx, "k", &got)
			if tt.wantHit && (err != nil || got != 41.5) {
				t.Errorf("Get() = %v, %v, want 41.5, nil", got, err)
			}
			if !tt.wantHit && !errors.Is(err, ErrMiss) {
				t.Errorf("Get() error = %v, want ErrMiss", err)
			}
		})
	}
}

func TestMemoryDeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(nil)
	store.Set(ctx, "a", 1, 0)
	store.Set(ctx, "b", 2, 0)

	store.Delete(ctx, "a")
	var v int
	if err := store.Get(ctx, "a", &v); !errors.Is(err, ErrMiss) {
		t.Errorf("Get(a) after Delete error = %v, want ErrMiss", err)
	}

	store.Flush(ctx)
	if store.Len() != 0 {
		t.Errorf("Len() after Flush = %d, want 0", store.Len())
	}
}

func TestRememberComputesOncePerTTL(t *testing.T) {
	ctx := context.Background()
	clock := NewFakeClock(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	store := NewMemory(clock)

	calls := 0
	compute := func() (string, error) {
		calls++
		return "BUY", nil
	}

	for i := 0; i < 3; i++ {
		got, err := Remember(ctx, store, "signal", Key("signal", "AAPL", "XGBoost"), TTLSignal, compute)
		if err != nil || got != "BUY" {
			t.Fatalf("Remember() = %q, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	clock.Advance(TTLSignal)
	Remember(ctx, store, "signal", Key("signal", "AAPL", "XGBoost"), TTLSignal, compute)
	if calls != 2 {
		t.Errorf("calls after expiry = %d, want 2", calls)
	}
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(nil)
	calls := 0
	fail := func() (int, error) {
		calls++
		return 0, errors.New("provider down")
	}

	Remember(ctx, store, "x", "x", time.Hour, fail)
	Remember(ctx, store, "x", "x", time.Hour, fail)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestKey(t *testing.T) {
	if got := Key("predict", "NVDA", 7, true); got != "predict:NVDA:7:true" {
		t.Errorf("Key() = %q", got)
	}
}

package universe

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Alias1177/insighthub/internal/api/coingecko"
	"github.com/Alias1177/insighthub/internal/cache"
)

type fakeCoins struct {
	coins []coingecko.Coin
	err   error
	calls int
}

func (f *fakeCoins) Markets(_ context.Context, _ string, perPage, _ int) ([]coingecko.Coin, error) {
	f.calls++
	return f.coins, f.err
}

type fakeIndex struct {
	symbols []string
	err     error
}

func (f *fakeIndex) SP500Symbols(context.Context) ([]string, error) {
	return f.symbols, f.err
}

func TestTopCrypto(t *testing.T) {
	coins := &fakeCoins{coins: []coingecko.Coin{{Symbol: "btc"}, {Symbol: "eth"}}}
	l := New(coins, &fakeIndex{}, cache.NewMemory(nil))

	got := l.TopCrypto(context.Background(), 2)
	want := []string{"BTC-USD", "ETH-USD"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopCrypto() = %v, want %v", got, want)
	}

	l.TopCrypto(context.Background(), 2)
	if coins.calls != 1 {
		t.Errorf("Markets called %d times, want 1", coins.calls)
	}
}

func TestFallbacks(t *testing.T) {
	l := New(&fakeCoins{err: errors.New("rate limited")}, &fakeIndex{err: errors.New("blocked")}, nil)

	if got := l.TopCrypto(context.Background(), 250); !reflect.DeepEqual(got, fallbackCrypto) {
		t.Errorf("TopCrypto() = %v, want fallback", got)
	}
	if got := l.SP500(context.Background()); !reflect.DeepEqual(got, fallbackSP500) {
		t.Errorf("SP500() = %v, want fallback", got)
	}

	empty := New(&fakeCoins{}, &fakeIndex{}, nil)
	if got := empty.TopCrypto(context.Background(), 250); len(got) != len(fallbackCrypto) {
		t.Errorf("TopCrypto() with empty ranking = %v, want fallback", got)
	}
}

func TestSP500ReplacesDots(t *testing.T) {
	l := New(&fakeCoins{}, &fakeIndex{symbols: []string{"MMM", "BRK.B"}}, nil)
	got := l.SP500(context.Background())
	want := []string{"MMM", "BRK-B"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SP500() = %v, want %v", got, want)
	}
}

func TestParseTickerList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"aapl, msft ,btc-usd", []string{"AAPL", "MSFT", "BTC-USD"}},
		{" , ,", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if got := ParseTickerList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseTickerList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

type botServer struct {
	mu   sync.Mutex
	sent []string
}

func (b *botServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"hub","username":"hub_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		r.ParseForm()
		b.mu.Lock()
		b.sent = append(b.sent, r.FormValue("text"))
		b.mu.Unlock()
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func TestTelegramNotify(t *testing.T) {
	srv := &botServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	tg, err := NewTelegramWithEndpoint("TOKEN", 42, ts.URL+"/bot%s/%s")
	if err != nil {
		t.Fatalf("NewTelegramWithEndpoint() error = %v", err)
	}

	if err := tg.Notify(context.Background(), "Signal scan: BUY AAPL"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := tg.Notify(context.Background(), strings.Repeat("é", 5000)); err != nil {
		t.Fatalf("Notify() long error = %v", err)
	}

	if len(srv.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(srv.sent))
	}
	if srv.sent[0] != "Signal scan: BUY AAPL" {
		t.Errorf("sent[0] = %q", srv.sent[0])
	}
	if n := utf8.RuneCountInString(srv.sent[1]); n != maxMessageLen {
		t.Errorf("long message has %d runes, want %d", n, maxMessageLen)
	}
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	if err := n.Notify(context.Background(), "x"); err != nil {
		t.Errorf("Noop.Notify() error = %v", err)
	}
}

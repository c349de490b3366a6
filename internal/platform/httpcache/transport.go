// Package httpcache keeps successful GET responses in a SQLite file so
// repeated runs do not hit the providers again.
package httpcache

import (
	"bufio"
	"bytes"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httputil"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Transport is an http.RoundTripper backed by a SQLite response table
type Transport struct {
	Base http.RoundTripper
	TTL  time.Duration
	Now  func() time.Time

	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// Open opens (or creates) the cache database at path
func Open(path string, ttl time.Duration, base http.RoundTripper) (*Transport, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS responses (
		key       TEXT PRIMARY KEY,
		stored_at INTEGER NOT NULL,
		payload   BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if base == nil {
		base = http.DefaultTransport
	}

	return &Transport{
		Base:   base,
		TTL:    ttl,
		Now:    time.Now,
		db:     db,
		logger: log.With().Str("component", "http_cache").Logger(),
	}, nil
}

// Close releases the database handle
func (t *Transport) Close() error {
	return t.db.Close()
}

// RoundTrip serves fresh cached GET responses and stores new 200s
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.Base.RoundTrip(req)
	}

	key := req.Method + " " + req.URL.String()
	if resp, ok := t.lookup(key, req); ok {
		t.logger.Debug().Str("key", key).Msg("cache hit")
		return resp, nil
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return resp, err
	}

	payload, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, fmt.Errorf("dump response: %w", err)
	}
	resp.Body.Close()

	t.store(key, payload)

	return http.ReadResponse(bufio.NewReader(bytes.NewReader(payload)), req)
}

func (t *Transport) lookup(key string, req *http.Request) (*http.Response, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var storedAt int64
	var payload []byte
	err := t.db.QueryRow(`SELECT stored_at, payload FROM responses WHERE key = ?`, key).Scan(&storedAt, &payload)
	if err != nil {
		if err != sql.ErrNoRows {
			t.logger.Warn().Err(err).Msg("cache lookup failed")
		}
		return nil, false
	}

	if t.TTL > 0 && t.Now().Sub(time.Unix(storedAt, 0)) >= t.TTL {
		return nil, false
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(payload)), req)
	if err != nil {
		t.logger.Warn().Err(err).Msg("corrupt cache entry")
		return nil, false
	}
	return resp, true
}

func (t *Transport) store(key string, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.db.Exec(`INSERT INTO responses (key, stored_at, payload) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET stored_at = excluded.stored_at, payload = excluded.payload`,
		key, t.Now().Unix(), payload)
	if err != nil {
		t.logger.Warn().Err(err).Msg("cache store failed")
	}
}

// Purge deletes expired entries and returns how many were removed
func (t *Transport) Purge() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.db.Exec(`DELETE FROM responses WHERE stored_at <= ?`, t.Now().Add(-t.TTL).Unix())
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}

var _ http.RoundTripper = (*Transport)(nil)

// Package ledger persists append-mostly tables such as the trade and
// prediction logs.
package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Log is a persisted table of T rows kept in insertion order
type Log[T any] interface {
	Load(ctx context.Context) ([]T, error)
	Append(ctx context.Context, rows ...T) error
	Replace(ctx context.Context, rows []T) error
	// Update runs a read-modify-write under the log's lock
	Update(ctx context.Context, fn func([]T) ([]T, error)) error
}

// Codec maps rows to CSV records
type Codec[T any] interface {
	Header() []string
	Encode(row T) []string
	Decode(record []string) (T, error)
}

// locks serializes writers of the same file within the process
var locks sync.Map

func lockFor(path string) *sync.Mutex {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	mu, _ := locks.LoadOrStore(abs, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// FileLog stores rows as a CSV file with a header. Every write replaces the
// file atomically through a synced temp file and a rename.
type FileLog[T any] struct {
	path  string
	codec Codec[T]
	mu    *sync.Mutex
}

// NewFileLog creates a log at path; the file is created on first write
func NewFileLog[T any](path string, codec Codec[T]) *FileLog[T] {
	return &FileLog[T]{path: path, codec: codec, mu: lockFor(path)}
}

// Path returns the backing file
func (l *FileLog[T]) Path() string { return l.path }

func (l *FileLog[T]) Load(ctx context.Context) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *FileLog[T]) Append(ctx context.Context, rows ...T) error {
	return l.Update(ctx, func(existing []T) ([]T, error) {
		return append(existing, rows...), nil
	})
}

func (l *FileLog[T]) Replace(ctx context.Context, rows []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(rows)
}

func (l *FileLog[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.read()
	if err != nil {
		return err
	}
	rows, err = fn(rows)
	if err != nil {
		return err
	}
	return l.write(rows)
}

func (l *FileLog[T]) read() ([]T, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(l.codec.Header())

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("read ledger header: %w", err)
	}

	var rows []T
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", l.path, err)
		}
		row, err := l.codec.Decode(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", l.path, line, err)
		}
		rows = append(rows, row)
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

func (l *FileLog[T]) write(rows []T) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(l.codec.Header()); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(l.codec.Encode(row)); err != nil {
			tmp.Close()
			return fmt.Errorf("write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}

	log.Debug().Str("component", "ledger").Str("path", l.path).Int("rows", len(rows)).Msg("ledger written")
	return nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/Alias1177/insighthub/internal/ledger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB represents a database connection
type DB struct {
	*sql.DB
	driver string
	mu     sync.Mutex
	logger zerolog.Logger
}

// New opens driver/dsn, checks the connection and creates the ledger tables
func New(ctx context.Context, driver, dsn string) (*DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection keeps :memory: databases shared and serializes writers
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	db := &DB{
		DB:     conn,
		driver: driver,
		logger: log.With().Str("component", "database").Str("driver", driver).Logger(),
	}
	if err := db.createTables(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// createTables creates the necessary tables if they don't exist
func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range []string{tradesTable.create, predictionsTable.create} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for postgres
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

// table describes how one row type maps to SQL
type table[T any] struct {
	name    string
	create  string
	columns []string
	args    func(T) []any
	scan    func(scanner) (T, error)
}

// tableLog exposes a table as a ledger.Log ordered by insertion sequence
type tableLog[T any] struct {
	db *DB
	t  table[T]
}

var _ ledger.Log[struct{}] = (*tableLog[struct{}])(nil)

func (l *tableLog[T]) Load(ctx context.Context) ([]T, error) {
	return l.load(ctx, l.db.DB)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (l *tableLog[T]) load(ctx context.Context, q querier) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", strings.Join(l.t.columns, ", "), l.t.name)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", l.t.name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		row, err := l.t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", l.t.name, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (l *tableLog[T]) Append(ctx context.Context, rows ...T) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()

	return l.inTx(ctx, func(tx *sql.Tx) error {
		var next int64
		err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) FROM %s", l.t.name)).Scan(&next)
		if err != nil {
			return fmt.Errorf("next seq %s: %w", l.t.name, err)
		}
		return l.insert(ctx, tx, next+1, rows)
	})
}

func (l *tableLog[T]) Replace(ctx context.Context, rows []T) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()

	return l.inTx(ctx, func(tx *sql.Tx) error {
		return l.replace(ctx, tx, rows)
	})
}

func (l *tableLog[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()

	return l.inTx(ctx, func(tx *sql.Tx) error {
		current, err := l.load(ctx, tx)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return l.replace(ctx, tx, next)
	})
}

func (l *tableLog[T]) replace(ctx context.Context, tx *sql.Tx, rows []T) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+l.t.name); err != nil {
		return fmt.Errorf("clear %s: %w", l.t.name, err)
	}
	return l.insert(ctx, tx, 1, rows)
}

func (l *tableLog[T]) insert(ctx context.Context, tx *sql.Tx, seq int64, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(l.t.columns)+1), ", ")
	query := l.db.rebind(fmt.Sprintf("INSERT INTO %s (seq, %s) VALUES (%s)",
		l.t.name, strings.Join(l.t.columns, ", "), placeholders))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", l.t.name, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		args := append([]any{seq + int64(i)}, l.t.args(row)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: %w", l.t.name, err)
		}
	}
	return nil
}

func (l *tableLog[T]) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	l.db.logger.Debug().Str("table", l.t.name).Msg("ledger committed")
	return nil
}

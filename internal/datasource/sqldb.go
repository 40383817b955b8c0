package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // driver "postgres"
	_ "github.com/mattn/go-sqlite3" // driver "sqlite3"
	"go.uber.org/zap"
)

var _ Querier = (*SQLStore)(nil)

// SQLStore runs queries through database/sql. It backs the lib/pq and
// sqlite3 drivers.
type SQLStore struct {
	db  *sql.DB
	log *zap.Logger
}

func OpenSQL(ctx context.Context, driver, dsn string, log *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open %s: %w", driver, err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Info("datasource_connected", zap.String("driver", driver))
	return NewSQL(db, log), nil
}

// NewSQL wraps an already opened handle.
func NewSQL(db *sql.DB, log *zap.Logger) *SQLStore {
	return &SQLStore{db: db, log: log}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *SQLStore) QueryScalar(ctx context.Context, query string, args ...any) (any, error) {
	var v any
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query scalar: %w", err)
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	return v, nil
}

func (s *SQLStore) QueryRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				r[c] = string(b)
				continue
			}
			r[c] = vals[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

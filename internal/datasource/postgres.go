package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var _ Querier = (*PGStore)(nil)

// PGStore runs queries through a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPG(ctx context.Context, dsn string, log *zap.Logger) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Info("datasource_connected", zap.String("driver", "pgx"), zap.String("host", cfg.ConnConfig.Host))
	return &PGStore{pool: pool, log: log}, nil
}

func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PGStore) QueryScalar(ctx context.Context, sql string, args ...any) (any, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query scalar: %w", err)
	}
	defer rows.Close()

	var v any
	if rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan scalar: %w", err)
		}
		if len(vals) > 0 {
			v = vals[0]
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query scalar: %w", err)
	}
	return v, nil
}

func (s *PGStore) QueryRows(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r := make(Row, len(fields))
		for i, f := range fields {
			r[f.Name] = vals[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

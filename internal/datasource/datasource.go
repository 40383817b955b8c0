// Package datasource is the query boundary to the ingestion store. It knows
// nothing about the tables; it executes parameterized reads and hands back
// loosely typed values.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Querier executes read-only queries. Placeholders are $1, $2, ...
type Querier interface {
	// QueryScalar returns the first column of the first row, or nil when the
	// query produced no row or a NULL.
	QueryScalar(ctx context.Context, sql string, args ...any) (any, error)
	// QueryRows returns all rows in the order the database produced them.
	QueryRows(ctx context.Context, sql string, args ...any) ([]Row, error)
	Close()
}

// ErrUnsupportedType is returned when a scalar cannot be converted.
var ErrUnsupportedType = errors.New("unsupported scalar type")

// Int64 converts a scalar as returned by the drivers to an int64. ok is
// false for nil.
func Int64(v any) (n int64, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return x, true, nil
	case int32:
		return int64(x), true, nil
	case int:
		return int64(x), true, nil
	case uint64:
		return int64(x), true, nil
	case float64:
		return int64(x), true, nil
	case []byte:
		return parseInt(string(x))
	case string:
		return parseInt(x)
	default:
		return 0, false, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func parseInt(s string) (int64, bool, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true, nil
	}
	// NUMERIC columns come back as decimal text from some drivers.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %q: %w", s, err)
	}
	return int64(f), true, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time converts a scalar to a time. Text values are parsed with the layouts
// sqlite and lib/pq produce; zone-less text is read as UTC.
func Time(v any) (t time.Time, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return x, true, nil
	case []byte:
		return parseTime(string(x))
	case string:
		return parseTime(x)
	default:
		return time.Time{}, false, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func parseTime(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("parse time %q: %w", s, ErrUnsupportedType)
}

// String renders a column value for reports.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}

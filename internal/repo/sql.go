package repo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hamed0406/ingestwatch/internal/datasource"
	"github.com/hamed0406/ingestwatch/internal/domain"
)

var _ IngestStore = (*SQLStore)(nil)

// Schema names the two tables the monitor reads.
type Schema struct {
	SourcesTable  string `yaml:"sources_table"`
	ArticlesTable string `yaml:"articles_table"`
}

func DefaultSchema() Schema {
	return Schema{SourcesTable: "sources", ArticlesTable: "articles"}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func (s Schema) Validate() error {
	for _, name := range []string{s.SourcesTable, s.ArticlesTable} {
		if !identRe.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
	}
	return nil
}

// SQLStore implements IngestStore on top of any datasource.Querier.
// Time bounds are bound in UTC: sqlite compares DATETIME columns as text.
type SQLStore struct {
	q       datasource.Querier
	schema  Schema
	timeout time.Duration
}

func NewSQLStore(q datasource.Querier, schema Schema, timeout time.Duration) (*SQLStore, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SQLStore{q: q, schema: schema, timeout: timeout}, nil
}

func (s *SQLStore) MaxSourceID(ctx context.Context) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.q.QueryScalar(ctx, fmt.Sprintf(`SELECT MAX(id) FROM %s`, s.schema.SourcesTable))
	if err != nil {
		return 0, false, fmt.Errorf("max source id: %w", err)
	}
	id, ok, err := datasource.Int64(v)
	if err != nil {
		return 0, false, fmt.Errorf("max source id: %w", err)
	}
	return id, ok, nil
}

func (s *SQLStore) NewSources(ctx context.Context, afterID int64, since time.Time) ([]domain.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`SELECT * FROM %s WHERE id > $1 AND created_at >= $2 ORDER BY id DESC`, s.schema.SourcesTable)
	rows, err := s.q.QueryRows(ctx, q, afterID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("new sources: %w", err)
	}

	out := make([]domain.Source, 0, len(rows))
	for _, r := range rows {
		src, err := sourceFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("new sources: %w", err)
		}
		out = append(out, src)
	}
	return out, nil
}

func sourceFromRow(r datasource.Row) (domain.Source, error) {
	id, ok, err := datasource.Int64(r["id"])
	if err != nil {
		return domain.Source{}, fmt.Errorf("source id: %w", err)
	}
	if !ok {
		return domain.Source{}, errors.New("source row without id")
	}
	src := domain.Source{
		ID:     id,
		Name:   datasource.String(r["source_name"]),
		Fields: map[string]any{},
	}
	if at, ok, err := datasource.Time(r["created_at"]); err == nil && ok {
		src.CreatedAt = at
	}
	for k, v := range r {
		switch k {
		case "id", "source_name", "created_at":
		default:
			src.Fields[k] = v
		}
	}
	return src, nil
}

func (s *SQLStore) ArticleCountSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE created_at >= $1`, s.schema.ArticlesTable)
	return s.count(ctx, "article count", q, since.UTC())
}

func (s *SQLStore) FailureCountSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s
 WHERE created_at >= $1
   AND transcode_status = $2
   AND (resource_url IS NULL OR resource_url <> $3)`, s.schema.ArticlesTable)
	return s.count(ctx, "failure count", q, since.UTC(), TranscodeFailed, OversizedLinkMarker)
}

func (s *SQLStore) count(ctx context.Context, what, q string, args ...any) (int64, error) {
	v, err := s.q.QueryScalar(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	n, _, err := datasource.Int64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return n, nil
}

func (s *SQLStore) LatestArticleTime(ctx context.Context) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.q.QueryScalar(ctx, fmt.Sprintf(`SELECT MAX(created_at) FROM %s`, s.schema.ArticlesTable))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest article: %w", err)
	}
	at, ok, err := datasource.Time(v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest article: %w", err)
	}
	return at, ok, nil
}

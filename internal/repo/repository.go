package repo

import (
	"context"
	"time"

	"github.com/hamed0406/ingestwatch/internal/domain"
)

// IngestStore is the read side of the ingestion database the monitor watches.
type IngestStore interface {
	// MaxSourceID returns the highest source id; ok is false for an empty table.
	MaxSourceID(ctx context.Context) (id int64, ok bool, err error)
	// NewSources returns sources with id > afterID created at or after since,
	// ordered by id descending.
	NewSources(ctx context.Context, afterID int64, since time.Time) ([]domain.Source, error)
	// ArticleCountSince counts articles created at or after since.
	ArticleCountSince(ctx context.Context, since time.Time) (int64, error)
	// FailureCountSince counts articles that failed ingestion at or after
	// since. Rows failing only because their resource link exceeded the
	// column size are not counted.
	FailureCountSince(ctx context.Context, since time.Time) (int64, error)
	// LatestArticleTime returns the creation time of the newest article.
	LatestArticleTime(ctx context.Context) (at time.Time, ok bool, err error)
}

const (
	// OversizedLinkMarker is written into resource_url when the real link
	// did not fit. Those rows are an expected data problem, not a pipeline
	// failure.
	OversizedLinkMarker = "资源链接超过字段长度：8255"

	// TranscodeFailed is the transcode_status value of a failed article.
	TranscodeFailed = 3
)

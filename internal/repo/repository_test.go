package repo_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/datasource"
	"github.com/hamed0406/ingestwatch/internal/repo"
	"github.com/hamed0406/ingestwatch/internal/repo/memory"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.IngestStore = memory.New()
	var _ repo.IngestStore = (*repo.SQLStore)(nil)
}

const schemaSQL = `
CREATE TABLE sources (
  id          INTEGER PRIMARY KEY,
  source_name TEXT NOT NULL,
  url         TEXT,
  created_at  DATETIME NOT NULL
);
CREATE TABLE articles (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  created_at       DATETIME NOT NULL,
  transcode_status INTEGER NOT NULL DEFAULT 0,
  resource_url     TEXT
);
`

func newSQLiteStore(t *testing.T) (*repo.SQLStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)

	store, err := repo.NewSQLStore(datasource.NewSQL(db, zap.NewNop()), repo.DefaultSchema(), time.Second)
	require.NoError(t, err)
	return store, db
}

func TestSQLStore_FailureCountExcludesOversizedLinks(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	ins := `INSERT INTO articles (created_at, transcode_status, resource_url) VALUES ($1, $2, $3)`
	for i := 0; i < 5; i++ {
		_, err := db.Exec(ins, now, repo.TranscodeFailed, repo.OversizedLinkMarker)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := db.Exec(ins, now, repo.TranscodeFailed, "https://cdn.example/v.mp4")
		require.NoError(t, err)
	}
	// succeeded, and failed yesterday: neither counts
	_, err := db.Exec(ins, now, 1, "https://cdn.example/ok.mp4")
	require.NoError(t, err)
	_, err = db.Exec(ins, now.Add(-30*time.Hour), repo.TranscodeFailed, "https://cdn.example/old.mp4")
	require.NoError(t, err)

	n, err := store.FailureCountSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestSQLStore_SourcesAndActivity(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, ok, err := store.MaxSourceID(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ins := `INSERT INTO sources (id, source_name, url, created_at) VALUES ($1, $2, $3, $4)`
	_, err = db.Exec(ins, 10, "old", "https://old", now.Add(-72*time.Hour))
	require.NoError(t, err)
	_, err = db.Exec(ins, 11, "fresh-a", "https://a", now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = db.Exec(ins, 12, "fresh-b", "https://b", now)
	require.NoError(t, err)

	id, ok, err := store.MaxSourceID(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(12), id)

	got, err := store.NewSources(ctx, 9, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(12), got[0].ID)
	require.Equal(t, "fresh-b", got[0].Name)
	require.Equal(t, "https://b", got[0].Fields["url"])
	require.Equal(t, int64(11), got[1].ID)

	_, ok, err = store.LatestArticleTime(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = db.Exec(`INSERT INTO articles (created_at) VALUES ($1)`, now.Add(-10*time.Minute))
	require.NoError(t, err)

	cnt, err := store.ArticleCountSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), cnt)

	latest, ok, err := store.LatestArticleTime(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, latest.Equal(now.Add(-10*time.Minute)), "got %v", latest)
}

func TestSQLStore_WindowsIgnoreCallerZone(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()
	cst := time.FixedZone("CST", 8*3600)
	midnight := time.Date(2026, 5, 5, 0, 0, 0, 0, cst) // 2026-05-04 16:00 UTC

	inside := time.Date(2026, 5, 4, 17, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)

	ins := `INSERT INTO articles (created_at, transcode_status, resource_url) VALUES ($1, $2, $3)`
	_, err := db.Exec(ins, inside, repo.TranscodeFailed, "https://cdn.example/a.mp4")
	require.NoError(t, err)
	_, err = db.Exec(ins, outside, repo.TranscodeFailed, "https://cdn.example/b.mp4")
	require.NoError(t, err)

	n, err := store.FailureCountSince(ctx, midnight)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	cnt, err := store.ArticleCountSince(ctx, midnight)
	require.NoError(t, err)
	require.Equal(t, int64(1), cnt)

	src := `INSERT INTO sources (id, source_name, url, created_at) VALUES ($1, $2, $3, $4)`
	_, err = db.Exec(src, 1, "before", "https://before", outside)
	require.NoError(t, err)
	_, err = db.Exec(src, 2, "after", "https://after", inside)
	require.NoError(t, err)

	got, err := store.NewSources(ctx, 0, midnight)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "after", got[0].Name)
}

func TestSchema_RejectsInjection(t *testing.T) {
	s := repo.Schema{SourcesTable: "sources; DROP TABLE x", ArticlesTable: "articles"}
	require.Error(t, s.Validate())
	require.NoError(t, repo.DefaultSchema().Validate())
}

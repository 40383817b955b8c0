package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/ingestwatch/internal/domain"
	"github.com/hamed0406/ingestwatch/internal/repo"
)

var _ repo.IngestStore = (*Store)(nil)

// Article is the subset of an ingested article the monitor looks at.
type Article struct {
	ID              int64
	CreatedAt       time.Time
	TranscodeStatus int
	ResourceURL     string
}

// Store is an in-process IngestStore for local runs without a database and
// for tests.
type Store struct {
	mu       sync.RWMutex
	sources  map[int64]domain.Source
	articles []Article
	err      error
}

func New() *Store {
	return &Store{
		sources:  make(map[int64]domain.Source),
		articles: make([]Article, 0, 128),
	}
}

func (m *Store) AddSource(s domain.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.sources[s.ID] = s
}

func (m *Store) AddArticle(a Article) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.articles = append(m.articles, a)
}

// FailWith makes every subsequent query return err until called with nil.
func (m *Store) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Store) MaxSourceID(ctx context.Context) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, false, m.err
	}
	var maxID int64
	found := false
	for id := range m.sources {
		if !found || id > maxID {
			maxID, found = id, true
		}
	}
	return maxID, found, nil
}

func (m *Store) NewSources(ctx context.Context, afterID int64, since time.Time) ([]domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Source, 0)
	for _, s := range m.sources {
		if s.ID > afterID && !s.CreatedAt.Before(since) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Store) ArticleCountSince(ctx context.Context, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, a := range m.articles {
		if !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Store) FailureCountSince(ctx context.Context, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, a := range m.articles {
		if a.CreatedAt.Before(since) || a.TranscodeStatus != repo.TranscodeFailed {
			continue
		}
		if a.ResourceURL == repo.OversizedLinkMarker {
			continue
		}
		n++
	}
	return n, nil
}

func (m *Store) LatestArticleTime(ctx context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return time.Time{}, false, m.err
	}
	var latest time.Time
	for _, a := range m.articles {
		if a.CreatedAt.After(latest) {
			latest = a.CreatedAt
		}
	}
	return latest, !latest.IsZero(), nil
}

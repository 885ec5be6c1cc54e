package news_test

import (
	"context"
	"errors"
	"sync"

	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/newsapi"
	"github.com/DeafMist/newsdesk/backend/internal/store"
)

type memStore struct {
	mu        sync.Mutex
	prefs     map[string]models.UserPreferences
	articles  map[string]models.NewsArticle
	read      []models.ReadNewsArticle
	favorites []models.FavoriteNewsArticle
	upserts   int
	prefSets  int
	failURL   string
}

func newMemStore() *memStore {
	return &memStore{
		prefs:    map[string]models.UserPreferences{},
		articles: map[string]models.NewsArticle{},
	}
}

func (m *memStore) GetPreferences(_ context.Context, userID string) (models.UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return models.UserPreferences{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memStore) SetPreferences(_ context.Context, userID string, patch models.PreferencesPatch) (models.UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefSets++
	p := m.prefs[userID]
	p.UserID = userID
	patch.Apply(&p)
	m.prefs[userID] = p
	return p, nil
}

func (m *memStore) UpsertArticleByURL(_ context.Context, article models.NewsArticle) (models.NewsArticle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if article.URL == m.failURL {
		return models.NewsArticle{}, false, errors.New("disk full")
	}
	if existing, ok := m.articles[article.URL]; ok {
		return existing, false, nil
	}
	m.articles[article.URL] = article
	return article, true, nil
}

func (m *memStore) FindArticleByURL(_ context.Context, url string) (models.NewsArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[url]
	if !ok {
		return models.NewsArticle{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memStore) MarkRead(_ context.Context, rec models.ReadNewsArticle) (models.ReadNewsArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read = append(m.read, rec)
	return rec, nil
}

func (m *memStore) MarkFavorite(_ context.Context, rec models.FavoriteNewsArticle) (models.FavoriteNewsArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favorites = append(m.favorites, rec)
	return rec, nil
}

func (m *memStore) ListRead(_ context.Context, userID string) ([]models.ReadNewsArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReadNewsArticle
	for _, r := range m.read {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListFavorite(_ context.Context, userID string) ([]models.FavoriteNewsArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FavoriteNewsArticle
	for _, r := range m.favorites {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubHeadlines struct {
	mu       sync.Mutex
	articles []newsapi.Article
	err      error
	queries  []newsapi.Query
}

func (s *stubHeadlines) TopHeadlines(_ context.Context, q newsapi.Query) ([]newsapi.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.articles, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ArticleEvent
	err    error
}

func (p *recordingPublisher) PublishArticles(_ context.Context, evs []models.ArticleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

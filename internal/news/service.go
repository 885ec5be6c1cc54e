// Package news aggregates external headlines for a user, caches every article once
// by url and keeps the read and favorite ledgers.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/newsdesk/backend/internal/cache"
	"github.com/DeafMist/newsdesk/backend/internal/elasticsearch"
	"github.com/DeafMist/newsdesk/backend/internal/events"
	"github.com/DeafMist/newsdesk/backend/internal/metrics"
	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/newsapi"
	"github.com/DeafMist/newsdesk/backend/internal/processing"
	"github.com/DeafMist/newsdesk/backend/internal/store"
)

const (
	defaultConcurrency = 8
	titleWords         = 12
)

// Headlines is the external news source.
type Headlines interface {
	TopHeadlines(ctx context.Context, q newsapi.Query) ([]newsapi.Article, error)
}

// Archive searches previously cached articles.
type Archive interface {
	Search(ctx context.Context, params elasticsearch.ArchiveParams) (*elasticsearch.ArchiveResult, error)
}

// Store is the persistence the service needs.
type Store interface {
	store.PreferenceStore
	store.ArticleStore
	store.Ledger
}

// Service implements the news operations.
type Service struct {
	store       Store
	headlines   Headlines
	log         *slog.Logger
	cache       cache.Articles
	publisher   events.Publisher
	archive     Archive
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
	newID       func() string
}

// Option customises a Service.
type Option func(*Service)

// WithCache puts c in front of the article store.
func WithCache(c cache.Articles) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher announces newly cached articles through p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithArchive enables SearchArchive.
func WithArchive(a Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithMetrics records external calls, upserts and cache lookups on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithConcurrency bounds parallel article upserts per request.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithClock overrides time and id generation, for tests.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(s *Service) {
		s.now = now
		s.newID = newID
	}
}

// New builds a Service. Cache and publisher default to no-ops.
func New(st Store, headlines Headlines, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       st,
		headlines:   headlines,
		log:         log,
		cache:       cache.Nop{},
		publisher:   events.Nop{},
		concurrency: defaultConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchNews queries the news API with the user's country and first category and
// returns the stored copy of every article in upstream order.
func (s *Service) FetchNews(ctx context.Context, userID string) ([]models.NewsArticle, error) {
	prefs, err := s.preferencesFor(ctx, userID)
	if err != nil {
		return []models.NewsArticle{}, err
	}
	return s.fetch(ctx, userID, queryFor(prefs, ""))
}

// FetchNewsByKeywords is FetchNews with keywords OR-joined into the free text query.
func (s *Service) FetchNewsByKeywords(ctx context.Context, userID string, keywords []string) ([]models.NewsArticle, error) {
	prefs, err := s.preferencesFor(ctx, userID)
	if err != nil {
		return []models.NewsArticle{}, err
	}
	q := processing.OrQuery(processing.NormalizeKeywords(keywords))
	return s.fetch(ctx, userID, queryFor(prefs, q))
}

func (s *Service) preferencesFor(ctx context.Context, userID string) (models.UserPreferences, error) {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return prefs, &Error{Code: CodeMissingPreferences, Err: err}
	}
	if err != nil {
		return prefs, s.fetchFailed(userID, fmt.Errorf("load preferences: %w", err))
	}
	return prefs, nil
}

func queryFor(prefs models.UserPreferences, q string) newsapi.Query {
	query := newsapi.Query{
		Country: strings.TrimSpace(prefs.PreferredNewsCountry),
		Q:       q,
	}
	for _, c := range prefs.PreferredNewsCategories {
		if c = strings.TrimSpace(c); c != "" {
			query.Category = c
			break
		}
	}
	return query
}

func (s *Service) fetch(ctx context.Context, userID string, q newsapi.Query) ([]models.NewsArticle, error) {
	start := time.Now()
	raw, err := s.headlines.TopHeadlines(ctx, q)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ExternalCall(outcome, time.Since(start))
	if err != nil {
		return []models.NewsArticle{}, s.fetchFailed(userID, fmt.Errorf("top headlines: %w", err))
	}

	fresh := make([]models.NewsArticle, 0, len(raw))
	for _, a := range raw {
		if strings.TrimSpace(a.URL) == "" {
			continue
		}
		fresh = append(fresh, s.fromUpstream(a))
	}

	stored := make([]models.NewsArticle, len(fresh))
	created := make([]bool, len(fresh))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, article := range fresh {
		g.Go(func() error {
			if hit, ok := s.cache.Get(gctx, article.URL); ok {
				s.metrics.CacheLookup(true)
				stored[i] = hit
				return nil
			}
			s.metrics.CacheLookup(false)

			got, isNew, err := s.store.UpsertArticleByURL(gctx, article)
			if err != nil {
				return fmt.Errorf("upsert article %q: %w", article.URL, err)
			}
			s.metrics.ArticleUpsert(isNew)
			s.cache.Put(gctx, got)
			stored[i] = got
			created[i] = isNew
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return []models.NewsArticle{}, s.fetchFailed(userID, err)
	}

	s.announce(ctx, userID, q.Q, stored, created)
	return stored, nil
}

// announce publishes newly created articles. Failures only get logged; the
// articles are already stored.
func (s *Service) announce(ctx context.Context, userID, query string, stored []models.NewsArticle, created []bool) {
	var evs []models.ArticleEvent
	ts := s.now()
	for i, article := range stored {
		if created[i] {
			evs = append(evs, models.ArticleEvent{Article: article, UserID: userID, Query: query, Timestamp: ts})
		}
	}
	if len(evs) == 0 {
		return
	}
	if err := s.publisher.PublishArticles(ctx, evs); err != nil {
		s.log.Warn("publish article events", slog.Int("count", len(evs)), slog.Any("err", err))
	}
}

func (s *Service) fetchFailed(userID string, err error) error {
	s.log.Error("fetch news", slog.String("user_id", userID), slog.Any("err", err))
	return &Error{Code: CodeFetchFailed, Err: err}
}

func (s *Service) fromUpstream(a newsapi.Article) models.NewsArticle {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = processing.TitleFromText(a.Description, titleWords)
	}
	return models.NewsArticle{
		ID:        s.newID(),
		Title:     title,
		URL:       strings.TrimSpace(a.URL),
		Source:    strings.TrimSpace(a.Source.Name),
		Summary:   strings.TrimSpace(a.Description),
		ImageURL:  strings.TrimSpace(a.URLToImage),
		Date:      newsapi.ParsePublishedAt(a.PublishedAt),
		CreatedAt: s.now(),
	}
}

// MarkArticleRead appends a read record. Repeated calls append repeated records.
func (s *Service) MarkArticleRead(ctx context.Context, userID, articleID string) (models.ReadNewsArticle, error) {
	rec, err := s.store.MarkRead(ctx, models.ReadNewsArticle{
		ID:            s.newID(),
		UserID:        userID,
		NewsArticleID: articleID,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return rec, fmt.Errorf("mark read: %w", err)
	}
	return rec, nil
}

// MarkArticleFavorite appends a favorite record.
func (s *Service) MarkArticleFavorite(ctx context.Context, userID, articleID string) (models.FavoriteNewsArticle, error) {
	rec, err := s.store.MarkFavorite(ctx, models.FavoriteNewsArticle{
		ID:            s.newID(),
		UserID:        userID,
		NewsArticleID: articleID,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return rec, fmt.Errorf("mark favorite: %w", err)
	}
	return rec, nil
}

// ReadArticles lists every read record of userID.
func (s *Service) ReadArticles(ctx context.Context, userID string) ([]models.ReadNewsArticle, error) {
	recs, err := s.store.ListRead(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list read: %w", err)
	}
	if recs == nil {
		recs = []models.ReadNewsArticle{}
	}
	return recs, nil
}

// FavoriteArticles lists every favorite record of userID.
func (s *Service) FavoriteArticles(ctx context.Context, userID string) ([]models.FavoriteNewsArticle, error) {
	recs, err := s.store.ListFavorite(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorite: %w", err)
	}
	if recs == nil {
		recs = []models.FavoriteNewsArticle{}
	}
	return recs, nil
}

// GetPreferences returns the user's record or a CodeMissingPreferences error.
func (s *Service) GetPreferences(ctx context.Context, userID string) (models.UserPreferences, error) {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return prefs, &Error{Code: CodeMissingPreferences, Err: err}
	}
	if err != nil {
		return prefs, fmt.Errorf("get preferences: %w", err)
	}
	prefs.Normalize()
	return prefs, nil
}

// UpdatePreferences merges patch into the user's record, creating it when absent.
// An empty patch on an existing record is a read.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, patch models.PreferencesPatch) (models.UserPreferences, error) {
	if patch.Empty() {
		prefs, err := s.store.GetPreferences(ctx, userID)
		if err == nil {
			prefs.Normalize()
			return prefs, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return prefs, fmt.Errorf("get preferences: %w", err)
		}
	}
	prefs, err := s.store.SetPreferences(ctx, userID, patch)
	if err != nil {
		return prefs, fmt.Errorf("set preferences: %w", err)
	}
	prefs.Normalize()
	return prefs, nil
}

// ErrArchiveDisabled is returned by SearchArchive when no archive is configured.
var ErrArchiveDisabled = errors.New("archive disabled")

// SearchArchive runs a full text search over archived articles.
func (s *Service) SearchArchive(ctx context.Context, params elasticsearch.ArchiveParams) (*elasticsearch.ArchiveResult, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	res, err := s.archive.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search archive: %w", err)
	}
	return res, nil
}

package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/processing"
	"github.com/DeafMist/newsdesk/backend/internal/store"
)

// listPageSize is how many ledger records one search page fetches.
const listPageSize = 500

// Indices names the index behind each collection.
type Indices struct {
	Users       string
	Preferences string
	Articles    string
	Read        string
	Favorites   string
}

// IndicesWithPrefix derives the collection index names from prefix.
func IndicesWithPrefix(prefix string) Indices {
	prefix = strings.TrimSuffix(prefix, "_")
	return Indices{
		Users:       prefix + "_users",
		Preferences: prefix + "_preferences",
		Articles:    prefix + "_articles",
		Read:        prefix + "_read",
		Favorites:   prefix + "_favorites",
	}
}

// Store implements store.Store on Elasticsearch. Uniqueness is carried by
// document ids: sha1(url) for articles, the user id for preferences and
// sha1(email) for users, all written with op_type=create.
type Store struct {
	c        *Client
	idx      Indices
	pageSize int
}

var _ store.Store = (*Store)(nil)

// NewStore binds a Store to c and idx.
func NewStore(c *Client, idx Indices) *Store {
	return &Store{c: c, idx: idx, pageSize: listPageSize}
}

var keyword = map[string]any{"type": "keyword"}

// Migrate creates every collection index with explicit keyword mappings.
func (s *Store) Migrate(ctx context.Context) error {
	mappings := map[string]map[string]any{
		s.idx.Users: {"properties": map[string]any{
			"id":        keyword,
			"email":     keyword,
			"createdAt": map[string]any{"type": "date"},
		}},
		s.idx.Preferences: {"properties": map[string]any{
			"userId": keyword,
		}},
		s.idx.Articles: {"properties": map[string]any{
			"newsArticleId": keyword,
			"url":           keyword,
			"date":          map[string]any{"type": "date"},
		}},
		s.idx.Read: {"properties": map[string]any{
			"id":            keyword,
			"userId":        keyword,
			"newsArticleId": keyword,
			"createdAt":     map[string]any{"type": "date"},
		}},
		s.idx.Favorites: {"properties": map[string]any{
			"id":            keyword,
			"userId":        keyword,
			"newsArticleId": keyword,
			"createdAt":     map[string]any{"type": "date"},
		}},
	}
	for index, mapping := range mappings {
		if err := s.c.EnsureIndex(ctx, index, mapping); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the cluster is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.c.Ping(ctx)
}

// Close is a no-op; the HTTP transport needs no teardown.
func (s *Store) Close() error {
	return nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (models.UserPreferences, error) {
	var prefs models.UserPreferences
	if err := s.c.getDoc(ctx, s.idx.Preferences, userID, &prefs); err != nil {
		return models.UserPreferences{}, err
	}
	prefs.Normalize()
	return prefs, nil
}

func (s *Store) SetPreferences(ctx context.Context, userID string, patch models.PreferencesPatch) (models.UserPreferences, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return models.UserPreferences{}, fmt.Errorf("marshal patch: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.UserPreferences{}, fmt.Errorf("decode patch: %w", err)
	}
	fields["userId"] = userID
	fields["updatedAt"] = time.Now().UTC()

	var prefs models.UserPreferences
	if err := s.c.upsertDoc(ctx, s.idx.Preferences, userID, fields, &prefs); err != nil {
		return models.UserPreferences{}, err
	}
	prefs.Normalize()
	return prefs, nil
}

func (s *Store) UpsertArticleByURL(ctx context.Context, article models.NewsArticle) (models.NewsArticle, bool, error) {
	id := processing.URLKey(article.URL)
	err := s.c.createDoc(ctx, s.idx.Articles, id, article, "false")
	if err == nil {
		return article, true, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return models.NewsArticle{}, false, err
	}

	var existing models.NewsArticle
	if err := s.c.getDoc(ctx, s.idx.Articles, id, &existing); err != nil {
		return models.NewsArticle{}, false, fmt.Errorf("load existing article: %w", err)
	}
	return existing, false, nil
}

func (s *Store) FindArticleByURL(ctx context.Context, url string) (models.NewsArticle, error) {
	var article models.NewsArticle
	if err := s.c.getDoc(ctx, s.idx.Articles, processing.URLKey(url), &article); err != nil {
		return models.NewsArticle{}, err
	}
	return article, nil
}

func (s *Store) MarkRead(ctx context.Context, rec models.ReadNewsArticle) (models.ReadNewsArticle, error) {
	if err := s.c.indexDoc(ctx, s.idx.Read, rec.ID, rec, "wait_for"); err != nil {
		return models.ReadNewsArticle{}, err
	}
	return rec, nil
}

func (s *Store) MarkFavorite(ctx context.Context, rec models.FavoriteNewsArticle) (models.FavoriteNewsArticle, error) {
	if err := s.c.indexDoc(ctx, s.idx.Favorites, rec.ID, rec, "wait_for"); err != nil {
		return models.FavoriteNewsArticle{}, err
	}
	return rec, nil
}

func (s *Store) ListRead(ctx context.Context, userID string) ([]models.ReadNewsArticle, error) {
	hits, err := s.listByUser(ctx, s.idx.Read, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ReadNewsArticle, 0, len(hits))
	for _, hit := range hits {
		var rec models.ReadNewsArticle
		if err := json.Unmarshal(hit.Source, &rec); err != nil {
			return nil, fmt.Errorf("decode read record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) ListFavorite(ctx context.Context, userID string) ([]models.FavoriteNewsArticle, error) {
	hits, err := s.listByUser(ctx, s.idx.Favorites, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.FavoriteNewsArticle, 0, len(hits))
	for _, hit := range hits {
		var rec models.FavoriteNewsArticle
		if err := json.Unmarshal(hit.Source, &rec); err != nil {
			return nil, fmt.Errorf("decode favorite record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// listByUser pages through every record of userID with search_after, ordered
// by createdAt with the record id as tiebreaker.
func (s *Store) listByUser(ctx context.Context, index, userID string) ([]searchHit, error) {
	var all []searchHit
	var after []any
	for {
		body := map[string]any{
			"size": s.pageSize,
			"query": map[string]any{
				"term": map[string]any{"userId": userID},
			},
			"sort": []map[string]any{
				{"createdAt": map[string]any{"order": "asc"}},
				{"id": map[string]any{"order": "asc"}},
			},
		}
		if after != nil {
			body["search_after"] = after
		}
		hits, _, err := s.c.search(ctx, index, body)
		if err != nil {
			return nil, err
		}
		all = append(all, hits...)
		if len(hits) < s.pageSize {
			return all, nil
		}
		after = hits[len(hits)-1].Sort
		if len(after) == 0 {
			return nil, fmt.Errorf("list %s: page without sort values", index)
		}
	}
}

// userDoc is the stored form of models.User; unlike the model it keeps the hash.
type userDoc struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (d userDoc) model() models.User {
	return models.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	doc := userDoc{
		ID:           user.ID,
		Email:        strings.ToLower(strings.TrimSpace(user.Email)),
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	return s.c.createDoc(ctx, s.idx.Users, processing.EmailKey(user.Email), doc, "wait_for")
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var doc userDoc
	if err := s.c.getDoc(ctx, s.idx.Users, processing.EmailKey(email), &doc); err != nil {
		return models.User{}, err
	}
	return doc.model(), nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (models.User, error) {
	hits, _, err := s.c.search(ctx, s.idx.Users, map[string]any{
		"size": 1,
		"query": map[string]any{
			"term": map[string]any{"id": id},
		},
	})
	if err != nil {
		return models.User{}, err
	}
	if len(hits) == 0 {
		return models.User{}, store.ErrNotFound
	}
	var doc userDoc
	if err := json.Unmarshal(hits[0].Source, &doc); err != nil {
		return models.User{}, fmt.Errorf("decode user: %w", err)
	}
	return doc.model(), nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	var updated userDoc
	return s.c.upsertDoc(ctx, s.idx.Users, processing.EmailKey(user.Email), map[string]any{
		"passwordHash": hash,
		"updatedAt":    time.Now().UTC(),
	}, &updated)
}

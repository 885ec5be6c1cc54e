package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/store"

	_ "modernc.org/sqlite"
)

// Store implements store.Store on a single sqlite database. Uniqueness of
// article urls, user emails and preference records comes from the schema.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers and keeps read-modify-write merges atomic.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS preferences (
	user_id TEXT PRIMARY KEY,
	sources TEXT NOT NULL DEFAULT '[]',
	categories TEXT NOT NULL DEFAULT '[]',
	keywords TEXT NOT NULL DEFAULT '[]',
	location TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	page_size INTEGER NOT NULL DEFAULT 0,
	page_number INTEGER NOT NULL DEFAULT 0,
	sort_by TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	date INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_url ON articles(url);

CREATE TABLE IF NOT EXISTS read_articles (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	news_article_id TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_read_articles_user ON read_articles(user_id);

CREATE TABLE IF NOT EXISTS favorite_articles (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	news_article_id TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_favorite_articles_user ON favorite_articles(user_id);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (models.UserPreferences, error) {
	return getPreferences(ctx, s.db, userID)
}

func getPreferences(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, userID string) (models.UserPreferences, error) {
	row := q.QueryRowContext(ctx, `
SELECT user_id, sources, categories, keywords, location, language, country, page_size, page_number, sort_by, updated_at
FROM preferences WHERE user_id = ?
`, userID)
	return scanPreferences(row)
}

func (s *Store) SetPreferences(ctx context.Context, userID string, patch models.PreferencesPatch) (models.UserPreferences, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.UserPreferences{}, err
	}
	defer tx.Rollback()

	prefs, err := getPreferences(ctx, tx, userID)
	if errors.Is(err, store.ErrNotFound) {
		prefs = models.UserPreferences{UserID: userID}
	} else if err != nil {
		return models.UserPreferences{}, err
	}

	patch.Apply(&prefs)
	prefs.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	prefs.Normalize()

	sources, categories, keywords, err := encodeLists(prefs)
	if err != nil {
		return models.UserPreferences{}, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO preferences (user_id, sources, categories, keywords, location, language, country, page_size, page_number, sort_by, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	sources = excluded.sources,
	categories = excluded.categories,
	keywords = excluded.keywords,
	location = excluded.location,
	language = excluded.language,
	country = excluded.country,
	page_size = excluded.page_size,
	page_number = excluded.page_number,
	sort_by = excluded.sort_by,
	updated_at = excluded.updated_at
`, prefs.UserID, sources, categories, keywords, prefs.PreferredNewsLocation, prefs.PreferredNewsLanguage,
		prefs.PreferredNewsCountry, prefs.PreferredNewsPageSize, prefs.PreferredNewsPageNumber,
		prefs.PreferredNewsSortBy, toUnix(prefs.UpdatedAt)); err != nil {
		return models.UserPreferences{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.UserPreferences{}, err
	}
	return prefs, nil
}

func (s *Store) UpsertArticleByURL(ctx context.Context, article models.NewsArticle) (models.NewsArticle, bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO articles (id, url, title, source, summary, image_url, date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO NOTHING
`, article.ID, article.URL, article.Title, article.Source, article.Summary, article.ImageURL,
		toUnix(article.Date), toUnix(article.CreatedAt))
	if err != nil {
		return models.NewsArticle{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.NewsArticle{}, false, err
	}
	// Read back either way so callers always see the stored, second-precision copy.
	stored, err := s.FindArticleByURL(ctx, article.URL)
	if err != nil {
		return models.NewsArticle{}, false, fmt.Errorf("load stored article: %w", err)
	}
	return stored, n == 1, nil
}

func (s *Store) FindArticleByURL(ctx context.Context, url string) (models.NewsArticle, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, url, title, source, summary, image_url, date, created_at
FROM articles WHERE url = ?
`, url)

	var a models.NewsArticle
	var date, created int64
	if err := row.Scan(&a.ID, &a.URL, &a.Title, &a.Source, &a.Summary, &a.ImageURL, &date, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewsArticle{}, store.ErrNotFound
		}
		return models.NewsArticle{}, err
	}
	a.Date = fromUnix(date)
	a.CreatedAt = fromUnix(created)
	return a, nil
}

func (s *Store) MarkRead(ctx context.Context, rec models.ReadNewsArticle) (models.ReadNewsArticle, error) {
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO read_articles (id, user_id, news_article_id, created_at) VALUES (?, ?, ?, ?)
`, rec.ID, rec.UserID, rec.NewsArticleID, toUnix(rec.CreatedAt)); err != nil {
		return models.ReadNewsArticle{}, err
	}
	rec.CreatedAt = fromUnix(toUnix(rec.CreatedAt))
	return rec, nil
}

func (s *Store) MarkFavorite(ctx context.Context, rec models.FavoriteNewsArticle) (models.FavoriteNewsArticle, error) {
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO favorite_articles (id, user_id, news_article_id, created_at) VALUES (?, ?, ?, ?)
`, rec.ID, rec.UserID, rec.NewsArticleID, toUnix(rec.CreatedAt)); err != nil {
		return models.FavoriteNewsArticle{}, err
	}
	rec.CreatedAt = fromUnix(toUnix(rec.CreatedAt))
	return rec, nil
}

func (s *Store) ListRead(ctx context.Context, userID string) ([]models.ReadNewsArticle, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, news_article_id, created_at FROM read_articles
WHERE user_id = ? ORDER BY created_at ASC, rowid ASC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ReadNewsArticle{}
	for rows.Next() {
		var rec models.ReadNewsArticle
		var created int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.NewsArticleID, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = fromUnix(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListFavorite(ctx context.Context, userID string) ([]models.FavoriteNewsArticle, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, news_article_id, created_at FROM favorite_articles
WHERE user_id = ? ORDER BY created_at ASC, rowid ASC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.FavoriteNewsArticle{}
	for rows.Next() {
		var rec models.FavoriteNewsArticle
		var created int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.NewsArticleID, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = fromUnix(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
`, user.ID, normalizeEmail(user.Email), user.PasswordHash, toUnix(user.CreatedAt), toUnix(user.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = ?
`, normalizeEmail(email))
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, email, password_hash, created_at, updated_at FROM users WHERE id = ?
`, id)
	return scanUser(row)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?
`, hash, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanPreferences(scanner rowScanner) (models.UserPreferences, error) {
	var p models.UserPreferences
	var sources, categories, keywords string
	var updated int64
	if err := scanner.Scan(&p.UserID, &sources, &categories, &keywords, &p.PreferredNewsLocation,
		&p.PreferredNewsLanguage, &p.PreferredNewsCountry, &p.PreferredNewsPageSize,
		&p.PreferredNewsPageNumber, &p.PreferredNewsSortBy, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserPreferences{}, store.ErrNotFound
		}
		return models.UserPreferences{}, err
	}
	if err := json.Unmarshal([]byte(sources), &p.PreferredNewsSources); err != nil {
		return models.UserPreferences{}, fmt.Errorf("decode sources: %w", err)
	}
	if err := json.Unmarshal([]byte(categories), &p.PreferredNewsCategories); err != nil {
		return models.UserPreferences{}, fmt.Errorf("decode categories: %w", err)
	}
	if err := json.Unmarshal([]byte(keywords), &p.PreferredNewsKeywords); err != nil {
		return models.UserPreferences{}, fmt.Errorf("decode keywords: %w", err)
	}
	p.UpdatedAt = fromUnix(updated)
	p.Normalize()
	return p, nil
}

func scanUser(scanner rowScanner) (models.User, error) {
	var u models.User
	var created, updated int64
	if err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, store.ErrNotFound
		}
		return models.User{}, err
	}
	u.CreatedAt = fromUnix(created)
	u.UpdatedAt = fromUnix(updated)
	return u, nil
}

func encodeLists(p models.UserPreferences) (string, string, string, error) {
	sources, err := json.Marshal(p.PreferredNewsSources)
	if err != nil {
		return "", "", "", err
	}
	categories, err := json.Marshal(p.PreferredNewsCategories)
	if err != nil {
		return "", "", "", err
	}
	keywords, err := json.Marshal(p.PreferredNewsKeywords)
	if err != nil {
		return "", "", "", err
	}
	return string(sources), string(categories), string(keywords), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

package store

import (
	"context"
	"errors"

	"github.com/DeafMist/newsdesk/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Store bundles every collection the api persists.
type Store interface {
	PreferenceStore
	ArticleStore
	Ledger
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

// PreferenceStore keeps one preference record per user.
type PreferenceStore interface {
	// GetPreferences returns ErrNotFound when the user has no record.
	GetPreferences(ctx context.Context, userID string) (models.UserPreferences, error)
	// SetPreferences merges patch into the user's record, creating it if absent,
	// and returns the merged record.
	SetPreferences(ctx context.Context, userID string, patch models.PreferencesPatch) (models.UserPreferences, error)
}

// ArticleStore caches external articles keyed by url.
type ArticleStore interface {
	// UpsertArticleByURL inserts article unless one with the same url exists, in which
	// case the stored record is returned unchanged. created reports whether an insert happened.
	UpsertArticleByURL(ctx context.Context, article models.NewsArticle) (stored models.NewsArticle, created bool, err error)
	FindArticleByURL(ctx context.Context, url string) (models.NewsArticle, error)
}

// Ledger appends read and favorite marks without deduplication.
type Ledger interface {
	MarkRead(ctx context.Context, rec models.ReadNewsArticle) (models.ReadNewsArticle, error)
	MarkFavorite(ctx context.Context, rec models.FavoriteNewsArticle) (models.FavoriteNewsArticle, error)
	ListRead(ctx context.Context, userID string) ([]models.ReadNewsArticle, error)
	ListFavorite(ctx context.Context, userID string) ([]models.FavoriteNewsArticle, error)
}

// UserStore persists accounts. Emails are unique, compared case-insensitively.
type UserStore interface {
	// CreateUser returns ErrDuplicate when the email is taken.
	CreateUser(ctx context.Context, user models.User) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

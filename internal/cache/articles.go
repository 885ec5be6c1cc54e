package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/processing"
)

// Articles is a write-once url -> article cache in front of the article store.
// Stored articles never change, so a hit is always current.
type Articles interface {
	Get(ctx context.Context, url string) (models.NewsArticle, bool)
	Put(ctx context.Context, article models.NewsArticle)
}

// MemoryArticles adapts Memory to Articles.
type MemoryArticles struct {
	m *Memory[models.NewsArticle]
}

// NewMemoryArticles builds an in-process article cache.
func NewMemoryArticles(capacity int, ttl time.Duration) *MemoryArticles {
	return &MemoryArticles{m: NewMemory[models.NewsArticle](capacity, ttl)}
}

func (c *MemoryArticles) Get(_ context.Context, url string) (models.NewsArticle, bool) {
	return c.m.Get(processing.URLKey(url))
}

func (c *MemoryArticles) Put(_ context.Context, article models.NewsArticle) {
	c.m.Put(processing.URLKey(article.URL), article)
}

// RedisArticles shares the article cache between api replicas.
type RedisArticles struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewRedisArticles wraps rdb. Redis failures are logged and treated as misses.
func NewRedisArticles(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisArticles {
	return &RedisArticles{rdb: rdb, ttl: ttl, log: log}
}

func articleKey(url string) string {
	return "newsdesk:article:" + processing.URLKey(url)
}

func (c *RedisArticles) Get(ctx context.Context, url string) (models.NewsArticle, bool) {
	b, err := c.rdb.Get(ctx, articleKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewsArticle{}, false
	}
	if err != nil {
		c.log.Warn("article cache get", slog.Any("err", err))
		return models.NewsArticle{}, false
	}
	var article models.NewsArticle
	if err := json.Unmarshal(b, &article); err != nil {
		c.log.Warn("article cache decode", slog.Any("err", err))
		return models.NewsArticle{}, false
	}
	return article, true
}

func (c *RedisArticles) Put(ctx context.Context, article models.NewsArticle) {
	b, err := json.Marshal(article)
	if err != nil {
		c.log.Warn("article cache encode", slog.Any("err", err))
		return
	}
	// SetNX keeps the first copy, matching the store's write-once rule.
	if err := c.rdb.SetNX(ctx, articleKey(article.URL), b, c.ttl).Err(); err != nil {
		c.log.Warn("article cache put", slog.Any("err", err))
	}
}

// Nop disables caching.
type Nop struct{}

func (Nop) Get(context.Context, string) (models.NewsArticle, bool) { return models.NewsArticle{}, false }
func (Nop) Put(context.Context, models.NewsArticle)                {}

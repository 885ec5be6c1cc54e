package config_test

import (
	"testing"
	"time"

	"github.com/DeafMist/newsdesk/backend/internal/config"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("NEWS_API_KEY", "key-123")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadAPIDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("ARTICLE_CACHE", "")
	t.Setenv("KAFKA_TOPIC", "")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "https://newsapi.org/v2/top-headlines", cfg.NewsAPIURL)
	require.Equal(t, "key-123", cfg.NewsAPIKey)
	require.Equal(t, config.DriverElasticsearch, cfg.StoreDriver)
	require.Equal(t, config.CacheMemory, cfg.ArticleCache)
	require.Equal(t, 10*time.Second, cfg.NewsAPITimeout)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.Equal(t, 8, cfg.UpsertConcurrency)
	require.False(t, cfg.PublishEnabled())
}

func TestLoadAPIOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/news.db")
	t.Setenv("ARTICLE_CACHE", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093")
	t.Setenv("KAFKA_TOPIC", "articles")
	t.Setenv("NEWS_API_TIMEOUT", "3s")
	t.Setenv("UPSERT_CONCURRENCY", "2")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, config.DriverSQLite, cfg.StoreDriver)
	require.Equal(t, "/tmp/news.db", cfg.SQLitePath)
	require.Equal(t, config.CacheRedis, cfg.ArticleCache)
	require.Equal(t, 3, cfg.RedisDB)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.True(t, cfg.PublishEnabled())
	require.Equal(t, 3*time.Second, cfg.NewsAPITimeout)
	require.Equal(t, 2, cfg.UpsertConcurrency)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
}

func TestLoadAPIValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing api key", env: map[string]string{"NEWS_API_KEY": ""}},
		{name: "missing jwt secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "mongo"}},
		{name: "unknown cache", env: map[string]string{"ARTICLE_CACHE": "disk"}},
		{name: "zero concurrency", env: map[string]string{"UPSERT_CONCURRENCY": "0"}},
		{name: "page above max", env: map[string]string{"API_PAGE_SIZE": "50", "API_MAX_PAGE_SIZE": "10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadAPI()
			require.Error(t, err)
		})
	}
}

func TestLoadWorker(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ARCHIVE_INDEX", "archive")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("WORKER_KEYWORD_LIMIT", "12")
	t.Setenv("WORKER_KEYWORD_MIN_LEN", "5")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "archive", cfg.ArchiveIndex)
	require.Equal(t, "news_articles", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 12, cfg.KeywordLimit)
	require.Equal(t, 5, cfg.KeywordMinLength)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
}

func TestLoadWorkerRejectsNegativeMinLength(t *testing.T) {
	t.Setenv("WORKER_KEYWORD_MIN_LEN", "-1")
	_, err := config.LoadWorker()
	require.Error(t, err)
}

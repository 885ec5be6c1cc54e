package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch and Kafka parameters shared by every service.
type Common struct {
	ElasticsearchAddr string
	ArchiveIndex      string
	KafkaBrokers      []string
	KafkaTopic        string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr string

	NewsAPIURL     string
	NewsAPIKey     string
	NewsAPITimeout time.Duration

	StoreDriver string
	SQLitePath  string
	IndexPrefix string

	ArticleCache         string
	ArticleCacheCapacity int
	ArticleCacheTTL      time.Duration
	RedisAddr            string
	RedisPassword        string
	RedisDB              int

	JWTSecret string
	JWTTTL    time.Duration

	UpsertConcurrency int
	SearchRatePerMin  int
	DefaultPage       int
	MaxPage           int
}

// Worker holds configuration for the Kafka -> archive index worker.
type Worker struct {
	Common
	KafkaConsumer    string
	KeywordLimit     int
	KeywordMinLength int
	DedupeCapacity   int
	DedupeTTL        time.Duration
}

// Store drivers.
const (
	DriverElasticsearch = "elasticsearch"
	DriverSQLite        = "sqlite"
)

// Article cache kinds.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

func loadCommon() Common {
	return Common{
		ElasticsearchAddr: getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ArchiveIndex:      getEnv("ARCHIVE_INDEX", "news_archive"),
		KafkaBrokers:      splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:        strings.TrimSpace(os.Getenv("KAFKA_TOPIC")),
	}
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:   loadCommon(),
		BindAddr: getEnv("API_BIND_ADDR", "0.0.0.0:8080"),

		NewsAPIURL:     getEnv("NEWS_API_URL", "https://newsapi.org/v2/top-headlines"),
		NewsAPIKey:     strings.TrimSpace(os.Getenv("NEWS_API_KEY")),
		NewsAPITimeout: getDuration("NEWS_API_TIMEOUT", "10s"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverElasticsearch)),
		SQLitePath:  getEnv("SQLITE_PATH", "newsdesk.db"),
		IndexPrefix: getEnv("ELASTICSEARCH_INDEX_PREFIX", "newsdesk"),

		ArticleCache:         strings.ToLower(getEnv("ARTICLE_CACHE", CacheMemory)),
		ArticleCacheCapacity: getInt("ARTICLE_CACHE_CAPACITY", 5000),
		ArticleCacheTTL:      getDuration("ARTICLE_CACHE_TTL", "6h"),
		RedisAddr:            getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getDuration("JWT_TTL", "24h"),

		UpsertConcurrency: getInt("UPSERT_CONCURRENCY", 8),
		SearchRatePerMin:  getInt("SEARCH_RATE_PER_MIN", 30),
		DefaultPage:       getInt("API_PAGE_SIZE", 20),
		MaxPage:           getInt("API_MAX_PAGE_SIZE", 100),
	}

	if c.NewsAPIKey == "" {
		return nil, fmt.Errorf("NEWS_API_KEY is required")
	}
	if c.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case DriverElasticsearch, DriverSQLite:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q", DriverElasticsearch, DriverSQLite)
	}
	switch c.ArticleCache {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return nil, fmt.Errorf("ARTICLE_CACHE must be one of memory, redis, none")
	}
	if c.ArticleCacheCapacity <= 0 {
		return nil, fmt.Errorf("ARTICLE_CACHE_CAPACITY must be positive")
	}
	if c.UpsertConcurrency <= 0 {
		return nil, fmt.Errorf("UPSERT_CONCURRENCY must be positive")
	}
	if c.SearchRatePerMin < 0 {
		return nil, fmt.Errorf("SEARCH_RATE_PER_MIN cannot be negative")
	}
	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:           loadCommon(),
		KafkaConsumer:    getEnv("KAFKA_CONSUMER_GROUP", "newsdesk-archiver"),
		KeywordLimit:     getInt("WORKER_KEYWORD_LIMIT", 8),
		KeywordMinLength: getInt("WORKER_KEYWORD_MIN_LEN", 4),
		DedupeCapacity:   getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:        getDuration("WORKER_DEDUPE_TTL", "24h"),
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = "news_articles"
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.KeywordLimit <= 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_LIMIT must be positive")
	}
	if c.KeywordMinLength < 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_MIN_LEN cannot be negative")
	}

	return c, nil
}

// PublishEnabled reports whether newly cached articles go to Kafka.
func (c Common) PublishEnabled() bool {
	return c.KafkaTopic != "" && len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

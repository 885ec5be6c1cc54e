package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/DeafMist/newsdesk/backend/internal/accounts"
	"github.com/DeafMist/newsdesk/backend/internal/auth"
	"github.com/DeafMist/newsdesk/backend/internal/cache"
	"github.com/DeafMist/newsdesk/backend/internal/config"
	"github.com/DeafMist/newsdesk/backend/internal/elasticsearch"
	"github.com/DeafMist/newsdesk/backend/internal/events"
	"github.com/DeafMist/newsdesk/backend/internal/logger"
	"github.com/DeafMist/newsdesk/backend/internal/metrics"
	"github.com/DeafMist/newsdesk/backend/internal/news"
	"github.com/DeafMist/newsdesk/backend/internal/newsapi"
	"github.com/DeafMist/newsdesk/backend/internal/ratelimit"
	"github.com/DeafMist/newsdesk/backend/internal/store"
	"github.com/DeafMist/newsdesk/backend/internal/store/sqlite"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, log, cfg); err != nil {
		log.Error("api stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, cfg *config.API) error {
	var esClient *elasticsearch.Client
	if cfg.StoreDriver == config.DriverElasticsearch || cfg.PublishEnabled() {
		c, err := elasticsearch.New(cfg.ElasticsearchAddr, log)
		if err != nil {
			return err
		}
		esClient = c
	}

	st, err := openStore(ctx, cfg, esClient)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	opts := []news.Option{
		news.WithMetrics(m),
		news.WithConcurrency(cfg.UpsertConcurrency),
	}

	articleCache, closeCache := buildCache(ctx, log, cfg)
	defer closeCache()
	opts = append(opts, news.WithCache(articleCache))

	if cfg.PublishEnabled() {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		opts = append(opts, news.WithPublisher(pub))
		log.Info("article events enabled", slog.String("topic", cfg.KafkaTopic))
	}

	var checks []healthCheck
	checks = append(checks, healthCheck{name: "store", check: st.Ping})
	if esClient != nil {
		archive := elasticsearch.NewArchive(esClient, cfg.ArchiveIndex)
		if err := archive.Migrate(ctx); err != nil {
			log.Warn("archive index unavailable", slog.Any("err", err))
		}
		opts = append(opts, news.WithArchive(archive))
		checks = append(checks, healthCheck{name: "elasticsearch", check: esClient.Health})
	}

	headlines := newsapi.New(cfg.NewsAPIURL, cfg.NewsAPIKey, cfg.NewsAPITimeout)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)

	srv := &server{
		log:      log,
		news:     news.New(st, headlines, log, opts...),
		accounts: accounts.New(st, tokens),
		tokens:   tokens,
		limiter:  ratelimit.New(cfg.SearchRatePerMin),
		metrics:  m,
		checks:   checks,
		pageSize: cfg.DefaultPage,
		maxPage:  cfg.MaxPage,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.NewsAPITimeout + 15*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("store", cfg.StoreDriver),
			slog.String("cache", cfg.ArticleCache),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.API, esClient *elasticsearch.Client) (store.Store, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return st, nil
	}

	st := elasticsearch.NewStore(esClient, elasticsearch.IndicesWithPrefix(cfg.IndexPrefix))
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := st.Migrate(migrateCtx); err != nil {
		return nil, fmt.Errorf("migrate elasticsearch store: %w", err)
	}
	return st, nil
}

func buildCache(ctx context.Context, log *slog.Logger, cfg *config.API) (cache.Articles, func()) {
	switch cfg.ArticleCache {
	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, cache lookups will miss", slog.Any("err", err))
		}
		return cache.NewRedisArticles(rdb, cfg.ArticleCacheTTL, log), func() { _ = rdb.Close() }
	case config.CacheNone:
		return cache.Nop{}, func() {}
	default:
		return cache.NewMemoryArticles(cfg.ArticleCacheCapacity, cfg.ArticleCacheTTL), func() {}
	}
}

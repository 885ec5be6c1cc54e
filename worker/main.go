package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/newsdesk/backend/internal/cache"
	"github.com/DeafMist/newsdesk/backend/internal/config"
	"github.com/DeafMist/newsdesk/backend/internal/elasticsearch"
	"github.com/DeafMist/newsdesk/backend/internal/logger"
	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/processing"
)

type archiveIndexer interface {
	Index(ctx context.Context, doc models.ArchiveDocument) error
}

type dlqWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	_ = godotenv.Load()
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	archive := elasticsearch.NewArchive(esClient, cfg.ArchiveIndex)
	if err := archive.Migrate(ctx); err != nil {
		log.Error("migrate archive index", slog.Any("err", err))
		os.Exit(1)
	}

	seen := cache.NewMemory[struct{}](cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        dlqTopic,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}
	defer dlq.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
		slog.String("index", cfg.ArchiveIndex),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, archive, seen, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			if !sendToDLQ(ctx, log, dlq, msg, err, time.Second) {
				if ctx.Err() != nil {
					return
				}
				// Leave the offset uncommitted so a restart reprocesses it.
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// sendToDLQ copies msg to the dead letter topic with exponential backoff and
// reports whether it landed.
func sendToDLQ(ctx context.Context, log *slog.Logger, w dlqWriter, msg kafka.Message, cause error, baseBackoff time.Duration) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range 5 {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}
		backoff := baseBackoff * time.Duration(1<<uint(attempt))
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}

func processMessage(ctx context.Context, log *slog.Logger, idx archiveIndexer, seen *cache.Memory[struct{}], cfg *config.Worker, msg kafka.Message) error {
	var ev models.ArticleEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("decode article event: %w", err)
	}

	doc, err := buildDocument(ev, cfg)
	if err != nil {
		return err
	}

	if seen.Has(doc.ID) {
		log.Debug("duplicate article", slog.String("id", doc.ID))
		return nil
	}

	if err := idx.Index(ctx, doc); err != nil {
		return fmt.Errorf("index article: %w", err)
	}

	seen.Put(doc.ID, struct{}{})
	log.Info("archived article", slog.String("id", doc.ID), slog.String("title", doc.Title))
	return nil
}

func buildDocument(ev models.ArticleEvent, cfg *config.Worker) (models.ArchiveDocument, error) {
	article := ev.Article
	url := strings.TrimSpace(article.URL)
	if url == "" {
		return models.ArchiveDocument{}, errors.New("article without url")
	}

	text := processing.CleanSentences(article.Summary)
	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = processing.TitleFromText(text, 10)
	}
	if title == "" && text == "" {
		return models.ArchiveDocument{}, errors.New("empty article")
	}

	source := strings.TrimSpace(article.Source)
	if source == "" {
		source = "unknown"
	}

	ts := article.Date
	if ts.IsZero() {
		ts = ev.Timestamp
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return models.ArchiveDocument{
		ID:        processing.URLKey(url),
		Title:     title,
		Text:      text,
		URL:       url,
		ImageURL:  strings.TrimSpace(article.ImageURL),
		Source:    source,
		Keywords:  processing.ExtractKeywords(title+" "+text, cfg.KeywordLimit, cfg.KeywordMinLength),
		Timestamp: ts.UTC(),
	}, nil
}

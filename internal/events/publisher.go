package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/processing"
)

// Publisher announces newly cached articles.
type Publisher interface {
	PublishArticles(ctx context.Context, events []models.ArticleEvent) error
	Close() error
}

// KafkaPublisher writes one message per article, keyed by url hash so every
// copy of an article lands on the same partition.
type KafkaPublisher struct {
	w *kafka.Writer
}

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
	}}
}

func (p *KafkaPublisher) PublishArticles(ctx context.Context, events []models.ArticleEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msg, err := ArticleMessage(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write article events: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// ArticleMessage encodes ev as a Kafka message.
func ArticleMessage(ev models.ArticleEvent) (kafka.Message, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal article event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(processing.URLKey(ev.Article.URL)),
		Value: value,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("article.cached")},
		},
	}, nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishArticles(context.Context, []models.ArticleEvent) error { return nil }
func (Nop) Close() error                                                 { return nil }

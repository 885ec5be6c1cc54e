package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/newsdesk/backend/internal/events"
	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/processing"
)

func TestArticleMessage(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := models.ArticleEvent{
		Article:   models.NewsArticle{ID: "a1", URL: "https://example.com/a", Title: "A"},
		UserID:    "u1",
		Timestamp: ts,
	}

	msg, err := events.ArticleMessage(ev)
	require.NoError(t, err)
	require.Equal(t, processing.URLKey("https://example.com/a"), string(msg.Key))
	require.Equal(t, ts, msg.Time)
	require.Equal(t, "type", msg.Headers[0].Key)

	var decoded models.ArticleEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, "a1", decoded.Article.ID)
	require.Equal(t, "u1", decoded.UserID)
}

func TestArticleMessageStampsMissingTime(t *testing.T) {
	msg, err := events.ArticleMessage(models.ArticleEvent{Article: models.NewsArticle{URL: "u"}})
	require.NoError(t, err)
	require.False(t, msg.Time.IsZero())
}

func TestKafkaPublisherSkipsEmptyBatch(t *testing.T) {
	p := events.NewKafkaPublisher([]string{"127.0.0.1:1"}, "articles")
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.PublishArticles(context.Background(), nil))
}

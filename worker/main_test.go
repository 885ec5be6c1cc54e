package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/newsdesk/backend/internal/cache"
	"github.com/DeafMist/newsdesk/backend/internal/config"
	"github.com/DeafMist/newsdesk/backend/internal/logger"
	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/processing"
)

type stubIndexer struct {
	docs []models.ArchiveDocument
	err  error
}

func (s *stubIndexer) Index(_ context.Context, doc models.ArchiveDocument) error {
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

type flakyWriter struct {
	failures int
	calls    int
	msgs     []kafka.Message
}

func (w *flakyWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.calls <= w.failures {
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func testConfig() *config.Worker {
	return &config.Worker{
		Common:           config.Common{ArchiveIndex: "news_archive"},
		KeywordLimit:     5,
		KeywordMinLength: 3,
	}
}

func eventMessage(t *testing.T, ev models.ArticleEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Value: data}
}

func TestProcessMessageIndexesDocument(t *testing.T) {
	seen := cache.NewMemory[struct{}](100, time.Hour)
	idx := &stubIndexer{}
	published := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	msg := eventMessage(t, models.ArticleEvent{
		Article: models.NewsArticle{
			ID:      "a1",
			Title:   "Central bank holds rates",
			URL:     "https://example.com/rates",
			Source:  "Wire",
			Summary: "<p>The central bank held interest rates steady, citing inflation.</p>",
			Date:    published,
		},
		UserID: "u1",
	})

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, seen, testConfig(), msg))
	require.Len(t, idx.docs, 1)

	doc := idx.docs[0]
	require.Equal(t, processing.URLKey("https://example.com/rates"), doc.ID)
	require.Equal(t, "Central bank holds rates", doc.Title)
	require.Equal(t, "The central bank held interest rates steady, citing inflation.", doc.Text)
	require.Equal(t, "Wire", doc.Source)
	require.True(t, published.Equal(doc.Timestamp))
	require.Contains(t, doc.Keywords, "central")

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, seen, testConfig(), msg))
	require.Len(t, idx.docs, 1, "repeat deliveries are skipped")
}

func TestProcessMessageFillsMissingFields(t *testing.T) {
	seen := cache.NewMemory[struct{}](100, time.Hour)
	idx := &stubIndexer{}
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	msg := eventMessage(t, models.ArticleEvent{
		Article: models.NewsArticle{
			URL:     "https://example.com/x",
			Summary: "Storm closes airports across the north. Flights resume tomorrow.",
		},
		Timestamp: ts,
	})

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, seen, testConfig(), msg))
	doc := idx.docs[0]
	require.Equal(t, "Storm closes airports across the north", doc.Title)
	require.Equal(t, "unknown", doc.Source)
	require.True(t, ts.Equal(doc.Timestamp))
}

func TestProcessMessageRejects(t *testing.T) {
	cases := []struct {
		name  string
		value []byte
	}{
		{name: "not json", value: []byte("{")},
		{name: "no url", value: mustJSON(t, models.ArticleEvent{Article: models.NewsArticle{Title: "x"}})},
		{name: "empty article", value: mustJSON(t, models.ArticleEvent{Article: models.NewsArticle{URL: "https://example.com/e"}})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx := &stubIndexer{}
			seen := cache.NewMemory[struct{}](10, time.Hour)
			err := processMessage(context.Background(), logger.Discard(), idx, seen, testConfig(), kafka.Message{Value: tc.value})
			require.Error(t, err)
			require.Empty(t, idx.docs)
		})
	}
}

func TestProcessMessageIndexFailureIsRetryable(t *testing.T) {
	seen := cache.NewMemory[struct{}](10, time.Hour)
	idx := &stubIndexer{err: errors.New("es down")}
	msg := eventMessage(t, models.ArticleEvent{Article: models.NewsArticle{Title: "t", URL: "https://example.com/r"}})

	require.Error(t, processMessage(context.Background(), logger.Discard(), idx, seen, testConfig(), msg))
	require.False(t, seen.Has(processing.URLKey("https://example.com/r")))
}

func TestSendToDLQRetries(t *testing.T) {
	w := &flakyWriter{failures: 2}
	msg := kafka.Message{Value: []byte("payload"), Partition: 3, Offset: 42}

	ok := sendToDLQ(context.Background(), logger.Discard(), w, msg, errors.New("bad payload"), time.Millisecond)
	require.True(t, ok)
	require.Equal(t, 3, w.calls)
	require.Len(t, w.msgs, 1)

	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "3", headers["original_partition"])
	require.Equal(t, "42", headers["original_offset"])
	require.Equal(t, "bad payload", headers["error"])
}

func TestSendToDLQStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &flakyWriter{failures: 10}

	ok := sendToDLQ(ctx, logger.Discard(), w, kafka.Message{}, errors.New("x"), time.Hour)
	require.False(t, ok)
	require.Equal(t, 1, w.calls)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

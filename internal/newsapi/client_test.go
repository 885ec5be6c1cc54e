package newsapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/newsdesk/backend/internal/newsapi"
)

func TestTopHeadlinesSendsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[
			{"source":{"id":null,"name":"Reuters"},"title":"One","url":"https://example.com/1","publishedAt":"2024-01-02T15:04:05Z"},
			{"source":{"id":"bbc","name":"BBC"},"title":"Two","url":"https://example.com/2"}
		]}`))
	}))
	defer srv.Close()

	c := newsapi.New(srv.URL, "secret", time.Second)
	articles, err := c.TopHeadlines(context.Background(), newsapi.Query{Country: "us", Category: "technology", Q: "ai OR chips"})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	require.Equal(t, "Reuters", articles[0].Source.Name)
	require.Equal(t, "https://example.com/2", articles[1].URL)

	require.Contains(t, gotQuery, "q=ai+OR+chips")
	require.Contains(t, gotQuery, "country=us")
	require.Contains(t, gotQuery, "category=technology")
	require.Contains(t, gotQuery, "apiKey=secret")
}

func TestValuesOmitsEmptyParams(t *testing.T) {
	c := newsapi.New("", "k", 0)
	v := c.Values(newsapi.Query{Country: "gb"})
	require.Equal(t, "apiKey=k&country=gb", v.Encode())
}

func TestTopHeadlinesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`))
	}))
	defer srv.Close()

	c := newsapi.New(srv.URL, "bad", time.Second)
	_, err := c.TopHeadlines(context.Background(), newsapi.Query{Country: "us"})
	require.Error(t, err)

	var apiErr *newsapi.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "apiKeyInvalid", apiErr.Code)
}

func TestTopHeadlinesEmptyArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":0}`))
	}))
	defer srv.Close()

	articles, err := newsapi.New(srv.URL, "k", time.Second).TopHeadlines(context.Background(), newsapi.Query{})
	require.NoError(t, err)
	require.NotNil(t, articles)
	require.Empty(t, articles)
}

func TestParsePublishedAt(t *testing.T) {
	ts := newsapi.ParsePublishedAt("2024-02-03T04:05:06Z")
	require.True(t, ts.Equal(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)))

	legacy := newsapi.ParsePublishedAt("2024-02-03 04:05:06")
	require.Equal(t, 2024, legacy.Year())
	require.Equal(t, 4, legacy.Hour())

	require.True(t, newsapi.ParsePublishedAt("invalid").IsZero())
	require.True(t, newsapi.ParsePublishedAt("").IsZero())
}

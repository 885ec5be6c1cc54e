package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DeafMist/newsdesk/backend/internal/auth"
	"github.com/DeafMist/newsdesk/backend/internal/elasticsearch"
	"github.com/DeafMist/newsdesk/backend/internal/models"
	"github.com/DeafMist/newsdesk/backend/internal/news"
)

func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

func (s *server) handleFetchNews(w http.ResponseWriter, r *http.Request) {
	articles, err := s.news.FetchNews(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	// Accepts ?keywords=a&keywords=b as well as a single ?keywords=a.
	keywords := r.URL.Query()["keywords"]
	if keywords == nil {
		keywords = []string{}
	}
	articles, err := s.news.FetchNewsByKeywords(r.Context(), userID(r), keywords)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.news.GetPreferences(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type preferencesRequest struct {
	Preferences json.RawMessage `json:"preferences"`
}

func (s *server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !decodeBody(r, &req) {
		writeJSON(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	raw := bytes.TrimSpace(req.Preferences)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		writeJSON(w, http.StatusBadRequest, msgMissingParams)
		return
	}

	var patch models.PreferencesPatch
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, msgInvalidPreferences)
		return
	}

	prefs, err := s.news.UpdatePreferences(r.Context(), userID(r), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type articleRequest struct {
	NewsArticleID string `json:"newsArticleId"`
}

func (r articleRequest) valid() bool {
	return strings.TrimSpace(r.NewsArticleID) != ""
}

func (s *server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if !decodeBody(r, &req) || !req.valid() {
		writeJSON(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	rec, err := s.news.MarkArticleRead(r.Context(), userID(r), req.NewsArticleID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleMarkFavorite(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if !decodeBody(r, &req) || !req.valid() {
		writeJSON(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	rec, err := s.news.MarkArticleFavorite(r.Context(), userID(r), req.NewsArticleID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleListRead(w http.ResponseWriter, r *http.Request) {
	recs, err := s.news.ReadArticles(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *server) handleListFavorite(w http.ResponseWriter, r *http.Request) {
	recs, err := s.news.FavoriteArticles(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *server) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.ArchiveParams{
		Query:    strings.TrimSpace(q.Get("q")),
		Keywords: parseCSV(q.Get("keywords")),
		Source:   strings.TrimSpace(q.Get("source")),
		From:     clampInt(q.Get("from"), 0, 10_000),
		Size:     clampInt(q.Get("size"), s.pageSize, s.maxPage),
		Sort:     strings.TrimSpace(q.Get("sort")),
		Start:    parseTime(q.Get("start")),
		End:      parseTime(q.Get("end")),
	}

	result, err := s.news.SearchArchive(ctx, params)
	if errors.Is(err, news.ErrArchiveDisabled) {
		writeJSON(w, http.StatusServiceUnavailable, msgArchiveDisabled)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
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

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/newsdesk/backend/internal/accounts"
	"github.com/DeafMist/newsdesk/backend/internal/auth"
	"github.com/DeafMist/newsdesk/backend/internal/metrics"
	"github.com/DeafMist/newsdesk/backend/internal/news"
	"github.com/DeafMist/newsdesk/backend/internal/ratelimit"
)

const (
	msgMissingParams      = "Missing params"
	msgInvalidPreferences = "invalid_preferences"
	msgRateLimited        = "rate_limited"
	msgInternal           = "internal_error"
	msgArchiveDisabled    = "archive_disabled"
)

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

type server struct {
	log      *slog.Logger
	news     *news.Service
	accounts *accounts.Service
	tokens   auth.Verifier
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
	checks   []healthCheck
	pageSize int
	maxPage  int
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/news", func(r chi.Router) {
		r.Use(auth.Require(s.tokens))

		r.With(s.rateLimit).Get("/news", s.handleFetchNews)
		r.With(s.rateLimit).Get("/", s.handleFetchNews)
		r.With(s.rateLimit).Get("/search", s.handleSearch)
		r.Get("/preferences", s.handleGetPreferences)
		r.Post("/preferences", s.handleUpdatePreferences)
		r.Post("/read", s.handleMarkRead)
		r.Get("/read", s.handleListRead)
		r.Post("/favorite", s.handleMarkFavorite)
		r.Get("/favorite", s.handleListFavorite)
		r.Get("/archive", s.handleArchive)
	})

	r.Route("/user", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(s.tokens))
			r.Post("/", s.handleCurrentUser)
			r.Post("/changepassword", s.handleChangePassword)
		})
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, hc := range s.checks {
		if err := hc.check(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: hc.name + ": " + err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rateLimit guards the endpoints that spend news API quota.
func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserID(r.Context())
		if ok, retry := s.limiter.Allow(userID); !ok {
			secs := int(retry.Seconds())
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeJSON(w, http.StatusTooManyRequests, msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// fail maps domain errors to 400 with their code and everything else to 500.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if code, ok := news.Code(err); ok {
		writeJSON(w, http.StatusBadRequest, code)
		return
	}
	if code, ok := accounts.Code(err); ok {
		writeJSON(w, http.StatusBadRequest, code)
		return
	}
	s.log.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("err", err),
	)
	writeJSON(w, http.StatusInternalServerError, msgInternal)
}

func decodeBody(r *http.Request, dst any) bool {
	if r.Body == nil {
		return false
	}
	return json.NewDecoder(r.Body).Decode(dst) == nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

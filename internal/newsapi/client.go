// Package newsapi is a minimal client for the newsapi.org top-headlines endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint is the production top-headlines URL.
const DefaultEndpoint = "https://newsapi.org/v2/top-headlines"

// Client calls the news API with a fixed key.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Query holds the top-headlines parameters this service uses.
type Query struct {
	Country  string
	Category string
	// Q is a free text query; keywords are combined with OR upstream.
	Q string
}

// Source names the publisher of an article.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Article is one entry of the top-headlines response.
type Article struct {
	Source      Source `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// APIError is a non-ok reply from the news API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("news api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("news api: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// New builds a client. An empty endpoint selects DefaultEndpoint.
func New(endpoint, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Values encodes q with the api key. Empty parameters are omitted.
func (c *Client) Values(q Query) url.Values {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Country != "" {
		v.Set("country", q.Country)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	v.Set("apiKey", c.apiKey)
	return v
}

// TopHeadlines issues a single GET and returns the articles in API order.
func (c *Client) TopHeadlines(ctx context.Context, q Query) ([]Article, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = c.Values(q).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get top headlines: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Status   string    `json:"status"`
		Code     string    `json:"code"`
		Message  string    `json:"message"`
		Articles []Article `json:"articles"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || (payload.Status != "" && payload.Status != "ok") {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: payload.Code, Message: payload.Message}
	}

	if payload.Articles == nil {
		payload.Articles = []Article{}
	}
	return payload.Articles, nil
}

// ParsePublishedAt reads the publishedAt field, returning the zero time when absent or malformed.
func ParsePublishedAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts.UTC()
		}
	}

	return time.Time{}
}

package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/newsdesk/backend/internal/store"
)

// Client wraps go-elasticsearch with helpers tailored to this project.
type Client struct {
	es  *elasticsearch.Client
	log *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(addr string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health asks the cluster for its health to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// EnsureIndex creates index with mapping unless it already exists.
func (c *Client) EnsureIndex(ctx context.Context, index string, mapping map[string]any) error {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	payload, err := json.Marshal(map[string]any{"mappings": mapping})
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s failed: %s", index, strings.TrimSpace(string(body)))
	}

	c.log.Info("created index", slog.String("index", index))
	return nil
}

// createDoc writes doc under id only if no document with that id exists.
// An existing id yields store.ErrDuplicate.
func (c *Client) createDoc(ctx context.Context, index, id string, doc any, refresh string) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.CreateRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    refresh,
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("create doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return store.ErrDuplicate
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// indexDoc writes doc under id, replacing any previous version.
func (c *Client) indexDoc(ctx context.Context, index, id string, doc any, refresh string) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    refresh,
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// getDoc decodes the _source of index/id into dst. A missing document yields store.ErrNotFound.
func (c *Client) getDoc(ctx context.Context, index, id string, dst any) error {
	req := esapi.GetRequest{
		Index:      index,
		DocumentID: id,
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("get doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("get doc failed: %s", strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode get response: %w", err)
	}
	if !parsed.Found {
		return store.ErrNotFound
	}

	if err := json.Unmarshal(parsed.Source, dst); err != nil {
		return fmt.Errorf("decode source: %w", err)
	}
	return nil
}

// upsertDoc merges fields into index/id, creating the document when missing,
// and decodes the resulting _source into dst.
func (c *Client) upsertDoc(ctx context.Context, index, id string, fields map[string]any, dst any) error {
	payload, err := json.Marshal(map[string]any{
		"doc":           fields,
		"doc_as_upsert": true,
	})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:           index,
		DocumentID:      id,
		Body:            bytes.NewReader(payload),
		Refresh:         "wait_for",
		Source:          []string{"true"},
		RetryOnConflict: intPtr(3),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("update doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("update doc failed: %s", strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Get struct {
			Source json.RawMessage `json:"_source"`
		} `json:"get"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode update response: %w", err)
	}
	if len(parsed.Get.Source) == 0 {
		return errors.New("update response carried no source")
	}
	if err := json.Unmarshal(parsed.Get.Source, dst); err != nil {
		return fmt.Errorf("decode source: %w", err)
	}
	return nil
}

type searchHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
	Sort   []any           `json:"sort"`
}

// search runs body against index and returns the raw hits and the total count.
func (c *Client) search(ctx context.Context, index string, body map[string]any) ([]searchHit, int64, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, 0, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []searchHit `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	return parsed.Hits.Hits, parsed.Hits.Total.Value, nil
}

func intPtr(v int) *int { return &v }

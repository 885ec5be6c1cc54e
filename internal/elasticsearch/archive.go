package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DeafMist/newsdesk/backend/internal/models"
)

// Archive is the full-text index of cached articles, fed by the worker.
type Archive struct {
	c     *Client
	index string
}

// ArchiveParams narrow the archive search query.
type ArchiveParams struct {
	Query    string
	Keywords []string
	Source   string
	From     int
	Size     int
	Sort     string
	Start    *time.Time
	End      *time.Time
}

// ArchiveResult bundles hits and total count.
type ArchiveResult struct {
	Total int64                    `json:"total"`
	Items []models.ArchiveDocument `json:"items"`
}

// NewArchive binds an Archive to index.
func NewArchive(c *Client, index string) *Archive {
	return &Archive{c: c, index: index}
}

// Migrate creates the archive index.
func (a *Archive) Migrate(ctx context.Context) error {
	return a.c.EnsureIndex(ctx, a.index, map[string]any{
		"properties": map[string]any{
			"id":        keyword,
			"url":       keyword,
			"source":    keyword,
			"keywords":  keyword,
			"title":     map[string]any{"type": "text"},
			"text":      map[string]any{"type": "text"},
			"timestamp": map[string]any{"type": "date"},
		},
	})
}

// Index writes a document into the archive, replacing an earlier copy with the same id.
func (a *Archive) Index(ctx context.Context, doc models.ArchiveDocument) error {
	return a.c.indexDoc(ctx, a.index, doc.ID, doc, "false")
}

// Search executes a bool query with optional filters.
func (a *Archive) Search(ctx context.Context, params ArchiveParams) (*ArchiveResult, error) {
	hits, total, err := a.c.search(ctx, a.index, archiveQuery(params))
	if err != nil {
		return nil, err
	}

	items := make([]models.ArchiveDocument, 0, len(hits))
	for _, hit := range hits {
		var doc models.ArchiveDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode archive hit: %w", err)
		}
		items = append(items, doc)
	}

	return &ArchiveResult{Total: total, Items: items}, nil
}

func archiveQuery(params ArchiveParams) map[string]any {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 200 {
		params.Size = 200
	}
	if params.From < 0 {
		params.From = 0
	}

	must := make([]map[string]any, 0, 1)
	filters := make([]map[string]any, 0, 3)

	if params.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  params.Query,
				"fields": []string{"title^2", "text"},
			},
		})
	}

	if len(params.Keywords) > 0 {
		lowered := make([]string, 0, len(params.Keywords))
		for _, kw := range params.Keywords {
			lowered = append(lowered, strings.ToLower(kw))
		}
		filters = append(filters, map[string]any{
			"terms": map[string]any{"keywords": lowered},
		})
	}

	if params.Source != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"source": params.Source},
		})
	}

	if params.Start != nil || params.End != nil {
		rangeQuery := map[string]any{}
		if params.Start != nil {
			rangeQuery["gte"] = params.Start.UTC().Format(time.RFC3339)
		}
		if params.End != nil {
			rangeQuery["lte"] = params.End.UTC().Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"timestamp": rangeQuery},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(must) == 0 && len(filters) == 0 {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	field, order := "timestamp", "desc"
	if params.Sort != "" {
		parts := strings.Split(params.Sort, ":")
		if parts[0] != "" {
			field = parts[0]
		}
		if len(parts) > 1 && (parts[1] == "asc" || parts[1] == "desc") {
			order = parts[1]
		}
	}

	return map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query":            map[string]any{"bool": boolQuery},
		"sort": []map[string]any{
			{field: map[string]any{"order": order}},
		},
	}
}

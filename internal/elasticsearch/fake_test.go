package elasticsearch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeDoc struct {
	id     string
	source map[string]any
}

// fakeES serves the handful of document APIs the store uses, from memory.
type fakeES struct {
	mu      sync.Mutex
	indices map[string][]*fakeDoc
}

func newFakeES(t *testing.T) (*Client, *fakeES) {
	t.Helper()
	f := &fakeES{indices: map[string][]*fakeDoc{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, nil)
	require.NoError(t, err)
	return c, f
}

func (f *fakeES) find(index, id string) *fakeDoc {
	for _, d := range f.indices[index] {
		if d.id == id {
			return d
		}
	}
	return nil
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case len(parts) == 1 && parts[0] == "":
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	case len(parts) == 1 && r.Method == http.MethodHead:
		if _, ok := f.indices[parts[0]]; ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case len(parts) == 1 && r.Method == http.MethodPut:
		if _, ok := f.indices[parts[0]]; !ok {
			f.indices[parts[0]] = nil
		}
		writeFake(w, http.StatusOK, map[string]any{"acknowledged": true})
	case len(parts) == 2 && parts[1] == "_search":
		f.search(w, parts[0], body)
	case len(parts) == 3 && parts[1] == "_create":
		if f.find(parts[0], parts[2]) != nil {
			writeFake(w, http.StatusConflict, map[string]any{"error": map[string]any{"type": "version_conflict_engine_exception"}})
			return
		}
		f.indices[parts[0]] = append(f.indices[parts[0]], &fakeDoc{id: parts[2], source: body})
		writeFake(w, http.StatusCreated, map[string]any{"result": "created"})
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodGet:
		d := f.find(parts[0], parts[2])
		if d == nil {
			writeFake(w, http.StatusNotFound, map[string]any{"found": false})
			return
		}
		writeFake(w, http.StatusOK, map[string]any{"found": true, "_id": d.id, "_source": d.source})
	case len(parts) == 3 && parts[1] == "_doc":
		if d := f.find(parts[0], parts[2]); d != nil {
			d.source = body
		} else {
			f.indices[parts[0]] = append(f.indices[parts[0]], &fakeDoc{id: parts[2], source: body})
		}
		writeFake(w, http.StatusCreated, map[string]any{"result": "created"})
	case len(parts) == 3 && parts[1] == "_update":
		fields, _ := body["doc"].(map[string]any)
		d := f.find(parts[0], parts[2])
		if d == nil {
			d = &fakeDoc{id: parts[2], source: map[string]any{}}
			f.indices[parts[0]] = append(f.indices[parts[0]], d)
		}
		for k, v := range fields {
			d.source[k] = v
		}
		writeFake(w, http.StatusOK, map[string]any{"result": "updated", "get": map[string]any{"_source": d.source}})
	default:
		writeFake(w, http.StatusBadRequest, map[string]any{"error": "unsupported " + r.Method + " " + r.URL.Path})
	}
}

// search understands a single term query, or returns everything. Sort,
// search_after and size are honoured with values compared as strings.
func (f *fakeES) search(w http.ResponseWriter, index string, body map[string]any) {
	var field string
	var value any
	if q, ok := body["query"].(map[string]any); ok {
		if term, ok := q["term"].(map[string]any); ok {
			for k, v := range term {
				field, value = k, v
			}
		}
	}

	var sortFields []string
	if list, ok := body["sort"].([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				for k := range m {
					sortFields = append(sortFields, k)
				}
			}
		}
	}
	sortKey := func(d *fakeDoc) []string {
		key := make([]string, len(sortFields))
		for i, sf := range sortFields {
			key[i] = fmt.Sprint(d.source[sf])
		}
		return key
	}

	var matched []*fakeDoc
	for _, d := range f.indices[index] {
		if field != "" && d.source[field] != value {
			continue
		}
		matched = append(matched, d)
	}
	if len(sortFields) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return slices.Compare(sortKey(matched[i]), sortKey(matched[j])) < 0
		})
	}
	if after, ok := body["search_after"].([]any); ok {
		afterKey := make([]string, len(after))
		for i, v := range after {
			afterKey[i] = fmt.Sprint(v)
		}
		rest := matched[:0:0]
		for _, d := range matched {
			if slices.Compare(sortKey(d), afterKey) > 0 {
				rest = append(rest, d)
			}
		}
		matched = rest
	}
	total := len(matched)
	if size, ok := body["size"].(float64); ok && int(size) < len(matched) {
		matched = matched[:int(size)]
	}

	hits := []map[string]any{}
	for _, d := range matched {
		hit := map[string]any{"_id": d.id, "_source": d.source}
		if len(sortFields) > 0 {
			hit["sort"] = sortKey(d)
		}
		hits = append(hits, hit)
	}
	writeFake(w, http.StatusOK, map[string]any{
		"hits": map[string]any{
			"total": map[string]any{"value": total},
			"hits":  hits,
		},
	})
}

func writeFake(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

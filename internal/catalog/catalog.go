// Package catalog indexes tenant schema metadata in Elasticsearch so tenants
// can search their own schemas.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"schema-host/internal/common/logger"
	"schema-host/internal/generation"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrCatalogUnavailable = errors.New("ELASTICSEARCH_CONNECTION_FAILED")
	ErrSearchFailed       = errors.New("SEARCH_QUERY_FAILED")
)

// IndexMapping is used when the catalog index is created at startup.
const IndexMapping = `{
	"mappings": {
		"properties": {
			"tenant":      {"type": "keyword"},
			"filename":    {"type": "keyword"},
			"schema_id":   {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"title":       {"type": "text"},
			"description": {"type": "text"},
			"properties":  {"type": "text"},
			"required":    {"type": "keyword"},
			"size_bytes":  {"type": "long"},
			"updated_at":  {"type": "date"}
		}
	}
}`

// Entry is the indexed view of one stored schema.
type Entry struct {
	Tenant      string    `json:"tenant"`
	Filename    string    `json:"filename"`
	SchemaID    string    `json:"schema_id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Properties  []string  `json:"properties,omitempty"`
	Required    []string  `json:"required,omitempty"`
	SizeBytes   int       `json:"size_bytes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntryFor builds the catalog view of a parsed schema document.
func EntryFor(tenant string, doc *generation.SchemaDocument, size int, now time.Time) Entry {
	props := make([]string, 0, len(doc.Properties))
	for name := range doc.Properties {
		props = append(props, name)
	}
	sortStrings(props)
	return Entry{
		Tenant:      tenant,
		Filename:    doc.Filename,
		SchemaID:    doc.Key(),
		Title:       doc.Title,
		Description: doc.Description,
		Properties:  props,
		Required:    doc.Required,
		SizeBytes:   size,
		UpdatedAt:   now.UTC(),
	}
}

type Catalog struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Catalog {
	return &Catalog{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "catalog", "index": index}),
	}
}

func documentID(tenant, filename string) string {
	return tenant + ":" + filename
}

// Put indexes or replaces the entry.
func (c *Catalog) Put(ctx context.Context, e Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode catalog entry: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: documentID(e.Tenant, e.Filename),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: index %s: %s", ErrSearchFailed, e.Filename, res.Status())
	}
	return nil
}

// Delete removes one entry. A missing entry is not an error.
func (c *Catalog) Delete(ctx context.Context, tenant, filename string) error {
	req := esapi.DeleteRequest{
		Index:      c.index,
		DocumentID: documentID(tenant, filename),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete %s: %s", ErrSearchFailed, filename, res.Status())
	}
	return nil
}

// DeleteTenant removes every entry of tenant.
func (c *Catalog) DeleteTenant(ctx context.Context, tenant string) error {
	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"term": map[string]interface{}{"tenant": tenant}},
	})
	res, err := c.client.DeleteByQuery([]string{c.index}, bytes.NewReader(body),
		c.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete tenant %s: %s", ErrSearchFailed, tenant, res.Status())
	}
	return nil
}

// Hit is one search result.
type Hit struct {
	Entry
	Score float64 `json:"score"`
}

type SearchResult struct {
	Total int64 `json:"total"`
	Hits  []Hit `json:"hits"`
	Took  int64 `json:"took_ms"`
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64 `json:"_score"`
			Source Entry   `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a full-text query over tenant's entries only.
func (c *Catalog) Search(ctx context.Context, q Query) (*SearchResult, error) {
	q = q.normalized()
	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  strings.NewReader(string(body)),
		From:  &q.From,
		Size:  &q.Size,
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return &SearchResult{Hits: []Hit{}}, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchFailed, err)
	}

	out := &SearchResult{Total: sr.Hits.Total.Value, Took: sr.Took, Hits: make([]Hit, 0, len(sr.Hits.Hits))}
	for _, h := range sr.Hits.Hits {
		out.Hits = append(out.Hits, Hit{Entry: h.Source, Score: h.Score})
	}
	c.logger.Debug("catalog search", map[string]interface{}{"tenant": q.Tenant, "total": out.Total})
	return out, nil
}

package schemastore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"schema-host/internal/catalog"
	"schema-host/internal/common/logger"
	"schema-host/internal/generation"
)

// Indexer receives catalog entries for stored schemas.
type Indexer interface {
	Put(ctx context.Context, e catalog.Entry) error
	Delete(ctx context.Context, tenant, filename string) error
}

// Publisher stores uploaded schema documents and keeps the catalog in step.
// Catalog failures are logged and never fail an upload.
type Publisher struct {
	store   *Store
	index   Indexer
	logger  logger.Logger
	nowFunc func() time.Time
}

// PublishResult lists stored filenames and the labels of entries that failed.
type PublishResult struct {
	Uploaded []string
	Failed   []string
}

// NewPublisher accepts a nil index when search is disabled.
func NewPublisher(store *Store, index Indexer, log logger.Logger) *Publisher {
	return &Publisher{
		store:   store,
		index:   index,
		logger:  log.WithFields(map[string]interface{}{"component": "schema-publisher"}),
		nowFunc: time.Now,
	}
}

// PublishSchemas stores each raw JSON document. A failed entry is reported as
// "<label>_<i>" with " (invalid JSON)" appended when it did not parse.
func (p *Publisher) PublishSchemas(ctx context.Context, tenant string, raws []string, label string) PublishResult {
	res := PublishResult{Uploaded: []string{}}

	for i, raw := range raws {
		var data interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			p.logger.Warn("schema is not valid JSON", map[string]interface{}{
				"tenant": tenant, "index": i, "error": err.Error(),
			})
			res.Failed = append(res.Failed, fmt.Sprintf("%s_%d (invalid JSON)", label, i))
			continue
		}

		obj, _ := data.(map[string]interface{})
		filename := FilenameFor(obj, i)

		body, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			res.Failed = append(res.Failed, fmt.Sprintf("%s_%d", label, i))
			continue
		}
		if err := p.store.Put(ctx, tenant, filename, body); err != nil {
			p.logger.Error("schema upload failed", map[string]interface{}{
				"tenant": tenant, "filename": filename, "error": err.Error(),
			})
			res.Failed = append(res.Failed, fmt.Sprintf("%s_%d", label, i))
			continue
		}

		res.Uploaded = append(res.Uploaded, filename)
		if obj != nil {
			p.indexDocument(ctx, tenant, filename, body)
		}
	}
	return res
}

func (p *Publisher) indexDocument(ctx context.Context, tenant, filename string, body []byte) {
	if p.index == nil {
		return
	}
	doc, err := generation.ParseDocument(filename, body)
	if err != nil {
		return
	}
	if err := p.index.Put(ctx, catalog.EntryFor(tenant, doc, len(body), p.nowFunc())); err != nil {
		p.logger.Warn("catalog index failed", map[string]interface{}{
			"tenant": tenant, "filename": filename, "error": err.Error(),
		})
	}
}

// PublishProperties writes tenant.properties. An empty map writes nothing.
func (p *Publisher) PublishProperties(ctx context.Context, tenant string, props map[string]interface{}) error {
	if len(props) == 0 {
		return nil
	}
	return p.store.Put(ctx, tenant, TenantPropertiesFile, PropertiesFile(props))
}

// PublishEndpoints writes endpoints.properties. An empty list writes nothing.
func (p *Publisher) PublishEndpoints(ctx context.Context, tenant string, endpoints []string) (bool, error) {
	if len(endpoints) == 0 {
		return false, nil
	}
	if err := p.store.Put(ctx, tenant, EndpointsPropertiesFile, EndpointsFile(endpoints)); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes one stored file and its catalog entry.
func (p *Publisher) Remove(ctx context.Context, tenant, filename string) error {
	if err := p.store.Delete(ctx, tenant, filename); err != nil {
		return err
	}
	if p.index != nil {
		if err := p.index.Delete(ctx, tenant, filename); err != nil {
			p.logger.Warn("catalog delete failed", map[string]interface{}{
				"tenant": tenant, "filename": filename, "error": err.Error(),
			})
		}
	}
	return nil
}

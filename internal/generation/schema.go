// Package generation synthesizes JSON objects that satisfy one of a tenant's
// JSON Schema documents, repairing the object with validator feedback over a
// bounded number of attempts.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"schema-host/internal/common/logger"
)

const schemaSuffix = ".json"

// side files stored next to schemas that are never schema documents
var sideFiles = map[string]bool{
	"tenant.properties":    true,
	"endpoints.properties": true,
}

// NormalizeID trims surrounding whitespace, lowercases and appends ".json"
// when absent. The same rule applies when a document is stored and when it is
// looked up.
func NormalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return ""
	}
	if !strings.HasSuffix(id, schemaSuffix) {
		id += schemaSuffix
	}
	return id
}

// SchemaDocument is one parsed schema. It is never mutated after loading.
type SchemaDocument struct {
	ID          string
	Filename    string
	Title       string
	Description string
	Body        map[string]interface{}
	Required    []string
	Properties  map[string]interface{}
}

// Key is the normalized identifier the document is stored under.
func (d *SchemaDocument) Key() string {
	return NormalizeID(d.ID)
}

// ParseDocument decodes raw schema bytes. The declared $id wins over the
// storage filename.
func ParseDocument(filename string, raw []byte) (*SchemaDocument, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchemaDocument, filename, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s: not a JSON object", ErrInvalidSchemaDocument, filename)
	}

	doc := &SchemaDocument{
		ID:       filename,
		Filename: filename,
		Body:     body,
	}
	if id, ok := body["$id"].(string); ok && strings.TrimSpace(id) != "" {
		doc.ID = id
	}
	doc.Title, _ = body["title"].(string)
	doc.Description, _ = body["description"].(string)
	if props, ok := body["properties"].(map[string]interface{}); ok {
		doc.Properties = props
	}
	if req, ok := body["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				doc.Required = append(doc.Required, s)
			}
		}
	}
	return doc, nil
}

// SchemaSet is a single tenant's schemas for the duration of one request,
// indexed by normalized identifier and by normalized storage filename.
type SchemaSet struct {
	tenant     string
	byID       map[string]*SchemaDocument
	byFilename map[string]*SchemaDocument
	order      []*SchemaDocument
}

// NewSchemaSet indexes docs. The first document to claim an identifier keeps
// it. Returns ErrEmptySchemaSet when docs is empty.
func NewSchemaSet(tenant string, docs []*SchemaDocument) (*SchemaSet, error) {
	set := &SchemaSet{
		tenant:     tenant,
		byID:       make(map[string]*SchemaDocument, len(docs)),
		byFilename: make(map[string]*SchemaDocument, len(docs)),
	}
	for _, doc := range docs {
		key := doc.Key()
		if key == "" {
			continue
		}
		if _, dup := set.byID[key]; dup {
			continue
		}
		set.byID[key] = doc
		if fn := NormalizeID(doc.Filename); fn != "" {
			if _, taken := set.byFilename[fn]; !taken {
				set.byFilename[fn] = doc
			}
		}
		set.order = append(set.order, doc)
	}
	if len(set.order) == 0 {
		return nil, fmt.Errorf("%w: tenant %q", ErrEmptySchemaSet, tenant)
	}
	sort.SliceStable(set.order, func(i, j int) bool {
		return set.order[i].Key() < set.order[j].Key()
	})
	return set, nil
}

// Tenant returns the owning tenant.
func (s *SchemaSet) Tenant() string { return s.tenant }

// Len returns the number of documents.
func (s *SchemaSet) Len() int { return len(s.order) }

// Documents returns the documents ordered by normalized identifier.
func (s *SchemaSet) Documents() []*SchemaDocument {
	out := make([]*SchemaDocument, len(s.order))
	copy(out, s.order)
	return out
}

// Resolve finds a document by identifier, falling back to storage filename.
func (s *SchemaSet) Resolve(identifier string) (*SchemaDocument, error) {
	key := NormalizeID(identifier)
	if doc, ok := s.byID[key]; ok {
		return doc, nil
	}
	if doc, ok := s.byFilename[key]; ok {
		return doc, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSchemaNotFound, identifier)
}

// Available describes every document for "not found" messages.
func (s *SchemaSet) Available() []string {
	out := make([]string, 0, len(s.order))
	for _, doc := range s.order {
		out = append(out, fmt.Sprintf("ID: '%s', Filename: '%s'", doc.Key(), doc.Filename))
	}
	return out
}

// Store is the read side of tenant schema storage.
type Store interface {
	List(ctx context.Context, tenant string) ([]string, error)
	Fetch(ctx context.Context, tenant, filename string) ([]byte, error)
}

// Resolver loads a tenant's full SchemaSet from a Store.
type Resolver struct {
	store  Store
	logger logger.Logger
}

func NewResolver(store Store, log logger.Logger) *Resolver {
	return &Resolver{store: store, logger: log}
}

// Load fetches every schema document for tenant. Documents that fail to
// fetch or parse are logged and skipped. A tenant with no usable documents
// yields ErrEmptySchemaSet.
func (r *Resolver) Load(ctx context.Context, tenant string) (*SchemaSet, error) {
	names, err := r.store.List(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list schemas for %s: %w", tenant, err)
	}

	log := r.logger.WithFields(map[string]interface{}{"tenant": tenant})
	docs := make([]*SchemaDocument, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		if sideFiles[base] || !strings.HasSuffix(base, schemaSuffix) {
			continue
		}

		raw, err := r.store.Fetch(ctx, tenant, base)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("Skipping schema that could not be fetched", map[string]interface{}{
				"filename": base,
				"error":    err.Error(),
			})
			continue
		}

		doc, err := ParseDocument(base, raw)
		if err != nil {
			log.Warn("Skipping unparseable schema", map[string]interface{}{
				"filename": base,
				"error":    err.Error(),
			})
			continue
		}
		docs = append(docs, doc)
	}

	set, err := NewSchemaSet(tenant, docs)
	if err != nil {
		return nil, err
	}
	log.Debug("Schema set loaded", map[string]interface{}{"count": set.Len()})
	return set, nil
}

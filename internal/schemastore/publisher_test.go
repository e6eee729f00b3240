package schemastore

import (
	"context"
	"errors"
	"testing"

	"schema-host/internal/catalog"
	"schema-host/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIndexer struct {
	entries []catalog.Entry
	deleted []string
	err     error
}

func (r *recordingIndexer) Put(_ context.Context, e catalog.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingIndexer) Delete(_ context.Context, tenant, filename string) error {
	r.deleted = append(r.deleted, tenant+"/"+filename)
	return r.err
}

func TestPublisher_PublishSchemas(t *testing.T) {
	objects := newMemoryObjects()
	index := &recordingIndexer{}
	p := NewPublisher(New(objects, "bucket", "schemas"), index, logger.NewTestLogger(t))

	res := p.PublishSchemas(context.Background(), "acme", []string{
		`{"$id":"Hub","title":"Hub","properties":{"name":{"type":"string"}}}`,
		`{not json`,
		`{"type":"object"}`,
		`["array", "schema"]`,
	}, "schema")

	assert.Equal(t, []string{"hub.json", "schema_2.json", "schema_3.json"}, res.Uploaded)
	assert.Equal(t, []string{"schema_1 (invalid JSON)"}, res.Failed)

	stored := string(objects.objects["schemas/acme/hub.json"])
	assert.Contains(t, stored, "\n  \"$id\": \"Hub\"")

	require.Len(t, index.entries, 2, "only object documents are indexed")
	assert.Equal(t, "hub.json", index.entries[0].SchemaID)
	assert.Equal(t, []string{"name"}, index.entries[0].Properties)
}

func TestPublisher_IndexFailureDoesNotFailUpload(t *testing.T) {
	p := NewPublisher(New(newMemoryObjects(), "bucket", "schemas"), &recordingIndexer{err: errors.New("es down")}, logger.NewTestLogger(t))

	res := p.PublishSchemas(context.Background(), "acme", []string{`{"$id":"gate"}`}, "generated_schema")
	assert.Equal(t, []string{"gate.json"}, res.Uploaded)
	assert.Empty(t, res.Failed)
}

func TestPublisher_SideFilesAndRemove(t *testing.T) {
	objects := newMemoryObjects()
	index := &recordingIndexer{}
	p := NewPublisher(New(objects, "bucket", "schemas"), index, logger.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, p.PublishProperties(ctx, "acme", nil))
	require.NoError(t, p.PublishProperties(ctx, "acme", map[string]interface{}{"theme": "dark"}))
	assert.Equal(t, "theme=dark\n", string(objects.objects["schemas/acme/tenant.properties"]))

	wrote, err := p.PublishEndpoints(ctx, "acme", nil)
	require.NoError(t, err)
	assert.False(t, wrote)
	wrote, err = p.PublishEndpoints(ctx, "acme", []string{"/flights"})
	require.NoError(t, err)
	assert.True(t, wrote)

	require.NoError(t, p.Remove(ctx, "acme", "tenant.properties"))
	assert.NotContains(t, objects.objects, "schemas/acme/tenant.properties")
	assert.Equal(t, []string{"acme/tenant.properties"}, index.deleted)

	assert.ErrorIs(t, p.Remove(ctx, "acme", "../x.json"), ErrInvalidFilename)
}

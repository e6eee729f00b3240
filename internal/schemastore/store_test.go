package schemastore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"schema-host/internal/common/aws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	objects     map[string][]byte
	contentType map[string]string
	failDelete  string
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, contentType: map[string]string{}}
}

func (m *memoryObjects) ListObjects(_ context.Context, _ string, prefix string) ([]aws.ObjectInfo, error) {
	var out []aws.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, aws.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryObjects) GetObject(_ context.Context, _ string, key string) ([]byte, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return body, nil
}

func (m *memoryObjects) PutObject(_ context.Context, _ string, key string, body []byte, contentType string) error {
	m.objects[key] = body
	m.contentType[key] = contentType
	return nil
}

func (m *memoryObjects) DeleteObject(_ context.Context, _ string, key string) error {
	if key == m.failDelete {
		return errors.New("AccessDenied")
	}
	delete(m.objects, key)
	return nil
}

func TestStore_PutFetchList(t *testing.T) {
	objects := newMemoryObjects()
	store := New(objects, "bucket", "/schemas/")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "acme", "hub.json", []byte(`{"$id":"hub"}`)))
	require.NoError(t, store.Put(ctx, "acme", TenantPropertiesFile, []byte("color=blue\n")))
	require.NoError(t, store.Put(ctx, "other", "gate.json", []byte(`{}`)))

	assert.Equal(t, "application/json", objects.contentType["schemas/acme/hub.json"])
	assert.Equal(t, "text/plain", objects.contentType["schemas/acme/tenant.properties"])

	names, err := store.List(ctx, "acme")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hub.json", "tenant.properties"}, names)

	body, err := store.Fetch(ctx, "acme", "hub.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"$id":"hub"}`, string(body))
}

func TestStore_ListSkipsNestedKeys(t *testing.T) {
	objects := newMemoryObjects()
	store := New(objects, "bucket", "schemas")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "acme", "x.json", []byte(`{"$id":"top"}`)))
	objects.objects["schemas/acme/sub/x.json"] = []byte(`{"$id":"nested"}`)
	objects.objects["schemas/acme/sub/"] = nil

	names, err := store.List(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.json"}, names)

	body, err := store.Fetch(ctx, "acme", names[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"$id":"top"}`, string(body))
}

func TestStore_RejectsPathLikeFilenames(t *testing.T) {
	store := New(newMemoryObjects(), "bucket", "schemas")
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "../root/hub.json", `a\b.json`} {
		err := store.Put(ctx, "acme", name, []byte(`{}`))
		assert.ErrorIs(t, err, ErrInvalidFilename, name)
	}
}

func TestStore_DeleteAllAndUsage(t *testing.T) {
	objects := newMemoryObjects()
	store := New(objects, "bucket", "schemas")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "acme", "hub.json", make([]byte, 100)))
	require.NoError(t, store.Put(ctx, "acme", "airport.json", make([]byte, 50)))
	require.NoError(t, store.Put(ctx, "acme-two", "hub.json", make([]byte, 7)))

	usage, err := store.Usage(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(150), usage)

	deleted, err := store.DeleteAll(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	names, err := store.List(ctx, "acme-two")
	require.NoError(t, err)
	assert.Equal(t, []string{"hub.json"}, names)
}

func TestStore_DeleteAllStopsOnError(t *testing.T) {
	objects := newMemoryObjects()
	objects.failDelete = "schemas/acme/b.json"
	store := New(objects, "bucket", "schemas")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "acme", "a.json", []byte(`{}`)))
	require.NoError(t, store.Put(ctx, "acme", "b.json", []byte(`{}`)))

	deleted, err := store.DeleteAll(ctx, "acme")
	assert.ErrorContains(t, err, "AccessDenied")
	assert.Equal(t, 1, deleted)
}

func TestFilenameFor(t *testing.T) {
	tests := []struct {
		name   string
		schema map[string]interface{}
		index  int
		want   string
	}{
		{"declared id", map[string]interface{}{"$id": "Airport"}, 0, "airport.json"},
		{"id with suffix", map[string]interface{}{"$id": "hub.json"}, 1, "hub.json"},
		{"path characters", map[string]interface{}{"$id": "flight routes/v2"}, 2, "flight_routes_v2.json"},
		{"no id", map[string]interface{}{"title": "Gate"}, 3, "schema_3.json"},
		{"non-string id", map[string]interface{}{"$id": 42}, 4, "schema_4.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilenameFor(tt.schema, tt.index))
		})
	}
}

func TestPropertiesAndEndpointsFiles(t *testing.T) {
	props := PropertiesFile(map[string]interface{}{"theme": "dark", "color": 120})
	assert.Equal(t, "color=120\ntheme=dark\n", string(props))

	assert.Equal(t, "/a\n/b", string(EndpointsFile([]string{"/a", "/b"})))
}

package database

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"schema-host/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	name string
	err  error
}

func (s stubPinger) Name() string                 { return s.name }
func (s stubPinger) Ping(_ context.Context) error { return s.err }

func TestCheckAll(t *testing.T) {
	failures := CheckAll(context.Background(), time.Second,
		stubPinger{name: "postgres"},
		stubPinger{name: "redis", err: errors.New("connection refused")},
	)
	assert.Equal(t, map[string]string{"redis": "connection refused"}, failures)
}

func TestPostgresClient_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	client := &PostgresClient{DB: db}
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "postgres", client.Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))

	_, err = NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func newElasticServer(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearchClient_EnsureIndex(t *testing.T) {
	var created atomic.Int32
	client := newElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created.Add(1)
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})

	require.NoError(t, client.EnsureIndex(context.Background(), "schema-catalog", `{"mappings":{}}`))
	assert.Equal(t, int32(1), created.Load())
}

func TestElasticsearchClient_EnsureIndexExisting(t *testing.T) {
	client := newElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.EnsureIndex(context.Background(), "schema-catalog", `{}`))
}

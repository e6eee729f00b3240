package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"schema-host/internal/common/database"
	"schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/dispatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetInput struct {
	Extension string `json:"extension"`
	Name      string `json:"name"`
}

type greetOutput struct {
	Message string `json:"message"`
}

type authorizeInput struct {
	Token string `json:"authorizationToken"`
}

func createTestServer(t *testing.T) *httptest.Server {
	d := dispatch.New(logger.NewTestLogger(t))
	d.Register(dispatch.KindUploadSchemas, dispatch.Typed[greetInput, greetOutput](nil,
		func(_ context.Context, in *greetInput) (*greetOutput, error) {
			return &greetOutput{Message: "hello " + in.Name + " from " + in.Extension}, nil
		}))
	d.Register(dispatch.KindPreloadObject, func(context.Context, *dispatch.Request) (interface{}, error) {
		return nil, errors.NewGenerationFailedError([]string{"(root): name is required"}, 3)
	})
	d.Register(dispatch.KindAuthorize, dispatch.Typed[authorizeInput, greetOutput](nil,
		func(_ context.Context, in *authorizeInput) (*greetOutput, error) {
			return &greetOutput{Message: "token " + in.Token}, nil
		}))

	srv := httptest.NewServer(NewServer(Config{}, d, logger.NewTestLogger(t)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res, out
}

func TestGateway_ObjectAndStringBodies(t *testing.T) {
	srv := createTestServer(t)

	for _, body := range []string{
		`{"type":"json","body":{"extension":"acme","name":"hub"}}`,
		`{"type":"json","body":"{\"extension\":\"acme\",\"name\":\"hub\"}"}`,
	} {
		res, out := post(t, srv.URL+"/v1/requests", body)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "hello hub from acme", out["message"])
		assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
	}
}

func TestGateway_ErrorBodies(t *testing.T) {
	srv := createTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown type", `{"type":"stripe_webhook","body":{}}`, http.StatusBadRequest, "UNRECOGNIZED_REQUEST_KIND"},
		{"missing extension", `{"type":"json","body":{"name":"hub"}}`, http.StatusBadRequest, "MISSING_TENANT"},
		{"not an envelope", `[]`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"body is a number", `{"type":"json","body":5}`, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, out := post(t, srv.URL+"/v1/requests", tt.body)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.code, out["code"])
			assert.Equal(t, float64(tt.status), out["statusCode"])
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestGateway_GenerationFailureCarriesAttempts(t *testing.T) {
	srv := createTestServer(t)

	res, out := post(t, srv.URL+"/v1/requests", `{"type":"llm-preload","body":{"extension":"acme","prompt":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, float64(3), out["attempts"])
	assert.Equal(t, []interface{}{"(root): name is required"}, out["errors"])
}

func TestGateway_Authorize(t *testing.T) {
	srv := createTestServer(t)

	res, out := post(t, srv.URL+"/v1/authorize", `{"type":"TOKEN","authorizationToken":"Basic abc","methodArn":"arn:x"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "token Basic abc", out["message"])
}

func TestGateway_PreflightAndMethods(t *testing.T) {
	srv := createTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/requests", nil)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, allowMethods, res.Header.Get("Access-Control-Allow-Methods"))
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Headers"), "Authorization")

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/requests", nil)
	req.Header.Set("X-Request-ID", "req-42")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Equal(t, "req-42", res.Header.Get("X-Request-ID"))
}

func TestServer_AllowedOrigin(t *testing.T) {
	s := &Server{cfg: Config{AllowOrigins: []string{"https://app.example.com", "https://admin.example.com"}}}
	assert.Equal(t, "https://admin.example.com", s.allowedOrigin("https://admin.example.com"))
	assert.Equal(t, "https://app.example.com", s.allowedOrigin("https://evil.example.com"))
}

type stubPinger struct {
	name string
	err  error
}

func (p stubPinger) Name() string               { return p.name }
func (p stubPinger) Ping(context.Context) error { return p.err }

func TestOpsHandler(t *testing.T) {
	ok := httptest.NewServer(OpsHandler("1.0.0", stubPinger{name: "postgres"}))
	defer ok.Close()

	res, err := http.Get(ok.URL + "/ready")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(ok.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var deps []database.Pinger
	deps = append(deps, stubPinger{name: "redis", err: assert.AnError})
	bad := httptest.NewServer(OpsHandler("1.0.0", deps...))
	defer bad.Close()

	res, err = http.Get(bad.URL + "/ready")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Contains(t, body["failures"], "redis")
}

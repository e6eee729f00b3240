package preloadobject

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"schema-host/internal/billing"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/generation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockLoader struct{ mock.Mock }

func (m *MockLoader) Load(ctx context.Context, tenant string) (*generation.SchemaSet, error) {
	args := m.Called(ctx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.SchemaSet), args.Error(1)
}

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, set *generation.SchemaSet, prompt string) (*generation.Result, error) {
	args := m.Called(ctx, set, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.Result), args.Error(1)
}

type MockLedger struct{ mock.Mock }

func (m *MockLedger) Debit(ctx context.Context, tenant string, tokens int64, operation string) (*billing.DebitResult, error) {
	args := m.Called(ctx, tenant, tokens, operation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.DebitResult), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func createTestSet(t *testing.T) *generation.SchemaSet {
	doc, err := generation.ParseDocument("hub.json", []byte(`{"$id":"hub","type":"object"}`))
	require.NoError(t, err)
	set, err := generation.NewSchemaSet("acme", []*generation.SchemaDocument{doc})
	require.NoError(t, err)
	return set
}

func createTestHandler(t *testing.T) (*Handler, *MockLoader, *MockGenerator, *MockLedger) {
	loader, gen, ledger := &MockLoader{}, &MockGenerator{}, &MockLedger{}
	ledger.On("Debit", mock.Anything, "acme", int64(10), "llm-preload").Return(&billing.DebitResult{}, nil)
	h := NewHandler(&Config{OperationCost: 10}, loader, gen, ledger, logger.NewTestLogger(t))
	return h, loader, gen, ledger
}

func errCode(t *testing.T, err error) stderrors.ErrorCode {
	t.Helper()
	stdErr, ok := stderrors.As(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	return stdErr.Code
}

// ==========================
// Tests
// ==========================

func TestExecute_Success(t *testing.T) {
	h, loader, gen, ledger := createTestHandler(t)
	set := createTestSet(t)
	loader.On("Load", mock.Anything, "acme").Return(set, nil)
	gen.On("Generate", mock.Anything, set, "a hub called Heathrow").Return(&generation.Result{
		Success:    true,
		JSONObject: map[string]interface{}{"name": "Heathrow"},
		RootSchema: "hub.json",
		Attempts:   2,
	}, nil)

	out, err := h.Execute(context.Background(), &Input{Extension: "acme", Prompt: "a hub called Heathrow"})
	require.NoError(t, err)

	assert.Equal(t, "Successfully generated compliant JSON object", out.Message)
	assert.Equal(t, "hub.json", out.RootSchema)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, map[string]interface{}{"name": "Heathrow"}, out.JSONObject)
	ledger.AssertExpectations(t)
}

func TestExecute_FailureCarriesErrorsAndAttempts(t *testing.T) {
	h, loader, gen, _ := createTestHandler(t)
	set := createTestSet(t)
	loader.On("Load", mock.Anything, "acme").Return(set, nil)
	gen.On("Generate", mock.Anything, set, "x").Return(&generation.Result{
		Errors:   []string{"(root): name is required"},
		Attempts: 3,
	}, nil)

	_, err := h.Execute(context.Background(), &Input{Extension: "acme", Prompt: "x"})
	stdErr, ok := stderrors.As(err)
	require.True(t, ok)
	assert.Equal(t, stderrors.ErrCodeGenerationFailed, stdErr.Code)
	assert.Equal(t, 3, stdErr.Metadata["attempts"])
	assert.Equal(t, []string{"(root): name is required"}, stdErr.Metadata["errors"])
}

func TestExecute_EmptySchemaSetIsBilledThenNotFound(t *testing.T) {
	h, loader, _, ledger := createTestHandler(t)
	loader.On("Load", mock.Anything, "acme").Return(nil, fmt.Errorf("load: %w", generation.ErrEmptySchemaSet))

	_, err := h.Execute(context.Background(), &Input{Extension: "acme", Prompt: "x"})
	assert.Equal(t, stderrors.ErrCodeEmptySchemaSet, errCode(t, err))
	ledger.AssertCalled(t, "Debit", mock.Anything, "acme", int64(10), "llm-preload")
}

func TestExecute_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want stderrors.ErrorCode
	}{
		{"upstream", &generation.UpstreamError{Attempt: 1, Err: errors.New("502 bad gateway")}, stderrors.ErrCodeLLMUpstreamFailed},
		{"timeout", &generation.UpstreamError{Attempt: 2, Err: context.DeadlineExceeded}, stderrors.ErrCodeLLMTimeout},
		{"cancelled loop", fmt.Errorf("generation aborted: %w", context.DeadlineExceeded), stderrors.ErrCodeLLMTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, loader, gen, _ := createTestHandler(t)
			set := createTestSet(t)
			loader.On("Load", mock.Anything, "acme").Return(set, nil)
			gen.On("Generate", mock.Anything, set, "x").Return(nil, tt.err)

			_, err := h.Execute(context.Background(), &Input{Extension: "acme", Prompt: "x"})
			assert.Equal(t, tt.want, errCode(t, err))
		})
	}
}

func TestExecute_PromptRequired(t *testing.T) {
	h, _, _, ledger := createTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{Extension: "acme", Prompt: "   "})
	assert.Equal(t, stderrors.ErrCodeInvalidRequest, errCode(t, err))
	ledger.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_StorageFailure(t *testing.T) {
	h, loader, _, _ := createTestHandler(t)
	loader.On("Load", mock.Anything, "acme").Return(nil, errors.New("list schemas for acme: AccessDenied"))

	_, err := h.Execute(context.Background(), &Input{Extension: "acme", Prompt: "x"})
	assert.Equal(t, stderrors.ErrCodeStorageFailed, errCode(t, err))
}

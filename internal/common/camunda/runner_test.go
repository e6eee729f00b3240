package camunda

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/dispatch"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, jobType string, variables map[string]interface{}, headers string) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               jobType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "schema-host",
		ElementId:          "Activity_" + jobType,
		CustomHeaders:      headers,
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestRunner(t *testing.T, d *dispatch.Dispatcher) *Runner {
	return NewRunner(d, time.Second, logger.NewTestLogger(t))
}

// ==========================
// Tests
// ==========================

func TestRunner_ProcessDispatchesJob(t *testing.T) {
	d := dispatch.New(logger.NewTestLogger(t))
	var got *dispatch.Request
	d.Register(dispatch.KindDebitTokens, func(_ context.Context, req *dispatch.Request) (interface{}, error) {
		got = req
		return map[string]interface{}{"tokens_debited": 2}, nil
	})

	job := createMockJob(42, "debit_tokens",
		map[string]interface{}{"extension": "acme", "tokens": 2},
		`{"x-billing-user":"owner@acme.io"}`)

	vars, err := createTestRunner(t, d).process(context.Background(), job)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tokens_debited":2}`, vars)

	require.NotNil(t, got)
	assert.Equal(t, dispatch.TransportZeebe, got.Transport)
	assert.Equal(t, "42", got.RequestID)
	assert.Equal(t, "owner@acme.io", got.Headers.Get("X-Billing-User"))
	assert.JSONEq(t, `{"extension":"acme","tokens":2}`, string(got.Body))
}

func TestRunner_ProcessWrapsNonObjectOutput(t *testing.T) {
	d := dispatch.New(logger.NewTestLogger(t))
	d.Register(dispatch.KindBillStorage, func(context.Context, *dispatch.Request) (interface{}, error) {
		return []string{"acme"}, nil
	})

	vars, err := createTestRunner(t, d).process(context.Background(), createMockJob(1, "bill", nil, "{}"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":["acme"]}`, vars)
}

func TestRunner_ProcessErrors(t *testing.T) {
	d := dispatch.New(logger.NewTestLogger(t))
	d.Register(dispatch.KindSearchSchemas, func(context.Context, *dispatch.Request) (interface{}, error) {
		return nil, stderrors.NewSearchQueryFailedError("catalog_search", assert.AnError)
	})
	runner := createTestRunner(t, d)

	tests := []struct {
		name string
		job  entities.Job
		want stderrors.ErrorCode
	}{
		{"unknown job type", createMockJob(1, "franchise-search", nil, "{}"), stderrors.ErrCodeUnrecognizedRequestKind},
		{"bad headers", createMockJob(2, "search", map[string]interface{}{"extension": "acme"}, "not-json"), stderrors.ErrCodeInvalidRequest},
		{"missing extension", createMockJob(3, "search", map[string]interface{}{}, "{}"), stderrors.ErrCodeMissingTenant},
		{"handler failure", createMockJob(4, "search", map[string]interface{}{"extension": "acme"}, "{}"), stderrors.ErrCodeSearchQueryFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runner.process(context.Background(), tt.job)
			stdErr, ok := stderrors.As(err)
			require.True(t, ok, "expected StandardError, got %v", err)
			assert.Equal(t, tt.want, stdErr.Code)
		})
	}
}

func TestRunner_CloseWithoutWorkers(t *testing.T) {
	runner := createTestRunner(t, dispatch.New(logger.NewTestLogger(t)))
	assert.NotPanics(t, runner.Close)
}

package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeEmptySchemaSet, http.StatusNotFound},
		{ErrCodeGenerationFailed, http.StatusBadRequest},
		{ErrCodeUnrecognizedRequestKind, http.StatusBadRequest},
		{ErrCodeAuthenticationFailed, http.StatusUnauthorized},
		{ErrCodePaymentRequired, http.StatusPaymentRequired},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeLLMUpstreamFailed, http.StatusBadGateway},
		{ErrCodeLLMTimeout, http.StatusGatewayTimeout},
		{ErrCodeStorageFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable keeps retry budget", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewStorageFailedError("put", fmt.Errorf("timeout")))
		assert.Equal(t, "STORAGE_FAILED", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.Equal(t, http.StatusInternalServerError, bpmn.ErrorVariables["statusCode"])
	})

	t.Run("business error never retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewGenerationFailedError([]string{"missing name"}, 3))
		assert.Equal(t, 0, bpmn.Retries)
		assert.Equal(t, 3, bpmn.ErrorVariables["attempts"])
		assert.Equal(t, []string{"missing name"}, bpmn.ErrorVariables["errors"])
	})
}

func TestAsAndNormalize(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NewEmptySchemaSetError("acme"))

	stdErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeEmptySchemaSet, stdErr.Code)

	plain := Normalize(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "GENERATION", GetErrorCategory(ErrCodeSchemaValidationFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeLLMTimeout))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeAuthenticationFailed))
	assert.Equal(t, "BILLING", GetErrorCategory(ErrCodePaymentRequired))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeUnrecognizedRequestKind))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

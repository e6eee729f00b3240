// Package errors provides the standardized error model shared by the HTTP
// gateway and the Zeebe job transport.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Generation engine
const (
	ErrCodeEmptySchemaSet              ErrorCode = "EMPTY_SCHEMA_SET"
	ErrCodeMalformedCompletionResponse ErrorCode = "MALFORMED_COMPLETION_RESPONSE"
	ErrCodeUnresolvableSchemaReference ErrorCode = "UNRESOLVABLE_SCHEMA_REFERENCE"
	ErrCodeSchemaValidationFailed      ErrorCode = "SCHEMA_VALIDATION_FAILED"
	ErrCodeGenerationFailed            ErrorCode = "GENERATION_FAILED"
	ErrCodeLLMUpstreamFailed           ErrorCode = "LLM_UPSTREAM_FAILED"
	ErrCodeLLMTimeout                  ErrorCode = "LLM_TIMEOUT"
)

// Request surface
const (
	ErrCodeUnrecognizedRequestKind ErrorCode = "UNRECOGNIZED_REQUEST_KIND"
	ErrCodeInvalidRequest          ErrorCode = "INVALID_REQUEST"
	ErrCodeMissingTenant           ErrorCode = "MISSING_TENANT"
	ErrCodeAuthenticationFailed    ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeForbidden               ErrorCode = "FORBIDDEN"
	ErrCodeConflict                ErrorCode = "CONFLICT"
	ErrCodeResourceNotFound        ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodePaymentRequired         ErrorCode = "PAYMENT_REQUIRED"
)

// Infrastructure
const (
	ErrCodeStorageFailed                 ErrorCode = "STORAGE_FAILED"
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed          ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeMeterPublishFailed            ErrorCode = "METER_PUBLISH_FAILED"
	ErrCodeIdentityProviderFailed        ErrorCode = "IDENTITY_PROVIDER_FAILED"
	ErrCodeInternal                      ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a metadata entry and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// As extracts a *StandardError from err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is what gets thrown back to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for job fail/throw variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptySchemaSetError is returned before generation starts when the tenant has no schemas.
func NewEmptySchemaSetError(tenant string) *StandardError {
	return newError(ErrCodeEmptySchemaSet, "No schemas available for tenant", fmt.Sprintf("tenant: %s", tenant), false)
}

// NewGenerationFailedError carries the final attempt's errors and the attempt count.
func NewGenerationFailedError(errs []string, attempts int) *StandardError {
	e := newError(ErrCodeGenerationFailed, "Failed to generate a compliant JSON object", strings.Join(errs, "; "), false)
	return e.WithMetadata("errors", errs).WithMetadata("attempts", attempts)
}

// NewLLMUpstreamError wraps a completion failure.
func NewLLMUpstreamError(err error) *StandardError {
	return newError(ErrCodeLLMUpstreamFailed, "Language model request failed", err.Error(), true)
}

// NewLLMTimeoutError is returned when a completion call exceeds its deadline.
func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model request timed out", err.Error(), true)
}

// NewUnrecognizedRequestKindError is returned for request types outside the dispatch table.
func NewUnrecognizedRequestKindError(kind string) *StandardError {
	return newError(ErrCodeUnrecognizedRequestKind, "Unrecognized request type", fmt.Sprintf("type: %s", kind), false)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false)
}

func NewMissingTenantError() *StandardError {
	return newError(ErrCodeMissingTenant, "Missing extension", "an extension (tenant id) is required", false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthenticationFailed, "Authentication failed", details, false)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Forbidden", details, false)
}

func NewConflictError(details string) *StandardError {
	return newError(ErrCodeConflict, "Resource already exists", details, false)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewPaymentRequiredError(details string) *StandardError {
	return newError(ErrCodePaymentRequired, "Billing account required", details, false)
}

// NewStorageFailedError creates a retryable object-store error.
func NewStorageFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeStorageFailed, "Schema storage operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewMeterPublishFailedError(err error) *StandardError {
	return newError(ErrCodeMeterPublishFailed, "Meter event publish failed", err.Error(), true)
}

func NewIdentityProviderError(err error) *StandardError {
	return newError(ErrCodeIdentityProviderFailed, "Identity provider request failed", err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion
// ==========================

// GetRetryCount returns how many times the workflow engine should retry a job
// that failed with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeStorageFailed,
		ErrCodeMeterPublishFailed:
		return 3

	case ErrCodeLLMUpstreamFailed, ErrCodeIdentityProviderFailed:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// HTTPStatus maps an error code onto the gateway response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeMissingTenant, ErrCodeUnrecognizedRequestKind,
		ErrCodeGenerationFailed, ErrCodeMalformedCompletionResponse,
		ErrCodeUnresolvableSchemaReference, ErrCodeSchemaValidationFailed:
		return http.StatusBadRequest
	case ErrCodeAuthenticationFailed:
		return http.StatusUnauthorized
	case ErrCodePaymentRequired:
		return http.StatusPaymentRequired
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeEmptySchemaSet, ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeLLMUpstreamFailed, ErrCodeIdentityProviderFailed:
		return http.StatusBadGateway
	case ErrCodeLLMTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"statusCode":        HTTPStatus(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "GENERATION") ||
		strings.Contains(codeStr, "COMPLETION"):
		return "GENERATION"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "AUTH") || strings.Contains(codeStr, "FORBIDDEN") ||
		strings.Contains(codeStr, "IDENTITY"):
		return "AUTH"
	case strings.Contains(codeStr, "PAYMENT") || strings.Contains(codeStr, "METER"):
		return "BILLING"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY_EXECUTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "STORAGE"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "MISSING") ||
		strings.Contains(codeStr, "UNRECOGNIZED"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

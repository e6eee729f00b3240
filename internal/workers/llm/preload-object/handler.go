package preloadobject

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"schema-host/internal/billing"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/metrics"
	"schema-host/internal/common/validation"
	"schema-host/internal/generation"
)

const (
	TaskType      = "llm-preload"
	operationName = "llm-preload"
)

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"extension": {"type": "string"},
		"prompt":    {"type": "string", "maxLength": 20000}
	}
}`)

type SchemaLoader interface {
	Load(ctx context.Context, tenant string) (*generation.SchemaSet, error)
}

type Generator interface {
	Generate(ctx context.Context, set *generation.SchemaSet, prompt string) (*generation.Result, error)
}

type Debiter interface {
	Debit(ctx context.Context, tenant string, tokens int64, operation string) (*billing.DebitResult, error)
}

type Config struct {
	OperationCost int64
}

type Handler struct {
	config    *Config
	loader    SchemaLoader
	generator Generator
	ledger    Debiter
	logger    logger.Logger
}

func NewHandler(config *Config, loader SchemaLoader, generator Generator, ledger Debiter, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		loader:    loader,
		generator: generator,
		ledger:    ledger,
		logger:    log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute synthesizes an object compliant with one of the tenant's schemas.
// The operation is billed before the schemas are loaded, so a tenant with no
// schemas is still charged.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, stderrors.NewInvalidRequestError("prompt is required for llm-preload operation")
	}
	tenant := input.Extension

	debit, err := h.ledger.Debit(ctx, tenant, h.config.OperationCost, operationName)
	if err != nil {
		return nil, stderrors.NewInternalError(err)
	}
	if debit.Warning != "" {
		h.logger.Warn("token debit failed, continuing", map[string]interface{}{"tenant": tenant, "warning": debit.Warning})
	}

	set, err := h.loader.Load(ctx, tenant)
	if err != nil {
		if errors.Is(err, generation.ErrEmptySchemaSet) {
			return nil, stderrors.NewEmptySchemaSetError(tenant)
		}
		return nil, stderrors.NewStorageFailedError("load_schemas", err)
	}

	result, err := h.generator.Generate(ctx, set, input.Prompt)
	if err != nil {
		return nil, h.mapGenerateError(err)
	}

	attempts := strconv.Itoa(result.Attempts)
	if !result.Success {
		metrics.GenerationResults.WithLabelValues("failure", attempts).Inc()
		return nil, stderrors.NewGenerationFailedError(result.Errors, result.Attempts)
	}
	metrics.GenerationResults.WithLabelValues("success", attempts).Inc()

	h.logger.Info("compliant object generated", map[string]interface{}{
		"tenant":     tenant,
		"rootSchema": result.RootSchema,
		"attempts":   result.Attempts,
	})
	return &Output{
		Message:    "Successfully generated compliant JSON object",
		JSONObject: result.JSONObject,
		RootSchema: result.RootSchema,
		Attempts:   result.Attempts,
		Warning:    debit.Warning,
	}, nil
}

func (h *Handler) mapGenerateError(err error) error {
	var upstream *generation.UpstreamError
	switch {
	case errors.As(err, &upstream):
		metrics.GenerationResults.WithLabelValues("upstream_failure", strconv.Itoa(upstream.Attempt)).Inc()
		if upstream.Timeout() {
			return stderrors.NewLLMTimeoutError(err)
		}
		return stderrors.NewLLMUpstreamError(err)
	case errors.Is(err, generation.ErrEmptySchemaSet):
		return stderrors.NewEmptySchemaSetError("")
	case errors.Is(err, generation.ErrEmptyPrompt):
		return stderrors.NewInvalidRequestError("prompt is required for llm-preload operation")
	case errors.Is(err, context.DeadlineExceeded):
		return stderrors.NewLLMTimeoutError(err)
	default:
		return stderrors.NewInternalError(err)
	}
}

package generateschemas

import (
	"context"
	"fmt"
	"strings"

	"schema-host/internal/billing"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
	"schema-host/internal/generation"
	"schema-host/internal/schemastore"
)

const (
	TaskType      = "llm"
	operationName = "llm-generate"
	schemaLabel   = "generated_schema"
)

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"extension":  {"type": "string"},
		"schema":     {"type": "array", "items": {"type": "string"}},
		"properties": {"type": "object"}
	}
}`)

type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Publisher interface {
	PublishSchemas(ctx context.Context, tenant string, raws []string, label string) schemastore.PublishResult
	PublishProperties(ctx context.Context, tenant string, props map[string]interface{}) error
}

type Debiter interface {
	Debit(ctx context.Context, tenant string, tokens int64, operation string) (*billing.DebitResult, error)
}

type Config struct {
	OperationCost int64
}

type Handler struct {
	config    *Config
	completer Completer
	publisher Publisher
	ledger    Debiter
	logger    logger.Logger
}

func NewHandler(config *Config, completer Completer, publisher Publisher, ledger Debiter, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		completer: completer,
		publisher: publisher,
		ledger:    ledger,
		logger:    log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute turns each description into a schema and stores the results.
// A description whose completion fails is reported and skipped.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Schema) == 0 {
		return nil, stderrors.NewInvalidRequestError("schema list is required for llm operation")
	}
	tenant := input.Extension

	debit, err := h.ledger.Debit(ctx, tenant, h.config.OperationCost, operationName)
	if err != nil {
		return nil, stderrors.NewInternalError(err)
	}
	if debit.Warning != "" {
		h.logger.Warn("token debit failed, continuing", map[string]interface{}{"tenant": tenant, "warning": debit.Warning})
	}

	var generated, failed []string
	for i, description := range input.Schema {
		text, err := h.completer.Complete(ctx, systemPrompt, userPrefix+description)
		if err != nil {
			h.logger.Warn("schema generation failed", map[string]interface{}{
				"tenant": tenant,
				"index":  i,
				"error":  err.Error(),
			})
			failed = append(failed, fmt.Sprintf("description_%d", i))
			continue
		}
		generated = append(generated, strings.TrimSpace(generation.StripCodeFence(text)))
	}

	if err := h.publisher.PublishProperties(ctx, tenant, input.Properties); err != nil {
		return nil, stderrors.NewStorageFailedError("put_properties", err)
	}

	result := h.publisher.PublishSchemas(ctx, tenant, generated, schemaLabel)
	failed = append(failed, result.Failed...)

	h.logger.Info("generated schemas stored", map[string]interface{}{
		"tenant":    tenant,
		"generated": len(generated),
		"uploaded":  len(result.Uploaded),
		"failed":    len(failed),
	})
	return &Output{
		Message:         fmt.Sprintf("Generated and uploaded %d schemas from LLM", len(result.Uploaded)),
		UploadedSchemas: result.Uploaded,
		GeneratedCount:  len(generated),
		CreatedSchemas:  result.Uploaded,
		FailedSchemas:   failed,
	}, nil
}

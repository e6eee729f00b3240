package debittokens

import (
	"context"

	"schema-host/internal/billing"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
)

const (
	TaskType = "debit_tokens"

	defaultTokens    = 1
	defaultOperation = "pageload"
)

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"extension":      {"type": "string"},
		"tokens":         {"type": "number"},
		"operation_type": {"type": "string"}
	}
}`)

type Debiter interface {
	Debit(ctx context.Context, tenant string, tokens int64, operation string) (*billing.DebitResult, error)
}

type Config struct {
	PaymentEnforced bool
}

type Handler struct {
	config *Config
	ledger Debiter
	logger logger.Logger
}

func NewHandler(config *Config, ledger Debiter, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		ledger: ledger,
		logger: log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute debits the tenant's billing user. Billing trouble is reported in
// the output and never fails the request.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tokens := int64(defaultTokens)
	if input.Tokens != nil {
		n, err := input.Tokens.Int64()
		if err != nil || n < 0 {
			return nil, stderrors.NewInvalidRequestError("tokens must be a non-negative integer")
		}
		tokens = n
	}
	operation := input.OperationType
	if operation == "" {
		operation = defaultOperation
	}

	res, err := h.ledger.Debit(ctx, input.Extension, tokens, operation)
	if err != nil {
		return nil, stderrors.NewInvalidRequestError(err.Error())
	}

	out := &Output{
		TenantID:         input.Extension,
		BillingUserEmail: res.BillingUserEmail,
		TokensDebited:    res.TokensDebited,
		NewBalance:       res.NewBalance,
		OperationType:    operation,
		PaymentEnforced:  h.config.PaymentEnforced,
		Warning:          res.Warning,
	}
	switch {
	case res.BillingUserEmail == "":
		out.Message = "No billing account found - operation allowed"
	case res.Warning != "":
		out.Message = "Token debit failed but operation allowed"
	default:
		out.Message = "Tokens debited successfully"
	}
	return out, nil
}

package billstorage

import (
	"context"

	"schema-host/internal/billing"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
)

const TaskType = "bill"

type Biller interface {
	Run(ctx context.Context) ([]billing.TenantCharge, error)
}

type Handler struct {
	biller Biller
	logger logger.Logger
}

func NewHandler(biller Biller, log logger.Logger) *Handler {
	return &Handler{
		biller: biller,
		logger: log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute runs one storage billing pass. Per-tenant publish failures are
// listed in the charges; only an unreadable tenant list fails the run.
func (h *Handler) Execute(ctx context.Context, _ *Input) (*Output, error) {
	charges, err := h.biller.Run(ctx)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("storage_billing", err)
	}

	out := &Output{
		Message:       "Daily storage billing completed successfully",
		TenantsBilled: len(charges),
		Charges:       charges,
	}
	for _, c := range charges {
		if c.Error != "" {
			out.Failed++
			continue
		}
		out.TokensMetered += c.Tokens
	}
	if out.Failed > 0 {
		h.logger.Warn("storage billing finished with failures", map[string]interface{}{"failed": out.Failed})
	}
	return out, nil
}

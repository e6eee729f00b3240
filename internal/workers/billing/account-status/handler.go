package accountstatus

import (
	"context"
	"errors"

	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
	"schema-host/internal/repository"
)

const TaskType = "check_account_status"

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"user_email": {"type": "string"}
	}
}`)

type Accounts interface {
	GetBillingAccount(ctx context.Context, email string) (*repository.BillingAccount, error)
}

type Handler struct {
	accounts Accounts
	logger   logger.Logger
}

func NewHandler(accounts Accounts, log logger.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		logger:   log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.UserEmail == "" {
		return nil, stderrors.NewInvalidRequestError("user_email is required")
	}

	account, err := h.accounts.GetBillingAccount(ctx, input.UserEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, stderrors.NewResourceNotFoundError("billing", "User not found in billing system").
			WithMetadata("user_email", input.UserEmail).
			WithMetadata("token_balance", 0)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("get_billing_account", err)
	}

	tenants := account.ManagedTenants
	if tenants == nil {
		tenants = []string{}
	}
	return &Output{
		Message:              "User account status retrieved successfully",
		UserEmail:            account.UserEmail,
		TokenBalance:         account.TokenBalance,
		TotalTokensPurchased: account.TotalTokensPurchased,
		AccountStatus:        account.AccountStatus,
		ManagedTenants:       tenants,
		LastActivity:         account.LastActivity,
	}, nil
}

package authenticate

import (
	"context"
	"errors"

	"schema-host/internal/common/auth"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
	"schema-host/internal/repository"
)

const (
	TaskType = "auth"

	authType   = "google_oauth"
	createdVia = "google_oauth"
)

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"extension":           {"type": "string"},
		"google_access_token": {"type": "string"}
	}
}`)

type Guard interface {
	Identify(ctx context.Context, accessToken string) (*auth.Identity, error)
	PermissionsFor(ctx context.Context, tenant, email string) (repository.Permissions, error)
}

type Accounts interface {
	GetBillingAccount(ctx context.Context, email string) (*repository.BillingAccount, error)
	CreateBillingAccount(ctx context.Context, email, googleUserID, createdVia string) (bool, error)
	TouchBillingAccount(ctx context.Context, email string) error
	AddManagedTenant(ctx context.Context, email, tenant string) error
}

type Handler struct {
	guard    Guard
	accounts Accounts
	logger   logger.Logger
}

func NewHandler(guard Guard, accounts Accounts, log logger.Logger) *Handler {
	return &Handler{
		guard:    guard,
		accounts: accounts,
		logger:   log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute verifies the Google token and reports the caller's permissions on
// the tenant. A caller without a billing account gets one opened.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.GoogleAccessToken == "" {
		return nil, stderrors.NewInvalidRequestError("Either (extension and passcode) or google_access_token is required for authentication")
	}

	// Step 1: verify the token
	id, err := h.guard.Identify(ctx, input.GoogleAccessToken)
	if err != nil {
		return nil, err
	}

	// Step 2: tenant permissions
	granted, err := h.guard.PermissionsFor(ctx, input.Extension, id.Email)
	if err != nil {
		return nil, err
	}

	// Step 3: billing account; failures here never fail authentication
	isBillingAdmin, balance := h.billingState(ctx, id, input.Extension)

	h.logger.Info("google authentication succeeded", map[string]interface{}{
		"tenant":       input.Extension,
		"userEmail":    id.Email,
		"billingAdmin": isBillingAdmin,
	})
	return &Output{
		Message:       "Google OAuth authentication successful",
		TenantID:      input.Extension,
		Authenticated: true,
		AuthType:      authType,
		GoogleUserID:  id.GoogleUserID,
		UserEmail:     id.Email,
		Permissions: Permissions{
			Read:    granted.Read,
			Write:   granted.Write,
			Admin:   granted.Admin,
			Billing: isBillingAdmin,
		},
		TokenBalance: balance,
	}, nil
}

func (h *Handler) billingState(ctx context.Context, id *auth.Identity, tenant string) (bool, int64) {
	account, err := h.accounts.GetBillingAccount(ctx, id.Email)
	switch {
	case err == nil:
		if err := h.accounts.TouchBillingAccount(ctx, id.Email); err != nil {
			h.logger.Warn("last activity not updated", map[string]interface{}{"userEmail": id.Email, "error": err.Error()})
		}
		return true, account.TokenBalance
	case !errors.Is(err, repository.ErrNotFound):
		h.logger.Warn("billing account lookup failed", map[string]interface{}{"userEmail": id.Email, "error": err.Error()})
		return false, 0
	}

	if _, err := h.accounts.CreateBillingAccount(ctx, id.Email, id.GoogleUserID, createdVia); err != nil {
		h.logger.Warn("billing account not created", map[string]interface{}{"userEmail": id.Email, "error": err.Error()})
		return false, 0
	}
	if tenant != "" {
		if err := h.accounts.AddManagedTenant(ctx, id.Email, tenant); err != nil {
			h.logger.Warn("managed tenant not recorded", map[string]interface{}{"userEmail": id.Email, "tenant": tenant, "error": err.Error()})
		}
	}
	return true, 0
}

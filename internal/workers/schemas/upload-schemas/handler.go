package uploadschemas

import (
	"context"
	"errors"
	"fmt"

	"schema-host/internal/common/auth"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/repository"
	"schema-host/internal/schemastore"
)

const (
	TaskType = "json"

	scopesManagedBy = "system_billing_setup"
)

type Publisher interface {
	PublishSchemas(ctx context.Context, tenant string, raws []string, label string) schemastore.PublishResult
	PublishProperties(ctx context.Context, tenant string, props map[string]interface{}) error
	PublishEndpoints(ctx context.Context, tenant string, endpoints []string) (bool, error)
}

type Guard interface {
	RequireScope(ctx context.Context, accessToken, tenant, scope string) (*auth.Identity, error)
}

// Accounts is the billing and scope bookkeeping touched by an upload.
type Accounts interface {
	GetBillingAccount(ctx context.Context, email string) (*repository.BillingAccount, error)
	AddManagedTenant(ctx context.Context, email, tenant string) error
	SetScopes(ctx context.Context, tenant, email string, scopes []string, managedBy string) error
}

type Config struct {
	PaymentEnforced bool
}

type Handler struct {
	config    *Config
	publisher Publisher
	guard     Guard
	accounts  Accounts
	logger    logger.Logger
}

func NewHandler(config *Config, publisher Publisher, guard Guard, accounts Accounts, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		publisher: publisher,
		guard:     guard,
		accounts:  accounts,
		logger:    log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Schema) == 0 {
		return nil, stderrors.NewInvalidRequestError("schema list is required for json operation")
	}
	tenant := input.Extension

	billingEmail := input.BillingUser
	if input.GoogleAccessToken != "" {
		id, err := h.guard.RequireScope(ctx, input.GoogleAccessToken, tenant, repository.ScopeWrite)
		if err != nil {
			return nil, err
		}
		if billingEmail == "" {
			billingEmail = id.Email
		}
	}

	if err := h.publisher.PublishProperties(ctx, tenant, input.Properties); err != nil {
		return nil, stderrors.NewStorageFailedError("put_properties", err)
	}

	uploaded := []string{}
	wrote, err := h.publisher.PublishEndpoints(ctx, tenant, input.Endpoints)
	if err != nil {
		return nil, stderrors.NewStorageFailedError("put_endpoints", err)
	}
	if wrote {
		uploaded = append(uploaded, schemastore.EndpointsPropertiesFile)
	}

	res := h.publisher.PublishSchemas(ctx, tenant, input.Schema, "schema")
	uploaded = append(uploaded, res.Uploaded...)

	if billingEmail != "" && len(uploaded) > 0 {
		if err := h.attachBilling(ctx, tenant, billingEmail); err != nil {
			return nil, err
		}
	}

	if input.BillingUser != "" {
		scopes := []string{repository.ScopeRead, repository.ScopeWrite, repository.ScopeAdmin}
		if err := h.accounts.SetScopes(ctx, tenant, input.BillingUser, scopes, scopesManagedBy); err != nil {
			h.logger.Warn("failed to grant billing user scopes", map[string]interface{}{
				"tenant": tenant, "userEmail": input.BillingUser, "error": err.Error(),
			})
		}
	}

	h.logger.Info("schemas uploaded", map[string]interface{}{
		"tenant": tenant, "uploaded": len(uploaded), "failed": len(res.Failed),
	})

	return &Output{
		Message:         fmt.Sprintf("Uploaded %d schemas", len(uploaded)),
		UploadedSchemas: uploaded,
		FailedSchemas:   res.Failed,
	}, nil
}

// attachBilling records tenant under an existing billing account. Without an
// account the upload is refused only when payment is enforced.
func (h *Handler) attachBilling(ctx context.Context, tenant, email string) error {
	_, err := h.accounts.GetBillingAccount(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		if h.config.PaymentEnforced {
			return stderrors.NewPaymentRequiredError("Payment setup required. Please complete billing setup before uploading schemas.").
				WithMetadata("payment_required", true).
				WithMetadata("user_email", email)
		}
		h.logger.Info("no billing account, payment not enforced", map[string]interface{}{"userEmail": email})
		return nil
	}
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("get_billing_account", err)
	}
	if err := h.accounts.AddManagedTenant(ctx, email, tenant); err != nil {
		return stderrors.NewQueryExecutionFailedError("add_managed_tenant", err)
	}
	return nil
}

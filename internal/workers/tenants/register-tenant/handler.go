package registertenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"schema-host/internal/common/auth"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
	"schema-host/internal/repository"
)

const (
	TaskType = "register"

	createdVia  = "registration"
	claimSource = "user_registration"
)

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"email":               {"type": "string"},
		"tenants":             {"type": "array", "items": {"type": "string"}},
		"google_access_token": {"type": "string"}
	}
}`)

type Identifier interface {
	Identify(ctx context.Context, accessToken string) (*auth.Identity, error)
}

type Accounts interface {
	CreateBillingAccount(ctx context.Context, email, googleUserID, createdVia string) (bool, error)
	ClaimTenant(ctx context.Context, tenant, email, source string) error
	ListTenantsForUser(ctx context.Context, email string) ([]string, error)
}

type Handler struct {
	identifier Identifier
	accounts   Accounts
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(identifier Identifier, accounts Accounts, log logger.Logger) *Handler {
	return &Handler{
		identifier: identifier,
		accounts:   accounts,
		logger:     log.WithFields(map[string]interface{}{"requestKind": TaskType}),
		now:        time.Now,
	}
}

// Execute creates the caller's billing account if needed and claims each
// requested tenant name. A name that is malformed or already owned is listed
// in FailedTenants and does not fail the request.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Email == "" {
		return nil, stderrors.NewInvalidRequestError("email is required for registration")
	}
	if input.GoogleAccessToken == "" {
		return nil, stderrors.NewInvalidRequestError("google_access_token is required for registration")
	}

	id, err := h.identifier.Identify(ctx, input.GoogleAccessToken)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(id.Email, input.Email) {
		return nil, stderrors.NewInvalidRequestError("Email does not match Google account")
	}

	created, err := h.accounts.CreateBillingAccount(ctx, id.Email, id.GoogleUserID, createdVia)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("create_billing_account", err)
	}
	if !created {
		h.logger.Info("billing account already exists", map[string]interface{}{"userEmail": id.Email})
	}

	claimed, failed := []string{}, []string{}
	for _, requested := range input.Tenants {
		name := validation.NormalizeTenantName(requested)
		if !validation.ValidateTenantName(name) {
			failed = append(failed, name)
			continue
		}
		err := h.accounts.ClaimTenant(ctx, name, id.Email, claimSource)
		switch {
		case err == nil:
			claimed = append(claimed, name)
		case errors.Is(err, repository.ErrAlreadyExists):
			h.logger.Info("tenant already taken", map[string]interface{}{"tenant": name})
			failed = append(failed, name)
		default:
			h.logger.Warn("tenant claim failed", map[string]interface{}{"tenant": name, "error": err.Error()})
			failed = append(failed, name)
		}
	}

	all, err := h.accounts.ListTenantsForUser(ctx, id.Email)
	if err != nil {
		h.logger.Warn("listing tenants failed, reporting claimed only", map[string]interface{}{"error": err.Error()})
		all = claimed
	}

	h.logger.Info("registration completed", map[string]interface{}{
		"userEmail": id.Email,
		"claimed":   len(claimed),
		"failed":    len(failed),
	})
	return &Output{
		Success:       true,
		Message:       "Registration completed successfully",
		UserEmail:     id.Email,
		GoogleUserID:  id.GoogleUserID,
		TokenBalance:  0,
		Tenants:       claimed,
		FailedTenants: failed,
		AllTenants:    all,
		CreatedAt:     h.now().UTC(),
	}, nil
}

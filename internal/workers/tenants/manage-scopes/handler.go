package managescopes

import (
	"context"
	"fmt"

	"schema-host/internal/common/auth"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
	"schema-host/internal/repository"
)

const TaskType = "manage_oauth_scopes"

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"extension":  {"type": "string"},
		"user_email": {"type": "string"},
		"scopes":     {"type": "array", "items": {"type": "string"}},
		"action":     {"type": "string"}
	}
}`)

var validScopes = []string{repository.ScopeRead, repository.ScopeWrite, repository.ScopeAdmin}

type Guard interface {
	RequireScope(ctx context.Context, accessToken, tenant, scope string) (*auth.Identity, error)
	PermissionsFor(ctx context.Context, tenant, email string) (repository.Permissions, error)
}

type Grants interface {
	SetPermissions(ctx context.Context, tenant, email string, p repository.Permissions, managedBy string) error
	SetScopes(ctx context.Context, tenant, email string, scopes []string, managedBy string) error
	RemoveScopes(ctx context.Context, tenant, email string) (bool, error)
}

type Handler struct {
	guard  Guard
	grants Grants
	logger logger.Logger
}

func NewHandler(guard Guard, grants Grants, log logger.Logger) *Handler {
	return &Handler{
		guard:  guard,
		grants: grants,
		logger: log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute lets a tenant admin grant, inspect or revoke another user's scopes.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.AccessToken == "" {
		return nil, stderrors.NewAuthenticationError("Bearer token required in Authorization header")
	}
	if input.Extension == "" || input.UserEmail == "" {
		return nil, stderrors.NewInvalidRequestError("extension and user_email are required")
	}
	action := input.Action
	if action == "" {
		action = ActionSet
	}
	if action == ActionSet {
		for _, s := range input.Scopes {
			if !isValidScope(s) {
				return nil, stderrors.NewInvalidRequestError(fmt.Sprintf("Invalid scope: %s. Valid scopes: %v", s, validScopes))
			}
		}
	}

	caller, err := h.guard.RequireScope(ctx, input.AccessToken, input.Extension, repository.ScopeAdmin)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionSet:
		return h.set(ctx, input, caller.Email)
	case ActionGet:
		return h.get(ctx, input)
	case ActionRemove:
		return h.remove(ctx, input, caller.Email)
	default:
		return nil, stderrors.NewInvalidRequestError(`Invalid action. Use "set" or "remove"`)
	}
}

func (h *Handler) set(ctx context.Context, input *Input, managedBy string) (*Output, error) {
	scopes := input.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	perms := repository.PermissionsFromScopes(scopes)
	if err := h.grants.SetPermissions(ctx, input.Extension, input.UserEmail, perms, managedBy); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("set_permissions", err)
	}
	if err := h.grants.SetScopes(ctx, input.Extension, input.UserEmail, scopes, managedBy); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("set_scopes", err)
	}

	h.logger.Info("scopes set", map[string]interface{}{
		"tenant":    input.Extension,
		"userEmail": input.UserEmail,
		"scopes":    scopes,
		"managedBy": managedBy,
	})
	return &Output{
		Message:         fmt.Sprintf("OAuth scopes set successfully for user %s", input.UserEmail),
		TenantID:        input.Extension,
		UserEmail:       input.UserEmail,
		TargetUserEmail: input.UserEmail,
		Scopes:          scopes,
		Permissions:     &perms,
		ManagedBy:       managedBy,
	}, nil
}

func (h *Handler) get(ctx context.Context, input *Input) (*Output, error) {
	perms, err := h.guard.PermissionsFor(ctx, input.Extension, input.UserEmail)
	if err != nil {
		return nil, err
	}
	return &Output{
		Message:     "Lookup successful",
		TenantID:    input.Extension,
		UserEmail:   input.UserEmail,
		Scopes:      perms.Scopes(),
		Permissions: &perms,
	}, nil
}

// remove clears both the explicit grant and the scope list so neither keeps
// granting access.
func (h *Handler) remove(ctx context.Context, input *Input, managedBy string) (*Output, error) {
	if err := h.grants.SetPermissions(ctx, input.Extension, input.UserEmail, repository.Permissions{}, managedBy); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("clear_permissions", err)
	}
	removed, err := h.grants.RemoveScopes(ctx, input.Extension, input.UserEmail)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("remove_scopes", err)
	}

	h.logger.Info("scopes removed", map[string]interface{}{
		"tenant":    input.Extension,
		"userEmail": input.UserEmail,
		"hadScopes": removed,
	})
	return &Output{
		Message:   fmt.Sprintf("OAuth scopes removed for user %s", input.UserEmail),
		TenantID:  input.Extension,
		UserEmail: input.UserEmail,
	}, nil
}

func isValidScope(s string) bool {
	for _, v := range validScopes {
		if s == v {
			return true
		}
	}
	return false
}

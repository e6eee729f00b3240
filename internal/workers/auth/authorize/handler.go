package authorize

import (
	"context"

	"schema-host/internal/common/auth"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
)

const (
	TaskType = "authorize"

	EffectAllow = "Allow"
	EffectDeny  = "Deny"

	policyVersion    = "2012-10-17"
	invokeAction     = "execute-api:Invoke"
	anonymousPrincipal = "user"
)

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"authorizationToken": {"type": "string"},
		"methodArn":          {"type": "string"}
	}
}`)

type PasscodeChecker interface {
	PasscodeValid(ctx context.Context, tenant, passcode string) (bool, error)
}

type Handler struct {
	checker PasscodeChecker
	logger  logger.Logger
}

func NewHandler(checker PasscodeChecker, log logger.Logger) *Handler {
	return &Handler{
		checker: checker,
		logger:  log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute never fails: every problem with the credentials becomes a Deny
// policy.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Policy, error) {
	tenant, passcode, err := auth.ParseBasicAuth(input.AuthorizationToken)
	if err != nil {
		h.logger.Debug("authorizer rejected header", map[string]interface{}{"error": err.Error()})
		return policy(anonymousPrincipal, EffectDeny, input.MethodArn), nil
	}

	ok, err := h.checker.PasscodeValid(ctx, tenant, passcode)
	if err != nil {
		h.logger.Warn("authorizer lookup failed", map[string]interface{}{"tenant": tenant, "error": err.Error()})
		return policy(anonymousPrincipal, EffectDeny, input.MethodArn), nil
	}
	if !ok {
		return policy(anonymousPrincipal, EffectDeny, input.MethodArn), nil
	}
	return policy(tenant, EffectAllow, input.MethodArn), nil
}

func policy(principal, effect, resource string) *Policy {
	return &Policy{
		PrincipalID: principal,
		PolicyDocument: PolicyDocument{
			Version: policyVersion,
			Statement: []Statement{{
				Action:   invokeAction,
				Effect:   effect,
				Resource: resource,
			}},
		},
	}
}

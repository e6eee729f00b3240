package createuser

import (
	"context"
	"errors"

	"schema-host/internal/common/auth"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
	"schema-host/internal/repository"
)

const TaskType = "create_user"

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"extension":     {"type": "string"},
		"passcode":      {"type": "string"},
		"user_id":       {"type": "string", "maxLength": 128},
		"user_passcode": {"type": "string"}
	}
}`)

type PasscodeChecker interface {
	PasscodeValid(ctx context.Context, tenant, passcode string) (bool, error)
}

type Credentials interface {
	CreateCredential(ctx context.Context, c *repository.Credential) error
}

type Handler struct {
	checker     PasscodeChecker
	credentials Credentials
	logger      logger.Logger
}

func NewHandler(checker PasscodeChecker, credentials Credentials, log logger.Logger) *Handler {
	return &Handler{
		checker:     checker,
		credentials: credentials,
		logger:      log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Extension == "" || input.Passcode == "" || input.UserID == "" || input.UserPasscode == "" {
		return nil, stderrors.NewInvalidRequestError("extension, passcode, user_id, and user_passcode are required")
	}

	ok, err := h.checker.PasscodeValid(ctx, input.Extension, input.Passcode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, stderrors.NewAuthenticationError("Tenant authentication failed")
	}

	salt, err := auth.GenerateSalt()
	if err != nil {
		return nil, stderrors.NewInternalError(err)
	}
	err = h.credentials.CreateCredential(ctx, &repository.Credential{
		ID:           input.UserID,
		Kind:         repository.KindUser,
		ParentTenant: input.Extension,
		PasscodeHash: auth.HashPasscode(input.UserPasscode, salt),
		Salt:         salt,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, stderrors.NewConflictError("User already exists")
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("create_credential", err)
	}

	h.logger.Info("dependent user created", map[string]interface{}{
		"tenant": input.Extension,
		"userId": input.UserID,
	})
	return &Output{
		Message:      "User created successfully",
		UserID:       input.UserID,
		ParentTenant: input.Extension,
	}, nil
}

package admindelete

import (
	"context"
	"fmt"

	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
)

const TaskType = "admin_delete"

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"admin_tenant":   {"type": "string"},
		"admin_passcode": {"type": "string"},
		"target_tenant":  {"type": "string"}
	}
}`)

type PasscodeChecker interface {
	PasscodeValid(ctx context.Context, tenant, passcode string) (bool, error)
}

type ObjectPurger interface {
	DeleteAll(ctx context.Context, tenant string) (int, error)
}

type RecordPurger interface {
	DeleteTenant(ctx context.Context, tenant string) (int64, error)
	DeleteTenantBilling(ctx context.Context, tenant string) (int64, error)
}

type CatalogPurger interface {
	DeleteTenant(ctx context.Context, tenant string) error
}

type BillingCache interface {
	Forget(ctx context.Context, tenant string)
}

type Config struct {
	RootTenant string
}

type Handler struct {
	config  *Config
	checker PasscodeChecker
	objects ObjectPurger
	records RecordPurger
	catalog CatalogPurger
	billing BillingCache
	logger  logger.Logger
}

func NewHandler(config *Config, checker PasscodeChecker, objects ObjectPurger, records RecordPurger, catalog CatalogPurger, billing BillingCache, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		checker: checker,
		objects: objects,
		records: records,
		catalog: catalog,
		billing: billing,
		logger:  log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute removes every stored object and record of the target tenant. Only
// the root tenant may call it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.AdminTenant == "" || input.AdminPasscode == "" || input.TargetTenant == "" {
		return nil, stderrors.NewInvalidRequestError("admin_tenant, admin_passcode, and target_tenant are required")
	}
	if input.AdminTenant != h.config.RootTenant {
		return nil, stderrors.NewForbiddenError("Only root tenant can delete other tenants")
	}

	ok, err := h.checker.PasscodeValid(ctx, input.AdminTenant, input.AdminPasscode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, stderrors.NewAuthenticationError("Admin authentication failed")
	}

	target := input.TargetTenant
	deletedObjects, err := h.objects.DeleteAll(ctx, target)
	if err != nil {
		return nil, stderrors.NewStorageFailedError("delete_tenant_objects", err).
			WithMetadata("deleted_objects", deletedObjects)
	}

	deletedRecords, err := h.records.DeleteTenant(ctx, target)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("delete_tenant", err)
	}

	out := &Output{
		Message:        fmt.Sprintf("Tenant %s deleted successfully", target),
		DeletedObjects: deletedObjects,
		DeletedRecords: deletedRecords,
	}

	released, err := h.records.DeleteTenantBilling(ctx, target)
	if err != nil {
		h.logger.Warn("billing mapping not released", map[string]interface{}{"tenant": target, "error": err.Error()})
	}
	out.ReleasedBilling = released > 0
	if h.billing != nil {
		h.billing.Forget(ctx, target)
	}

	if h.catalog != nil {
		if err := h.catalog.DeleteTenant(ctx, target); err != nil {
			h.logger.Warn("catalog entries not removed", map[string]interface{}{"tenant": target, "error": err.Error()})
		} else {
			out.DeletedCatalog = true
		}
	}

	h.logger.Info("tenant deleted", map[string]interface{}{
		"tenant":         target,
		"deletedObjects": deletedObjects,
		"deletedRecords": deletedRecords,
	})
	return out, nil
}

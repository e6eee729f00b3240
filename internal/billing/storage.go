package billing

import (
	"context"
	"fmt"
	"time"

	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/metrics"
	"schema-host/internal/repository"
)

const bytesPerMB = 1024 * 1024

// TenantLister enumerates the tenants that have someone paying for them.
type TenantLister interface {
	ListBilledTenants(ctx context.Context) ([]repository.TenantBilling, error)
}

// UsageSource reports stored bytes per tenant.
type UsageSource interface {
	Usage(ctx context.Context, tenant string) (int64, error)
}

// MeterPublisher delivers a meter event downstream.
type MeterPublisher interface {
	PublishJSON(ctx context.Context, topicARN string, payload interface{}, attributes map[string]string) (string, error)
}

// MeterEvent is the payload the downstream payment integration consumes.
type MeterEvent struct {
	EventName        string `json:"event_name"`
	Timestamp        int64  `json:"timestamp"`
	TenantID         string `json:"tenant_id"`
	BillingUserEmail string `json:"billing_user_email"`
	StorageMB        int64  `json:"storage_mb"`
	Value            int64  `json:"value"`
}

// TenantCharge is one line of a storage billing run.
type TenantCharge struct {
	TenantID  string `json:"tenant_id"`
	StorageMB int64  `json:"storage_mb"`
	Tokens    int64  `json:"tokens"`
	MessageID string `json:"message_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

type StorageConfig struct {
	TopicARN       string
	EventName      string
	MBPerToken     int64
	PublishTimeout time.Duration
}

// StorageBiller sends one storage meter event per billed tenant.
type StorageBiller struct {
	tenants   TenantLister
	usage     UsageSource
	publisher MeterPublisher
	config    StorageConfig
	logger    logger.Logger
	now       func() time.Time
}

func NewStorageBiller(tenants TenantLister, usage UsageSource, publisher MeterPublisher, cfg StorageConfig, log logger.Logger) *StorageBiller {
	if cfg.MBPerToken <= 0 {
		cfg.MBPerToken = 10
	}
	if cfg.EventName == "" {
		cfg.EventName = "pageload_tokens"
	}
	return &StorageBiller{
		tenants:   tenants,
		usage:     usage,
		publisher: publisher,
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "storage-biller"}),
		now:       time.Now,
	}
}

// StorageMB rounds bytes up to whole megabytes.
func StorageMB(bytes int64) int64 {
	if bytes <= 0 {
		return 0
	}
	return (bytes + bytesPerMB - 1) / bytesPerMB
}

// StorageTokens charges one token per mbPerToken megabytes, never less than one.
func StorageTokens(mb, mbPerToken int64) int64 {
	tokens := mb / mbPerToken
	if tokens < 1 {
		return 1
	}
	return tokens
}

// Run bills every tenant. A failure for one tenant is recorded on its line and
// does not stop the run; only failing to list tenants fails it.
func (b *StorageBiller) Run(ctx context.Context) ([]TenantCharge, error) {
	billed, err := b.tenants.ListBilledTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list billed tenants: %w", err)
	}

	charges := make([]TenantCharge, 0, len(billed))
	for _, tb := range billed {
		if err := ctx.Err(); err != nil {
			return charges, err
		}
		charges = append(charges, b.bill(ctx, tb))
	}

	b.logger.Info("storage billing run completed", map[string]interface{}{"tenants": len(charges)})
	return charges, nil
}

func (b *StorageBiller) bill(ctx context.Context, tb repository.TenantBilling) TenantCharge {
	bytes, err := b.usage.Usage(ctx, tb.TenantID)
	if err != nil {
		b.logger.Warn("storage usage unavailable, billing minimum", map[string]interface{}{
			"tenant": tb.TenantID, "error": err.Error(),
		})
		bytes = 0
	}
	mb := StorageMB(bytes)
	charge := TenantCharge{TenantID: tb.TenantID, StorageMB: mb, Tokens: StorageTokens(mb, b.config.MBPerToken)}

	event := MeterEvent{
		EventName:        b.config.EventName,
		Timestamp:        b.now().Unix(),
		TenantID:         tb.TenantID,
		BillingUserEmail: tb.UserEmail,
		StorageMB:        mb,
		Value:            charge.Tokens,
	}
	attrs := map[string]string{"event_name": b.config.EventName, "tenant_id": tb.TenantID}

	pubCtx := ctx
	if b.config.PublishTimeout > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(ctx, b.config.PublishTimeout)
		defer cancel()
	}
	id, err := b.publisher.PublishJSON(pubCtx, b.config.TopicARN, event, attrs)
	if err != nil {
		metrics.MeterEvents.WithLabelValues("failed").Inc()
		pubErr := stderrors.NewMeterPublishFailedError(err)
		b.logger.Error("meter event publish failed", map[string]interface{}{
			"tenant": tb.TenantID, "tokens": charge.Tokens, "code": pubErr.Code,
			"retryable": pubErr.Retryable, "error": pubErr.Details,
		})
		charge.ErrorCode = string(pubErr.Code)
		charge.Error = pubErr.Details
		return charge
	}

	metrics.MeterEvents.WithLabelValues("published").Inc()
	charge.MessageID = id
	b.logger.Info("storage tokens metered", map[string]interface{}{
		"tenant": tb.TenantID, "storageMB": mb, "tokens": charge.Tokens, "messageId": id,
	})
	return charge
}

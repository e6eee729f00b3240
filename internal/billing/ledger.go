// Package billing finds who pays for a tenant, debits their token balance and
// meters storage usage.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schema-host/internal/common/logger"
	"schema-host/internal/common/metrics"
	"schema-host/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "billing-user:"

	SourceManagedTenants = "migrated_from_managed_tenants"
)

var ErrNegativeTokens = errors.New("TOKENS_MUST_BE_NON_NEGATIVE")

// Store is the part of the repository the ledger uses.
type Store interface {
	GetTenantBilling(ctx context.Context, tenant string) (string, error)
	FindManagingAccount(ctx context.Context, tenant string) (string, error)
	PutTenantBilling(ctx context.Context, tenant, email, source string) error
	DebitTokens(ctx context.Context, email string, tokens int64) (int64, error)
}

// DebitResult reports what a debit did. Billing problems never fail the
// metered operation; they surface as Warning.
type DebitResult struct {
	BillingUserEmail string `json:"billing_user_email,omitempty"`
	TokensDebited    int64  `json:"tokens_debited"`
	NewBalance       *int64 `json:"new_balance,omitempty"`
	Warning          string `json:"warning,omitempty"`
}

type Ledger struct {
	store    Store
	cache    redis.Cmdable
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewLedger accepts a nil cache, in which case every lookup hits the store.
func NewLedger(store Store, cache redis.Cmdable, cacheTTL time.Duration, log logger.Logger) *Ledger {
	return &Ledger{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "billing-ledger"}),
	}
}

// BillingUserFor returns the email paying for tenant, or "" when there is none.
// The tenant mapping wins; an account that lists the tenant as managed is the
// fallback and gets back-filled into the mapping.
func (l *Ledger) BillingUserFor(ctx context.Context, tenant string) (string, error) {
	key := cacheKeyPrefix + tenant
	if l.cache != nil {
		if email, err := l.cache.Get(ctx, key).Result(); err == nil && email != "" {
			return email, nil
		} else if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("billing cache read failed", map[string]interface{}{"tenant": tenant, "error": err.Error()})
		}
	}

	email, err := l.store.GetTenantBilling(ctx, tenant)
	if errors.Is(err, repository.ErrNotFound) {
		email, err = l.store.FindManagingAccount(ctx, tenant)
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if putErr := l.store.PutTenantBilling(ctx, tenant, email, SourceManagedTenants); putErr != nil {
			l.logger.Warn("back-fill of tenant billing mapping failed", map[string]interface{}{
				"tenant": tenant, "userEmail": email, "error": putErr.Error(),
			})
		}
	} else if err != nil {
		return "", err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, email, l.cacheTTL).Err(); err != nil {
			l.logger.Warn("billing cache write failed", map[string]interface{}{"tenant": tenant, "error": err.Error()})
		}
	}
	return email, nil
}

// Forget drops the cached billing user of tenant.
func (l *Ledger) Forget(ctx context.Context, tenant string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Del(ctx, cacheKeyPrefix+tenant).Err(); err != nil {
		l.logger.Warn("billing cache delete failed", map[string]interface{}{"tenant": tenant, "error": err.Error()})
	}
}

// Debit charges tokens for operation to whoever pays for tenant. A tenant
// without a billing user is allowed through with nothing debited.
func (l *Ledger) Debit(ctx context.Context, tenant string, tokens int64, operation string) (*DebitResult, error) {
	if tokens < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeTokens, tokens)
	}

	email, err := l.BillingUserFor(ctx, tenant)
	if err != nil {
		l.logger.Error("billing user lookup failed", map[string]interface{}{
			"tenant": tenant, "operation": operation, "error": err.Error(),
		})
		return &DebitResult{Warning: "Billing system error - tokens not debited"}, nil
	}
	if email == "" {
		l.logger.Debug("no billing user, operation allowed", map[string]interface{}{"tenant": tenant, "operation": operation})
		return &DebitResult{}, nil
	}

	balance, err := l.store.DebitTokens(ctx, email, tokens)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			l.Forget(ctx, tenant)
		}
		l.logger.Error("token debit failed", map[string]interface{}{
			"tenant": tenant, "userEmail": email, "tokens": tokens, "operation": operation, "error": err.Error(),
		})
		return &DebitResult{BillingUserEmail: email, Warning: "Billing system error - tokens not debited"}, nil
	}

	metrics.TokensDebited.WithLabelValues(operation).Add(float64(tokens))
	l.logger.Info("tokens debited", map[string]interface{}{
		"tenant": tenant, "userEmail": email, "tokens": tokens, "operation": operation, "balance": balance,
	})
	return &DebitResult{BillingUserEmail: email, TokensDebited: tokens, NewBalance: &balance}, nil
}

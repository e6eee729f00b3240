package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// BillingAccount is the token ledger of a billing user.
type BillingAccount struct {
	UserEmail            string
	GoogleUserID         string
	TokenBalance         int64
	TotalTokensPurchased int64
	ManagedTenants       []string
	AccountStatus        string
	CreatedVia           string
	CreatedAt            time.Time
	LastActivity         time.Time
}

// TenantBilling maps a tenant onto the account that pays for it.
type TenantBilling struct {
	TenantID  string
	UserEmail string
	Source    string
}

// CreateBillingAccount inserts a zero-balance account and reports whether it
// was created. An existing account is left untouched.
func (r *Repository) CreateBillingAccount(ctx context.Context, email, googleUserID, createdVia string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO billing_accounts (user_email, google_user_id, created_via)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_email) DO NOTHING`,
		email, sql.NullString{String: googleUserID, Valid: googleUserID != ""}, createdVia,
	)
	if err != nil {
		return false, fmt.Errorf("create billing account %s: %w", email, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repository) GetBillingAccount(ctx context.Context, email string) (*BillingAccount, error) {
	var (
		a        BillingAccount
		googleID sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_email, google_user_id, token_balance, total_tokens_purchased, managed_tenants,
			account_status, created_via, created_at, last_activity
		FROM billing_accounts WHERE user_email = $1`,
		email,
	).Scan(&a.UserEmail, &googleID, &a.TokenBalance, &a.TotalTokensPurchased, pq.Array(&a.ManagedTenants),
		&a.AccountStatus, &a.CreatedVia, &a.CreatedAt, &a.LastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get billing account %s: %w", email, err)
	}
	a.GoogleUserID = googleID.String
	return &a, nil
}

func (r *Repository) TouchBillingAccount(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE billing_accounts SET last_activity = now() WHERE user_email = $1`, email,
	); err != nil {
		return fmt.Errorf("touch billing account %s: %w", email, err)
	}
	return nil
}

// AddManagedTenant appends tenant to the account's managed list once.
func (r *Repository) AddManagedTenant(ctx context.Context, email, tenant string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE billing_accounts
		SET managed_tenants = array_append(managed_tenants, $2), last_activity = now()
		WHERE user_email = $1 AND NOT ($2 = ANY(managed_tenants))`,
		email, tenant,
	)
	if err != nil {
		return fmt.Errorf("add managed tenant %s to %s: %w", tenant, email, err)
	}
	return nil
}

// DebitTokens subtracts tokens and returns the new balance. Balances may go
// negative. ErrNotFound means there is no such account.
func (r *Repository) DebitTokens(ctx context.Context, email string, tokens int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE billing_accounts SET token_balance = token_balance - $2, last_activity = now()
		WHERE user_email = $1 RETURNING token_balance`,
		email, tokens,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("debit %d tokens from %s: %w", tokens, email, err)
	}
	return balance, nil
}

// FindManagingAccount finds the first account listing tenant as managed.
func (r *Repository) FindManagingAccount(ctx context.Context, tenant string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_email FROM billing_accounts WHERE $1 = ANY(managed_tenants) ORDER BY created_at LIMIT 1`,
		tenant,
	).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("find managing account for %s: %w", tenant, err)
	}
	return email, nil
}

// ClaimTenant maps an unclaimed tenant onto email. ErrAlreadyExists means the
// tenant belongs to someone already.
func (r *Repository) ClaimTenant(ctx context.Context, tenant, email, source string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenant_billing (tenant_id, user_email, source) VALUES ($1, $2, $3)`,
		tenant, email, source,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("claim tenant %s: %w", tenant, err)
	}
	return nil
}

// PutTenantBilling writes the mapping, replacing any existing one.
func (r *Repository) PutTenantBilling(ctx context.Context, tenant, email, source string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenant_billing (tenant_id, user_email, source) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET user_email = EXCLUDED.user_email, source = EXCLUDED.source`,
		tenant, email, source,
	)
	if err != nil {
		return fmt.Errorf("put tenant billing %s: %w", tenant, err)
	}
	return nil
}

func (r *Repository) GetTenantBilling(ctx context.Context, tenant string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_email FROM tenant_billing WHERE tenant_id = $1`, tenant,
	).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get tenant billing %s: %w", tenant, err)
	}
	return email, nil
}

func (r *Repository) ListTenantsForUser(ctx context.Context, email string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tenant_id FROM tenant_billing WHERE user_email = $1 ORDER BY tenant_id`, email,
	)
	if err != nil {
		return nil, fmt.Errorf("list tenants for %s: %w", email, err)
	}
	defer rows.Close()

	tenants := []string{}
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// ListBilledTenants returns every tenant mapped onto a billing account.
func (r *Repository) ListBilledTenants(ctx context.Context) ([]TenantBilling, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tb.tenant_id, tb.user_email, tb.source
		FROM tenant_billing tb JOIN billing_accounts ba ON ba.user_email = tb.user_email
		ORDER BY tb.tenant_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list billed tenants: %w", err)
	}
	defer rows.Close()

	var out []TenantBilling
	for rows.Next() {
		var tb TenantBilling
		if err := rows.Scan(&tb.TenantID, &tb.UserEmail, &tb.Source); err != nil {
			return nil, fmt.Errorf("scan billed tenant: %w", err)
		}
		out = append(out, tb)
	}
	return out, rows.Err()
}

// DeleteTenantBilling drops the tenant's mapping, used when the tenant itself is deleted.
func (r *Repository) DeleteTenantBilling(ctx context.Context, tenant string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tenant_billing WHERE tenant_id = $1`, tenant)
	if err != nil {
		return 0, fmt.Errorf("delete tenant billing %s: %w", tenant, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

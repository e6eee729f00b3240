package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// Permissions is what a Google identity may do within a tenant.
type Permissions struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
	Admin bool `json:"admin"`
}

// PermissionsFromScopes maps a scope list onto flags.
func PermissionsFromScopes(scopes []string) Permissions {
	var p Permissions
	for _, s := range scopes {
		switch s {
		case ScopeRead:
			p.Read = true
		case ScopeWrite:
			p.Write = true
		case ScopeAdmin:
			p.Admin = true
		}
	}
	return p
}

// Scopes lists the granted flags in read, write, admin order.
func (p Permissions) Scopes() []string {
	scopes := []string{}
	if p.Read {
		scopes = append(scopes, ScopeRead)
	}
	if p.Write {
		scopes = append(scopes, ScopeWrite)
	}
	if p.Admin {
		scopes = append(scopes, ScopeAdmin)
	}
	return scopes
}

// GetPermissions returns ErrNotFound when email holds no grant on tenant.
func (r *Repository) GetPermissions(ctx context.Context, tenant, email string) (*Permissions, error) {
	var p Permissions
	err := r.db.QueryRowContext(ctx,
		`SELECT can_read, can_write, can_admin FROM tenant_permissions WHERE tenant_id = $1 AND user_email = $2`,
		tenant, email,
	).Scan(&p.Read, &p.Write, &p.Admin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get permissions %s/%s: %w", tenant, email, err)
	}
	return &p, nil
}

func (r *Repository) SetPermissions(ctx context.Context, tenant, email string, p Permissions, managedBy string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenant_permissions (tenant_id, user_email, can_read, can_write, can_admin, managed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, user_email) DO UPDATE SET
			can_read = EXCLUDED.can_read, can_write = EXCLUDED.can_write, can_admin = EXCLUDED.can_admin,
			managed_by = EXCLUDED.managed_by, updated_at = now()`,
		tenant, email, p.Read, p.Write, p.Admin, managedBy,
	)
	if err != nil {
		return fmt.Errorf("set permissions %s/%s: %w", tenant, email, err)
	}
	return nil
}

// GetScopes returns ErrNotFound when no scope record exists.
func (r *Repository) GetScopes(ctx context.Context, tenant, email string) ([]string, error) {
	var scopes []string
	err := r.db.QueryRowContext(ctx,
		`SELECT scopes FROM oauth_scopes WHERE tenant_id = $1 AND user_email = $2`,
		tenant, email,
	).Scan(pq.Array(&scopes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scopes %s/%s: %w", tenant, email, err)
	}
	return scopes, nil
}

func (r *Repository) SetScopes(ctx context.Context, tenant, email string, scopes []string, managedBy string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_scopes (tenant_id, user_email, scopes, managed_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, user_email) DO UPDATE SET
			scopes = EXCLUDED.scopes, managed_by = EXCLUDED.managed_by, updated_at = now()`,
		tenant, email, pq.Array(scopes), managedBy,
	)
	if err != nil {
		return fmt.Errorf("set scopes %s/%s: %w", tenant, email, err)
	}
	return nil
}

// RemoveScopes reports whether a record was deleted.
func (r *Repository) RemoveScopes(ctx context.Context, tenant, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_scopes WHERE tenant_id = $1 AND user_email = $2`,
		tenant, email,
	)
	if err != nil {
		return false, fmt.Errorf("remove scopes %s/%s: %w", tenant, email, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

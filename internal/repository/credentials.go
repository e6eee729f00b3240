package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	KindTenant = "tenant"
	KindUser   = "user"
)

// Credential is a salted passcode hash for a tenant or one of its users.
type Credential struct {
	ID           string
	Kind         string
	ParentTenant string
	PasscodeHash string
	Salt         string
	CreatedAt    time.Time
}

// GetCredential returns ErrNotFound when no row matches.
func (r *Repository) GetCredential(ctx context.Context, id, kind string) (*Credential, error) {
	var (
		c      Credential
		parent sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, kind, parent_tenant, passcode_hash, salt, created_at FROM credentials WHERE id = $1 AND kind = $2`,
		id, kind,
	).Scan(&c.ID, &c.Kind, &parent, &c.PasscodeHash, &c.Salt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential %s/%s: %w", kind, id, err)
	}
	c.ParentTenant = parent.String
	return &c, nil
}

// CreateCredential returns ErrAlreadyExists when id is taken for the kind.
func (r *Repository) CreateCredential(ctx context.Context, c *Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (id, kind, parent_tenant, passcode_hash, salt) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Kind, sql.NullString{String: c.ParentTenant, Valid: c.ParentTenant != ""}, c.PasscodeHash, c.Salt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create credential %s/%s: %w", c.Kind, c.ID, err)
	}
	return nil
}

// DeleteTenant removes the tenant credential, its dependent users and its
// permission and scope grants in one transaction. It returns the row count.
func (r *Repository) DeleteTenant(ctx context.Context, tenant string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete tenant: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM credentials WHERE (id = $1 AND kind = 'tenant') OR (kind = 'user' AND parent_tenant = $1)`,
		`DELETE FROM tenant_permissions WHERE tenant_id = $1`,
		`DELETE FROM oauth_scopes WHERE tenant_id = $1`,
	}
	var total int64
	for _, stmt := range statements {
		res, err := tx.ExecContext(ctx, stmt, tenant)
		if err != nil {
			return 0, fmt.Errorf("delete tenant %s: %w", tenant, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete tenant: %w", err)
	}
	return total, nil
}

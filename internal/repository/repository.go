// Package repository keeps tenant credentials, user permissions and billing
// accounts in PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("RECORD_NOT_FOUND")
	ErrAlreadyExists = errors.New("RECORD_ALREADY_EXISTS")
)

const uniqueViolation = "23505"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS credentials (
	id             TEXT NOT NULL,
	kind           TEXT NOT NULL,
	parent_tenant  TEXT,
	passcode_hash  TEXT NOT NULL,
	salt           TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (id, kind)
);
CREATE TABLE IF NOT EXISTS tenant_permissions (
	tenant_id   TEXT NOT NULL,
	user_email  TEXT NOT NULL,
	can_read    BOOLEAN NOT NULL DEFAULT false,
	can_write   BOOLEAN NOT NULL DEFAULT false,
	can_admin   BOOLEAN NOT NULL DEFAULT false,
	managed_by  TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, user_email)
);
CREATE TABLE IF NOT EXISTS oauth_scopes (
	tenant_id   TEXT NOT NULL,
	user_email  TEXT NOT NULL,
	scopes      TEXT[] NOT NULL,
	managed_by  TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, user_email)
);
CREATE TABLE IF NOT EXISTS billing_accounts (
	user_email             TEXT PRIMARY KEY,
	google_user_id         TEXT,
	token_balance          BIGINT NOT NULL DEFAULT 0,
	total_tokens_purchased BIGINT NOT NULL DEFAULT 0,
	managed_tenants        TEXT[] NOT NULL DEFAULT '{}',
	account_status         TEXT NOT NULL DEFAULT 'active',
	created_via            TEXT NOT NULL,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_activity          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS tenant_billing (
	tenant_id   TEXT PRIMARY KEY,
	user_email  TEXT NOT NULL,
	source      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tenant_billing_user_email_idx ON tenant_billing (user_email);`

// Repository is safe for concurrent use; it only holds the pool.
type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the tables when they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

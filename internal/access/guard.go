// Package access decides who may act on a tenant: tenant passcodes for
// shared-secret callers and stored permission grants for Google identities.
package access

import (
	"context"
	"errors"
	"fmt"

	"schema-host/internal/common/auth"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/repository"
)

type CredentialStore interface {
	GetCredential(ctx context.Context, id, kind string) (*repository.Credential, error)
}

type PermissionStore interface {
	GetPermissions(ctx context.Context, tenant, email string) (*repository.Permissions, error)
	GetScopes(ctx context.Context, tenant, email string) ([]string, error)
}

type IdentityVerifier interface {
	Verify(ctx context.Context, accessToken string) (*auth.Identity, error)
}

type Guard struct {
	credentials CredentialStore
	permissions PermissionStore
	identities  IdentityVerifier
	logger      logger.Logger
}

func NewGuard(creds CredentialStore, perms PermissionStore, ids IdentityVerifier, log logger.Logger) *Guard {
	return &Guard{
		credentials: creds,
		permissions: perms,
		identities:  ids,
		logger:      log.WithFields(map[string]interface{}{"component": "access"}),
	}
}

// PasscodeValid reports whether passcode matches the tenant credential. An
// unknown tenant is simply invalid.
func (g *Guard) PasscodeValid(ctx context.Context, tenant, passcode string) (bool, error) {
	if tenant == "" || passcode == "" {
		return false, nil
	}
	cred, err := g.credentials.GetCredential(ctx, tenant, repository.KindTenant)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, stderrors.NewQueryExecutionFailedError("get_credential", err)
	}
	return auth.VerifyPasscode(passcode, cred.Salt, cred.PasscodeHash), nil
}

// CheckPasscode is PasscodeValid as an authentication error.
func (g *Guard) CheckPasscode(ctx context.Context, tenant, passcode string) error {
	ok, err := g.PasscodeValid(ctx, tenant, passcode)
	if err != nil {
		return err
	}
	if !ok {
		return stderrors.NewAuthenticationError("Invalid credentials")
	}
	return nil
}

// Identify verifies a Google access token.
func (g *Guard) Identify(ctx context.Context, accessToken string) (*auth.Identity, error) {
	id, err := g.identities.Verify(ctx, accessToken)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingUserID):
		return nil, stderrors.NewAuthenticationError(fmt.Sprintf("Google authentication failed: %v", err))
	default:
		g.logger.Warn("google token verification failed", map[string]interface{}{"error": err.Error()})
		return nil, stderrors.NewIdentityProviderError(err)
	}
}

// PermissionsFor returns the grant of email on tenant. Explicit permissions
// win over a scope list; neither means no access.
func (g *Guard) PermissionsFor(ctx context.Context, tenant, email string) (repository.Permissions, error) {
	if email == "" || tenant == "" {
		return repository.Permissions{}, nil
	}

	p, err := g.permissions.GetPermissions(ctx, tenant, email)
	if err == nil {
		return *p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return repository.Permissions{}, stderrors.NewQueryExecutionFailedError("get_permissions", err)
	}

	scopes, err := g.permissions.GetScopes(ctx, tenant, email)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Permissions{}, nil
	}
	if err != nil {
		return repository.Permissions{}, stderrors.NewQueryExecutionFailedError("get_scopes", err)
	}
	return repository.PermissionsFromScopes(scopes), nil
}

// Allows reports whether p covers scope. Admin implies write and write
// implies read.
func Allows(p repository.Permissions, scope string) bool {
	switch scope {
	case repository.ScopeRead:
		return p.Read || p.Write || p.Admin
	case repository.ScopeWrite:
		return p.Write || p.Admin
	case repository.ScopeAdmin:
		return p.Admin
	}
	return false
}

// RequireScope verifies accessToken and checks its holder has scope on tenant.
func (g *Guard) RequireScope(ctx context.Context, accessToken, tenant, scope string) (*auth.Identity, error) {
	id, err := g.Identify(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	p, err := g.PermissionsFor(ctx, tenant, id.Email)
	if err != nil {
		return nil, err
	}
	if !Allows(p, scope) {
		return nil, stderrors.NewForbiddenError(fmt.Sprintf("User does not have %s permission for tenant %s", scope, tenant))
	}
	return id, nil
}

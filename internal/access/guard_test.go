package access

import (
	"context"
	"errors"
	"testing"

	"schema-host/internal/common/auth"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCredentials struct{ mock.Mock }

func (m *mockCredentials) GetCredential(ctx context.Context, id, kind string) (*repository.Credential, error) {
	args := m.Called(ctx, id, kind)
	c, _ := args.Get(0).(*repository.Credential)
	return c, args.Error(1)
}

type mockPermissions struct{ mock.Mock }

func (m *mockPermissions) GetPermissions(ctx context.Context, tenant, email string) (*repository.Permissions, error) {
	args := m.Called(ctx, tenant, email)
	p, _ := args.Get(0).(*repository.Permissions)
	return p, args.Error(1)
}

func (m *mockPermissions) GetScopes(ctx context.Context, tenant, email string) ([]string, error) {
	args := m.Called(ctx, tenant, email)
	s, _ := args.Get(0).([]string)
	return s, args.Error(1)
}

type stubVerifier struct {
	id  *auth.Identity
	err error
}

func (s stubVerifier) Verify(context.Context, string) (*auth.Identity, error) { return s.id, s.err }

func code(t *testing.T, err error) stderrors.ErrorCode {
	t.Helper()
	stdErr, ok := stderrors.As(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	return stdErr.Code
}

func TestGuard_CheckPasscode(t *testing.T) {
	creds := &mockCredentials{}
	creds.On("GetCredential", mock.Anything, "acme", repository.KindTenant).
		Return(&repository.Credential{Salt: "salt", PasscodeHash: auth.HashPasscode("s3cret", "salt")}, nil)
	creds.On("GetCredential", mock.Anything, "ghost", repository.KindTenant).Return(nil, repository.ErrNotFound)
	creds.On("GetCredential", mock.Anything, "broken", repository.KindTenant).Return(nil, errors.New("conn reset"))

	g := NewGuard(creds, &mockPermissions{}, stubVerifier{}, logger.NewTestLogger(t))
	ctx := context.Background()

	assert.NoError(t, g.CheckPasscode(ctx, "acme", "s3cret"))
	assert.Equal(t, stderrors.ErrCodeAuthenticationFailed, code(t, g.CheckPasscode(ctx, "acme", "wrong")))
	assert.Equal(t, stderrors.ErrCodeAuthenticationFailed, code(t, g.CheckPasscode(ctx, "ghost", "s3cret")))
	assert.Equal(t, stderrors.ErrCodeAuthenticationFailed, code(t, g.CheckPasscode(ctx, "acme", "")))
	assert.Equal(t, stderrors.ErrCodeQueryExecutionFailed, code(t, g.CheckPasscode(ctx, "broken", "x")))
}

func TestGuard_Identify(t *testing.T) {
	ctx := context.Background()

	g := NewGuard(nil, nil, stubVerifier{err: auth.ErrInvalidToken}, logger.NewTestLogger(t))
	_, err := g.Identify(ctx, "tok")
	assert.Equal(t, stderrors.ErrCodeAuthenticationFailed, code(t, err))

	g = NewGuard(nil, nil, stubVerifier{err: errors.New("dial tcp: timeout")}, logger.NewTestLogger(t))
	_, err = g.Identify(ctx, "tok")
	assert.Equal(t, stderrors.ErrCodeIdentityProviderFailed, code(t, err))
}

func TestGuard_PermissionsFor(t *testing.T) {
	perms := &mockPermissions{}
	perms.On("GetPermissions", mock.Anything, "acme", "admin@acme.io").
		Return(&repository.Permissions{Read: true, Admin: true}, nil)
	perms.On("GetPermissions", mock.Anything, "acme", "dev@acme.io").Return(nil, repository.ErrNotFound)
	perms.On("GetScopes", mock.Anything, "acme", "dev@acme.io").Return([]string{"read", "write"}, nil)
	perms.On("GetPermissions", mock.Anything, "acme", "nobody@acme.io").Return(nil, repository.ErrNotFound)
	perms.On("GetScopes", mock.Anything, "acme", "nobody@acme.io").Return(nil, repository.ErrNotFound)

	g := NewGuard(nil, perms, nil, logger.NewTestLogger(t))
	ctx := context.Background()

	p, err := g.PermissionsFor(ctx, "acme", "admin@acme.io")
	require.NoError(t, err)
	assert.Equal(t, repository.Permissions{Read: true, Admin: true}, p)

	p, err = g.PermissionsFor(ctx, "acme", "dev@acme.io")
	require.NoError(t, err)
	assert.Equal(t, repository.Permissions{Read: true, Write: true}, p)

	p, err = g.PermissionsFor(ctx, "acme", "nobody@acme.io")
	require.NoError(t, err)
	assert.Equal(t, repository.Permissions{}, p)
}

func TestAllows(t *testing.T) {
	admin := repository.Permissions{Admin: true}
	writer := repository.Permissions{Write: true}
	reader := repository.Permissions{Read: true}

	assert.True(t, Allows(admin, repository.ScopeWrite))
	assert.True(t, Allows(writer, repository.ScopeRead))
	assert.False(t, Allows(writer, repository.ScopeAdmin))
	assert.False(t, Allows(reader, repository.ScopeWrite))
	assert.False(t, Allows(admin, "billing"))
}

func TestGuard_RequireScope(t *testing.T) {
	perms := &mockPermissions{}
	perms.On("GetPermissions", mock.Anything, "acme", "dev@acme.io").
		Return(&repository.Permissions{Read: true}, nil)

	g := NewGuard(nil, perms, stubVerifier{id: &auth.Identity{GoogleUserID: "g-1", Email: "dev@acme.io"}}, logger.NewTestLogger(t))

	id, err := g.RequireScope(context.Background(), "tok", "acme", repository.ScopeRead)
	require.NoError(t, err)
	assert.Equal(t, "g-1", id.GoogleUserID)

	_, err = g.RequireScope(context.Background(), "tok", "acme", repository.ScopeWrite)
	assert.Equal(t, stderrors.ErrCodeForbidden, code(t, err))
}

package accountstatus

import (
	"context"
	"errors"
	"testing"
	"time"

	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccounts struct{ mock.Mock }

func (m *MockAccounts) GetBillingAccount(ctx context.Context, email string) (*repository.BillingAccount, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.BillingAccount), args.Error(1)
}

func TestExecute_Found(t *testing.T) {
	accounts := &MockAccounts{}
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accounts.On("GetBillingAccount", mock.Anything, "owner@acme.io").Return(&repository.BillingAccount{
		UserEmail:            "owner@acme.io",
		TokenBalance:         -3,
		TotalTokensPurchased: 100,
		AccountStatus:        "active",
		LastActivity:         seen,
	}, nil)

	out, err := NewHandler(accounts, logger.NewTestLogger(t)).Execute(context.Background(), &Input{UserEmail: "owner@acme.io"})
	require.NoError(t, err)
	assert.Equal(t, &Output{
		Message:              "User account status retrieved successfully",
		UserEmail:            "owner@acme.io",
		TokenBalance:         -3,
		TotalTokensPurchased: 100,
		AccountStatus:        "active",
		ManagedTenants:       []string{},
		LastActivity:         seen,
	}, out)
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name  string
		email string
		err   error
		want  stderrors.ErrorCode
	}{
		{"missing email", "", nil, stderrors.ErrCodeInvalidRequest},
		{"unknown user", "ghost@acme.io", repository.ErrNotFound, stderrors.ErrCodeResourceNotFound},
		{"store failure", "owner@acme.io", errors.New("conn refused"), stderrors.ErrCodeQueryExecutionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &MockAccounts{}
			accounts.On("GetBillingAccount", mock.Anything, tt.email).Return(nil, tt.err).Maybe()

			_, err := NewHandler(accounts, logger.NewTestLogger(t)).Execute(context.Background(), &Input{UserEmail: tt.email})
			stdErr, ok := stderrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, stdErr.Code)
		})
	}
}

package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/payments"
	"github.com/contracthub/backend/internal/pkg/apperror"
	"github.com/contracthub/backend/internal/repository"
)

type mockPayoutAccountStore struct {
	mock.Mock
}

func (m *mockPayoutAccountStore) Upsert(ctx context.Context, a *models.PayoutAccount) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockPayoutAccountStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PayoutAccount), args.Error(1)
}

func TestKYCService_Onboard_Success(t *testing.T) {
	accounts := new(mockPayoutAccountStore)
	users := new(mockUserStore)
	processor := new(mockProcessor)
	svc := NewKYCService(accounts, users, processor)
	ctx := context.Background()
	userID := uuid.New()

	users.On("GetByID", ctx, userID).Return(&models.User{
		ID: userID, Email: "dev@example.com", VerificationLevel: models.VerificationLevelNone,
	}, nil)
	accounts.On("GetByUserID", ctx, userID).Return(nil, repository.ErrPayoutAccountNotFound)
	processor.On("CreateConnectedAccount", ctx, "dev@example.com").Return(&payments.ConnectedAccount{
		ID: "acct_new", OnboardingURL: "https://connect.example/acct_new",
	}, nil)
	accounts.On("Upsert", ctx, mock.MatchedBy(func(a *models.PayoutAccount) bool {
		return a.UserID == userID && a.ExternalAccountID == "acct_new"
	})).Return(nil)
	users.On("UpdateVerificationLevel", ctx, userID, models.VerificationLevelBasic).Return(nil)

	url, err := svc.Onboard(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, "https://connect.example/acct_new", url)
	accounts.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestKYCService_Onboard_AlreadyConnected(t *testing.T) {
	accounts := new(mockPayoutAccountStore)
	users := new(mockUserStore)
	processor := new(mockProcessor)
	svc := NewKYCService(accounts, users, processor)
	ctx := context.Background()
	userID := uuid.New()

	users.On("GetByID", ctx, userID).Return(&models.User{ID: userID, Email: "dev@example.com"}, nil)
	accounts.On("GetByUserID", ctx, userID).Return(&models.PayoutAccount{
		UserID: userID, ExternalAccountID: "acct_old",
	}, nil)

	_, err := svc.Onboard(ctx, userID)
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
	processor.AssertNotCalled(t, "CreateConnectedAccount", mock.Anything, mock.Anything)
}

func TestKYCService_Gate_Allowed(t *testing.T) {
	accounts := new(mockPayoutAccountStore)
	users := new(mockUserStore)
	processor := new(mockProcessor)
	svc := NewKYCService(accounts, users, processor)
	ctx := context.Background()
	userID := uuid.New()

	accounts.On("GetByUserID", ctx, userID).Return(&models.PayoutAccount{
		UserID: userID, ExternalAccountID: "acct_1",
	}, nil)
	processor.On("GetConnectedAccountStatus", ctx, "acct_1").Return(&payments.AccountStatus{
		AccountID: "acct_1", TransfersActive: true, PayoutsEnabled: true,
	}, nil)
	accounts.On("Upsert", ctx, mock.Anything).Return(nil)
	users.On("UpdateVerificationLevel", ctx, userID, models.VerificationLevelEnhanced).Return(nil)

	result, err := svc.Gate(ctx, userID)
	assert.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "acct_1", result.AccountID)
	users.AssertExpectations(t)
}

func TestKYCService_Gate_DeniedWithRequirements(t *testing.T) {
	accounts := new(mockPayoutAccountStore)
	users := new(mockUserStore)
	processor := new(mockProcessor)
	svc := NewKYCService(accounts, users, processor)
	ctx := context.Background()
	userID := uuid.New()

	accounts.On("GetByUserID", ctx, userID).Return(&models.PayoutAccount{
		UserID: userID, ExternalAccountID: "acct_1",
	}, nil)
	processor.On("GetConnectedAccountStatus", ctx, "acct_1").Return(&payments.AccountStatus{
		AccountID:                "acct_1",
		TransfersActive:          false,
		PayoutsEnabled:           true,
		RequirementsCurrentlyDue: []string{"individual.id_number"},
		DisabledReason:           "requirements.pending_verification",
	}, nil)
	accounts.On("Upsert", ctx, mock.Anything).Return(nil)

	_, err := svc.Gate(ctx, userID)
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeKYCNotVerified, appErr.Code)

	details, ok := appErr.Details.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, false, details["transfers_active"])
	assert.Equal(t, []string{"individual.id_number"}, details["requirements_currently_due"])
	users.AssertNotCalled(t, "UpdateVerificationLevel", mock.Anything, mock.Anything, mock.Anything)
}

func TestKYCService_Gate_NoAccount(t *testing.T) {
	accounts := new(mockPayoutAccountStore)
	svc := NewKYCService(accounts, new(mockUserStore), new(mockProcessor))
	ctx := context.Background()
	userID := uuid.New()

	accounts.On("GetByUserID", ctx, userID).Return(nil, repository.ErrPayoutAccountNotFound)

	_, err := svc.Gate(ctx, userID)
	assert.ErrorIs(t, err, apperror.ErrPayoutMissing)
}

func TestKYCService_Gate_StaleSnapshotIgnored(t *testing.T) {
	// Снимок говорит "можно", живой ответ процессора — "нельзя".
	// Решение принимается по живому ответу.
	accounts := new(mockPayoutAccountStore)
	users := new(mockUserStore)
	processor := new(mockProcessor)
	svc := NewKYCService(accounts, users, processor)
	ctx := context.Background()
	userID := uuid.New()

	accounts.On("GetByUserID", ctx, userID).Return(&models.PayoutAccount{
		UserID: userID, ExternalAccountID: "acct_1",
		TransfersActive: true, PayoutsEnabled: true,
	}, nil)
	processor.On("GetConnectedAccountStatus", ctx, "acct_1").Return(&payments.AccountStatus{
		AccountID: "acct_1", TransfersActive: false, PayoutsEnabled: false,
	}, nil)
	accounts.On("Upsert", ctx, mock.Anything).Return(nil)

	_, err := svc.Gate(ctx, userID)
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeKYCNotVerified, appErr.Code)
}

func TestKYCService_CheckWithdrawalEligibility(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		amount   float64
		eligible bool
		required string
	}{
		{"базовый уровень, малая сумма", models.VerificationLevelBasic, 500, true, models.VerificationLevelBasic},
		{"базовый уровень, крупная сумма", models.VerificationLevelBasic, 1500, false, models.VerificationLevelEnhanced},
		{"enhanced, крупная сумма", models.VerificationLevelEnhanced, 5000, true, models.VerificationLevelEnhanced},
		{"без верификации", models.VerificationLevelNone, 100, false, models.VerificationLevelBasic},
		{"ровно 1000 достаточно basic", models.VerificationLevelBasic, 1000, true, models.VerificationLevelBasic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(mockUserStore)
			svc := NewKYCService(new(mockPayoutAccountStore), users, new(mockProcessor))
			ctx := context.Background()
			userID := uuid.New()

			users.On("GetByID", ctx, userID).Return(&models.User{
				ID: userID, VerificationLevel: tt.level,
			}, nil)

			got, err := svc.CheckWithdrawalEligibility(ctx, userID, tt.amount)
			assert.NoError(t, err)
			assert.Equal(t, tt.eligible, got.Eligible)
			assert.Equal(t, tt.required, got.RequiredVerification)
		})
	}
}

package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/pkg/apperror"
)

type mockWithdrawalStore struct {
	mock.Mock
}

func (m *mockWithdrawalStore) Create(ctx context.Context, userID uuid.UUID, amount float64, destinationLast4, bankName *string) (*models.Withdrawal, error) {
	args := m.Called(ctx, userID, amount, destinationLast4, bankName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string, rejectionReason *string) error {
	args := m.Called(ctx, id, status, rejectionReason)
	return args.Error(0)
}

type mockEligibilityChecker struct {
	mock.Mock
}

func (m *mockEligibilityChecker) CheckWithdrawalEligibility(ctx context.Context, userID uuid.UUID, amount float64) (*models.WithdrawalEligibility, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalEligibility), args.Error(1)
}

func TestRequestWithdrawal_Success(t *testing.T) {
	store := new(mockWithdrawalStore)
	checker := new(mockEligibilityChecker)
	svc := NewWithdrawalService(store, checker, new(mockUserStore))

	userID := uuid.New()
	last4 := "4242"
	bank := "Tinkoff"

	checker.On("CheckWithdrawalEligibility", mock.Anything, userID, 500.0).Return(&models.WithdrawalEligibility{
		Eligible:             true,
		CurrentVerification:  models.VerificationLevelBasic,
		RequiredVerification: models.VerificationLevelBasic,
	}, nil)
	store.On("Create", mock.Anything, userID, 500.0, &last4, &bank).Return(&models.Withdrawal{
		ID:     uuid.New(),
		UserID: userID,
		Amount: 500,
		Status: models.WithdrawalStatusPending,
	}, nil)

	withdrawal, err := svc.RequestWithdrawal(context.Background(), RequestWithdrawalInput{
		UserID:           userID,
		Amount:           500,
		DestinationLast4: &last4,
		BankName:         &bank,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, withdrawal.Status)
	store.AssertExpectations(t)
}

func TestRequestWithdrawal_InsufficientVerification(t *testing.T) {
	store := new(mockWithdrawalStore)
	checker := new(mockEligibilityChecker)
	svc := NewWithdrawalService(store, checker, new(mockUserStore))

	userID := uuid.New()
	checker.On("CheckWithdrawalEligibility", mock.Anything, userID, 5000.0).Return(&models.WithdrawalEligibility{
		Eligible:             false,
		CurrentVerification:  models.VerificationLevelBasic,
		RequiredVerification: models.VerificationLevelEnhanced,
	}, nil)

	_, err := svc.RequestWithdrawal(context.Background(), RequestWithdrawalInput{
		UserID: userID,
		Amount: 5000,
	})

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeForbidden, appErr.Code)
	assert.NotNil(t, appErr.Details)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestWithdrawal_NegativeAmount(t *testing.T) {
	checker := new(mockEligibilityChecker)
	svc := NewWithdrawalService(new(mockWithdrawalStore), checker, new(mockUserStore))

	_, err := svc.RequestWithdrawal(context.Background(), RequestWithdrawalInput{
		UserID: uuid.New(),
		Amount: -10,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	checker.AssertNotCalled(t, "CheckWithdrawalEligibility", mock.Anything, mock.Anything, mock.Anything)
}

func TestListWithdrawals_ClampsPagination(t *testing.T) {
	store := new(mockWithdrawalStore)
	svc := NewWithdrawalService(store, new(mockEligibilityChecker), new(mockUserStore))

	userID := uuid.New()
	store.On("ListByUser", mock.Anything, userID, 20, 0).Return([]models.Withdrawal{}, nil)

	_, err := svc.ListWithdrawals(context.Background(), userID, 0, -1)

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

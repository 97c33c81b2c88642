package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/pkg/apperror"
	"github.com/contracthub/backend/internal/repository"
)

type mockDisputeStore struct {
	mock.Mock
}

func (m *mockDisputeStore) Create(ctx context.Context, d *models.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDisputeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) GetOpenByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) Resolve(ctx context.Context, id uuid.UUID, resolution string, resolvedBy uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id, resolution, resolvedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func TestOpenDispute_Success(t *testing.T) {
	store := new(mockDisputeStore)
	contracts := new(mockContractRepo)
	svc := NewDisputeService(store, contracts)

	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("active", clientID, freelancerID)

	contracts.On("GetWithParties", mock.Anything, cwp.ID).Return(cwp, nil)
	store.On("GetOpenByContract", mock.Anything, cwp.ID).Return(nil, repository.ErrDisputeNotFound)
	store.On("Create", mock.Anything, mock.MatchedBy(func(d *models.Dispute) bool {
		return d.ContractID == cwp.ID && d.InitiatedBy == clientID &&
			d.Type == models.DisputeTypeQuality && d.Status == models.DisputeStatusOpen
	})).Return(nil)
	contracts.On("UpdateStatus", mock.Anything, cwp.ID, "disputed").Return(nil)

	dispute, err := svc.OpenDispute(context.Background(), OpenDisputeInput{
		ContractID: cwp.ID,
		UserID:     clientID,
		Type:       models.DisputeTypeQuality,
		Reason:     "Результат не соответствует требованиям технического задания",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	store.AssertExpectations(t)
	contracts.AssertExpectations(t)
}

func TestOpenDispute_InvalidType(t *testing.T) {
	svc := NewDisputeService(new(mockDisputeStore), new(mockContractRepo))

	_, err := svc.OpenDispute(context.Background(), OpenDisputeInput{
		ContractID: uuid.New(),
		UserID:     uuid.New(),
		Type:       "vibes",
		Reason:     "Просто не нравится, как всё получилось в итоге",
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestOpenDispute_AlreadyOpen(t *testing.T) {
	store := new(mockDisputeStore)
	contracts := new(mockContractRepo)
	svc := NewDisputeService(store, contracts)

	clientID := uuid.New()
	cwp := testContract("active", clientID, uuid.New())

	contracts.On("GetWithParties", mock.Anything, cwp.ID).Return(cwp, nil)
	store.On("GetOpenByContract", mock.Anything, cwp.ID).Return(&models.Dispute{ID: uuid.New()}, nil)

	_, err := svc.OpenDispute(context.Background(), OpenDisputeInput{
		ContractID: cwp.ID,
		UserID:     clientID,
		Type:       models.DisputeTypePayment,
		Reason:     "Оплата этапа не поступила в оговорённый срок",
	})

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOpenDispute_DraftContract(t *testing.T) {
	store := new(mockDisputeStore)
	contracts := new(mockContractRepo)
	svc := NewDisputeService(store, contracts)

	clientID := uuid.New()
	cwp := testContract("draft", clientID, uuid.New())

	contracts.On("GetWithParties", mock.Anything, cwp.ID).Return(cwp, nil)
	store.On("GetOpenByContract", mock.Anything, cwp.ID).Return(nil, repository.ErrDisputeNotFound)

	_, err := svc.OpenDispute(context.Background(), OpenDisputeInput{
		ContractID: cwp.ID,
		UserID:     clientID,
		Type:       models.DisputeTypeOther,
		Reason:     "Черновик контракта содержит заведомо невыполнимые условия",
	})

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, appErr.Code)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOpenDispute_Outsider(t *testing.T) {
	store := new(mockDisputeStore)
	contracts := new(mockContractRepo)
	svc := NewDisputeService(store, contracts)

	cwp := testContract("active", uuid.New(), uuid.New())
	contracts.On("GetWithParties", mock.Anything, cwp.ID).Return(cwp, nil)

	_, err := svc.OpenDispute(context.Background(), OpenDisputeInput{
		ContractID: cwp.ID,
		UserID:     uuid.New(),
		Type:       models.DisputeTypeQuality,
		Reason:     "Хочу пожаловаться на работу по чужому контракту",
	})

	assert.ErrorIs(t, err, apperror.ErrAccessDenied)
}

func TestResolveDispute_ReturnsContractToActive(t *testing.T) {
	store := new(mockDisputeStore)
	contracts := new(mockContractRepo)
	svc := NewDisputeService(store, contracts)

	clientID := uuid.New()
	cwp := testContract("disputed", clientID, uuid.New())
	disputeID := uuid.New()

	open := &models.Dispute{
		ID:          disputeID,
		ContractID:  cwp.ID,
		InitiatedBy: clientID,
		Type:        models.DisputeTypeQuality,
		Status:      models.DisputeStatusOpen,
	}
	resolution := "Стороны договорились продолжить работу после доработки макетов"
	now := time.Now()
	resolved := &models.Dispute{
		ID:         disputeID,
		ContractID: cwp.ID,
		Status:     models.DisputeStatusResolved,
		Resolution: &resolution,
		ResolvedBy: &clientID,
		ResolvedAt: &now,
	}

	store.On("GetByID", mock.Anything, disputeID).Return(open, nil)
	contracts.On("GetWithParties", mock.Anything, cwp.ID).Return(cwp, nil)
	store.On("Resolve", mock.Anything, disputeID, resolution, clientID).Return(resolved, nil)
	contracts.On("UpdateStatus", mock.Anything, cwp.ID, "active").Return(nil)

	result, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		DisputeID:  disputeID,
		ResolvedBy: clientID,
		Resolution: resolution,
		NextStatus: "active",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, result.Status)
	contracts.AssertExpectations(t)
}

func TestResolveDispute_CompletedUsesMarkCompleted(t *testing.T) {
	store := new(mockDisputeStore)
	contracts := new(mockContractRepo)
	svc := NewDisputeService(store, contracts)

	clientID := uuid.New()
	cwp := testContract("disputed", clientID, uuid.New())
	disputeID := uuid.New()
	resolution := "Работа принята в текущем виде, контракт закрывается"

	store.On("GetByID", mock.Anything, disputeID).Return(&models.Dispute{
		ID:         disputeID,
		ContractID: cwp.ID,
		Status:     models.DisputeStatusOpen,
	}, nil)
	contracts.On("GetWithParties", mock.Anything, cwp.ID).Return(cwp, nil)
	store.On("Resolve", mock.Anything, disputeID, resolution, clientID).Return(&models.Dispute{
		ID:     disputeID,
		Status: models.DisputeStatusResolved,
	}, nil)
	contracts.On("MarkCompleted", mock.Anything, cwp.ID).Return(nil)

	_, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		DisputeID:  disputeID,
		ResolvedBy: clientID,
		Resolution: resolution,
		NextStatus: "completed",
	})

	assert.NoError(t, err)
	contracts.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	contracts.AssertExpectations(t)
}

func TestResolveDispute_AlreadyResolved(t *testing.T) {
	store := new(mockDisputeStore)
	contracts := new(mockContractRepo)
	svc := NewDisputeService(store, contracts)

	disputeID := uuid.New()
	store.On("GetByID", mock.Anything, disputeID).Return(&models.Dispute{
		ID:     disputeID,
		Status: models.DisputeStatusResolved,
	}, nil)

	_, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		DisputeID:  disputeID,
		ResolvedBy: uuid.New(),
		Resolution: "Повторная попытка закрыть уже разрешённый спор",
		NextStatus: "active",
	})

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
	store.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveDispute_InvalidNextStatus(t *testing.T) {
	store := new(mockDisputeStore)
	contracts := new(mockContractRepo)
	svc := NewDisputeService(store, contracts)

	clientID := uuid.New()
	cwp := testContract("disputed", clientID, uuid.New())
	disputeID := uuid.New()

	store.On("GetByID", mock.Anything, disputeID).Return(&models.Dispute{
		ID:         disputeID,
		ContractID: cwp.ID,
		Status:     models.DisputeStatusOpen,
	}, nil)
	contracts.On("GetWithParties", mock.Anything, cwp.ID).Return(cwp, nil)

	_, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		DisputeID:  disputeID,
		ResolvedBy: clientID,
		Resolution: "Переводим контракт в несуществующее состояние",
		NextStatus: "frozen",
	})

	assert.Error(t, err)
	store.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListUserDisputes_ClampsPagination(t *testing.T) {
	store := new(mockDisputeStore)
	svc := NewDisputeService(store, new(mockContractRepo))

	userID := uuid.New()
	store.On("ListByUser", mock.Anything, userID, 20, 0).Return([]models.Dispute{}, nil)

	_, err := svc.ListUserDisputes(context.Background(), userID, 1000, -5)

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

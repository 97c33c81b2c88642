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

type mockContractStore struct {
	mock.Mock
}

func (m *mockContractStore) GetWithParties(ctx context.Context, id uuid.UUID) (*models.ContractWithParties, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContractWithParties), args.Error(1)
}

func (m *mockContractStore) GetMilestoneByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Milestone), args.Error(1)
}

func (m *mockContractStore) MarkFunded(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockContractStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockContractStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type mockEscrowStore struct {
	mock.Mock
}

func (m *mockEscrowStore) Create(ctx context.Context, e *models.EscrowEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockEscrowStore) GetBySessionRef(ctx context.Context, sessionRef string) (*models.EscrowEntry, error) {
	args := m.Called(ctx, sessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowEntry), args.Error(1)
}

func (m *mockEscrowStore) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.EscrowEntry, error) {
	args := m.Called(ctx, contractID)
	return args.Get(0).([]models.EscrowEntry), args.Error(1)
}

func (m *mockEscrowStore) MarkHeld(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockEscrowStore) FindHeld(ctx context.Context, contractID uuid.UUID, milestoneID *uuid.UUID) (*models.EscrowEntry, error) {
	args := m.Called(ctx, contractID, milestoneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowEntry), args.Error(1)
}

func (m *mockEscrowStore) Release(ctx context.Context, id uuid.UUID, amount float64) (*models.EscrowEntry, error) {
	args := m.Called(ctx, id, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowEntry), args.Error(1)
}

func (m *mockEscrowStore) RevertRelease(ctx context.Context, id uuid.UUID, amount float64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *mockEscrowStore) SetTransferRef(ctx context.Context, id uuid.UUID, transferRef string) error {
	args := m.Called(ctx, id, transferRef)
	return args.Error(0)
}

func (m *mockEscrowStore) CountOutstanding(ctx context.Context, contractID uuid.UUID) (int, error) {
	args := m.Called(ctx, contractID)
	return args.Int(0), args.Error(1)
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserStore) UpdateVerificationLevel(ctx context.Context, userID uuid.UUID, level string) error {
	args := m.Called(ctx, userID, level)
	return args.Error(0)
}

func (m *mockUserStore) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserBalance), args.Error(1)
}

type mockPayoutGate struct {
	mock.Mock
}

func (m *mockPayoutGate) Gate(ctx context.Context, userID uuid.UUID) (*GateResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GateResult), args.Error(1)
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) CreateFundingSession(ctx context.Context, in payments.CreateFundingSessionInput) (*payments.FundingSession, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.FundingSession), args.Error(1)
}

func (m *mockProcessor) GetFundingSession(ctx context.Context, sessionID string) (*payments.FundingSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.FundingSession), args.Error(1)
}

func (m *mockProcessor) TransferFunds(ctx context.Context, in payments.TransferInput) (*payments.Transfer, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Transfer), args.Error(1)
}

func (m *mockProcessor) GetConnectedAccountStatus(ctx context.Context, accountID string) (*payments.AccountStatus, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.AccountStatus), args.Error(1)
}

func (m *mockProcessor) CreateConnectedAccount(ctx context.Context, email string) (*payments.ConnectedAccount, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.ConnectedAccount), args.Error(1)
}

// testContract собирает контракт с клиентом и фрилансером в нужном статусе.
func testContract(status string, clientID, freelancerID uuid.UUID) *models.ContractWithParties {
	contractID := uuid.New()
	return &models.ContractWithParties{
		Contract: models.Contract{
			ID:          contractID,
			CreatorID:   clientID,
			Title:       "Редизайн сайта",
			TotalAmount: 1000,
			Currency:    "usd",
			Type:        models.ContractTypeFixed,
			Status:      status,
		},
		Parties: []models.ContractParty{
			{ContractID: contractID, UserID: clientID, Role: models.PartyRoleClient, Status: models.PartyStatusSigned},
			{ContractID: contractID, UserID: freelancerID, Role: models.PartyRoleFreelancer, Status: models.PartyStatusSigned},
		},
	}
}

func newEscrowFixture() (*mockContractStore, *mockEscrowStore, *mockUserStore, *mockPayoutGate, *mockProcessor, *EscrowService) {
	contracts := new(mockContractStore)
	ledger := new(mockEscrowStore)
	users := new(mockUserStore)
	gate := new(mockPayoutGate)
	processor := new(mockProcessor)
	svc := NewEscrowService(contracts, ledger, users, gate, processor)
	return contracts, ledger, users, gate, processor, svc
}

func TestEscrowService_FundEscrow_Success(t *testing.T) {
	contracts, ledger, users, _, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("pending_funding", clientID, freelancerID)

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	users.On("GetByID", ctx, clientID).Return(&models.User{ID: clientID, SubscriptionTier: models.SubscriptionTierFree}, nil)
	processor.On("CreateFundingSession", ctx, mock.MatchedBy(func(in payments.CreateFundingSessionInput) bool {
		// 1000 + 100 (free 10%) + (1100*0.029 + 0.30) = 1132.20
		return in.AmountMinor == int64(113220) && in.Metadata["contract_id"] == cwp.ID.String()
	})).Return(&payments.FundingSession{ID: "cs_test_1", URL: "https://pay.example/cs_test_1", Status: payments.SessionStatusOpen}, nil)
	ledger.On("Create", ctx, mock.AnythingOfType("*models.EscrowEntry")).Return(nil)

	result, err := svc.FundEscrow(ctx, FundEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.NoError(t, err)
	assert.Equal(t, "https://pay.example/cs_test_1", result.CheckoutURL)
	assert.InDelta(t, 100.0, result.PlatformFee, 0.001)
	assert.InDelta(t, 32.2, result.ProcessorFee, 0.001)
	assert.InDelta(t, 1132.2, result.TotalCharge, 0.001)
	assert.Equal(t, clientID, result.Entry.PayerID)
	assert.Equal(t, freelancerID, result.Entry.PayeeID)
	contracts.AssertExpectations(t)
	ledger.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestEscrowService_FundEscrow_ProfessionalTier(t *testing.T) {
	contracts, ledger, users, _, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	cwp := testContract("pending_funding", clientID, uuid.New())

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	users.On("GetByID", ctx, clientID).Return(&models.User{ID: clientID, SubscriptionTier: models.SubscriptionTierProfessional}, nil)
	processor.On("CreateFundingSession", ctx, mock.MatchedBy(func(in payments.CreateFundingSessionInput) bool {
		// 1000 + 75 (7.5%) + (1075*0.029 + 0.30) = 1106.475 → 1106.48
		return in.AmountMinor == int64(110648)
	})).Return(&payments.FundingSession{ID: "cs_test_2", URL: "https://pay.example/cs_test_2"}, nil)
	ledger.On("Create", ctx, mock.AnythingOfType("*models.EscrowEntry")).Return(nil)

	result, err := svc.FundEscrow(ctx, FundEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.NoError(t, err)
	assert.InDelta(t, 75.0, result.PlatformFee, 0.001)
	processor.AssertExpectations(t)
}

func TestEscrowService_FundEscrow_WrongStatus(t *testing.T) {
	contracts, _, _, _, _, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	cwp := testContract("draft", clientID, uuid.New())

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)

	_, err := svc.FundEscrow(ctx, FundEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, appErr.Code)
}

func TestEscrowService_FundEscrow_AlreadyFunded(t *testing.T) {
	contracts, _, _, _, _, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	cwp := testContract("pending_funding", clientID, uuid.New())
	cwp.IsFunded = true

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)

	_, err := svc.FundEscrow(ctx, FundEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.ErrorIs(t, err, apperror.ErrAlreadyFunded)
}

func TestEscrowService_FundEscrow_FreelancerForbidden(t *testing.T) {
	contracts, _, _, _, _, svc := newEscrowFixture()
	ctx := context.Background()
	freelancerID := uuid.New()
	cwp := testContract("pending_funding", uuid.New(), freelancerID)

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)

	_, err := svc.FundEscrow(ctx, FundEscrowInput{ContractID: cwp.ID, UserID: freelancerID})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "client")
}

func TestEscrowService_ConfirmFunding_ActivatesContract(t *testing.T) {
	contracts, ledger, _, _, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	cwp := testContract("pending_funding", clientID, uuid.New())
	entryID := uuid.New()
	sessionRef := "cs_test_3"
	entry := &models.EscrowEntry{ID: entryID, ContractID: cwp.ID, Amount: 1000, Status: models.EscrowStatusPending, SessionRef: &sessionRef}
	heldEntry := &models.EscrowEntry{ID: entryID, ContractID: cwp.ID, Amount: 1000, Status: models.EscrowStatusHeld, SessionRef: &sessionRef}

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	ledger.On("GetBySessionRef", ctx, sessionRef).Return(entry, nil).Once()
	processor.On("GetFundingSession", ctx, sessionRef).Return(&payments.FundingSession{ID: sessionRef, Status: payments.SessionStatusPaid}, nil)
	ledger.On("MarkHeld", ctx, entryID).Return(true, nil)
	contracts.On("MarkFunded", ctx, cwp.ID).Return(true, nil)
	contracts.On("UpdateStatus", ctx, cwp.ID, "active").Return(nil)
	ledger.On("GetBySessionRef", ctx, sessionRef).Return(heldEntry, nil).Once()

	got, err := svc.ConfirmFunding(ctx, cwp.ID, clientID, sessionRef)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusHeld, got.Status)
	contracts.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestEscrowService_ConfirmFunding_UnpaidSession(t *testing.T) {
	contracts, ledger, _, _, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	cwp := testContract("pending_funding", clientID, uuid.New())
	sessionRef := "cs_test_4"
	entry := &models.EscrowEntry{ID: uuid.New(), ContractID: cwp.ID, Status: models.EscrowStatusPending}

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	ledger.On("GetBySessionRef", ctx, sessionRef).Return(entry, nil)
	processor.On("GetFundingSession", ctx, sessionRef).Return(&payments.FundingSession{ID: sessionRef, Status: payments.SessionStatusOpen}, nil)

	_, err := svc.ConfirmFunding(ctx, cwp.ID, clientID, sessionRef)
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodePaymentFailed, appErr.Code)
	contracts.AssertNotCalled(t, "MarkFunded", mock.Anything, mock.Anything)
}

func TestEscrowService_ConfirmFunding_Idempotent(t *testing.T) {
	contracts, ledger, _, _, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	cwp := testContract("active", clientID, uuid.New())
	cwp.IsFunded = true
	sessionRef := "cs_test_5"
	entry := &models.EscrowEntry{ID: uuid.New(), ContractID: cwp.ID, Status: models.EscrowStatusHeld}

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	ledger.On("GetBySessionRef", ctx, sessionRef).Return(entry, nil)
	processor.On("GetFundingSession", ctx, sessionRef).Return(&payments.FundingSession{ID: sessionRef, Status: payments.SessionStatusPaid}, nil)
	ledger.On("MarkHeld", ctx, entry.ID).Return(false, nil)

	got, err := svc.ConfirmFunding(ctx, cwp.ID, clientID, sessionRef)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusHeld, got.Status)
	contracts.AssertNotCalled(t, "MarkFunded", mock.Anything, mock.Anything)
	contracts.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_ConfirmFunding_SecondSessionOnFundedContract(t *testing.T) {
	contracts, ledger, _, _, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	cwp := testContract("active", clientID, uuid.New())
	cwp.IsFunded = true
	sessionRef := "cs_test_6"
	// Вторая сессия, созданная до подтверждения первой
	duplicate := &models.EscrowEntry{ID: uuid.New(), ContractID: cwp.ID, Amount: 1000, Status: models.EscrowStatusPending, SessionRef: &sessionRef}

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	ledger.On("GetBySessionRef", ctx, sessionRef).Return(duplicate, nil)

	_, err := svc.ConfirmFunding(ctx, cwp.ID, clientID, sessionRef)
	assert.ErrorIs(t, err, apperror.ErrAlreadyFunded)
	processor.AssertNotCalled(t, "GetFundingSession", mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "MarkHeld", mock.Anything, mock.Anything)
	contracts.AssertNotCalled(t, "MarkFunded", mock.Anything, mock.Anything)
}

func TestEscrowService_ReleaseEscrow_Success(t *testing.T) {
	contracts, ledger, _, gate, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("pending_completion", clientID, freelancerID)
	cwp.IsFunded = true
	entry := &models.EscrowEntry{ID: uuid.New(), ContractID: cwp.ID, PayeeID: freelancerID, Amount: 1000, Currency: "usd", Status: models.EscrowStatusHeld}
	released := &models.EscrowEntry{ID: entry.ID, ContractID: cwp.ID, PayeeID: freelancerID, Amount: 1000, ReleasedAmount: 1000, Currency: "usd", Status: models.EscrowStatusReleased}

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	gate.On("Gate", ctx, freelancerID).Return(&GateResult{AccountID: "acct_1", Allowed: true, TransfersActive: true, PayoutsEnabled: true}, nil)
	ledger.On("FindHeld", ctx, cwp.ID, (*uuid.UUID)(nil)).Return(entry, nil)
	ledger.On("Release", ctx, entry.ID, float64(1000)).Return(released, nil)
	processor.On("TransferFunds", ctx, mock.MatchedBy(func(in payments.TransferInput) bool {
		return in.AmountMinor == int64(100000) && in.Destination == "acct_1" &&
			in.TransferGroup == "contract_"+cwp.ID.String()
	})).Return(&payments.Transfer{ID: "tr_1", AmountMinor: 100000}, nil)
	ledger.On("SetTransferRef", ctx, entry.ID, "tr_1").Return(nil)
	ledger.On("CountOutstanding", ctx, cwp.ID).Return(0, nil)
	contracts.On("MarkCompleted", ctx, cwp.ID).Return(nil)

	got, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, got.Status)
	assert.NotNil(t, got.TransferRef)
	assert.Equal(t, "tr_1", *got.TransferRef)
	contracts.AssertExpectations(t)
	ledger.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestEscrowService_ReleaseEscrow_KYCDenied(t *testing.T) {
	contracts, ledger, _, gate, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("pending_completion", clientID, freelancerID)
	cwp.IsFunded = true

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	denied := apperror.New(apperror.ErrCodeKYCNotVerified, "счёт получателя не прошёл верификацию выплат").
		WithDetails(map[string]interface{}{"transfers_active": false})
	gate.On("Gate", ctx, freelancerID).Return(nil, denied)

	_, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeKYCNotVerified, appErr.Code)
	assert.NotNil(t, appErr.Details)
	ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	processor.AssertNotCalled(t, "TransferFunds", mock.Anything, mock.Anything)
}

func TestEscrowService_ReleaseEscrow_TransferDeclinedRevertsClaim(t *testing.T) {
	contracts, ledger, _, gate, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("pending_completion", clientID, freelancerID)
	cwp.IsFunded = true
	entry := &models.EscrowEntry{ID: uuid.New(), ContractID: cwp.ID, PayeeID: freelancerID, Amount: 1000, Currency: "usd", Status: models.EscrowStatusHeld}

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	gate.On("Gate", ctx, freelancerID).Return(&GateResult{AccountID: "acct_1", Allowed: true}, nil)
	ledger.On("FindHeld", ctx, cwp.ID, (*uuid.UUID)(nil)).Return(entry, nil)
	ledger.On("Release", ctx, entry.ID, float64(1000)).Return(entry, nil)
	processor.On("TransferFunds", ctx, mock.Anything).Return(nil, &payments.ProcessorError{
		StatusCode: 402, Code: "insufficient_capabilities", Message: "transfers are disabled for this account",
	})
	ledger.On("RevertRelease", ctx, entry.ID, float64(1000)).Return(nil)

	_, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodePaymentFailed, appErr.Code)
	assert.Contains(t, appErr.Message, "transfers are disabled")
	ledger.AssertCalled(t, "RevertRelease", ctx, entry.ID, float64(1000))
	ledger.AssertNotCalled(t, "SetTransferRef", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_ReleaseEscrow_NothingHeld(t *testing.T) {
	contracts, ledger, _, gate, _, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("pending_completion", clientID, freelancerID)
	cwp.IsFunded = true

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	gate.On("Gate", ctx, freelancerID).Return(&GateResult{AccountID: "acct_1", Allowed: true}, nil)
	ledger.On("FindHeld", ctx, cwp.ID, (*uuid.UUID)(nil)).Return(nil, repository.ErrEscrowNotFound)

	_, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.ErrorIs(t, err, apperror.ErrNoHeldEntries)
}

func TestEscrowService_ReleaseEscrow_ConcurrentClaimLoses(t *testing.T) {
	contracts, ledger, _, gate, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("pending_completion", clientID, freelancerID)
	cwp.IsFunded = true
	entry := &models.EscrowEntry{ID: uuid.New(), ContractID: cwp.ID, PayeeID: freelancerID, Amount: 1000, Currency: "usd", Status: models.EscrowStatusHeld}

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	gate.On("Gate", ctx, freelancerID).Return(&GateResult{AccountID: "acct_1", Allowed: true}, nil)
	ledger.On("FindHeld", ctx, cwp.ID, (*uuid.UUID)(nil)).Return(entry, nil)
	// Конкурентный release успел первым: условный UPDATE ничего не обновил
	ledger.On("Release", ctx, entry.ID, float64(1000)).Return(nil, repository.ErrNothingToRelease)

	_, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.ErrorIs(t, err, apperror.ErrNoHeldEntries)
	processor.AssertNotCalled(t, "TransferFunds", mock.Anything, mock.Anything)
}

func TestEscrowService_ReleaseEscrow_PartialAmount(t *testing.T) {
	contracts, ledger, _, gate, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("active", clientID, freelancerID)
	cwp.IsFunded = true
	entry := &models.EscrowEntry{ID: uuid.New(), ContractID: cwp.ID, PayeeID: freelancerID, Amount: 1000, Currency: "usd", Status: models.EscrowStatusHeld}
	partial := &models.EscrowEntry{ID: entry.ID, ContractID: cwp.ID, PayeeID: freelancerID, Amount: 1000, ReleasedAmount: 400, Currency: "usd", Status: models.EscrowStatusHeld}

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	gate.On("Gate", ctx, freelancerID).Return(&GateResult{AccountID: "acct_1", Allowed: true}, nil)
	ledger.On("FindHeld", ctx, cwp.ID, (*uuid.UUID)(nil)).Return(entry, nil)
	ledger.On("Release", ctx, entry.ID, float64(400)).Return(partial, nil)
	processor.On("TransferFunds", ctx, mock.MatchedBy(func(in payments.TransferInput) bool {
		return in.AmountMinor == int64(40000)
	})).Return(&payments.Transfer{ID: "tr_2"}, nil)
	ledger.On("SetTransferRef", ctx, entry.ID, "tr_2").Return(nil)
	ledger.On("CountOutstanding", ctx, cwp.ID).Return(1, nil)

	amount := 400.0
	got, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID, Amount: &amount})
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusHeld, got.Status)
	contracts.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
}

func TestEscrowService_ReleaseEscrow_AmountExceedsRemaining(t *testing.T) {
	contracts, ledger, _, gate, _, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("active", clientID, freelancerID)
	cwp.IsFunded = true
	entry := &models.EscrowEntry{ID: uuid.New(), ContractID: cwp.ID, PayeeID: freelancerID, Amount: 1000, ReleasedAmount: 800, Currency: "usd", Status: models.EscrowStatusHeld}

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)
	gate.On("Gate", ctx, freelancerID).Return(&GateResult{AccountID: "acct_1", Allowed: true}, nil)
	ledger.On("FindHeld", ctx, cwp.ID, (*uuid.UUID)(nil)).Return(entry, nil)

	amount := 500.0
	_, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID, Amount: &amount})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "превышает")
	ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_ReleaseEscrow_DisputedContract(t *testing.T) {
	contracts, ledger, _, gate, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	cwp := testContract("disputed", clientID, freelancerID)
	cwp.IsFunded = true

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)

	_, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, appErr.Code)
	gate.AssertNotCalled(t, "Gate", mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	processor.AssertNotCalled(t, "TransferFunds", mock.Anything, mock.Anything)
	contracts.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
}

func TestEscrowService_ReleaseEscrow_CancelledContract(t *testing.T) {
	contracts, ledger, _, _, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	cwp := testContract("cancelled", clientID, uuid.New())
	cwp.IsFunded = true

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)

	_, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, appErr.Code)
	ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	processor.AssertNotCalled(t, "TransferFunds", mock.Anything, mock.Anything)
}

func TestEscrowService_ReleaseEscrow_NotFunded(t *testing.T) {
	contracts, ledger, _, _, processor, svc := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	cwp := testContract("active", clientID, uuid.New())

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)

	_, err := svc.ReleaseEscrow(ctx, ReleaseEscrowInput{ContractID: cwp.ID, UserID: clientID})
	assert.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, appErr.Code)
	ledger.AssertNotCalled(t, "FindHeld", mock.Anything, mock.Anything, mock.Anything)
	processor.AssertNotCalled(t, "TransferFunds", mock.Anything, mock.Anything)
}

func TestEscrowService_GetLedger_NotParty(t *testing.T) {
	contracts, _, _, _, _, svc := newEscrowFixture()
	ctx := context.Background()
	cwp := testContract("active", uuid.New(), uuid.New())

	contracts.On("GetWithParties", ctx, cwp.ID).Return(cwp, nil)

	_, err := svc.GetLedger(ctx, cwp.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrAccessDenied)
}

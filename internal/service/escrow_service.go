package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/contracthub/backend/internal/domain/valueobject"
	"github.com/contracthub/backend/internal/logger"
	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/payments"
	"github.com/contracthub/backend/internal/pkg/apperror"
	"github.com/contracthub/backend/internal/repository"
)

// ContractStore описывает зависимости эскроу-сервиса от хранилища контрактов.
type ContractStore interface {
	GetWithParties(ctx context.Context, id uuid.UUID) (*models.ContractWithParties, error)
	GetMilestoneByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	MarkFunded(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// EscrowStore описывает зависимости от леджера.
type EscrowStore interface {
	Create(ctx context.Context, e *models.EscrowEntry) error
	GetBySessionRef(ctx context.Context, sessionRef string) (*models.EscrowEntry, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.EscrowEntry, error)
	MarkHeld(ctx context.Context, id uuid.UUID) (bool, error)
	FindHeld(ctx context.Context, contractID uuid.UUID, milestoneID *uuid.UUID) (*models.EscrowEntry, error)
	Release(ctx context.Context, id uuid.UUID, amount float64) (*models.EscrowEntry, error)
	RevertRelease(ctx context.Context, id uuid.UUID, amount float64) error
	SetTransferRef(ctx context.Context, id uuid.UUID, transferRef string) error
	CountOutstanding(ctx context.Context, contractID uuid.UUID) (int, error)
}

// PayoutGate описывает живую KYC-проверку перед выплатой.
type PayoutGate interface {
	Gate(ctx context.Context, userID uuid.UUID) (*GateResult, error)
}

// EscrowService реализует денежный цикл контракта: финансирование через
// hosted checkout процессора, подтверждение захвата и release фрилансеру.
type EscrowService struct {
	contracts ContractStore
	ledger    EscrowStore
	users     UserStore
	gate      PayoutGate
	processor payments.Processor
	hub       WSNotifier
}

// NewEscrowService создаёт эскроу-сервис.
func NewEscrowService(contracts ContractStore, ledger EscrowStore, users UserStore, gate PayoutGate, processor payments.Processor) *EscrowService {
	return &EscrowService{
		contracts: contracts,
		ledger:    ledger,
		users:     users,
		gate:      gate,
		processor: processor,
	}
}

// SetHub устанавливает WebSocket hub для отправки уведомлений.
func (s *EscrowService) SetHub(hub WSNotifier) {
	s.hub = hub
}

// FundEscrowInput описывает запрос финансирования.
type FundEscrowInput struct {
	ContractID  uuid.UUID
	UserID      uuid.UUID
	MilestoneID *uuid.UUID
}

// FundingResult — созданная сессия оплаты с разбивкой сумм.
type FundingResult struct {
	Entry          *models.EscrowEntry `json:"entry"`
	CheckoutURL    string              `json:"checkout_url"`
	SessionRef     string              `json:"session_ref"`
	ContractAmount float64             `json:"contract_amount"`
	PlatformFee    float64             `json:"platform_fee"`
	ProcessorFee   float64             `json:"processor_fee"`
	TotalCharge    float64             `json:"total_charge"`
}

// FundEscrow создаёт сессию оплаты у процессора и pending-запись леджера.
// Комиссия платформы считается по тарифу подписки клиента на этот момент.
func (s *EscrowService) FundEscrow(ctx context.Context, in FundEscrowInput) (*FundingResult, error) {
	cwp, client, err := s.authorizeClient(ctx, in.ContractID, in.UserID)
	if err != nil {
		return nil, err
	}

	if cwp.Status != string(valueobject.ContractStatusPendingFunding) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "контракт не готов к финансированию")
	}
	if cwp.IsFunded {
		return nil, apperror.ErrAlreadyFunded
	}

	freelancer := cwp.PartyByRole(models.PartyRoleFreelancer)
	if freelancer == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "в контракте нет фрилансера")
	}

	amount := cwp.TotalAmount
	if in.MilestoneID != nil {
		milestone, err := s.contracts.GetMilestoneByID(ctx, *in.MilestoneID)
		if err != nil {
			return nil, err
		}
		if milestone.ContractID != in.ContractID {
			return nil, apperror.ErrMilestoneNotFound
		}
		amount = milestone.Amount
	}

	payer, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	quote, err := valueobject.NewFeeQuote(amount, payer.SubscriptionTier)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"contract_id": in.ContractID.String(),
	}
	if in.MilestoneID != nil {
		metadata["milestone_id"] = in.MilestoneID.String()
	}

	session, err := s.processor.CreateFundingSession(ctx, payments.CreateFundingSessionInput{
		AmountMinor: quote.TotalChargeMinor(),
		Currency:    cwp.Currency,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, processorFailure(err)
	}

	entry := &models.EscrowEntry{
		ContractID:   in.ContractID,
		MilestoneID:  in.MilestoneID,
		PayerID:      client.UserID,
		PayeeID:      freelancer.UserID,
		Amount:       amount,
		Currency:     cwp.Currency,
		PlatformFee:  quote.PlatformFee.InexactFloat64(),
		ProcessorFee: quote.ProcessorFee.InexactFloat64(),
		SessionRef:   &session.ID,
	}
	if err := s.ledger.Create(ctx, entry); err != nil {
		return nil, err
	}

	return &FundingResult{
		Entry:          entry,
		CheckoutURL:    session.URL,
		SessionRef:     session.ID,
		ContractAmount: quote.ContractAmount.InexactFloat64(),
		PlatformFee:    quote.PlatformFee.InexactFloat64(),
		ProcessorFee:   quote.ProcessorFee.InexactFloat64(),
		TotalCharge:    quote.TotalCharge.InexactFloat64(),
	}, nil
}

// ConfirmFunding сверяет сессию с процессором и переводит запись в held.
// Контракт помечается профинансированным ровно один раз; повторное
// подтверждение той же сессии идемпотентно, а pending-сессия на уже
// профинансированном контракте отклоняется.
func (s *EscrowService) ConfirmFunding(ctx context.Context, contractID, userID uuid.UUID, sessionRef string) (*models.EscrowEntry, error) {
	cwp, _, err := s.authorizeClient(ctx, contractID, userID)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.GetBySessionRef(ctx, sessionRef)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "сессия оплаты не найдена")
		}
		return nil, err
	}
	if entry.ContractID != contractID {
		return nil, apperror.New(apperror.ErrCodeNotFound, "сессия оплаты не найдена")
	}
	// Контракт уже профинансирован другой сессией: эту подтверждать нельзя,
	// иначе клиент окажется удержан дважды. Захват по ней подлежит возврату.
	if cwp.IsFunded && entry.Status == models.EscrowStatusPending {
		return nil, apperror.ErrAlreadyFunded
	}

	session, err := s.processor.GetFundingSession(ctx, sessionRef)
	if err != nil {
		return nil, processorFailure(err)
	}
	if session.Status != payments.SessionStatusPaid {
		return nil, apperror.New(apperror.ErrCodePaymentFailed,
			fmt.Sprintf("оплата не подтверждена процессором: сессия в статусе %s", session.Status))
	}

	held, err := s.ledger.MarkHeld(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if !held {
		// Сессия уже подтверждена ранее
		return s.ledger.GetBySessionRef(ctx, sessionRef)
	}

	first, err := s.contracts.MarkFunded(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if first {
		if err := valueobject.ValidateContractTransition(
			valueobject.ContractStatus(cwp.Status), valueobject.ContractStatusActive); err != nil {
			return nil, err
		}
		if err := s.contracts.UpdateStatus(ctx, contractID, string(valueobject.ContractStatusActive)); err != nil {
			return nil, err
		}

		for _, p := range cwp.Parties {
			s.notify(p.UserID, models.NotificationContractFunded, map[string]interface{}{
				"contract_id": contractID,
				"amount":      entry.Amount,
			})
		}
	}

	return s.ledger.GetBySessionRef(ctx, sessionRef)
}

// ReleaseEscrowInput описывает запрос выплаты.
type ReleaseEscrowInput struct {
	ContractID  uuid.UUID
	UserID      uuid.UUID
	MilestoneID *uuid.UUID
	Amount      *float64
}

// ReleaseEscrow выплачивает удержанные средства фрилансеру.
// Выплата доступна только из профинансированного контракта в рабочем
// статусе: спорный или отменённый контракт деньги не отдаёт.
// Перед каждой выплатой выполняется живая KYC-проверка счёта получателя.
// Сумма заявляется условным UPDATE до перевода: конкурентный повторный
// release проигрывает гонку и получает отказ, двойной перевод исключён.
// Отклонённый процессором перевод откатывает заявку — состояние леджера
// остаётся прежним, сообщение процессора уходит клиенту.
func (s *EscrowService) ReleaseEscrow(ctx context.Context, in ReleaseEscrowInput) (*models.EscrowEntry, error) {
	cwp, _, err := s.authorizeClient(ctx, in.ContractID, in.UserID)
	if err != nil {
		return nil, err
	}

	if !cwp.IsFunded {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "контракт не профинансирован")
	}
	if !valueobject.ContractStatus(cwp.Status).AllowsRelease() {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition,
			fmt.Sprintf("выплата недоступна в статусе %s", cwp.Status))
	}

	freelancer := cwp.PartyByRole(models.PartyRoleFreelancer)
	if freelancer == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "в контракте нет фрилансера")
	}

	gate, err := s.gate.Gate(ctx, freelancer.UserID)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.FindHeld(ctx, in.ContractID, in.MilestoneID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrNoHeldEntries
		}
		return nil, err
	}

	amount := entry.Remaining()
	if in.Amount != nil {
		amount = *in.Amount
		if amount <= 0 {
			return nil, apperror.New(apperror.ErrCodeValidation, "сумма выплаты должна быть положительной")
		}
		if amount > entry.Remaining() {
			return nil, apperror.New(apperror.ErrCodeValidation, "сумма выплаты превышает удержанный остаток")
		}
	}

	// Заявляем сумму до перевода: это и есть защита от двойной выплаты
	released, err := s.ledger.Release(ctx, entry.ID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrNothingToRelease) {
			return nil, apperror.ErrNoHeldEntries
		}
		return nil, err
	}

	transfer, err := s.processor.TransferFunds(ctx, payments.TransferInput{
		AmountMinor:   valueobject.MinorUnitsFloat(amount),
		Currency:      entry.Currency,
		Destination:   gate.AccountID,
		TransferGroup: "contract_" + in.ContractID.String(),
		Metadata: map[string]string{
			"contract_id": in.ContractID.String(),
			"entry_id":    entry.ID.String(),
		},
	})
	if err != nil {
		if revertErr := s.ledger.RevertRelease(ctx, entry.ID, amount); revertErr != nil {
			logger.Log.WithFields(map[string]interface{}{
				"entry_id": entry.ID,
				"error":    revertErr.Error(),
			}).Error("escrow service: не удалось откатить заявленную выплату")
		}
		return nil, processorFailure(err)
	}

	if err := s.ledger.SetTransferRef(ctx, entry.ID, transfer.ID); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"entry_id": entry.ID,
			"error":    err.Error(),
		}).Warn("escrow service: не удалось записать transfer_ref")
	}
	released.TransferRef = &transfer.ID

	s.notify(freelancer.UserID, models.NotificationPaymentReleased, map[string]interface{}{
		"contract_id": in.ContractID,
		"amount":      amount,
	})

	s.completeIfSettled(ctx, cwp)

	return released, nil
}

// GetLedger возвращает леджер контракта его стороне.
func (s *EscrowService) GetLedger(ctx context.Context, contractID, userID uuid.UUID) ([]models.EscrowEntry, error) {
	cwp, err := s.contracts.GetWithParties(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if cwp.PartyByUser(userID) == nil && cwp.CreatorID != userID {
		return nil, apperror.ErrAccessDenied
	}

	return s.ledger.ListByContract(ctx, contractID)
}

// completeIfSettled завершает контракт, когда в леджере не осталось
// незакрытых записей и таблица переходов допускает completed.
func (s *EscrowService) completeIfSettled(ctx context.Context, cwp *models.ContractWithParties) {
	outstanding, err := s.ledger.CountOutstanding(ctx, cwp.ID)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"contract_id": cwp.ID,
			"error":       err.Error(),
		}).Error("escrow service: не удалось посчитать незакрытые записи")
		return
	}
	if outstanding > 0 {
		return
	}

	from := valueobject.ContractStatus(cwp.Status)
	if !from.CanTransitionTo(valueobject.ContractStatusCompleted) {
		return
	}

	if err := s.contracts.MarkCompleted(ctx, cwp.ID); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"contract_id": cwp.ID,
			"error":       err.Error(),
		}).Error("escrow service: не удалось завершить контракт")
		return
	}
	cwp.Status = string(valueobject.ContractStatusCompleted)

	for _, p := range cwp.Parties {
		s.notify(p.UserID, models.NotificationContractComplete, map[string]interface{}{
			"contract_id": cwp.ID,
		})
	}
}

// authorizeClient проверяет, что пользователь — сторона контракта с ролью client.
func (s *EscrowService) authorizeClient(ctx context.Context, contractID, userID uuid.UUID) (*models.ContractWithParties, *models.ContractParty, error) {
	cwp, err := s.contracts.GetWithParties(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}

	party := cwp.PartyByUser(userID)
	if party == nil && cwp.CreatorID != userID {
		return nil, nil, apperror.ErrAccessDenied
	}
	if party == nil || party.Role != models.PartyRoleClient {
		return nil, nil, apperror.InvalidRole(models.PartyRoleClient)
	}

	return cwp, party, nil
}

func (s *EscrowService) notify(userID uuid.UUID, event string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.BroadcastToUser(userID, event, data); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"event":   event,
		}).Warn("escrow service: не удалось отправить уведомление")
	}
}

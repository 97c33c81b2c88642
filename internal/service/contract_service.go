package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/contracthub/backend/internal/domain/valueobject"
	"github.com/contracthub/backend/internal/logger"
	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/pkg/apperror"
	"github.com/contracthub/backend/internal/validation"
)

// ContractRepository описывает взаимодействие сервиса с хранилищем контрактов.
type ContractRepository interface {
	Create(ctx context.Context, contract *models.Contract, parties []models.ContractParty, milestones []models.Milestone) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetWithParties(ctx context.Context, id uuid.UUID) (*models.ContractWithParties, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Contract, error)
	UpdateDraft(ctx context.Context, contract *models.Contract) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	SignParty(ctx context.Context, contractID, userID uuid.UUID, signature string) (*models.ContractParty, error)
	GetMilestoneByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListMilestones(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error)
	UpdateMilestoneStatus(ctx context.Context, id uuid.UUID, status string) error
	CountUnfinishedMilestones(ctx context.Context, contractID uuid.UUID) (int, error)
	CreateDeliverable(ctx context.Context, d *models.Deliverable) error
	ListDeliverables(ctx context.Context, milestoneID uuid.UUID) ([]models.Deliverable, error)
}

// EscrowLedger описывает минимальный контракт с леджером для отмены.
type EscrowLedger interface {
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.EscrowEntry, error)
	Refund(ctx context.Context, id uuid.UUID) (*models.EscrowEntry, error)
}

// WSNotifier интерфейс для отправки WebSocket уведомлений.
type WSNotifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}

// ContractService содержит бизнес-логику жизненного цикла контракта:
// черновик, подписание, этапы и приёмка работ.
type ContractService struct {
	repo   ContractRepository
	ledger EscrowLedger
	hub    WSNotifier
}

// NewContractService создаёт сервис контрактов.
func NewContractService(repo ContractRepository, ledger EscrowLedger) *ContractService {
	return &ContractService{
		repo:   repo,
		ledger: ledger,
	}
}

// SetHub устанавливает WebSocket hub для отправки уведомлений.
func (s *ContractService) SetHub(hub WSNotifier) {
	s.hub = hub
}

// MilestoneInput описывает этап при создании контракта.
type MilestoneInput struct {
	Title   string
	Amount  float64
	DueDate *time.Time
}

// CreateContractInput описывает входные данные создания контракта.
type CreateContractInput struct {
	CreatorID    uuid.UUID
	ClientID     uuid.UUID
	FreelancerID uuid.UUID
	Title        string
	Description  string
	TotalAmount  float64
	Currency     string
	Type         string
	Milestones   []MilestoneInput
}

// ContractDetails объединяет контракт со сторонами и этапами.
type ContractDetails struct {
	models.ContractWithParties
	Milestones []models.Milestone `json:"milestones"`
}

// CreateContract создаёт контракт в статусе draft вместе со сторонами и этапами.
func (s *ContractService) CreateContract(ctx context.Context, in CreateContractInput) (*ContractDetails, error) {
	if err := validation.ValidateContractTitle(in.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateContractDescription(in.Description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAmount("сумма контракта", in.TotalAmount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if _, ok := models.ValidContractTypes[in.Type]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("недопустимый тип контракта %q", in.Type))
	}
	if in.ClientID == in.FreelancerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "клиент и фрилансер должны быть разными пользователями")
	}
	if in.CreatorID != in.ClientID && in.CreatorID != in.FreelancerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "создатель контракта должен быть одной из его сторон")
	}
	if len(in.Milestones) > validation.MaxMilestonesCount {
		return nil, apperror.New(apperror.ErrCodeValidation, "слишком много этапов")
	}

	if in.Type == models.ContractTypeMilestone {
		if len(in.Milestones) == 0 {
			return nil, apperror.New(apperror.ErrCodeValidation, "контракт с этапами должен содержать хотя бы один этап")
		}
		var sum float64
		for _, m := range in.Milestones {
			sum += m.Amount
		}
		// Сверка в центах, чтобы не споткнуться о float
		if math.Abs(sum-in.TotalAmount) > 0.005 {
			return nil, apperror.New(apperror.ErrCodeValidation,
				"сумма этапов должна совпадать с общей суммой контракта")
		}
	}

	milestones := make([]models.Milestone, 0, len(in.Milestones))
	for i, m := range in.Milestones {
		if err := validation.ValidateMilestoneTitle(m.Title); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		if err := validation.ValidateAmount("сумма этапа", m.Amount); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		milestones = append(milestones, models.Milestone{
			Title:      m.Title,
			Amount:     m.Amount,
			Status:     string(valueobject.MilestoneStatusPending),
			DueDate:    m.DueDate,
			OrderIndex: i,
		})
	}

	currency := in.Currency
	if currency == "" {
		currency = "usd"
	}

	contract := &models.Contract{
		CreatorID:   in.CreatorID,
		Title:       in.Title,
		Description: in.Description,
		TotalAmount: in.TotalAmount,
		Currency:    currency,
		Type:        in.Type,
		Status:      string(valueobject.ContractStatusDraft),
	}

	parties := []models.ContractParty{
		{UserID: in.ClientID, Role: models.PartyRoleClient, Status: models.PartyStatusPending},
		{UserID: in.FreelancerID, Role: models.PartyRoleFreelancer, Status: models.PartyStatusPending},
	}

	if err := s.repo.Create(ctx, contract, parties, milestones); err != nil {
		return nil, err
	}

	return &ContractDetails{
		ContractWithParties: models.ContractWithParties{Contract: *contract, Parties: parties},
		Milestones:          milestones,
	}, nil
}

// UpdateContractInput описывает редактирование черновика.
type UpdateContractInput struct {
	ContractID  uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description string
	TotalAmount float64
	Currency    string
}

// UpdateContract редактирует черновик. После отправки на подписание
// содержимое контракта заморожено.
func (s *ContractService) UpdateContract(ctx context.Context, in UpdateContractInput) (*models.Contract, error) {
	cwp, _, err := s.authorize(ctx, in.ContractID, in.UserID, "")
	if err != nil {
		return nil, err
	}

	if cwp.CreatorID != in.UserID {
		return nil, apperror.New(apperror.ErrCodeAccessDenied, "редактировать контракт может только его создатель")
	}
	if cwp.Status != string(valueobject.ContractStatusDraft) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "редактировать можно только черновик")
	}

	if err := validation.ValidateContractTitle(in.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateContractDescription(in.Description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAmount("сумма контракта", in.TotalAmount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if cwp.Type == models.ContractTypeMilestone && math.Abs(in.TotalAmount-cwp.TotalAmount) > 0.005 {
		milestones, err := s.repo.ListMilestones(ctx, in.ContractID)
		if err != nil {
			return nil, err
		}
		var sum float64
		for _, m := range milestones {
			sum += m.Amount
		}
		if math.Abs(sum-in.TotalAmount) > 0.005 {
			return nil, apperror.New(apperror.ErrCodeValidation,
				"сумма этапов должна совпадать с общей суммой контракта")
		}
	}

	cwp.Title = in.Title
	cwp.Description = in.Description
	cwp.TotalAmount = in.TotalAmount
	if in.Currency != "" {
		cwp.Currency = in.Currency
	}

	if err := s.repo.UpdateDraft(ctx, &cwp.Contract); err != nil {
		return nil, err
	}

	return &cwp.Contract, nil
}

// GetContract возвращает контракт с этапами, доступен только его сторонам.
func (s *ContractService) GetContract(ctx context.Context, contractID, userID uuid.UUID) (*ContractDetails, error) {
	cwp, _, err := s.authorize(ctx, contractID, userID, "")
	if err != nil {
		return nil, err
	}

	milestones, err := s.repo.ListMilestones(ctx, contractID)
	if err != nil {
		return nil, err
	}

	return &ContractDetails{ContractWithParties: *cwp, Milestones: milestones}, nil
}

// ListContracts возвращает контракты пользователя.
func (s *ContractService) ListContracts(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Contract, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if status != "" {
		if _, err := valueobject.NewContractStatus(status); err != nil {
			return nil, err
		}
	}

	return s.repo.ListByUser(ctx, userID, status, limit, offset)
}

// SendForSignature переводит черновик в pending_signatures и уведомляет стороны.
func (s *ContractService) SendForSignature(ctx context.Context, contractID, userID uuid.UUID) (*models.Contract, error) {
	cwp, _, err := s.authorize(ctx, contractID, userID, "")
	if err != nil {
		return nil, err
	}

	if cwp.CreatorID != userID {
		return nil, apperror.New(apperror.ErrCodeAccessDenied, "отправить контракт на подписание может только его создатель")
	}

	if err := s.transition(ctx, &cwp.Contract, valueobject.ContractStatusPendingSignatures); err != nil {
		return nil, err
	}

	for _, p := range cwp.Parties {
		if p.UserID == userID {
			continue
		}
		s.notify(p.UserID, models.NotificationContractSent, map[string]interface{}{
			"contract_id": contractID,
			"title":       cwp.Title,
		})
	}

	return &cwp.Contract, nil
}

// SignContract записывает подпись стороны. Когда подписали все,
// контракт автоматически переходит в pending_funding.
func (s *ContractService) SignContract(ctx context.Context, contractID, userID uuid.UUID, signature string) (*models.Contract, error) {
	if err := validation.ValidateSignature(signature); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	cwp, party, err := s.authorize(ctx, contractID, userID, "")
	if err != nil {
		return nil, err
	}

	if cwp.Status != string(valueobject.ContractStatusPendingSignatures) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "контракт не находится на подписании")
	}
	if party.Status == models.PartyStatusSigned {
		return nil, apperror.New(apperror.ErrCodeConflict, "вы уже подписали этот контракт")
	}

	signed, err := s.repo.SignParty(ctx, contractID, userID, signature)
	if err != nil {
		return nil, err
	}

	// Перечитываем стороны: подпись могла быть последней
	cwp, err = s.repo.GetWithParties(ctx, contractID)
	if err != nil {
		return nil, err
	}

	if cwp.FullySigned() {
		if err := s.transition(ctx, &cwp.Contract, valueobject.ContractStatusPendingFunding); err != nil {
			return nil, err
		}
	}

	for _, p := range cwp.Parties {
		if p.UserID == userID {
			continue
		}
		s.notify(p.UserID, models.NotificationContractSigned, map[string]interface{}{
			"contract_id":  contractID,
			"signed_by":    signed.UserID,
			"fully_signed": cwp.FullySigned(),
		})
	}

	return &cwp.Contract, nil
}

// CancelContract отменяет контракт и возвращает незакрытые записи леджера клиенту.
func (s *ContractService) CancelContract(ctx context.Context, contractID, userID uuid.UUID) (*models.Contract, error) {
	cwp, _, err := s.authorize(ctx, contractID, userID, "")
	if err != nil {
		return nil, err
	}

	if err := valueobject.ValidateContractTransition(
		valueobject.ContractStatus(cwp.Status), valueobject.ContractStatusCancelled); err != nil {
		return nil, err
	}

	// Сначала возврат, потом статус: при сбое возврата контракт остаётся
	// в прежнем статусе и отмену можно повторить.
	entries, err := s.ledger.ListByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Status != models.EscrowStatusPending && e.Status != models.EscrowStatusHeld {
			continue
		}
		if _, err := s.ledger.Refund(ctx, e.ID); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"contract_id": contractID,
				"entry_id":    e.ID,
				"error":       err.Error(),
			}).Error("contract service: не удалось вернуть запись леджера при отмене")
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal,
				"не удалось вернуть удержанные средства, отмена прервана")
		}
	}

	if err := s.transition(ctx, &cwp.Contract, valueobject.ContractStatusCancelled); err != nil {
		return nil, err
	}

	return &cwp.Contract, nil
}

// StartMilestone переводит этап в работу. Доступно только фрилансеру.
func (s *ContractService) StartMilestone(ctx context.Context, contractID, milestoneID, userID uuid.UUID) (*models.Milestone, error) {
	cwp, _, err := s.authorize(ctx, contractID, userID, models.PartyRoleFreelancer)
	if err != nil {
		return nil, err
	}

	if cwp.Status != string(valueobject.ContractStatusActive) &&
		cwp.Status != string(valueobject.ContractStatusRevisionRequested) {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "контракт не находится в работе")
	}

	milestone, err := s.milestoneOfContract(ctx, contractID, milestoneID)
	if err != nil {
		return nil, err
	}

	if err := s.milestoneTransition(ctx, milestone, valueobject.MilestoneStatusInProgress); err != nil {
		return nil, err
	}

	return milestone, nil
}

// SubmitDeliverableInput описывает сдачу работы по этапу.
type SubmitDeliverableInput struct {
	ContractID  uuid.UUID
	MilestoneID uuid.UUID
	UserID      uuid.UUID
	Message     *string
	FilePath    *string
	FileName    *string
	FileSize    *int64
}

// SubmitDeliverable сдаёт работу: этап переходит в submitted,
// контракт — в pending_delivery.
func (s *ContractService) SubmitDeliverable(ctx context.Context, in SubmitDeliverableInput) (*models.Deliverable, error) {
	cwp, _, err := s.authorize(ctx, in.ContractID, in.UserID, models.PartyRoleFreelancer)
	if err != nil {
		return nil, err
	}

	milestone, err := s.milestoneOfContract(ctx, in.ContractID, in.MilestoneID)
	if err != nil {
		return nil, err
	}

	// Повторная сдача после revision_requested начинается с возврата этапа в работу
	if milestone.Status == string(valueobject.MilestoneStatusRevisionRequested) {
		if err := s.milestoneTransition(ctx, milestone, valueobject.MilestoneStatusInProgress); err != nil {
			return nil, err
		}
	}

	if err := s.milestoneTransition(ctx, milestone, valueobject.MilestoneStatusSubmitted); err != nil {
		return nil, err
	}

	if err := s.transition(ctx, &cwp.Contract, valueobject.ContractStatusPendingDelivery); err != nil {
		return nil, err
	}

	deliverable := &models.Deliverable{
		ContractID:  in.ContractID,
		MilestoneID: in.MilestoneID,
		SubmittedBy: in.UserID,
		Message:     in.Message,
		FilePath:    in.FilePath,
		FileName:    in.FileName,
		FileSize:    in.FileSize,
	}
	if err := s.repo.CreateDeliverable(ctx, deliverable); err != nil {
		return nil, err
	}

	if client := cwp.PartyByRole(models.PartyRoleClient); client != nil {
		s.notify(client.UserID, models.NotificationDeliverableSent, map[string]interface{}{
			"contract_id":  in.ContractID,
			"milestone_id": in.MilestoneID,
		})
	}

	return deliverable, nil
}

// ApproveMilestone принимает сданную работу. Этап закрывается, контракт
// возвращается в работу либо ждёт финального release.
func (s *ContractService) ApproveMilestone(ctx context.Context, contractID, milestoneID, userID uuid.UUID) (*models.Milestone, error) {
	cwp, _, err := s.authorize(ctx, contractID, userID, models.PartyRoleClient)
	if err != nil {
		return nil, err
	}

	milestone, err := s.milestoneOfContract(ctx, contractID, milestoneID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, &cwp.Contract, valueobject.ContractStatusInReview); err != nil {
		return nil, err
	}
	if err := s.milestoneTransition(ctx, milestone, valueobject.MilestoneStatusApproved); err != nil {
		return nil, err
	}
	if err := s.milestoneTransition(ctx, milestone, valueobject.MilestoneStatusCompleted); err != nil {
		return nil, err
	}

	unfinished, err := s.repo.CountUnfinishedMilestones(ctx, contractID)
	if err != nil {
		return nil, err
	}

	next := valueobject.ContractStatusPendingCompletion
	if unfinished > 0 {
		next = valueobject.ContractStatusActive
	}
	if err := s.transition(ctx, &cwp.Contract, next); err != nil {
		return nil, err
	}

	if freelancer := cwp.PartyByRole(models.PartyRoleFreelancer); freelancer != nil {
		s.notify(freelancer.UserID, models.NotificationMilestoneClosed, map[string]interface{}{
			"contract_id":  contractID,
			"milestone_id": milestoneID,
		})
	}

	return milestone, nil
}

// RequestRevision возвращает сданную работу на доработку.
func (s *ContractService) RequestRevision(ctx context.Context, contractID, milestoneID, userID uuid.UUID) (*models.Milestone, error) {
	cwp, _, err := s.authorize(ctx, contractID, userID, models.PartyRoleClient)
	if err != nil {
		return nil, err
	}

	milestone, err := s.milestoneOfContract(ctx, contractID, milestoneID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, &cwp.Contract, valueobject.ContractStatusInReview); err != nil {
		return nil, err
	}
	if err := s.milestoneTransition(ctx, milestone, valueobject.MilestoneStatusRevisionRequested); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, &cwp.Contract, valueobject.ContractStatusRevisionRequested); err != nil {
		return nil, err
	}

	if freelancer := cwp.PartyByRole(models.PartyRoleFreelancer); freelancer != nil {
		s.notify(freelancer.UserID, models.NotificationRevisionRequest, map[string]interface{}{
			"contract_id":  contractID,
			"milestone_id": milestoneID,
		})
	}

	return milestone, nil
}

// ListDeliverables возвращает сданные работы по этапу.
func (s *ContractService) ListDeliverables(ctx context.Context, contractID, milestoneID, userID uuid.UUID) ([]models.Deliverable, error) {
	if _, _, err := s.authorize(ctx, contractID, userID, ""); err != nil {
		return nil, err
	}
	if _, err := s.milestoneOfContract(ctx, contractID, milestoneID); err != nil {
		return nil, err
	}

	return s.repo.ListDeliverables(ctx, milestoneID)
}

// authorize загружает контракт и проверяет, что пользователь — его сторона.
// При непустом requiredRole дополнительно проверяется роль стороны.
func (s *ContractService) authorize(ctx context.Context, contractID, userID uuid.UUID, requiredRole string) (*models.ContractWithParties, *models.ContractParty, error) {
	cwp, err := s.repo.GetWithParties(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}

	party := cwp.PartyByUser(userID)
	if party == nil && cwp.CreatorID != userID {
		return nil, nil, apperror.ErrAccessDenied
	}

	if requiredRole != "" {
		if party == nil || party.Role != requiredRole {
			return nil, nil, apperror.InvalidRole(requiredRole)
		}
	}

	return cwp, party, nil
}

// transition валидирует переход по таблице и сохраняет новый статус.
func (s *ContractService) transition(ctx context.Context, contract *models.Contract, to valueobject.ContractStatus) error {
	from := valueobject.ContractStatus(contract.Status)
	if from == to {
		return nil
	}
	if err := valueobject.ValidateContractTransition(from, to); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, contract.ID, string(to)); err != nil {
		return err
	}
	contract.Status = string(to)
	return nil
}

// milestoneTransition валидирует переход этапа и сохраняет новый статус.
func (s *ContractService) milestoneTransition(ctx context.Context, milestone *models.Milestone, to valueobject.MilestoneStatus) error {
	if err := valueobject.ValidateMilestoneTransition(valueobject.MilestoneStatus(milestone.Status), to); err != nil {
		return err
	}
	if err := s.repo.UpdateMilestoneStatus(ctx, milestone.ID, string(to)); err != nil {
		return err
	}
	milestone.Status = string(to)
	return nil
}

// milestoneOfContract возвращает этап и проверяет его принадлежность контракту.
func (s *ContractService) milestoneOfContract(ctx context.Context, contractID, milestoneID uuid.UUID) (*models.Milestone, error) {
	milestone, err := s.repo.GetMilestoneByID(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if milestone.ContractID != contractID {
		return nil, apperror.ErrMilestoneNotFound
	}
	return milestone, nil
}

// notify отправляет уведомление, если hub подключён. Ошибки не фатальны.
func (s *ContractService) notify(userID uuid.UUID, event string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.BroadcastToUser(userID, event, data); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"event":   event,
		}).Warn("contract service: не удалось отправить уведомление")
	}
}

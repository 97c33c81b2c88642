package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/contracthub/backend/internal/domain/valueobject"
	"github.com/contracthub/backend/internal/logger"
	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/pkg/apperror"
	"github.com/contracthub/backend/internal/repository"
	"github.com/contracthub/backend/internal/validation"
)

// DisputeStore описывает хранилище споров.
type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	Resolve(ctx context.Context, id uuid.UUID, resolution string, resolvedBy uuid.UUID) (*models.Dispute, error)
}

// DisputeService содержит бизнес-логику споров по контрактам.
// Открытие спора переводит контракт в disputed; разрешение возвращает его
// в состояние, указанное арбитром, по таблице переходов.
type DisputeService struct {
	repo      DisputeStore
	contracts ContractRepository
	hub       WSNotifier
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(repo DisputeStore, contracts ContractRepository) *DisputeService {
	return &DisputeService{
		repo:      repo,
		contracts: contracts,
	}
}

// SetHub устанавливает WebSocket hub для отправки уведомлений.
func (s *DisputeService) SetHub(hub WSNotifier) {
	s.hub = hub
}

// OpenDisputeInput описывает открытие спора.
type OpenDisputeInput struct {
	ContractID uuid.UUID
	UserID     uuid.UUID
	Type       string
	Reason     string
}

// OpenDispute открывает спор и переводит контракт в disputed.
func (s *DisputeService) OpenDispute(ctx context.Context, in OpenDisputeInput) (*models.Dispute, error) {
	if _, ok := models.ValidDisputeTypes[in.Type]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("недопустимый тип спора %q", in.Type))
	}
	if err := validateDisputeReason(in.Reason); err != nil {
		return nil, err
	}

	cwp, err := s.contracts.GetWithParties(ctx, in.ContractID)
	if err != nil {
		return nil, err
	}
	if cwp.PartyByUser(in.UserID) == nil && cwp.CreatorID != in.UserID {
		return nil, apperror.ErrAccessDenied
	}

	if _, err := s.repo.GetOpenByContract(ctx, in.ContractID); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "по контракту уже открыт спор")
	} else if !errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, err
	}

	from := valueobject.ContractStatus(cwp.Status)
	if err := valueobject.ValidateContractTransition(from, valueobject.ContractStatusDisputed); err != nil {
		return nil, err
	}

	dispute := &models.Dispute{
		ContractID:  in.ContractID,
		InitiatedBy: in.UserID,
		Type:        in.Type,
		Reason:      in.Reason,
		Status:      models.DisputeStatusOpen,
	}
	if err := s.repo.Create(ctx, dispute); err != nil {
		return nil, err
	}

	if err := s.contracts.UpdateStatus(ctx, in.ContractID, string(valueobject.ContractStatusDisputed)); err != nil {
		return nil, err
	}

	for _, p := range cwp.Parties {
		if p.UserID == in.UserID {
			continue
		}
		s.notify(p.UserID, models.NotificationDisputeOpened, map[string]interface{}{
			"contract_id": in.ContractID,
			"dispute_id":  dispute.ID,
			"type":        in.Type,
		})
	}

	return dispute, nil
}

// ResolveDisputeInput описывает разрешение спора.
type ResolveDisputeInput struct {
	DisputeID  uuid.UUID
	ResolvedBy uuid.UUID
	Resolution string
	// NextStatus — статус контракта после разрешения: active, completed или cancelled.
	NextStatus string
}

// ResolveDispute закрывает спор и возвращает контракт в указанный статус.
func (s *DisputeService) ResolveDispute(ctx context.Context, in ResolveDisputeInput) (*models.Dispute, error) {
	if err := validateDisputeReason(in.Resolution); err != nil {
		return nil, err
	}

	dispute, err := s.repo.GetByID(ctx, in.DisputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, apperror.New(apperror.ErrCodeConflict, "спор уже разрешён")
	}

	cwp, err := s.contracts.GetWithParties(ctx, dispute.ContractID)
	if err != nil {
		return nil, err
	}
	if cwp.PartyByUser(in.ResolvedBy) == nil && cwp.CreatorID != in.ResolvedBy {
		return nil, apperror.ErrAccessDenied
	}

	next, err := valueobject.NewContractStatus(in.NextStatus)
	if err != nil {
		return nil, err
	}
	if err := valueobject.ValidateContractTransition(valueobject.ContractStatus(cwp.Status), next); err != nil {
		return nil, err
	}

	resolved, err := s.repo.Resolve(ctx, in.DisputeID, in.Resolution, in.ResolvedBy)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.New(apperror.ErrCodeConflict, "спор уже разрешён")
		}
		return nil, err
	}

	if next == valueobject.ContractStatusCompleted {
		err = s.contracts.MarkCompleted(ctx, dispute.ContractID)
	} else {
		err = s.contracts.UpdateStatus(ctx, dispute.ContractID, string(next))
	}
	if err != nil {
		return nil, err
	}

	for _, p := range cwp.Parties {
		s.notify(p.UserID, models.NotificationDisputeResolved, map[string]interface{}{
			"contract_id": dispute.ContractID,
			"dispute_id":  dispute.ID,
			"next_status": string(next),
		})
	}

	return resolved, nil
}

// GetDispute возвращает спор стороне контракта.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID, userID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	cwp, err := s.contracts.GetWithParties(ctx, dispute.ContractID)
	if err != nil {
		return nil, err
	}
	if cwp.PartyByUser(userID) == nil && cwp.CreatorID != userID {
		return nil, apperror.ErrAccessDenied
	}

	return dispute, nil
}

// ListContractDisputes возвращает споры по контракту.
func (s *DisputeService) ListContractDisputes(ctx context.Context, contractID, userID uuid.UUID) ([]models.Dispute, error) {
	cwp, err := s.contracts.GetWithParties(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if cwp.PartyByUser(userID) == nil && cwp.CreatorID != userID {
		return nil, apperror.ErrAccessDenied
	}

	return s.repo.ListByContract(ctx, contractID)
}

// ListUserDisputes возвращает споры пользователя по всем контрактам.
func (s *DisputeService) ListUserDisputes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *DisputeService) notify(userID uuid.UUID, event string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.BroadcastToUser(userID, event, data); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"event":   event,
		}).Warn("dispute service: не удалось отправить уведомление")
	}
}

func validateDisputeReason(reason string) error {
	if err := validation.ValidateDisputeReason(reason); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return nil
}

package valueobject

import (
	"fmt"

	"github.com/contracthub/backend/internal/pkg/apperror"
)

type ContractStatus string

const (
	ContractStatusDraft             ContractStatus = "draft"
	ContractStatusPendingSignatures ContractStatus = "pending_signatures"
	ContractStatusPendingFunding    ContractStatus = "pending_funding"
	ContractStatusActive            ContractStatus = "active"
	ContractStatusPendingDelivery   ContractStatus = "pending_delivery"
	ContractStatusInReview          ContractStatus = "in_review"
	ContractStatusRevisionRequested ContractStatus = "revision_requested"
	ContractStatusPendingCompletion ContractStatus = "pending_completion"
	ContractStatusCompleted         ContractStatus = "completed"
	ContractStatusCancelled         ContractStatus = "cancelled"
	ContractStatusDisputed          ContractStatus = "disputed"
)

// contractTransitions — единственная таблица допустимых переходов контракта.
// Никто кроме этой таблицы не решает, куда можно перевести статус:
// обход таблицы через прямую запись в репозиторий запрещён.
// Рёбра active→completed и in_review→completed существуют для завершения
// контракта при release последней записи леджера; in_review→active возвращает
// контракт в работу после приёмки промежуточного этапа.
var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractStatusDraft:             {ContractStatusPendingSignatures, ContractStatusCancelled, ContractStatusDisputed},
	ContractStatusPendingSignatures: {ContractStatusPendingFunding, ContractStatusCancelled, ContractStatusDisputed},
	ContractStatusPendingFunding:    {ContractStatusActive, ContractStatusCancelled, ContractStatusDisputed},
	ContractStatusActive:            {ContractStatusPendingDelivery, ContractStatusCompleted, ContractStatusCancelled, ContractStatusDisputed},
	ContractStatusPendingDelivery:   {ContractStatusInReview, ContractStatusCancelled, ContractStatusDisputed},
	ContractStatusInReview:          {ContractStatusActive, ContractStatusRevisionRequested, ContractStatusPendingCompletion, ContractStatusCompleted, ContractStatusCancelled, ContractStatusDisputed},
	ContractStatusRevisionRequested: {ContractStatusPendingDelivery, ContractStatusPendingCompletion, ContractStatusCancelled, ContractStatusDisputed},
	ContractStatusPendingCompletion: {ContractStatusCompleted, ContractStatusCancelled, ContractStatusDisputed},
	ContractStatusDisputed:          {ContractStatusActive, ContractStatusCompleted, ContractStatusCancelled},
	ContractStatusCompleted:         {},
	ContractStatusCancelled:         {},
}

// releasableStatuses — статусы, в которых допускается выплата из эскроу.
// Спорный и отменённый контракты сюда не входят: их средства ждут
// резолюции спора или возврата клиенту.
var releasableStatuses = map[ContractStatus]bool{
	ContractStatusActive:            true,
	ContractStatusPendingDelivery:   true,
	ContractStatusInReview:          true,
	ContractStatusPendingCompletion: true,
}

func (s ContractStatus) IsValid() bool {
	_, ok := contractTransitions[s]
	return ok
}

// AllowsRelease сообщает, допускает ли статус контракта выплату из эскроу.
func (s ContractStatus) AllowsRelease() bool {
	return releasableStatuses[s]
}

// IsTerminal сообщает, является ли статус конечным.
func (s ContractStatus) IsTerminal() bool {
	allowed, ok := contractTransitions[s]
	return ok && len(allowed) == 0
}

func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	allowed, ok := contractTransitions[s]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

// ValidateContractTransition проверяет пару (from, to) по таблице переходов.
func ValidateContractTransition(from, to ContractStatus) error {
	if !from.IsValid() {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("некорректный статус контракта %q", from))
	}
	if !to.IsValid() {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("некорректный статус контракта %q", to))
	}
	if !from.CanTransitionTo(to) {
		return apperror.New(apperror.ErrCodeInvalidTransition,
			fmt.Sprintf("переход контракта %s → %s запрещён", from, to))
	}
	return nil
}

func NewContractStatus(status string) (ContractStatus, error) {
	s := ContractStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус контракта")
	}
	return s, nil
}

type MilestoneStatus string

const (
	MilestoneStatusPending           MilestoneStatus = "pending"
	MilestoneStatusInProgress        MilestoneStatus = "in_progress"
	MilestoneStatusSubmitted         MilestoneStatus = "submitted"
	MilestoneStatusApproved          MilestoneStatus = "approved"
	MilestoneStatusCompleted         MilestoneStatus = "completed"
	MilestoneStatusRevisionRequested MilestoneStatus = "revision_requested"
)

var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestoneStatusPending:           {MilestoneStatusInProgress},
	MilestoneStatusInProgress:        {MilestoneStatusSubmitted},
	MilestoneStatusSubmitted:         {MilestoneStatusApproved, MilestoneStatusRevisionRequested},
	MilestoneStatusApproved:          {MilestoneStatusCompleted},
	MilestoneStatusRevisionRequested: {MilestoneStatusInProgress},
	MilestoneStatusCompleted:         {},
}

func (s MilestoneStatus) IsValid() bool {
	_, ok := milestoneTransitions[s]
	return ok
}

func (s MilestoneStatus) CanTransitionTo(next MilestoneStatus) bool {
	allowed, ok := milestoneTransitions[s]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

// ValidateMilestoneTransition проверяет пару (from, to) по таблице переходов.
func ValidateMilestoneTransition(from, to MilestoneStatus) error {
	if !from.IsValid() {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("некорректный статус этапа %q", from))
	}
	if !to.IsValid() {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("некорректный статус этапа %q", to))
	}
	if !from.CanTransitionTo(to) {
		return apperror.New(apperror.ErrCodeInvalidTransition,
			fmt.Sprintf("переход этапа %s → %s запрещён", from, to))
	}
	return nil
}

func NewMilestoneStatus(status string) (MilestoneStatus, error) {
	s := MilestoneStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус этапа")
	}
	return s, nil
}

// AllContractStatuses возвращает все известные статусы контракта (для тестов и валидации).
func AllContractStatuses() []ContractStatus {
	statuses := make([]ContractStatus, 0, len(contractTransitions))
	for s := range contractTransitions {
		statuses = append(statuses, s)
	}
	return statuses
}

// AllMilestoneStatuses возвращает все известные статусы этапа.
func AllMilestoneStatuses() []MilestoneStatus {
	statuses := make([]MilestoneStatus, 0, len(milestoneTransitions))
	for s := range milestoneTransitions {
		statuses = append(statuses, s)
	}
	return statuses
}

package valueobject

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contracthub/backend/internal/pkg/apperror"
)

func TestContractStatus_AllowedTransitions(t *testing.T) {
	allowed := []struct {
		from ContractStatus
		to   ContractStatus
	}{
		{ContractStatusDraft, ContractStatusPendingSignatures},
		{ContractStatusPendingSignatures, ContractStatusPendingFunding},
		{ContractStatusPendingFunding, ContractStatusActive},
		{ContractStatusActive, ContractStatusPendingDelivery},
		{ContractStatusActive, ContractStatusCompleted},
		{ContractStatusPendingDelivery, ContractStatusInReview},
		{ContractStatusInReview, ContractStatusActive},
		{ContractStatusInReview, ContractStatusRevisionRequested},
		{ContractStatusInReview, ContractStatusPendingCompletion},
		{ContractStatusInReview, ContractStatusCompleted},
		{ContractStatusRevisionRequested, ContractStatusPendingDelivery},
		{ContractStatusRevisionRequested, ContractStatusPendingCompletion},
		{ContractStatusPendingCompletion, ContractStatusCompleted},
		{ContractStatusDisputed, ContractStatusActive},
		{ContractStatusDisputed, ContractStatusCancelled},
		{ContractStatusDisputed, ContractStatusCompleted},
	}

	for _, tc := range allowed {
		assert.NoError(t, ValidateContractTransition(tc.from, tc.to), "%s → %s", tc.from, tc.to)
	}

	// cancelled и disputed доступны из любого нетерминального статуса
	for _, from := range AllContractStatuses() {
		if from.IsTerminal() || from == ContractStatusDisputed {
			continue
		}
		assert.NoError(t, ValidateContractTransition(from, ContractStatusCancelled), "%s → cancelled", from)
		assert.NoError(t, ValidateContractTransition(from, ContractStatusDisputed), "%s → disputed", from)
	}
}

func TestContractStatus_ForbiddenTransitions(t *testing.T) {
	forbidden := []struct {
		from ContractStatus
		to   ContractStatus
	}{
		// пропуск стадий
		{ContractStatusDraft, ContractStatusActive},
		{ContractStatusDraft, ContractStatusCompleted},
		{ContractStatusPendingSignatures, ContractStatusActive},
		{ContractStatusPendingFunding, ContractStatusCompleted},
		// обратные переходы
		{ContractStatusActive, ContractStatusPendingFunding},
		{ContractStatusInReview, ContractStatusPendingDelivery},
		{ContractStatusPendingCompletion, ContractStatusActive},
		// выход из терминальных
		{ContractStatusCompleted, ContractStatusActive},
		{ContractStatusCompleted, ContractStatusCancelled},
		{ContractStatusCancelled, ContractStatusDraft},
		{ContractStatusCancelled, ContractStatusDisputed},
	}

	for _, tc := range forbidden {
		err := ValidateContractTransition(tc.from, tc.to)
		assert.Error(t, err, "%s → %s", tc.from, tc.to)

		var appErr *apperror.AppError
		assert.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.ErrCodeInvalidTransition, appErr.Code)
	}
}

func TestContractStatus_ExhaustiveTable(t *testing.T) {
	// Для каждой пары (from, to) результат совпадает с таблицей переходов.
	for _, from := range AllContractStatuses() {
		for _, to := range AllContractStatuses() {
			err := ValidateContractTransition(from, to)
			if from.CanTransitionTo(to) {
				assert.NoError(t, err, "%s → %s", from, to)
			} else {
				assert.Error(t, err, "%s → %s", from, to)
			}
		}
	}
}

func TestContractStatus_UnknownStatus(t *testing.T) {
	err := ValidateContractTransition("draft", "published")
	assert.Error(t, err)

	_, err = NewContractStatus("published")
	assert.Error(t, err)

	s, err := NewContractStatus("pending_funding")
	assert.NoError(t, err)
	assert.Equal(t, ContractStatusPendingFunding, s)
}

func TestMilestoneStatus_Lifecycle(t *testing.T) {
	assert.NoError(t, ValidateMilestoneTransition(MilestoneStatusPending, MilestoneStatusInProgress))
	assert.NoError(t, ValidateMilestoneTransition(MilestoneStatusInProgress, MilestoneStatusSubmitted))
	assert.NoError(t, ValidateMilestoneTransition(MilestoneStatusSubmitted, MilestoneStatusApproved))
	assert.NoError(t, ValidateMilestoneTransition(MilestoneStatusSubmitted, MilestoneStatusRevisionRequested))
	assert.NoError(t, ValidateMilestoneTransition(MilestoneStatusApproved, MilestoneStatusCompleted))
	assert.NoError(t, ValidateMilestoneTransition(MilestoneStatusRevisionRequested, MilestoneStatusInProgress))
}

func TestMilestoneStatus_ExhaustiveTable(t *testing.T) {
	for _, from := range AllMilestoneStatuses() {
		for _, to := range AllMilestoneStatuses() {
			err := ValidateMilestoneTransition(from, to)
			if from.CanTransitionTo(to) {
				assert.NoError(t, err, "%s → %s", from, to)
			} else {
				assert.Error(t, err, "%s → %s", from, to)
			}
		}
	}
}

func TestMilestoneStatus_NoSkipping(t *testing.T) {
	forbidden := []struct {
		from MilestoneStatus
		to   MilestoneStatus
	}{
		{MilestoneStatusPending, MilestoneStatusSubmitted},
		{MilestoneStatusPending, MilestoneStatusCompleted},
		{MilestoneStatusInProgress, MilestoneStatusApproved},
		{MilestoneStatusCompleted, MilestoneStatusInProgress},
		{MilestoneStatusApproved, MilestoneStatusRevisionRequested},
	}

	for _, tc := range forbidden {
		err := ValidateMilestoneTransition(tc.from, tc.to)
		assert.Error(t, err, "%s → %s", tc.from, tc.to)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/contracthub/backend/internal/logger"
	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/payments"
	"github.com/contracthub/backend/internal/pkg/apperror"
	"github.com/contracthub/backend/internal/repository"
)

// PayoutAccountStore описывает хранилище снимков подключённых счетов.
type PayoutAccountStore interface {
	Upsert(ctx context.Context, a *models.PayoutAccount) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error)
}

// UserStore описывает минимальный контракт с хранилищем пользователей.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateVerificationLevel(ctx context.Context, userID uuid.UUID, level string) error
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
}

// GateResult — итог живой проверки готовности счёта к выплатам.
type GateResult struct {
	AccountID                string   `json:"account_id"`
	Allowed                  bool     `json:"allowed"`
	TransfersActive          bool     `json:"transfers_active"`
	PayoutsEnabled           bool     `json:"payouts_enabled"`
	RequirementsCurrentlyDue []string `json:"requirements_currently_due"`
	RequirementsPastDue      []string `json:"requirements_past_due"`
	DisabledReason           string   `json:"disabled_reason,omitempty"`
}

// KYCService отвечает за подключённые счета и верификацию выплат.
// Правило одно: выплата разрешена, только если живой ответ процессора
// подтверждает transfers_active и payouts_enabled. Снимок в БД — кэш
// для отображения, по нему решения не принимаются.
type KYCService struct {
	accounts  PayoutAccountStore
	users     UserStore
	processor payments.Processor
}

// NewKYCService создаёт сервис верификации выплат.
func NewKYCService(accounts PayoutAccountStore, users UserStore, processor payments.Processor) *KYCService {
	return &KYCService{
		accounts:  accounts,
		users:     users,
		processor: processor,
	}
}

// Onboard создаёт подключённый счёт у процессора и возвращает onboarding ссылку.
func (s *KYCService) Onboard(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	// Уже подключённый счёт не пересоздаём
	if existing, err := s.accounts.GetByUserID(ctx, userID); err == nil && existing.ExternalAccountID != "" {
		return "", apperror.New(apperror.ErrCodeConflict, "счёт для выплат уже подключён")
	} else if err != nil && !errors.Is(err, repository.ErrPayoutAccountNotFound) {
		return "", err
	}

	account, err := s.processor.CreateConnectedAccount(ctx, user.Email)
	if err != nil {
		return "", processorFailure(err)
	}

	snapshot := &models.PayoutAccount{
		UserID:              userID,
		ExternalAccountID:   account.ID,
		RequirementsDue:     json.RawMessage("[]"),
		RequirementsPastDue: json.RawMessage("[]"),
	}
	if err := s.accounts.Upsert(ctx, snapshot); err != nil {
		return "", err
	}

	// Подключение счёта само по себе даёт базовый уровень верификации
	if user.VerificationLevel == models.VerificationLevelNone {
		if err := s.users.UpdateVerificationLevel(ctx, userID, models.VerificationLevelBasic); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("kyc service: не удалось обновить уровень верификации")
		}
	}

	return account.OnboardingURL, nil
}

// GetSnapshot возвращает кэшированное состояние счёта пользователя.
func (s *KYCService) GetSnapshot(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error) {
	return s.accounts.GetByUserID(ctx, userID)
}

// Check выполняет живую проверку счёта у процессора и обновляет снимок.
// Возвращает результат гейта независимо от исхода: отказ — это не ошибка.
func (s *KYCService) Check(ctx context.Context, userID uuid.UUID) (*GateResult, error) {
	snapshot, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPayoutAccountNotFound) {
			return nil, apperror.ErrPayoutMissing
		}
		return nil, err
	}

	status, err := s.processor.GetConnectedAccountStatus(ctx, snapshot.ExternalAccountID)
	if err != nil {
		return nil, processorFailure(err)
	}

	s.saveSnapshot(ctx, userID, snapshot.ExternalAccountID, status)

	result := &GateResult{
		AccountID:                snapshot.ExternalAccountID,
		Allowed:                  status.TransfersActive && status.PayoutsEnabled,
		TransfersActive:          status.TransfersActive,
		PayoutsEnabled:           status.PayoutsEnabled,
		RequirementsCurrentlyDue: status.RequirementsCurrentlyDue,
		RequirementsPastDue:      status.RequirementsPastDue,
		DisabledReason:           status.DisabledReason,
	}

	// Прошедший гейт счёт поднимает уровень верификации пользователя
	if result.Allowed {
		if err := s.users.UpdateVerificationLevel(ctx, userID, models.VerificationLevelEnhanced); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("kyc service: не удалось обновить уровень верификации")
		}
	}

	return result, nil
}

// Gate выполняет живую проверку и превращает отказ в ошибку kyc_not_verified
// с чеклистом недостающих требований. Используется перед каждым release.
func (s *KYCService) Gate(ctx context.Context, userID uuid.UUID) (*GateResult, error) {
	result, err := s.Check(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !result.Allowed {
		return nil, apperror.New(apperror.ErrCodeKYCNotVerified, "счёт фрилансера не прошёл верификацию для выплат").
			WithDetails(map[string]interface{}{
				"transfers_active":           result.TransfersActive,
				"payouts_enabled":            result.PayoutsEnabled,
				"requirements_currently_due": result.RequirementsCurrentlyDue,
				"requirements_past_due":      result.RequirementsPastDue,
				"disabled_reason":            result.DisabledReason,
			})
	}

	return result, nil
}

// CheckWithdrawalEligibility проверяет право пользователя на вывод суммы.
// Суммы свыше 1000 требуют enhanced верификации, любой вывод — basic.
func (s *KYCService) CheckWithdrawalEligibility(ctx context.Context, userID uuid.UUID, amount float64) (*models.WithdrawalEligibility, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	required := models.VerificationLevelBasic
	if amount > 1000 {
		required = models.VerificationLevelEnhanced
	}

	eligible := verificationRank(user.VerificationLevel) >= verificationRank(required)

	return &models.WithdrawalEligibility{
		Eligible:             eligible,
		CurrentVerification:  user.VerificationLevel,
		RequiredVerification: required,
	}, nil
}

// saveSnapshot обновляет кэш состояния счёта. Ошибка кэша не прерывает гейт.
func (s *KYCService) saveSnapshot(ctx context.Context, userID uuid.UUID, accountID string, status *payments.AccountStatus) {
	due, err := json.Marshal(status.RequirementsCurrentlyDue)
	if err != nil {
		due = json.RawMessage("[]")
	}
	pastDue, err := json.Marshal(status.RequirementsPastDue)
	if err != nil {
		pastDue = json.RawMessage("[]")
	}

	snapshot := &models.PayoutAccount{
		UserID:              userID,
		ExternalAccountID:   accountID,
		TransfersActive:     status.TransfersActive,
		PayoutsEnabled:      status.PayoutsEnabled,
		RequirementsDue:     due,
		RequirementsPastDue: pastDue,
	}
	if status.DisabledReason != "" {
		snapshot.DisabledReason = &status.DisabledReason
	}

	if err := s.accounts.Upsert(ctx, snapshot); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("kyc service: не удалось сохранить снимок счёта")
	}
}

// verificationRank задаёт порядок уровней верификации.
func verificationRank(level string) int {
	switch level {
	case models.VerificationLevelBasic:
		return 1
	case models.VerificationLevelEnhanced:
		return 2
	default:
		return 0
	}
}

// processorFailure превращает отказ процессора в AppError со статусом 402,
// передавая сообщение процессора вызывающему как есть.
func processorFailure(err error) error {
	var procErr *payments.ProcessorError
	if errors.As(err, &procErr) {
		return apperror.Wrap(err, apperror.ErrCodePaymentFailed, procErr.Message).
			WithStatus(http.StatusPaymentRequired)
	}
	return apperror.Wrap(err, apperror.ErrCodePaymentFailed, "платёжный процессор недоступен").
		WithStatus(http.StatusBadGateway)
}

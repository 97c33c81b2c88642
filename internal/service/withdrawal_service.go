package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/pkg/apperror"
	"github.com/contracthub/backend/internal/validation"
)

// WithdrawalStore описывает хранилище заявок на вывод.
type WithdrawalStore interface {
	Create(ctx context.Context, userID uuid.UUID, amount float64, destinationLast4, bankName *string) (*models.Withdrawal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, rejectionReason *string) error
}

// EligibilityChecker описывает проверку права на вывод.
type EligibilityChecker interface {
	CheckWithdrawalEligibility(ctx context.Context, userID uuid.UUID, amount float64) (*models.WithdrawalEligibility, error)
}

// WithdrawalService содержит бизнес-логику вывода освобождённых средств.
type WithdrawalService struct {
	repo        WithdrawalStore
	eligibility EligibilityChecker
	users       UserStore
}

// NewWithdrawalService создаёт сервис вывода средств.
func NewWithdrawalService(repo WithdrawalStore, eligibility EligibilityChecker, users UserStore) *WithdrawalService {
	return &WithdrawalService{
		repo:        repo,
		eligibility: eligibility,
		users:       users,
	}
}

// RequestWithdrawalInput описывает заявку на вывод.
type RequestWithdrawalInput struct {
	UserID           uuid.UUID
	Amount           float64
	DestinationLast4 *string
	BankName         *string
}

// RequestWithdrawal проверяет уровень верификации и создаёт заявку.
// Баланс списывается под блокировкой строки на уровне репозитория.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, in RequestWithdrawalInput) (*models.Withdrawal, error) {
	if err := validation.ValidateAmount("сумма вывода", in.Amount); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	eligibility, err := s.eligibility.CheckWithdrawalEligibility(ctx, in.UserID, in.Amount)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, apperror.New(apperror.ErrCodeForbidden, "недостаточный уровень верификации для вывода этой суммы").
			WithDetails(eligibility)
	}

	return s.repo.Create(ctx, in.UserID, in.Amount, in.DestinationLast4, in.BankName)
}

// GetBalance возвращает текущий баланс пользователя.
func (s *WithdrawalService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	return s.users.GetBalance(ctx, userID)
}

// ListWithdrawals возвращает историю заявок пользователя.
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// CheckEligibility возвращает результат проверки без создания заявки.
func (s *WithdrawalService) CheckEligibility(ctx context.Context, userID uuid.UUID, amount float64) (*models.WithdrawalEligibility, error) {
	return s.eligibility.CheckWithdrawalEligibility(ctx, userID, amount)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/repository/common"
)

var (
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)

type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create списывает сумму с доступного баланса и создаёт заявку на вывод.
// Баланс блокируется FOR UPDATE: параллельные заявки не уводят его в минус.
func (r *WithdrawalRepository) Create(ctx context.Context, userID uuid.UUID, amount float64, destinationLast4, bankName *string) (*models.Withdrawal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var available float64
	err = tx.GetContext(ctx, &available, `SELECT available FROM user_balances WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}
	if available < amount {
		return nil, ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx, `UPDATE user_balances SET available = available - $2, updated_at = NOW() WHERE user_id = $1`, userID, amount)
	if err != nil {
		return nil, err
	}

	var w models.Withdrawal
	err = tx.GetContext(ctx, &w, `
		INSERT INTO withdrawals (user_id, amount, status, destination_last4, bank_name)
		VALUES ($1, $2, 'pending', $3, $4)
		RETURNING *
	`, userID, amount, destinationLast4, bankName)
	if err != nil {
		return nil, err
	}

	return &w, tx.Commit()
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return common.GetByID[models.Withdrawal](ctx, r.db, "withdrawals", id, ErrWithdrawalNotFound)
}

func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return withdrawals, err
}

// UpdateStatus меняет статус заявки. Отклонённая заявка возвращает сумму на баланс.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, rejectionReason *string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var w models.Withdrawal
		now := time.Now()
		err := tx.GetContext(ctx, &w, `
			UPDATE withdrawals SET status = $2, rejection_reason = $3, processed_at = $4
			WHERE id = $1
			RETURNING *
		`, id, status, rejectionReason, now)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWithdrawalNotFound
			}
			return err
		}

		if status == models.WithdrawalStatusRejected {
			_, err = tx.ExecContext(ctx, `
				UPDATE user_balances SET available = available + $2, updated_at = NOW() WHERE user_id = $1
			`, w.UserID, w.Amount)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

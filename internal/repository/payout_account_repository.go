package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/repository/common"
)

var ErrPayoutAccountNotFound = errors.New("payout account not found")

// PayoutAccountRepository хранит снимки состояния подключённых счетов.
// Снимок обновляется после каждого живого запроса к процессору и служит
// только для отображения: решения о выплатах по нему не принимаются.
type PayoutAccountRepository struct {
	db *sqlx.DB
}

// NewPayoutAccountRepository создаёт экземпляр репозитория.
func NewPayoutAccountRepository(db *sqlx.DB) *PayoutAccountRepository {
	return &PayoutAccountRepository{db: db}
}

// Upsert создаёт или обновляет снимок состояния счёта.
func (r *PayoutAccountRepository) Upsert(ctx context.Context, a *models.PayoutAccount) error {
	query := `
		INSERT INTO payout_accounts (user_id, external_account_id, transfers_active, payouts_enabled, requirements_due, requirements_past_due, disabled_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET external_account_id = EXCLUDED.external_account_id,
			transfers_active = EXCLUDED.transfers_active,
			payouts_enabled = EXCLUDED.payouts_enabled,
			requirements_due = EXCLUDED.requirements_due,
			requirements_past_due = EXCLUDED.requirements_past_due,
			disabled_reason = EXCLUDED.disabled_reason,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		a.UserID, a.ExternalAccountID, a.TransfersActive, a.PayoutsEnabled,
		a.RequirementsDue, a.RequirementsPastDue, a.DisabledReason,
	).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("payout account repository: upsert %w", err)
	}

	return nil
}

// GetByUserID возвращает снимок счёта пользователя.
func (r *PayoutAccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error) {
	return common.GetByField[models.PayoutAccount](ctx, r.db, "payout_accounts", "user_id", userID, ErrPayoutAccountNotFound)
}

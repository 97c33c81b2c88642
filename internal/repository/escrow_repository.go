package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/repository/common"
)

var (
	ErrEscrowNotFound   = errors.New("escrow entry not found")
	ErrNothingToRelease = errors.New("nothing to release")
)

// EscrowRepository отвечает за леджер escrow_entries. Денежные переходы
// выражены условными UPDATE: гонка двух release или двух подтверждений
// разрешается на уровне БД, а не в памяти процесса.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт экземпляр репозитория.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create сохраняет запись леджера в статусе pending с привязкой к сессии оплаты.
func (r *EscrowRepository) Create(ctx context.Context, e *models.EscrowEntry) error {
	query := `
		INSERT INTO escrow_entries (contract_id, milestone_id, payer_id, payee_id, amount, currency, platform_fee, processor_fee, status, session_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9)
		RETURNING id, released_amount, status, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		e.ContractID, e.MilestoneID, e.PayerID, e.PayeeID,
		e.Amount, e.Currency, e.PlatformFee, e.ProcessorFee, e.SessionRef,
	).Scan(&e.ID, &e.ReleasedAmount, &e.Status, &e.CreatedAt); err != nil {
		return fmt.Errorf("escrow repository: create %w", err)
	}

	return nil
}

// GetByID возвращает запись леджера по идентификатору.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowEntry, error) {
	return common.GetByID[models.EscrowEntry](ctx, r.db, "escrow_entries", id, ErrEscrowNotFound)
}

// GetBySessionRef возвращает запись по идентификатору сессии оплаты.
func (r *EscrowRepository) GetBySessionRef(ctx context.Context, sessionRef string) (*models.EscrowEntry, error) {
	return common.GetByField[models.EscrowEntry](ctx, r.db, "escrow_entries", "session_ref", sessionRef, ErrEscrowNotFound)
}

// ListByContract возвращает все записи леджера контракта.
func (r *EscrowRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.EscrowEntry, error) {
	var entries []models.EscrowEntry
	if err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM escrow_entries WHERE contract_id = $1 ORDER BY created_at
	`, contractID); err != nil {
		return nil, fmt.Errorf("escrow repository: list by contract %w", err)
	}

	return entries, nil
}

// MarkHeld переводит запись из pending в held ровно один раз.
// Повторное подтверждение той же сессии возвращает false без побочных эффектов.
func (r *EscrowRepository) MarkHeld(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE escrow_entries SET status = 'held', held_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("escrow repository: mark held %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("escrow repository: mark held rows affected %w", err)
	}

	return rowsAffected > 0, nil
}

// FindHeld возвращает удерживаемую запись для release: по этапу, если он указан,
// иначе самую старую held-запись контракта.
func (r *EscrowRepository) FindHeld(ctx context.Context, contractID uuid.UUID, milestoneID *uuid.UUID) (*models.EscrowEntry, error) {
	var entry models.EscrowEntry
	var err error

	if milestoneID != nil {
		err = r.db.GetContext(ctx, &entry, `
			SELECT * FROM escrow_entries WHERE contract_id = $1 AND milestone_id = $2 AND status = 'held'
		`, contractID, *milestoneID)
	} else {
		err = r.db.GetContext(ctx, &entry, `
			SELECT * FROM escrow_entries WHERE contract_id = $1 AND status = 'held' ORDER BY created_at LIMIT 1
		`, contractID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: find held %w", err)
	}

	return &entry, nil
}

// Release выплачивает amount из удерживаемой записи и начисляет её получателю.
// Весь переход — один условный UPDATE: запись обязана быть held, а сумма —
// не превышать остаток. Проигравший гонку конкурентный release получает
// ErrNothingToRelease, двойная выплата исключена.
func (r *EscrowRepository) Release(ctx context.Context, id uuid.UUID, amount float64) (*models.EscrowEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var entry models.EscrowEntry
	err = tx.GetContext(ctx, &entry, `
		UPDATE escrow_entries
		SET released_amount = released_amount + $2,
			status = CASE WHEN released_amount + $2 >= amount THEN 'released' ELSE status END,
			released_at = CASE WHEN released_amount + $2 >= amount THEN NOW() ELSE released_at END
		WHERE id = $1 AND status = 'held' AND released_amount + $2 <= amount
		RETURNING *
	`, id, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNothingToRelease
		}
		return nil, fmt.Errorf("escrow repository: release %w", err)
	}

	// Начисляем получателю на внутренний баланс
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
	`, entry.PayeeID, amount)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: release credit balance %w", err)
	}

	return &entry, tx.Commit()
}

// RevertRelease откатывает заявленную, но не переведённую выплату:
// вызывается, когда процессор отклонил перевод после условного UPDATE.
func (r *EscrowRepository) RevertRelease(ctx context.Context, id uuid.UUID, amount float64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var entry models.EscrowEntry
	err = tx.GetContext(ctx, &entry, `
		UPDATE escrow_entries
		SET released_amount = released_amount - $2,
			status = 'held',
			released_at = NULL
		WHERE id = $1 AND released_amount >= $2
		RETURNING *
	`, id, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEscrowNotFound
		}
		return fmt.Errorf("escrow repository: revert release %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET available = available - $2, updated_at = NOW() WHERE user_id = $1
	`, entry.PayeeID, amount)
	if err != nil {
		return fmt.Errorf("escrow repository: revert release debit balance %w", err)
	}

	return tx.Commit()
}

// SetTransferRef записывает идентификатор перевода после ответа процессора.
func (r *EscrowRepository) SetTransferRef(ctx context.Context, id uuid.UUID, transferRef string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE escrow_entries SET transfer_ref = $2 WHERE id = $1
	`, id, transferRef); err != nil {
		return fmt.Errorf("escrow repository: set transfer ref %w", err)
	}
	return nil
}

// Refund возвращает удерживаемую запись клиенту при отмене контракта.
func (r *EscrowRepository) Refund(ctx context.Context, id uuid.UUID) (*models.EscrowEntry, error) {
	var entry models.EscrowEntry
	err := r.db.GetContext(ctx, &entry, `
		UPDATE escrow_entries SET status = 'refunded', released_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'held')
		RETURNING *
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: refund %w", err)
	}

	return &entry, nil
}

// CountOutstanding возвращает число незакрытых записей контракта
// (pending или held). Ноль означает, что удерживать больше нечего.
func (r *EscrowRepository) CountOutstanding(ctx context.Context, contractID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM escrow_entries WHERE contract_id = $1 AND status IN ('pending', 'held')
	`, contractID); err != nil {
		return 0, fmt.Errorf("escrow repository: count outstanding %w", err)
	}

	return count, nil
}

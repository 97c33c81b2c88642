package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/contracthub/backend/internal/models"
	"github.com/contracthub/backend/internal/repository/common"
)

var (
	ErrContractNotFound  = errors.New("contract not found")
	ErrPartyNotFound     = errors.New("contract party not found")
	ErrMilestoneNotFound = errors.New("milestone not found")
)

// ContractRepository отвечает за работу с таблицами contracts, contract_parties,
// milestones и deliverables. Статусы здесь не валидируются: переходы проверяет
// сервисный слой через valueobject, репозиторий только записывает.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository создаёт экземпляр репозитория.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create создаёт контракт вместе со сторонами и этапами в одной транзакции.
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract, parties []models.ContractParty, milestones []models.Milestone) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO contracts (creator_id, title, description, total_amount, currency, type, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, is_funded, created_at, updated_at
		`
		if err := tx.QueryRowxContext(
			ctx, query,
			contract.CreatorID, contract.Title, contract.Description,
			contract.TotalAmount, contract.Currency, contract.Type, contract.Status,
		).Scan(&contract.ID, &contract.IsFunded, &contract.CreatedAt, &contract.UpdatedAt); err != nil {
			return fmt.Errorf("contract repository: create %w", err)
		}

		for i := range parties {
			parties[i].ContractID = contract.ID
			if err := tx.QueryRowxContext(ctx, `
				INSERT INTO contract_parties (contract_id, user_id, role, status)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, parties[i].ContractID, parties[i].UserID, parties[i].Role, parties[i].Status).
				Scan(&parties[i].ID); err != nil {
				return fmt.Errorf("contract repository: create party %w", err)
			}
		}

		if len(milestones) > 0 {
			inserter := common.NewBatchInserter(tx, `
				INSERT INTO milestones (contract_id, title, amount, status, due_date, order_index)
			`, 6, 100)
			for i := range milestones {
				milestones[i].ContractID = contract.ID
				if err := inserter.Add(ctx,
					milestones[i].ContractID, milestones[i].Title, milestones[i].Amount,
					milestones[i].Status, milestones[i].DueDate, milestones[i].OrderIndex,
				); err != nil {
					return fmt.Errorf("contract repository: add milestone %w", err)
				}
			}
			if err := inserter.Flush(ctx); err != nil {
				return fmt.Errorf("contract repository: insert milestones %w", err)
			}
		}

		return nil
	})
}

// GetByID возвращает контракт по идентификатору.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return common.GetByID[models.Contract](ctx, r.db, "contracts", id, ErrContractNotFound)
}

// GetWithParties возвращает контракт вместе со всеми сторонами.
func (r *ContractRepository) GetWithParties(ctx context.Context, id uuid.UUID) (*models.ContractWithParties, error) {
	contract, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var parties []models.ContractParty
	if err := r.db.SelectContext(ctx, &parties, `
		SELECT * FROM contract_parties WHERE contract_id = $1 ORDER BY role
	`, id); err != nil {
		return nil, fmt.Errorf("contract repository: get parties %w", err)
	}

	return &models.ContractWithParties{Contract: *contract, Parties: parties}, nil
}

// ListByUser возвращает контракты, стороной которых является пользователь.
func (r *ContractRepository) ListByUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Contract, error) {
	query := `
		SELECT c.* FROM contracts c
		JOIN contract_parties cp ON cp.contract_id = c.id
		WHERE cp.user_id = $1
	`
	args := []interface{}{userID}
	argNum := 2

	if status != "" {
		query += fmt.Sprintf(" AND c.status = $%d", argNum)
		args = append(args, status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limit, offset)

	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, args...); err != nil {
		return nil, fmt.Errorf("contract repository: list by user %w", err)
	}

	return contracts, nil
}

// UpdateStatus записывает новый статус контракта.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE contracts SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("contract repository: update status %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("contract repository: update status rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrContractNotFound
	}

	return nil
}

// UpdateDraft обновляет содержимое контракта. Редактируется только черновик,
// контракт в любом другом статусе не трогаем.
func (r *ContractRepository) UpdateDraft(ctx context.Context, contract *models.Contract) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE contracts
		SET title = $2, description = $3, total_amount = $4, currency = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
	`, contract.ID, contract.Title, contract.Description, contract.TotalAmount, contract.Currency)
	if err != nil {
		return fmt.Errorf("contract repository: update draft %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("contract repository: update draft rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrContractNotFound
	}

	return nil
}

// MarkCompleted переводит контракт в completed и фиксирует время завершения.
func (r *ContractRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE contracts SET status = 'completed', completed_at = NOW(), updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("contract repository: mark completed %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("contract repository: mark completed rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrContractNotFound
	}

	return nil
}

// MarkFunded выставляет is_funded ровно один раз: повторная пометка не проходит.
func (r *ContractRepository) MarkFunded(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE contracts SET is_funded = TRUE, funded_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_funded = FALSE
	`, id)
	if err != nil {
		return false, fmt.Errorf("contract repository: mark funded %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("contract repository: mark funded rows affected %w", err)
	}

	return rowsAffected > 0, nil
}

// SignParty записывает подпись стороны. Повторная подпись не проходит.
func (r *ContractRepository) SignParty(ctx context.Context, contractID, userID uuid.UUID, signature string) (*models.ContractParty, error) {
	var party models.ContractParty
	now := time.Now()
	err := r.db.GetContext(ctx, &party, `
		UPDATE contract_parties
		SET status = 'signed', signature = $3, signed_at = $4
		WHERE contract_id = $1 AND user_id = $2 AND status = 'pending'
		RETURNING *
	`, contractID, userID, signature, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPartyNotFound
		}
		return nil, fmt.Errorf("contract repository: sign party %w", err)
	}

	return &party, nil
}

// GetMilestoneByID возвращает этап по идентификатору.
func (r *ContractRepository) GetMilestoneByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return common.GetByID[models.Milestone](ctx, r.db, "milestones", id, ErrMilestoneNotFound)
}

// ListMilestones возвращает этапы контракта в порядке исполнения.
func (r *ContractRepository) ListMilestones(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	if err := r.db.SelectContext(ctx, &milestones, `
		SELECT * FROM milestones WHERE contract_id = $1 ORDER BY order_index
	`, contractID); err != nil {
		return nil, fmt.Errorf("contract repository: list milestones %w", err)
	}

	return milestones, nil
}

// UpdateMilestoneStatus записывает новый статус этапа.
func (r *ContractRepository) UpdateMilestoneStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE milestones SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("contract repository: update milestone status %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("contract repository: update milestone status rows affected %w", err)
	}
	if rowsAffected == 0 {
		return ErrMilestoneNotFound
	}

	return nil
}

// CountUnfinishedMilestones возвращает число этапов контракта, не дошедших до completed.
func (r *ContractRepository) CountUnfinishedMilestones(ctx context.Context, contractID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM milestones WHERE contract_id = $1 AND status != 'completed'
	`, contractID); err != nil {
		return 0, fmt.Errorf("contract repository: count unfinished milestones %w", err)
	}

	return count, nil
}

// CreateDeliverable сохраняет сданную работу по этапу.
func (r *ContractRepository) CreateDeliverable(ctx context.Context, d *models.Deliverable) error {
	query := `
		INSERT INTO deliverables (contract_id, milestone_id, submitted_by, message, file_path, file_name, file_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		d.ContractID, d.MilestoneID, d.SubmittedBy, d.Message, d.FilePath, d.FileName, d.FileSize,
	).Scan(&d.ID, &d.CreatedAt); err != nil {
		return fmt.Errorf("contract repository: create deliverable %w", err)
	}

	return nil
}

// ListDeliverables возвращает сданные работы по этапу, свежие первыми.
func (r *ContractRepository) ListDeliverables(ctx context.Context, milestoneID uuid.UUID) ([]models.Deliverable, error) {
	var deliverables []models.Deliverable
	if err := r.db.SelectContext(ctx, &deliverables, `
		SELECT * FROM deliverables WHERE milestone_id = $1 ORDER BY created_at DESC
	`, milestoneID); err != nil {
		return nil, fmt.Errorf("contract repository: list deliverables %w", err)
	}

	return deliverables, nil
}

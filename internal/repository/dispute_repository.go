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

var ErrDisputeNotFound = errors.New("dispute not found")

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (contract_id, initiated_by, type, reason, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowContext(ctx, query, d.ContractID, d.InitiatedBy, d.Type, d.Reason, d.Status).
		Scan(&d.ID, &d.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: create %w", err)
	}
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

// GetOpenByContract возвращает открытый спор по контракту, если он есть.
func (r *DisputeRepository) GetOpenByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `SELECT * FROM disputes WHERE contract_id = $1 AND status = 'open'`, contractID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	return &d, err
}

func (r *DisputeRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE contract_id = $1 ORDER BY created_at DESC
	`, contractID)
	return disputes, err
}

func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT DISTINCT d.* FROM disputes d
		JOIN contract_parties cp ON cp.contract_id = d.contract_id
		WHERE cp.user_id = $1
		ORDER BY d.created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return disputes, err
}

// Resolve закрывает спор ровно один раз: повторное разрешение не проходит.
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, resolution string, resolvedBy uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		UPDATE disputes SET status = 'resolved', resolution = $2, resolved_by = $3, resolved_at = NOW()
		WHERE id = $1 AND status = 'open'
		RETURNING *
	`, id, resolution, resolvedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: resolve %w", err)
	}
	return &d, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Milestone описывает этап контракта со своей суммой и жизненным циклом приёмки.
// Для контрактов типа milestone сумма этапов обязана совпадать с total_amount.
type Milestone struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ContractID uuid.UUID  `db:"contract_id" json:"contract_id"`
	Title      string     `db:"title" json:"title"`
	Amount     float64    `db:"amount" json:"amount"`
	Status     string     `db:"status" json:"status"`
	DueDate    *time.Time `db:"due_date" json:"due_date,omitempty"`
	OrderIndex int        `db:"order_index" json:"order_index"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Deliverable описывает сданную работу по этапу.
type Deliverable struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ContractID  uuid.UUID `db:"contract_id" json:"contract_id"`
	MilestoneID uuid.UUID `db:"milestone_id" json:"milestone_id"`
	SubmittedBy uuid.UUID `db:"submitted_by" json:"submitted_by"`
	Message     *string   `db:"message" json:"message,omitempty"`
	FilePath    *string   `db:"file_path" json:"file_path,omitempty"`
	FileName    *string   `db:"file_name" json:"file_name,omitempty"`
	FileSize    *int64    `db:"file_size" json:"file_size,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

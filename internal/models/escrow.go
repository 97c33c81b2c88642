package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы записи escrow-леджера.
// pending — сессия оплаты создана, подтверждения ещё нет;
// held — захват средств подтверждён процессором;
// released — средства переведены фрилансеру (возможно несколькими частями);
// refunded — средства возвращены клиенту.
const (
	EscrowStatusPending  = "pending"
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// EscrowEntry — запись леджера об одном удержании средств по контракту
// или его этапу. Переход held→released выполняется ровно один раз,
// условным UPDATE на уровне репозитория.
type EscrowEntry struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ContractID     uuid.UUID  `db:"contract_id" json:"contract_id"`
	MilestoneID    *uuid.UUID `db:"milestone_id" json:"milestone_id,omitempty"`
	PayerID        uuid.UUID  `db:"payer_id" json:"payer_id"`
	PayeeID        uuid.UUID  `db:"payee_id" json:"payee_id"`
	Amount         float64    `db:"amount" json:"amount"`
	ReleasedAmount float64    `db:"released_amount" json:"released_amount"`
	Currency       string     `db:"currency" json:"currency"`
	PlatformFee    float64    `db:"platform_fee" json:"platform_fee"`
	ProcessorFee   float64    `db:"processor_fee" json:"processor_fee"`
	Status         string     `db:"status" json:"status"`
	SessionRef     *string    `db:"session_ref" json:"session_ref,omitempty"`
	TransferRef    *string    `db:"transfer_ref" json:"transfer_ref,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	HeldAt         *time.Time `db:"held_at" json:"held_at,omitempty"`
	ReleasedAt     *time.Time `db:"released_at" json:"released_at,omitempty"`
}

// Remaining возвращает невыплаченный остаток записи.
func (e *EscrowEntry) Remaining() float64 {
	return e.Amount - e.ReleasedAmount
}

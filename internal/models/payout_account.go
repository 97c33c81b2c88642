package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PayoutAccount — подключённый счёт фрилансера у платёжного процессора.
// Флаги верификации — это кэш последнего известного состояния: решение
// о выплате всегда принимается по живому ответу процессора, кэш только
// отображается в профиле. Запись не удаляется, только обновляется.
type PayoutAccount struct {
	UserID              uuid.UUID       `db:"user_id" json:"user_id"`
	ExternalAccountID   string          `db:"external_account_id" json:"external_account_id"`
	TransfersActive     bool            `db:"transfers_active" json:"transfers_active"`
	PayoutsEnabled      bool            `db:"payouts_enabled" json:"payouts_enabled"`
	RequirementsDue     json.RawMessage `db:"requirements_due" json:"requirements_due"`
	RequirementsPastDue json.RawMessage `db:"requirements_past_due" json:"requirements_past_due"`
	DisabledReason      *string         `db:"disabled_reason" json:"disabled_reason,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"
)

// Типы споров.
const (
	DisputeTypeQuality  = "quality"
	DisputeTypeDeadline = "deadline"
	DisputeTypePayment  = "payment"
	DisputeTypeOther    = "other"
)

// ValidDisputeTypes список валидных типов споров.
var ValidDisputeTypes = map[string]struct{}{
	DisputeTypeQuality:  {},
	DisputeTypeDeadline: {},
	DisputeTypePayment:  {},
	DisputeTypeOther:    {},
}

// Dispute описывает спор по контракту. Спор не блокирует release сам по себе:
// блокирует только переход контракта в статус disputed.
type Dispute struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ContractID  uuid.UUID  `db:"contract_id" json:"contract_id"`
	InitiatedBy uuid.UUID  `db:"initiated_by" json:"initiated_by"`
	Type        string     `db:"type" json:"type"`
	Reason      string     `db:"reason" json:"reason"`
	Status      string     `db:"status" json:"status"`
	Resolution  *string    `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy  *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

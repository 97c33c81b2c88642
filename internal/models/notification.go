package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// События уведомлений.
const (
	NotificationContractSent     = "contract.sent"
	NotificationContractSigned   = "contract.signed"
	NotificationContractFunded   = "contract.funded"
	NotificationDeliverableSent  = "deliverable.submitted"
	NotificationMilestoneClosed  = "milestone.approved"
	NotificationRevisionRequest  = "milestone.revision_requested"
	NotificationPaymentReleased  = "payment.released"
	NotificationContractComplete = "contract.completed"
	NotificationDisputeOpened    = "dispute.opened"
	NotificationDisputeResolved  = "dispute.resolved"
)

type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы контрактов.
const (
	ContractTypeFixed     = "fixed"
	ContractTypeMilestone = "milestone"
	ContractTypeHourly    = "hourly"
)

// Роли сторон контракта.
const (
	PartyRoleCreator    = "creator"
	PartyRoleClient     = "client"
	PartyRoleFreelancer = "freelancer"
)

// Статусы сторон.
const (
	PartyStatusPending = "pending"
	PartyStatusSigned  = "signed"
)

// ValidContractTypes список валидных типов контрактов.
var ValidContractTypes = map[string]struct{}{
	ContractTypeFixed:     {},
	ContractTypeMilestone: {},
	ContractTypeHourly:    {},
}

// Contract описывает контракт между клиентом и фрилансером.
// Поле Status меняется только через valueobject.ContractStatus.CanTransitionTo —
// репозиторий не принимает произвольных статусов.
type Contract struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	CreatorID   uuid.UUID  `db:"creator_id" json:"creator_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	TotalAmount float64    `db:"total_amount" json:"total_amount"`
	Currency    string     `db:"currency" json:"currency"`
	Type        string     `db:"type" json:"type"`
	Status      string     `db:"status" json:"status"`
	IsFunded    bool       `db:"is_funded" json:"is_funded"`
	FundedAt    *time.Time `db:"funded_at" json:"funded_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ContractParty описывает сторону контракта и её подпись.
type ContractParty struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ContractID uuid.UUID  `db:"contract_id" json:"contract_id"`
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	Role       string     `db:"role" json:"role"`
	Status     string     `db:"status" json:"status"`
	Signature  *string    `db:"signature" json:"signature,omitempty"`
	SignedAt   *time.Time `db:"signed_at" json:"signed_at,omitempty"`
}

// ContractWithParties объединяет контракт со сторонами для проверок доступа.
type ContractWithParties struct {
	Contract
	Parties []ContractParty `json:"parties"`
}

// PartyByUser возвращает сторону контракта для указанного пользователя.
func (c *ContractWithParties) PartyByUser(userID uuid.UUID) *ContractParty {
	for i := range c.Parties {
		if c.Parties[i].UserID == userID {
			return &c.Parties[i]
		}
	}
	return nil
}

// PartyByRole возвращает сторону контракта с указанной ролью.
func (c *ContractWithParties) PartyByRole(role string) *ContractParty {
	for i := range c.Parties {
		if c.Parties[i].Role == role {
			return &c.Parties[i]
		}
	}
	return nil
}

// FullySigned сообщает, подписали ли контракт все стороны.
func (c *ContractWithParties) FullySigned() bool {
	if len(c.Parties) == 0 {
		return false
	}
	for i := range c.Parties {
		if c.Parties[i].Status != PartyStatusSigned {
			return false
		}
	}
	return true
}

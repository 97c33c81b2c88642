package payments

import (
	"context"
	"errors"
	"fmt"
)

// Статусы сессии оплаты у процессора.
const (
	SessionStatusOpen    = "open"
	SessionStatusPaid    = "paid"
	SessionStatusExpired = "expired"
)

// FundingSession — hosted checkout сессия для списания средств клиента.
type FundingSession struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Transfer — перевод средств на подключённый счёт фрилансера.
type Transfer struct {
	ID            string `json:"id"`
	AmountMinor   int64  `json:"amount"`
	Currency      string `json:"currency"`
	Destination   string `json:"destination"`
	TransferGroup string `json:"transfer_group"`
}

// AccountStatus — живое состояние верификации подключённого счёта.
type AccountStatus struct {
	AccountID                string   `json:"account_id"`
	TransfersActive          bool     `json:"transfers_active"`
	PayoutsEnabled           bool     `json:"payouts_enabled"`
	RequirementsCurrentlyDue []string `json:"requirements_currently_due"`
	RequirementsPastDue      []string `json:"requirements_past_due"`
	DisabledReason           string   `json:"disabled_reason,omitempty"`
}

// ConnectedAccount — результат создания счёта для выплат.
type ConnectedAccount struct {
	ID            string `json:"id"`
	OnboardingURL string `json:"onboarding_url"`
}

// CreateFundingSessionInput — параметры сессии оплаты. Metadata содержит
// contract_id и разбивку сумм для последующей сверки.
type CreateFundingSessionInput struct {
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
}

// TransferInput — параметры перевода. TransferGroup выводится из id контракта,
// чтобы частичные release были атрибутируемы одному контракту.
type TransferInput struct {
	AmountMinor   int64
	Currency      string
	Destination   string
	TransferGroup string
	Metadata      map[string]string
}

// Processor — возможности внешнего платёжного процессора, которые использует
// ядро. Сервисы зависят только от этого интерфейса.
type Processor interface {
	CreateFundingSession(ctx context.Context, in CreateFundingSessionInput) (*FundingSession, error)
	GetFundingSession(ctx context.Context, sessionID string) (*FundingSession, error)
	TransferFunds(ctx context.Context, in TransferInput) (*Transfer, error)
	GetConnectedAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)
	CreateConnectedAccount(ctx context.Context, email string) (*ConnectedAccount, error)
}

// ProcessorError — ошибка, возвращённая процессором. Сообщение передаётся
// вызывающему как есть, без маскирования.
type ProcessorError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProcessorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payments: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("payments: %s", e.Message)
}

// IsProcessorError сообщает, является ли ошибка отказом процессора.
func IsProcessorError(err error) bool {
	var procErr *ProcessorError
	return errors.As(err, &procErr)
}

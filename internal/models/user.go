package models

import (
	"time"

	"github.com/google/uuid"
)

// Тарифы подписки. Тариф плательщика определяет комиссию платформы
// в момент финансирования контракта.
const (
	SubscriptionTierFree         = "free"
	SubscriptionTierProfessional = "professional"
	SubscriptionTierBusiness     = "business"
)

// Уровни верификации личности (для вывода средств).
const (
	VerificationLevelNone     = "none"
	VerificationLevelBasic    = "basic"
	VerificationLevelEnhanced = "enhanced"
)

// ValidSubscriptionTiers список валидных тарифов.
var ValidSubscriptionTiers = map[string]struct{}{
	SubscriptionTierFree:         {},
	SubscriptionTierProfessional: {},
	SubscriptionTierBusiness:     {},
}

// User описывает сущность пользователя платформы.
type User struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	Username          string     `db:"username" json:"username"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	Role              string     `db:"role" json:"role"`
	SubscriptionTier  string     `db:"subscription_tier" json:"subscription_tier"`
	VerificationLevel string     `db:"verification_level" json:"verification_level"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	LastLoginAt       *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Session представляет сохранённую сессию пользователя.
type Session struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	RefreshToken string    `db:"refresh_token" json:"refresh_token"`
	UserAgent    *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserBalance представляет внутренний баланс пользователя
// (освобождённые из escrow средства до вывода).
type UserBalance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Available float64   `db:"available" json:"available"`
	Frozen    float64   `db:"frozen" json:"frozen"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

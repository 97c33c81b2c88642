package dto

import (
	"github.com/contracthub/backend/internal/models"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// AuthResponse represents a token pair with the authenticated user
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// ContractResponse represents a contract with its parties, milestones and ledger
type ContractResponse struct {
	*models.Contract
	Parties    []models.ContractParty `json:"parties"`
	Milestones []models.Milestone     `json:"milestones"`
	Ledger     []models.EscrowEntry   `json:"ledger,omitempty"`
}

// OnboardingResponse represents a connected-account onboarding link
type OnboardingResponse struct {
	OnboardingURL string `json:"onboarding_url"`
}

// NotificationsResponse represents a page of notifications with the unread count
type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

package dto

// RegisterRequest represents the request to register a new user
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginRequest represents the request to authenticate
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the request to rotate a token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateProfileRequest represents the request to update the profile
type UpdateProfileRequest struct {
	Username string `json:"username" binding:"required"`
}

// ChangeSubscriptionRequest represents the request to switch the subscription tier
type ChangeSubscriptionRequest struct {
	Tier string `json:"tier" binding:"required"`
}

// MilestoneRequest represents one milestone in a contract creation request
type MilestoneRequest struct {
	Title   string  `json:"title" binding:"required"`
	Amount  float64 `json:"amount" binding:"required"`
	DueDate *string `json:"due_date"`
}

// CreateContractRequest represents the request to create a contract
type CreateContractRequest struct {
	ClientID     string             `json:"client_id" binding:"required"`
	FreelancerID string             `json:"freelancer_id" binding:"required"`
	Title        string             `json:"title" binding:"required"`
	Description  string             `json:"description" binding:"required"`
	TotalAmount  float64            `json:"total_amount" binding:"required"`
	Currency     string             `json:"currency"`
	Type         string             `json:"type" binding:"required"`
	Milestones   []MilestoneRequest `json:"milestones"`
}

// UpdateContractRequest represents the request to edit a draft contract
type UpdateContractRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description" binding:"required"`
	TotalAmount float64 `json:"total_amount" binding:"required"`
	Currency    string  `json:"currency"`
}

// SignContractRequest represents the request to sign a contract
type SignContractRequest struct {
	Signature string `json:"signature" binding:"required"`
}

// FundEscrowRequest represents the request to start a funding session
type FundEscrowRequest struct {
	MilestoneID *string `json:"milestone_id"`
}

// ConfirmFundingRequest represents the request to confirm a paid session
type ConfirmFundingRequest struct {
	SessionRef string `json:"session_ref" binding:"required"`
}

// ReleaseEscrowRequest represents the request to release held funds
type ReleaseEscrowRequest struct {
	MilestoneID *string  `json:"milestone_id"`
	Amount      *float64 `json:"amount"`
}

// OpenDisputeRequest represents the request to open a dispute
type OpenDisputeRequest struct {
	Type   string `json:"type" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// ResolveDisputeRequest represents the request to resolve a dispute
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	NextStatus string `json:"next_status" binding:"required"`
}

// WithdrawalRequest represents the request to withdraw from the balance
type WithdrawalRequest struct {
	Amount           float64 `json:"amount" binding:"required"`
	DestinationLast4 *string `json:"destination_last4"`
	BankName         *string `json:"bank_name"`
}

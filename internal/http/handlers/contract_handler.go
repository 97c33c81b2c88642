package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contracthub/backend/internal/dto"
	"github.com/contracthub/backend/internal/http/handlers/common"
	"github.com/contracthub/backend/internal/service"
)

// ContractHandler предоставляет HTTP слой жизненного цикла контракта.
type ContractHandler struct {
	contracts *service.ContractService
	escrow    *service.EscrowService
}

// NewContractHandler создаёт хэндлер.
func NewContractHandler(contracts *service.ContractService, escrow *service.EscrowService) *ContractHandler {
	return &ContractHandler{contracts: contracts, escrow: escrow}
}

// CreateContract обрабатывает POST /contracts.
func (h *ContractHandler) CreateContract(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id должен быть валидным UUID"})
		return
	}
	freelancerID, err := uuid.Parse(req.FreelancerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "freelancer_id должен быть валидным UUID"})
		return
	}

	milestones := make([]service.MilestoneInput, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		in := service.MilestoneInput{Title: m.Title, Amount: m.Amount}
		if m.DueDate != nil {
			due, err := time.Parse(time.RFC3339, *m.DueDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "due_date должен быть в формате RFC3339"})
				return
			}
			in.DueDate = &due
		}
		milestones = append(milestones, in)
	}

	details, err := h.contracts.CreateContract(c.Request.Context(), service.CreateContractInput{
		CreatorID:    userID,
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Title:        req.Title,
		Description:  req.Description,
		TotalAmount:  req.TotalAmount,
		Currency:     req.Currency,
		Type:         req.Type,
		Milestones:   milestones,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, details)
}

// ListContracts обрабатывает GET /contracts.
func (h *ContractHandler) ListContracts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit, offset := common.GetPagination(c)
	contracts, err := h.contracts.ListContracts(c.Request.Context(), userID, c.Query("status"), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// GetContract обрабатывает GET /contracts/:id: контракт со сторонами,
// этапами и леджером.
func (h *ContractHandler) GetContract(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	details, err := h.contracts.GetContract(c.Request.Context(), contractID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	ledger, err := h.escrow.GetLedger(c.Request.Context(), contractID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ContractResponse{
		Contract:   &details.Contract,
		Parties:    details.Parties,
		Milestones: details.Milestones,
		Ledger:     ledger,
	})
}

// UpdateContract обрабатывает PUT /contracts/:id. Только черновик.
func (h *ContractHandler) UpdateContract(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req dto.UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contracts.UpdateContract(c.Request.Context(), service.UpdateContractInput{
		ContractID:  contractID,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// SendForSignature обрабатывает POST /contracts/:id/send.
func (h *ContractHandler) SendForSignature(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contracts.SendForSignature(c.Request.Context(), contractID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// SignContract обрабатывает POST /contracts/:id/sign.
func (h *ContractHandler) SignContract(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req dto.SignContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contracts.SignContract(c.Request.Context(), contractID, userID, req.Signature)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// CancelContract обрабатывает POST /contracts/:id/cancel.
func (h *ContractHandler) CancelContract(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contracts.CancelContract(c.Request.Context(), contractID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

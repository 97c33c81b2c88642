package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contracthub/backend/internal/dto"
	"github.com/contracthub/backend/internal/http/handlers/common"
	"github.com/contracthub/backend/internal/service"
)

// EscrowHandler предоставляет HTTP слой эскроу: пополнение, подтверждение
// оплаты, выплата и леджер.
type EscrowHandler struct {
	escrow *service.EscrowService
}

// NewEscrowHandler создаёт хэндлер.
func NewEscrowHandler(escrow *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrow: escrow}
}

// FundEscrow обрабатывает POST /contracts/:id/escrow/fund.
func (h *EscrowHandler) FundEscrow(c *gin.Context) {
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

	// Тело необязательно: без milestone_id финансируется весь контракт.
	var req dto.FundEscrowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	milestoneID, err := parseOptionalUUID(req.MilestoneID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "milestone_id должен быть валидным UUID"})
		return
	}

	result, err := h.escrow.FundEscrow(c.Request.Context(), service.FundEscrowInput{
		ContractID:  contractID,
		UserID:      userID,
		MilestoneID: milestoneID,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ConfirmFunding обрабатывает POST /contracts/:id/escrow/confirm.
func (h *EscrowHandler) ConfirmFunding(c *gin.Context) {
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

	var req dto.ConfirmFundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.escrow.ConfirmFunding(c.Request.Context(), contractID, userID, req.SessionRef)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ReleaseEscrow обрабатывает POST /contracts/:id/escrow/release.
func (h *EscrowHandler) ReleaseEscrow(c *gin.Context) {
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

	// Тело необязательно: без него выплачивается весь удержанный остаток.
	var req dto.ReleaseEscrowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	milestoneID, err := parseOptionalUUID(req.MilestoneID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "milestone_id должен быть валидным UUID"})
		return
	}

	entry, err := h.escrow.ReleaseEscrow(c.Request.Context(), service.ReleaseEscrowInput{
		ContractID:  contractID,
		UserID:      userID,
		MilestoneID: milestoneID,
		Amount:      req.Amount,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// GetLedger обрабатывает GET /contracts/:id/escrow.
func (h *EscrowHandler) GetLedger(c *gin.Context) {
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

	ledger, err := h.escrow.GetLedger(c.Request.Context(), contractID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ledger": ledger})
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
